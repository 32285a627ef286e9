package auth

import "context"

func (m *Middleware) GetUser(ctx context.Context) User {
	u, _ := UserFrom(ctx)
	return u
}

func (m *Middleware) isAdminRole(name string) bool {
	return m.adminRole != "" && name == m.adminRole
}

func (m *Middleware) IsRole(ctx context.Context, role Role) bool {
	u, ok := UserFrom(ctx)
	return ok && (u.Role.Name == role.Name || m.isAdminRole(u.Role.Name))
}

func (m *Middleware) IsAdmin(ctx context.Context) bool {
	u, ok := UserFrom(ctx)
	return ok && m.isAdminRole(u.Role.Name)
}

func (m *Middleware) IsUser(ctx context.Context, username string) bool {
	u, ok := UserFrom(ctx)
	return ok && (u.Username == username || m.isAdminRole(u.Role.Name))
}

func (m *Middleware) IsAuthenticated(ctx context.Context) bool {
	u, ok := UserFrom(ctx)
	return ok && u.Username != ""
}
