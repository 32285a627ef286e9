package auth

import "context"

type Role struct {
	Name string `json:"name"`
}

type AuthenticationSource struct {
	Provider string `json:"provider"`
}

type User struct {
	Username             string               `json:"username"`
	AuthenticationSource AuthenticationSource `json:"authenticationSource"`
	Role                 Role                 `json:"role"`
}

// Providers recorded in AuthenticationSource.
const (
	ProviderAssertion = "assert"
	ProviderSession   = "session"
	ProviderBasic     = "basic"
)

type contextKey struct{ name string }

var userCtxKey = &contextKey{"user"}

// WithUser attaches u to ctx. The AuthTrans stage uses it after a callback accepts
// basic credentials.
func WithUser(ctx context.Context, u User) context.Context {
	return context.WithValue(ctx, userCtxKey, u)
}

// UserFrom returns the user attached to ctx, if any.
func UserFrom(ctx context.Context) (User, bool) {
	u, ok := ctx.Value(userCtxKey).(User)
	return u, ok
}
