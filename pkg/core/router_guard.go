package core

import (
	"context"
	"net/http"
	"slices"

	manifest "github.com/joeydtaylor/steeze-bridge/pkg/manifest"
	"github.com/joeydtaylor/steeze-bridge/pkg/middleware/auth"
)

func guardRequired(g manifest.Guard) bool {
	return g.RequireAuth || len(g.Users) > 0 || len(g.Roles) > 0
}

// guardStatus returns 0 when the request may pass, else the status to fail with.
func guardStatus(ctx context.Context, a *auth.Middleware, g manifest.Guard) int {
	if !guardRequired(g) {
		return 0
	}
	if a == nil {
		return http.StatusUnauthorized
	}
	u := a.GetUser(ctx)
	if u.Username == "" {
		return http.StatusUnauthorized
	}
	if len(g.Users) > 0 {
		if slices.Contains(g.Users, u.Username) {
			return 0
		}
		return http.StatusForbidden
	}
	if len(g.Roles) > 0 {
		if a.IsAdmin(ctx) || slices.Contains(g.Roles, u.Role.Name) {
			return 0
		}
		return http.StatusForbidden
	}
	return 0
}

func withGuard(next http.HandlerFunc, a *auth.Middleware, g manifest.Guard) http.HandlerFunc {
	if !guardRequired(g) {
		return next
	}
	return func(w http.ResponseWriter, r *http.Request) {
		if s := guardStatus(r.Context(), a, g); s != 0 {
			http.Error(w, http.StatusText(s), s)
			return
		}
		next(w, r)
	}
}
