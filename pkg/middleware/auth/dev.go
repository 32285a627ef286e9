package auth

import "net/http"

// devUserFromHeaders injects a user from X-Dev-* headers when AUTH_DEV_BYPASS=true.
// Never enable it in production.
func devUserFromHeaders(r *http.Request) (User, bool) {
	user := r.Header.Get("X-Dev-User")
	if user == "" {
		return User{}, false
	}
	return User{
		Username:             user,
		AuthenticationSource: AuthenticationSource{Provider: r.Header.Get("X-Dev-Provider")},
		Role:                 Role{Name: r.Header.Get("X-Dev-Role")},
	}, true
}
