package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

var errRejected = errors.New("session rejected")

// Middleware identifies the caller and attaches the user to the request context.
// Requests without credentials pass through unauthenticated; route guards and the
// AuthTrans stage decide what that means.
func (m *Middleware) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			u, ok, err := m.identify(r)
			if errors.Is(err, errRejected) {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
			if ok {
				r = r.WithContext(WithUser(r.Context(), u))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// identify tries, in order: dev headers, the assertion cookie, the session cookie.
// A bad assertion falls through; a bad session cookie rejects the request.
func (m *Middleware) identify(r *http.Request) (User, bool, error) {
	if m.devBypass {
		if u, ok := devUserFromHeaders(r); ok {
			return u, true, nil
		}
	}

	if ac, _ := r.Cookie(m.assertCookieName); ac != nil && ac.Value != "" && m.getKey() != nil {
		if u, err := m.validateAssertion(ac.Value); err == nil {
			return u, true, nil
		}
	}

	if m.cookieName == "" {
		return User{}, false, nil
	}
	c, err := r.Cookie(m.cookieName)
	if err != nil || c.Value == "" {
		return User{}, false, nil
	}
	u, err := m.validateSession(r.Context(), c)
	if err != nil || u.Username == "" {
		return User{}, false, fmt.Errorf("%w: %v", errRejected, err)
	}
	return u, true, nil
}

func (m *Middleware) validateSession(ctx context.Context, c *http.Cookie) (User, error) {
	if m.sessionAPI == "" {
		return User{}, errors.New("SESSION_STATE_API not set")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.sessionAPI, nil)
	if err != nil {
		return User{}, err
	}
	req.Header.Set("Accept", "application/json")
	req.AddCookie(c)

	res, err := m.httpClient.Do(req)
	if err != nil {
		return User{}, err
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return User{}, fmt.Errorf("session api status %d", res.StatusCode)
	}

	var u User
	if err := json.NewDecoder(res.Body).Decode(&u); err != nil {
		return User{}, err
	}
	if u.AuthenticationSource.Provider == "" {
		u.AuthenticationSource.Provider = ProviderSession
	}
	return u, nil
}
