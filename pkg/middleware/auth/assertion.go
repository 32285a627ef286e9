package auth

import (
	"errors"
	"slices"

	"github.com/golang-jwt/jwt/v5"
)

type assertionClaims struct {
	jwt.RegisteredClaims
	Ver   int      `json:"ver"`
	SID   string   `json:"sid"`
	UID   string   `json:"uid"`
	Org   string   `json:"org"`
	Roles []string `json:"roles"`
	Role  string   `json:"role"`
}

// validateAssertion verifies an RS256 assertion against the cached key.
func (m *Middleware) validateAssertion(raw string) (User, error) {
	pub := m.getKey()
	if pub == nil {
		return User{}, errors.New("assertion key not configured")
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{"RS256"}),
		jwt.WithIssuedAt(),
		jwt.WithLeeway(m.assertLeeway),
	)
	var claims assertionClaims
	tok, err := parser.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) { return pub, nil })
	if err != nil || !tok.Valid {
		return User{}, errors.New("invalid assertion")
	}
	if m.assertIssuer != "" && claims.Issuer != m.assertIssuer {
		return User{}, errors.New("bad issuer")
	}
	if m.assertAudience != "" && !slices.Contains([]string(claims.Audience), m.assertAudience) {
		return User{}, errors.New("bad audience")
	}

	username := claims.UID
	if username == "" {
		username = claims.Subject
	}
	if username == "" {
		return User{}, errors.New("missing uid")
	}

	role := claims.Role
	if role == "" && len(claims.Roles) > 0 {
		role = claims.Roles[0]
	}
	return User{
		Username:             username,
		AuthenticationSource: AuthenticationSource{Provider: ProviderAssertion},
		Role:                 Role{Name: role},
	}, nil
}
