package electrician

import (
	"encoding/hex"
	"fmt"
	"os"
	"strings"
	"time"
)

// RelayConfig describes the forward relay the audit trail is shipped through.
type RelayConfig struct {
	Targets []string

	TLS         bool
	TLSCert     string
	TLSKey      string
	TLSCA       string
	TLSInsecure bool // token fetch only

	Snappy bool
	AESKey string // raw 32 bytes when set

	StaticHeaders map[string]string

	OAuthIssuer   string
	OAuthJWKS     string
	OAuthClientID string
	OAuthSecret   string
	OAuthScopes   []string
	OAuthLeeway   time.Duration
}

// OAuthEnabled reports whether client-credentials bearer tokens are attached.
func (c RelayConfig) OAuthEnabled() bool {
	return c.OAuthIssuer != "" && c.OAuthClientID != "" && c.OAuthSecret != ""
}

// RelayConfigFromEnv reads the ELECTRICIAN_* and OAUTH_* variables:
//
//	ELECTRICIAN_TARGET          = "host:port[,host2:port2]"  (empty disables the relay)
//	ELECTRICIAN_TLS_ENABLE      = "true"
//	ELECTRICIAN_TLS_CLIENT_CRT  = path (default keys/tls/client.crt)
//	ELECTRICIAN_TLS_CLIENT_KEY  = path (default keys/tls/client.key)
//	ELECTRICIAN_TLS_CA          = path (default keys/tls/ca.crt)
//	ELECTRICIAN_TLS_INSECURE    = "true" (dev only)
//	ELECTRICIAN_COMPRESS        = "snappy"
//	ELECTRICIAN_ENCRYPT         = "aesgcm", with ELECTRICIAN_AES256_KEY_HEX = 64 hex chars
//	ELECTRICIAN_STATIC_HEADERS  = "k=v,k2=v2"
//	OAUTH_ISSUER_BASE, OAUTH_JWKS_URL, OAUTH_CLIENT_ID, OAUTH_CLIENT_SECRET,
//	OAUTH_SCOPES ("s1,s2"), OAUTH_REFRESH_LEEWAY (default 20s)
func RelayConfigFromEnv() (RelayConfig, error) {
	c := RelayConfig{
		Targets:       splitCSV(os.Getenv("ELECTRICIAN_TARGET")),
		TLS:           envBool("ELECTRICIAN_TLS_ENABLE"),
		TLSCert:       envOr("ELECTRICIAN_TLS_CLIENT_CRT", "keys/tls/client.crt"),
		TLSKey:        envOr("ELECTRICIAN_TLS_CLIENT_KEY", "keys/tls/client.key"),
		TLSCA:         envOr("ELECTRICIAN_TLS_CA", "keys/tls/ca.crt"),
		TLSInsecure:   envBool("ELECTRICIAN_TLS_INSECURE"),
		Snappy:        strings.EqualFold(os.Getenv("ELECTRICIAN_COMPRESS"), "snappy"),
		StaticHeaders: parseKV(os.Getenv("ELECTRICIAN_STATIC_HEADERS")),
		OAuthIssuer:   envOr("OAUTH_ISSUER_BASE", ""),
		OAuthJWKS:     envOr("OAUTH_JWKS_URL", ""),
		OAuthClientID: envOr("OAUTH_CLIENT_ID", ""),
		OAuthSecret:   envOr("OAUTH_CLIENT_SECRET", ""),
		OAuthScopes:   splitCSV(os.Getenv("OAUTH_SCOPES")),
		OAuthLeeway:   parseDur(os.Getenv("OAUTH_REFRESH_LEEWAY"), 20*time.Second),
	}
	if strings.EqualFold(os.Getenv("ELECTRICIAN_ENCRYPT"), "aesgcm") {
		raw, err := hex.DecodeString(strings.TrimSpace(os.Getenv("ELECTRICIAN_AES256_KEY_HEX")))
		if err != nil || len(raw) != 32 {
			return RelayConfig{}, fmt.Errorf("ELECTRICIAN_AES256_KEY_HEX must be 64 hex chars (32 bytes)")
		}
		c.AESKey = string(raw)
	}
	return c, nil
}
