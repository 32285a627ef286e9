package auth

import (
	"context"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Options(
	fx.Provide(ProvideAuthentication),
)

// Config carries the identity settings normally read from the environment.
type Config struct {
	SessionAPI       string
	CookieName       string
	AdminRole        string
	DevBypass        bool
	AssertCookieName string
	AssertKeyURL     string
	AssertKeyKID     string
	AssertIssuer     string
	AssertAudience   string
	AssertLeeway     time.Duration
	HTTPClient       HTTPDoer
}

// ConfigFromEnv reads SESSION_*, ADMIN_ROLE_NAME, AUTH_DEV_BYPASS and ASSERTION_*.
func ConfigFromEnv() Config {
	leeway := 60 * time.Second
	if v := strings.TrimSpace(os.Getenv("ASSERTION_LEEWAY_SECONDS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			leeway = time.Duration(n) * time.Second
		}
	}
	return Config{
		SessionAPI:       os.Getenv("SESSION_STATE_API"),
		CookieName:       os.Getenv("SESSION_COOKIE_NAME"),
		AdminRole:        os.Getenv("ADMIN_ROLE_NAME"),
		DevBypass:        os.Getenv("AUTH_DEV_BYPASS") == "true",
		AssertCookieName: strings.TrimSpace(os.Getenv("ASSERTION_COOKIE_NAME")),
		AssertKeyURL:     strings.TrimSpace(os.Getenv("ASSERTION_KEY_URL")),
		AssertKeyKID:     strings.TrimSpace(os.Getenv("ASSERTION_KEY_KID")),
		AssertIssuer:     strings.TrimSpace(os.Getenv("ASSERTION_ISSUER")),
		AssertAudience:   strings.TrimSpace(os.Getenv("ASSERTION_AUDIENCE")),
		AssertLeeway:     leeway,
	}
}

// New builds the middleware without fetching any key.
func New(cfg Config) *Middleware {
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:    10,
				IdleConnTimeout: 30 * time.Second,
			},
			Timeout: 8 * time.Second,
		}
	}
	if cfg.AssertCookieName == "" {
		cfg.AssertCookieName = "assert"
	}
	return &Middleware{
		httpClient:       hc,
		sessionAPI:       cfg.SessionAPI,
		cookieName:       cfg.CookieName,
		adminRole:        cfg.AdminRole,
		devBypass:        cfg.DevBypass,
		assertCookieName: cfg.AssertCookieName,
		assertKeyURL:     cfg.AssertKeyURL,
		assertKeyKID:     cfg.AssertKeyKID,
		assertIssuer:     cfg.AssertIssuer,
		assertAudience:   cfg.AssertAudience,
		assertLeeway:     cfg.AssertLeeway,
		cacheTTL:         time.Hour,
	}
}

// ProvideAuthentication wires env config. The assertion key is fetched on start
// (non-fatal) and refreshed until stop.
func ProvideAuthentication(lc fx.Lifecycle, zl *zap.Logger) *Middleware {
	m := New(ConfigFromEnv())
	if m.assertKeyURL == "" {
		return m
	}
	ctx, cancel := context.WithCancel(context.Background())
	lc.Append(fx.Hook{
		OnStart: func(start context.Context) error {
			if err := m.refreshAssertionKey(start); err != nil {
				zl.Warn("assertion key fetch failed", zap.String("url", m.assertKeyURL), zap.Error(err))
			}
			go m.backgroundRefresh(ctx)
			return nil
		},
		OnStop: func(context.Context) error {
			cancel()
			return nil
		},
	})
	return m
}
