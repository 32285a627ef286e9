package serverfx

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/joeydtaylor/steeze-bridge/pkg/bundlefx"
	"github.com/joeydtaylor/steeze-bridge/pkg/core"
	"github.com/joeydtaylor/steeze-bridge/pkg/electrician"
	"github.com/joeydtaylor/steeze-bridge/pkg/manifest"
	"github.com/joeydtaylor/steeze-bridge/pkg/middleware/auth"
	"github.com/joeydtaylor/steeze-bridge/pkg/middleware/logger"
	"github.com/joeydtaylor/steeze-bridge/pkg/transport/httpx"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// ---------- Options ----------

type Config struct {
	Service         string // for logs only
	ManifestEnv     string // BRIDGE_MANIFEST
	DefaultManifest string // manifest.toml
	ListenEnv       string // SERVER_LISTEN_ADDRESS
	DefaultListen   string // :4000
	TLSCertEnv      string // SSL_SERVER_CERTIFICATE
	TLSKeyEnv       string // SSL_SERVER_KEY
}

type Option func(*Config)

func WithService(s string) Option            { return func(c *Config) { c.Service = s } }
func WithManifestEnv(k string) Option        { return func(c *Config) { c.ManifestEnv = k } }
func WithDefaultManifest(path string) Option { return func(c *Config) { c.DefaultManifest = path } }
func WithListenEnv(k string) Option          { return func(c *Config) { c.ListenEnv = k } }
func WithDefaultListen(addr string) Option   { return func(c *Config) { c.DefaultListen = addr } }
func WithTLSCertKeyEnv(cert, key string) Option {
	return func(c *Config) { c.TLSCertEnv, c.TLSKeyEnv = cert, key }
}

func defaultConfig() Config {
	return Config{
		Service:         "steeze-bridge",
		ManifestEnv:     "BRIDGE_MANIFEST",
		DefaultManifest: "manifest.toml",
		ListenEnv:       "SERVER_LISTEN_ADDRESS",
		DefaultListen:   ":4000",
		TLSCertEnv:      "SSL_SERVER_CERTIFICATE",
		TLSKeyEnv:       "SSL_SERVER_KEY",
	}
}

// Module returns the complete Fx option set; add app-specific fx.Invoke(...) alongside.
func Module(opts ...Option) fx.Option {
	cfg := defaultConfig()
	for _, o := range opts {
		o(&cfg)
	}
	return fx.Options(
		bundlefx.Module,
		fx.Provide(httpx.NewChi),
		fx.Provide(func() Config { return cfg }),
		fx.Provide(provideManifest),
		fx.Provide(provideAudit),
		fx.Provide(provideBridge),
		fx.Provide(fx.Annotate(provideRouter, fx.ResultTags(`name:"app"`))),
		fx.Invoke(registerHooks),
	)
}

func provideManifest(cfg Config, zl *zap.Logger) (manifest.Config, error) {
	path := envOr(cfg.ManifestEnv, cfg.DefaultManifest)
	man, err := core.LoadConfig(path)
	if err != nil {
		return manifest.Config{}, fmt.Errorf("manifest %s: %w", path, err)
	}
	zl.Info("manifest loaded",
		zap.String("service", cfg.Service),
		zap.String("path", path),
		zap.String("module", man.Bridge.Module),
		zap.Int("routes", len(man.Routes)))
	return man, nil
}

// provideAudit returns nil when no relay target is configured.
func provideAudit(lc fx.Lifecycle, zl *zap.Logger) (*electrician.AuditPublisher, error) {
	ctx, cancel := context.WithCancel(context.Background())
	p, err := electrician.NewAuditFromEnv(ctx, zl)
	if err != nil {
		cancel()
		return nil, err
	}
	lc.Append(fx.Hook{OnStop: func(context.Context) error {
		if p != nil {
			p.Close()
		}
		cancel()
		return nil
	}})
	return p, nil
}

// ---------- Router ----------

type routerDeps struct {
	fx.In
	Manifest manifest.Config
	Auth     *auth.Middleware
	LogMW    *logger.Middleware
	Metrics  http.Handler `name:"metrics"`
	Router   httpx.Router
	Host     *BridgeHost
	Logger   *zap.Logger
}

func provideRouter(d routerDeps) http.Handler {
	return core.BuildRouter(d.Manifest, core.BuildDeps{
		Auth:     d.Auth,
		LogMW:    d.LogMW,
		Metrics:  d.Metrics,
		Router:   d.Router,
		Dispatch: d.Host.Bridge.Dispatcher(),
		Bridge:   d.Host.Bridge,
		Log:      d.Logger,
	})
}

// ---------- Lifecycle (HTTP server) ----------

type serverDeps struct {
	fx.In
	Logger *zap.Logger
	App    http.Handler `name:"app"`
}

func registerHooks(lc fx.Lifecycle, cfg Config, d serverDeps) {
	addr := envOr(cfg.ListenEnv, cfg.DefaultListen)
	cert := os.Getenv(cfg.TLSCertEnv)
	key := os.Getenv(cfg.TLSKeyEnv)

	srv := &http.Server{
		Addr:         addr,
		Handler:      d.App,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
		TLSConfig:    &tls.Config{MinVersion: tls.VersionTLS13, MaxVersion: tls.VersionTLS13},
	}
	useTLS := fileExists(cert) && fileExists(key)

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			if useTLS {
				d.Logger.Info("server starting (TLS)", zap.String("addr", addr), zap.String("cert", cert))
				go func() {
					if err := srv.ListenAndServeTLS(cert, key); err != nil && !errors.Is(err, http.ErrServerClosed) {
						d.Logger.Fatal("server failed", zap.Error(err))
					}
				}()
				return nil
			}
			d.Logger.Info("server starting (PLAINTEXT)", zap.String("addr", addr))
			srv.TLSConfig = nil
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					d.Logger.Fatal("server failed", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			d.Logger.Info("server stopping")
			return srv.Shutdown(ctx)
		},
	})
}

// ---------- tiny helpers ----------

func envOr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func fileExists(path string) bool {
	if path == "" {
		return false
	}
	_, err := os.Stat(path)
	return err == nil
}
