// pkg/electrician/builder.go
package electrician

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"time"

	"github.com/joeydtaylor/electrician/pkg/builder"
)

// builderClient publishes through an Electrician wire feeding a ForwardRelay.
type builderClient struct {
	submit func(context.Context, []byte) error
}

func (c *builderClient) Request(context.Context, RelayRequest) ([]byte, error) {
	return nil, ErrRequestUnsupported
}

// Publish sends the body into the wire; topic and headers ride the relay.
func (c *builderClient) Publish(ctx context.Context, rr RelayRequest) error {
	if rr.Topic == "" {
		return fmt.Errorf("relay: missing topic")
	}
	return c.submit(ctx, rr.Body)
}

// NewRelay returns a started relay for cfg, or a noop one when no target is set.
func NewRelay(ctx context.Context, cfg RelayConfig) (RelayClient, error) {
	if len(cfg.Targets) == 0 {
		return noopRelay{}, nil
	}

	logger := builder.NewLogger(builder.LoggerWithDevelopment(true))
	wire := builder.NewWire[[]byte](ctx, builder.WireWithLogger[[]byte](logger))

	perf := builder.NewPerformanceOptions(cfg.Snappy, builder.COMPRESS_SNAPPY)
	sec := builder.NewSecurityOptions(cfg.AESKey != "", builder.ENCRYPTION_AES_GCM)
	tlsCfg := builder.NewTlsClientConfig(cfg.TLS, cfg.TLSCert, cfg.TLSKey, cfg.TLSCA, tls.VersionTLS13, tls.VersionTLS13)

	var start func(context.Context) error
	if cfg.OAuthEnabled() {
		authOpts := builder.NewForwardRelayAuthenticationOptionsOAuth2(nil)
		if cfg.OAuthJWKS != "" {
			authOpts = builder.NewForwardRelayAuthenticationOptionsOAuth2(
				builder.NewForwardRelayOAuth2JWTOptions(cfg.OAuthIssuer, cfg.OAuthJWKS, []string{}, cfg.OAuthScopes, 300),
			)
		}
		hc := tokenClient(cfg.TLSInsecure)
		// Best effort; the relay surfaces a dead issuer on its own.
		_ = preflightToken(ctx, hc, cfg, 10*time.Second)
		ts := builder.NewForwardRelayRefreshingClientCredentialsSource(
			cfg.OAuthIssuer, cfg.OAuthClientID, cfg.OAuthSecret, cfg.OAuthScopes, cfg.OAuthLeeway, hc,
		)
		relay := builder.NewForwardRelay[[]byte](
			ctx,
			builder.ForwardRelayWithLogger[[]byte](logger),
			builder.ForwardRelayWithTarget[[]byte](cfg.Targets...),
			builder.ForwardRelayWithPerformanceOptions[[]byte](perf),
			builder.ForwardRelayWithSecurityOptions[[]byte](sec, cfg.AESKey),
			builder.ForwardRelayWithTLSConfig[[]byte](tlsCfg),
			builder.ForwardRelayWithStaticHeaders[[]byte](cfg.StaticHeaders),
			builder.ForwardRelayWithAuthenticationOptions[[]byte](authOpts),
			builder.ForwardRelayWithOAuthBearer[[]byte](ts),
			builder.ForwardRelayWithInput(wire),
		)
		start = relay.Start
	} else {
		relay := builder.NewForwardRelay[[]byte](
			ctx,
			builder.ForwardRelayWithLogger[[]byte](logger),
			builder.ForwardRelayWithTarget[[]byte](cfg.Targets...),
			builder.ForwardRelayWithPerformanceOptions[[]byte](perf),
			builder.ForwardRelayWithSecurityOptions[[]byte](sec, cfg.AESKey),
			builder.ForwardRelayWithTLSConfig[[]byte](tlsCfg),
			builder.ForwardRelayWithStaticHeaders[[]byte](cfg.StaticHeaders),
			builder.ForwardRelayWithInput(wire),
		)
		start = relay.Start
	}

	if err := wire.Start(ctx); err != nil {
		return nil, fmt.Errorf("builder wire start: %w", err)
	}
	if err := start(ctx); err != nil {
		return nil, fmt.Errorf("builder relay start: %w", err)
	}
	return &builderClient{
		submit: func(ctx context.Context, b []byte) error { return wire.Submit(ctx, b) },
	}, nil
}

func tokenClient(insecure bool) *http.Client {
	return &http.Client{
		Timeout: 10 * time.Second,
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{
				MinVersion:         tls.VersionTLS13,
				MaxVersion:         tls.VersionTLS13,
				InsecureSkipVerify: insecure,
			},
		},
	}
}
