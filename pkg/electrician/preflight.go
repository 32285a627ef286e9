package electrician

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// preflightToken polls the issuer's token endpoint until it answers 2xx or
// budget runs out, backing off from 250ms up to 2s between attempts.
func preflightToken(ctx context.Context, hc *http.Client, cfg RelayConfig, budget time.Duration) error {
	if !cfg.OAuthEnabled() {
		return nil
	}
	tokenURL := strings.TrimRight(cfg.OAuthIssuer, "/") + "/api/auth/oauth/token"
	if _, err := url.Parse(tokenURL); err != nil {
		return err
	}

	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("client_id", cfg.OAuthClientID)
	form.Set("client_secret", cfg.OAuthSecret)
	if len(cfg.OAuthScopes) > 0 {
		form.Set("scope", strings.Join(cfg.OAuthScopes, " "))
	}
	body := form.Encode()

	ctx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()
	sleep := 250 * time.Millisecond
	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, tokenURL, strings.NewReader(body))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		if res, err := hc.Do(req); err == nil {
			_, _ = io.Copy(io.Discard, res.Body)
			res.Body.Close()
			if res.StatusCode >= 200 && res.StatusCode < 300 {
				return nil
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(sleep):
		}
		if sleep < 2*time.Second {
			sleep *= 2
		}
	}
}
