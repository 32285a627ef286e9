package auth

import (
	"context"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strconv"
	"strings"
	"time"
)

func (m *Middleware) backgroundRefresh(ctx context.Context) {
	for {
		sleep := max(m.getCacheTTL(), 5*time.Second)
		select {
		case <-ctx.Done():
			return
		case <-time.After(sleep):
		}
		_ = m.refreshAssertionKey(ctx)
	}
}

type jwk struct {
	Kty string `json:"kty"`
	Use string `json:"use"`
	Alg string `json:"alg"`
	Kid string `json:"kid"`
	N   string `json:"n"`
	E   string `json:"e"`
}

// refreshAssertionKey fetches the verification key (JWKS or PEM), honoring ETag and max-age.
func (m *Middleware) refreshAssertionKey(ctx context.Context) error {
	if m.assertKeyURL == "" {
		return errors.New("ASSERTION_KEY_URL not set")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.assertKeyURL, nil)
	if err != nil {
		return err
	}
	if etag := m.getETag(); etag != "" {
		req.Header.Set("If-None-Match", etag)
	}
	req.Header.Set("Accept", "*/*")

	res, err := m.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusNotModified && m.getKey() != nil {
		m.mu.Lock()
		m.applyCacheControl(res)
		m.lastFetch = time.Now()
		m.mu.Unlock()
		return nil
	}
	if res.StatusCode < 200 || res.StatusCode > 299 {
		return fmt.Errorf("key fetch %s: %s", m.assertKeyURL, res.Status)
	}

	ct := strings.ToLower(res.Header.Get("Content-Type"))
	var pub *rsa.PublicKey
	if strings.Contains(ct, "application/json") || strings.HasSuffix(strings.ToLower(m.assertKeyURL), ".json") {
		pub, err = m.keyFromJWKS(res.Body)
	} else {
		pub, err = keyFromPEM(res.Body)
	}
	if err != nil {
		return err
	}

	m.mu.Lock()
	m.assertKey = pub
	m.assertETag = res.Header.Get("ETag")
	m.applyCacheControl(res)
	m.lastFetch = time.Now()
	m.mu.Unlock()
	return nil
}

// keyFromJWKS picks the configured kid, else the first RSA signing key.
func (m *Middleware) keyFromJWKS(r io.Reader) (*rsa.PublicKey, error) {
	var set struct {
		Keys []jwk `json:"keys"`
	}
	if err := json.NewDecoder(r).Decode(&set); err != nil {
		return nil, err
	}
	for _, k := range set.Keys {
		if k.Kty != "RSA" {
			continue
		}
		if m.assertKeyKID != "" {
			if k.Kid == m.assertKeyKID {
				return k.rsa()
			}
			continue
		}
		if (k.Use == "" || k.Use == "sig") && (k.Alg == "" || strings.EqualFold(k.Alg, "RS256")) {
			return k.rsa()
		}
	}
	return nil, errors.New("no suitable RSA key in JWKS")
}

func (k jwk) rsa() (*rsa.PublicKey, error) {
	n, err := base64.RawURLEncoding.DecodeString(k.N)
	if err != nil {
		return nil, fmt.Errorf("bad jwks.n: %w", err)
	}
	e, err := base64.RawURLEncoding.DecodeString(k.E)
	if err != nil {
		return nil, fmt.Errorf("bad jwks.e: %w", err)
	}
	exp := int(new(big.Int).SetBytes(e).Int64())
	if exp == 0 {
		exp = 65537
	}
	return &rsa.PublicKey{N: new(big.Int).SetBytes(n), E: exp}, nil
}

func keyFromPEM(r io.Reader) (*rsa.PublicKey, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	block, _ := pem.Decode(b)
	if block == nil {
		return nil, errors.New("no PEM block in response")
	}
	keyAny, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, err
	}
	rk, ok := keyAny.(*rsa.PublicKey)
	if !ok {
		return nil, errors.New("PEM is not RSA public key")
	}
	return rk, nil
}

// applyCacheControl adopts max-age (>= 5s) as the refresh interval. m.mu must be held.
func (m *Middleware) applyCacheControl(res *http.Response) {
	for _, p := range strings.Split(res.Header.Get("Cache-Control"), ",") {
		p = strings.ToLower(strings.TrimSpace(p))
		if s, ok := strings.CutPrefix(p, "max-age="); ok {
			if n, err := strconv.Atoi(s); err == nil && n >= 5 {
				m.cacheTTL = time.Duration(n) * time.Second
			}
			return
		}
	}
}

func (m *Middleware) getKey() *rsa.PublicKey {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.assertKey
}

func (m *Middleware) getETag() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.assertETag
}

func (m *Middleware) getCacheTTL() time.Duration {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cacheTTL
}
