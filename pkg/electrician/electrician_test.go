package electrician

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/joeydtaylor/steeze-bridge/pkg/bridge"
	"github.com/joeydtaylor/steeze-bridge/pkg/codec"
	"github.com/stretchr/testify/require"
)

type fakeRelay struct {
	mu   sync.Mutex
	got  []RelayRequest
	gate chan struct{}
}

func (f *fakeRelay) Request(context.Context, RelayRequest) ([]byte, error) {
	return nil, ErrRequestUnsupported
}

func (f *fakeRelay) Publish(_ context.Context, rr RelayRequest) error {
	if f.gate != nil {
		<-f.gate
	}
	f.mu.Lock()
	f.got = append(f.got, rr)
	f.mu.Unlock()
	return nil
}

func TestAuditPublisherShipsOutcomes(t *testing.T) {
	fr := &fakeRelay{}
	p := NewAuditPublisher(fr, "", 0, nil)
	p.ObserveDispatch(context.Background(), bridge.Outcome{
		Entry:   bridge.EntryService,
		Code:    bridge.Proceed,
		URI:     "/scripts/hello.lua",
		Thread:  "req-1",
		Latency: 2 * time.Millisecond,
	})
	p.Close()

	require.Len(t, fr.got, 1)
	rr := fr.got[0]
	require.Equal(t, DefaultAuditTopic, rr.Topic)
	require.Equal(t, "application/json", rr.Headers["content-type"])

	var ev AuditEvent
	require.NoError(t, codec.JSONStrict.Unmarshal(rr.Body, &ev))
	require.Equal(t, p.Instance(), ev.Bridge)
	require.Equal(t, "Service", ev.Entry)
	require.Equal(t, "PROCEED", ev.Code)
	require.Equal(t, "/scripts/hello.lua", ev.URI)
	require.Equal(t, "req-1", ev.Thread)
	require.InDelta(t, 2.0, ev.LatencyMS, 0.001)
	require.NotEmpty(t, ev.ID)
}

func TestAuditPublisherDropsWhenFull(t *testing.T) {
	fr := &fakeRelay{gate: make(chan struct{})}
	p := NewAuditPublisher(fr, "t", 1, nil)
	for i := 0; i < 10; i++ {
		p.ObserveDispatch(context.Background(), bridge.Outcome{Entry: bridge.EntryAuthTrans, Code: bridge.NoAction})
	}
	require.Positive(t, p.Dropped())
	close(fr.gate)
	p.Close()
	p.ObserveDispatch(context.Background(), bridge.Outcome{})
	require.LessOrEqual(t, len(fr.got), 2)
}

func TestRelayConfigFromEnv(t *testing.T) {
	t.Setenv("ELECTRICIAN_TARGET", "a:1, b:2")
	t.Setenv("ELECTRICIAN_COMPRESS", "SNAPPY")
	t.Setenv("ELECTRICIAN_STATIC_HEADERS", "x=1,bad, y = 2")
	t.Setenv("OAUTH_REFRESH_LEEWAY", "nonsense")

	cfg, err := RelayConfigFromEnv()
	require.NoError(t, err)
	require.Equal(t, []string{"a:1", "b:2"}, cfg.Targets)
	require.True(t, cfg.Snappy)
	require.Equal(t, map[string]string{"x": "1", "y": "2"}, cfg.StaticHeaders)
	require.Equal(t, 20*time.Second, cfg.OAuthLeeway)
	require.False(t, cfg.OAuthEnabled())

	t.Setenv("ELECTRICIAN_ENCRYPT", "aesgcm")
	t.Setenv("ELECTRICIAN_AES256_KEY_HEX", "abcd")
	_, err = RelayConfigFromEnv()
	require.Error(t, err)
}

func TestNoTargetMeansNoAudit(t *testing.T) {
	t.Setenv("ELECTRICIAN_TARGET", "")
	relay, err := NewRelay(context.Background(), RelayConfig{})
	require.NoError(t, err)
	require.True(t, IsNoop(relay))

	p, err := NewAuditFromEnv(context.Background(), nil)
	require.NoError(t, err)
	require.Nil(t, p)
}

func TestPreflightTokenRetries(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/auth/oauth/token" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if hits.Add(1) < 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	cfg := RelayConfig{OAuthIssuer: srv.URL + "/", OAuthClientID: "id", OAuthSecret: "s"}
	require.NoError(t, preflightToken(context.Background(), srv.Client(), cfg, 5*time.Second))
	require.Equal(t, int32(2), hits.Load())
}
