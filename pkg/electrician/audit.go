// pkg/electrician/audit.go
package electrician

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/joeydtaylor/steeze-bridge/pkg/bridge"
	"github.com/joeydtaylor/steeze-bridge/pkg/codec"
	"go.uber.org/zap"
)

// DefaultAuditTopic is used when BRIDGE_AUDIT_TOPIC is unset.
const DefaultAuditTopic = "bridge.dispatch"

// AuditEvent is the record shipped for every finished dispatch.
type AuditEvent struct {
	ID        string    `json:"id"`
	Bridge    string    `json:"bridge"`
	Entry     string    `json:"entry"`
	Code      string    `json:"code"`
	URI       string    `json:"uri,omitempty"`
	Thread    string    `json:"thread"`
	LatencyMS float64   `json:"latency_ms"`
	GateMS    float64   `json:"gate_wait_ms,omitempty"`
	At        time.Time `json:"at"`
}

// AuditPublisher is a bridge.Observer that publishes dispatch outcomes on a
// relay. Publishing happens on a background worker; when the queue is full
// the event is dropped and counted.
type AuditPublisher struct {
	relay    RelayClient
	topic    string
	instance string
	zl       *zap.Logger

	q       chan AuditEvent
	wg      sync.WaitGroup
	once    sync.Once
	mu      sync.Mutex
	closed  bool
	dropped uint64
}

var _ bridge.Observer = (*AuditPublisher)(nil)

// NewAuditPublisher starts the worker. queue <= 0 means 256.
func NewAuditPublisher(relay RelayClient, topic string, queue int, zl *zap.Logger) *AuditPublisher {
	if topic == "" {
		topic = DefaultAuditTopic
	}
	if queue <= 0 {
		queue = 256
	}
	if zl == nil {
		zl = zap.NewNop()
	}
	p := &AuditPublisher{
		relay:    relay,
		topic:    topic,
		instance: uuid.NewString(),
		zl:       zl,
		q:        make(chan AuditEvent, queue),
	}
	p.wg.Add(1)
	go p.run()
	return p
}

// Instance identifies this bridge in published events.
func (p *AuditPublisher) Instance() string { return p.instance }

func (p *AuditPublisher) ObserveDispatch(_ context.Context, o bridge.Outcome) {
	ev := AuditEvent{
		ID:        uuid.NewString(),
		Bridge:    p.instance,
		Entry:     string(o.Entry),
		Code:      o.Code.String(),
		URI:       o.URI,
		Thread:    o.Thread,
		LatencyMS: float64(o.Latency) / float64(time.Millisecond),
		GateMS:    float64(o.GateWait) / float64(time.Millisecond),
		At:        time.Now().UTC(),
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	select {
	case p.q <- ev:
	default:
		p.dropped++
	}
}

// Dropped returns how many events were discarded on a full queue.
func (p *AuditPublisher) Dropped() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.dropped
}

func (p *AuditPublisher) run() {
	defer p.wg.Done()
	for ev := range p.q {
		body, err := codec.JSONStrict.Marshal(ev)
		if err != nil {
			p.zl.Warn("audit encode failed", zap.Error(err))
			continue
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err = p.relay.Publish(ctx, RelayRequest{
			Topic:   p.topic,
			Body:    body,
			Headers: map[string]string{"content-type": codec.JSONStrict.ContentType()},
			Timeout: 5 * time.Second,
		})
		cancel()
		if err != nil {
			p.zl.Warn("audit publish failed", zap.String("topic", p.topic), zap.Error(err))
		}
	}
}

// Close stops accepting events and waits for the queue to drain.
func (p *AuditPublisher) Close() {
	p.once.Do(func() {
		p.mu.Lock()
		p.closed = true
		close(p.q)
		p.mu.Unlock()
		p.wg.Wait()
		if n := p.Dropped(); n > 0 {
			p.zl.Warn("audit events dropped", zap.Uint64("count", n))
		}
	})
}

// AuditTopicFromEnv returns BRIDGE_AUDIT_TOPIC or the default.
func AuditTopicFromEnv() string { return envOr("BRIDGE_AUDIT_TOPIC", DefaultAuditTopic) }

// NewAuditFromEnv builds the relay from the environment and wraps it in a
// publisher. It returns nil when no ELECTRICIAN_TARGET is configured. ctx
// bounds the relay's lifetime.
func NewAuditFromEnv(ctx context.Context, zl *zap.Logger) (*AuditPublisher, error) {
	cfg, err := RelayConfigFromEnv()
	if err != nil {
		return nil, err
	}
	relay, err := NewRelay(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if IsNoop(relay) {
		return nil, nil
	}
	if zl != nil {
		zl.Info("bridge audit enabled",
			zap.Strings("targets", cfg.Targets),
			zap.String("topic", AuditTopicFromEnv()),
			zap.Bool("oauth", cfg.OAuthEnabled()),
			zap.String("host", hostname()))
	}
	return NewAuditPublisher(relay, AuditTopicFromEnv(), 0, zl), nil
}

func hostname() string {
	h, _ := os.Hostname()
	return h
}
