// pkg/electrician/relay.go
package electrician

import (
	"context"
	"errors"
	"time"
)

// ErrRequestUnsupported is returned by relays that only publish.
var ErrRequestUnsupported = errors.New("electrician: request/reply unsupported")

// RelayRequest is the byte-level publish envelope.
type RelayRequest struct {
	Topic   string
	Body    []byte
	Headers map[string]string
	Timeout time.Duration
}

// RelayClient is what the audit publisher needs from a relay.
type RelayClient interface {
	Request(ctx context.Context, rr RelayRequest) ([]byte, error)
	Publish(ctx context.Context, rr RelayRequest) error
}

// noopRelay accepts publishes and discards them.
type noopRelay struct{}

func (noopRelay) Request(context.Context, RelayRequest) ([]byte, error) {
	return nil, ErrRequestUnsupported
}
func (noopRelay) Publish(context.Context, RelayRequest) error { return nil }

// IsNoop reports whether c drops everything.
func IsNoop(c RelayClient) bool {
	_, ok := c.(noopRelay)
	return ok
}
