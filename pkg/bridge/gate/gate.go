// pkg/bridge/gate/gate.go
package gate

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
)

var (
	ErrNotHeld   = errors.New("gate: critical section not held")
	ErrNotOwner  = errors.New("gate: critical section held by another owner")
	ErrBusy      = errors.New("gate: critical section is held")
	ErrDestroyed = errors.New("gate: critical section destroyed")
)

// TypeError is returned when a value that is not a live *Handle is passed where one is required.
// Err is set to ErrDestroyed when the value was a handle that has been retired.
type TypeError struct {
	Op  string
	Err error
}

func (e *TypeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("argument to crit_%s must be a CRITICAL object (%v)", e.Op, e.Err)
	}
	return fmt.Sprintf("argument to crit_%s must be a CRITICAL object", e.Op)
}

func (e *TypeError) Unwrap() error { return e.Err }

// Owner identifies the party holding a critical section. Re-entry by the same
// owner nests instead of blocking.
type Owner uint64

// Main is the owner used outside of any dispatch (bootstrap, tests).
const Main Owner = 1

var (
	nextOwner  atomic.Uint64
	nextHandle atomic.Uint64
)

func init() { nextOwner.Store(uint64(Main)) }

// NewOwner returns a process-unique owner.
func NewOwner() Owner { return Owner(nextOwner.Add(1)) }

type ownerKey struct{}

// WithOwner attaches o to ctx.
func WithOwner(ctx context.Context, o Owner) context.Context {
	return context.WithValue(ctx, ownerKey{}, o)
}

// OwnerFrom returns the owner carried by ctx, or Main.
func OwnerFrom(ctx context.Context) Owner {
	if ctx != nil {
		if o, ok := ctx.Value(ownerKey{}).(Owner); ok {
			return o
		}
	}
	return Main
}

// Handle is a blocking mutual-exclusion primitive, reentrant per Owner.
type Handle struct {
	id uint64

	mu        sync.Mutex
	cond      *sync.Cond
	owner     Owner
	depth     int
	destroyed bool
}

// Create returns a fresh, unheld critical section.
func Create() (*Handle, error) {
	h := &Handle{id: nextHandle.Add(1)}
	h.cond = sync.NewCond(&h.mu)
	return h, nil
}

// ID is the handle's number, used in log lines.
func (h *Handle) ID() uint64 { return h.id }

func (h *Handle) String() string { return fmt.Sprintf("critical section %d", h.id) }

// Enter blocks until o holds the section. There is no timeout.
func (h *Handle) Enter(o Owner) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	for {
		if h.destroyed {
			return ErrDestroyed
		}
		if h.depth == 0 || h.owner == o {
			break
		}
		h.cond.Wait()
	}
	h.owner = o
	h.depth++
	return nil
}

// Exit releases one level of o's hold.
func (h *Handle) Exit(o Owner) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.depth == 0 {
		return ErrNotHeld
	}
	if h.owner != o {
		return ErrNotOwner
	}
	h.depth--
	if h.depth == 0 {
		h.owner = 0
		h.cond.Signal()
	}
	return nil
}

// Held reports whether anyone holds the section.
func (h *Handle) Held() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.depth > 0
}

// HeldBy reports whether o holds the section.
func (h *Handle) HeldBy(o Owner) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.depth > 0 && h.owner == o
}

func (h *Handle) isDestroyed() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.destroyed
}

// Destroy retires the section; waiters wake with ErrDestroyed.
func (h *Handle) Destroy() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.destroyed {
		return ErrDestroyed
	}
	if h.depth > 0 {
		return ErrBusy
	}
	h.destroyed = true
	h.cond.Broadcast()
	return nil
}

func handleOf(v any, op string) (*Handle, error) {
	h, ok := v.(*Handle)
	if !ok || h == nil {
		return nil, &TypeError{Op: op}
	}
	return h, nil
}

// retired reports a destroyed handle as a TypeError; other errors pass through.
func retired(err error, op string) error {
	if errors.Is(err, ErrDestroyed) {
		return &TypeError{Op: op, Err: err}
	}
	return err
}

// Enter is the untyped form used by runtime bindings.
func Enter(v any, o Owner) error {
	h, err := handleOf(v, "enter")
	if err != nil {
		return err
	}
	return retired(h.Enter(o), "enter")
}

// Exit is the untyped form used by runtime bindings.
func Exit(v any, o Owner) error {
	h, err := handleOf(v, "exit")
	if err != nil {
		return err
	}
	if h.isDestroyed() {
		return &TypeError{Op: "exit", Err: ErrDestroyed}
	}
	return h.Exit(o)
}

// Destroy is the untyped form used by runtime bindings.
func Destroy(v any) error {
	h, err := handleOf(v, "terminate")
	if err != nil {
		return err
	}
	return retired(h.Destroy(), "terminate")
}
