// pkg/bridge/registry.go
package bridge

import (
	"context"
	"sync"
)

type callbackRef struct {
	cb      Callback
	refs    int
	retired bool
}

// Registry holds the single active callback object.
// Superseded callbacks are released once their in-flight dispatches finish.
type Registry struct {
	mu  sync.Mutex
	ref *callbackRef
	log *Logger
}

// NewRegistry returns an empty registry that logs through l.
func NewRegistry(l *Logger) *Registry {
	if l == nil {
		l = NewLogger(nil)
	}
	return &Registry{log: l}
}

// Register makes cb the active callback; last call wins. A nil cb empties the slot.
func (r *Registry) Register(ctx context.Context, cb Callback) {
	r.store(cb)
	if cb != nil {
		r.log.Infof(ctx, "SetCallBack", "callback registered")
	}
}

// Clear empties the slot.
func (r *Registry) Clear() { r.store(nil) }

func (r *Registry) store(cb Callback) {
	r.mu.Lock()
	old := r.ref
	if cb == nil {
		r.ref = nil
	} else {
		r.ref = &callbackRef{cb: cb}
	}

	var release Callback
	if old != nil {
		old.retired = true
		if old.refs == 0 {
			release = old.cb
		}
	}
	r.mu.Unlock()

	releaseCallback(release)
}

// Current returns the active callback without pinning it.
func (r *Registry) Current() Callback {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ref == nil {
		return nil
	}
	return r.ref.cb
}

// Lease pins a callback for the duration of one use.
type Lease struct {
	r   *Registry
	ref *callbackRef
}

// Callback is the pinned object.
func (l *Lease) Callback() Callback { return l.ref.cb }

// Release unpins; a retired callback is released when its last lease goes.
func (l *Lease) Release() {
	if l == nil || l.ref == nil {
		return
	}
	l.r.mu.Lock()
	l.ref.refs--
	var release Callback
	if l.ref.refs == 0 && l.ref.retired {
		release = l.ref.cb
	}
	l.r.mu.Unlock()
	l.ref = nil

	releaseCallback(release)
}

// Acquire pins the active callback. It returns nil when the slot is empty.
func (r *Registry) Acquire() *Lease {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ref == nil {
		return nil
	}
	r.ref.refs++
	return &Lease{r: r, ref: r.ref}
}

func releaseCallback(cb Callback) {
	if rel, ok := cb.(Releaser); ok {
		rel.Release()
	}
}
