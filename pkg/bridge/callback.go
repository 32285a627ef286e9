package bridge

import (
	"context"
	"errors"
)

// Callback is the object a runtime registers to handle dispatches.
// No capability is checked at registration; a missing one surfaces as an
// invocation failure on the dispatch that needs it.
type Callback interface {
	Service(ctx context.Context, pb *ParamBlock, sn *Session, rq *Request) (Token, error)
	AuthTrans(ctx context.Context, pb *ParamBlock, sn *Session, rq *Request) (Token, error)
	Log(ctx context.Context, line string) error
}

// Releaser is implemented by callbacks that hold runtime resources. Release is
// called once the callback was replaced and no dispatch still uses it.
type Releaser interface {
	Release()
}

// HandlerFunc is a Go implementation of one callback capability.
type HandlerFunc func(ctx context.Context, pb *ParamBlock, sn *Session, rq *Request) (Token, error)

// ErrMissingCapability is returned by Funcs for a capability left nil.
var ErrMissingCapability = errors.New("callback object has no such method")

// Funcs adapts plain functions to Callback, for Go-side registration and tests.
type Funcs struct {
	ServiceFunc   HandlerFunc
	AuthTransFunc HandlerFunc
	LogFunc       func(ctx context.Context, line string) error
	ReleaseFunc   func()
}

func (f Funcs) Service(ctx context.Context, pb *ParamBlock, sn *Session, rq *Request) (Token, error) {
	if f.ServiceFunc == nil {
		return Token{}, ErrMissingCapability
	}
	return f.ServiceFunc(ctx, pb, sn, rq)
}

func (f Funcs) AuthTrans(ctx context.Context, pb *ParamBlock, sn *Session, rq *Request) (Token, error) {
	if f.AuthTransFunc == nil {
		return Token{}, ErrMissingCapability
	}
	return f.AuthTransFunc(ctx, pb, sn, rq)
}

func (f Funcs) Log(ctx context.Context, line string) error {
	if f.LogFunc == nil {
		return ErrMissingCapability
	}
	return f.LogFunc(ctx, line)
}

func (f Funcs) Release() {
	if f.ReleaseFunc != nil {
		f.ReleaseFunc()
	}
}
