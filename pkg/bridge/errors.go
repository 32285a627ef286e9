package bridge

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned by ParamBlock.FindVal for a missing name.
	ErrNotFound = errors.New("no such parameter")
	// ErrProxyReleased is returned by any accessor once its dispatch ended.
	ErrProxyReleased = errors.New("proxy used after its dispatch ended")
	// ErrNilNative is returned when a proxy is built over a missing host structure.
	ErrNilNative = errors.New("no host structure to wrap")
	// ErrInvalidLength is returned by Session.FormData for a non-positive length.
	ErrInvalidLength = errors.New("sn.form_data must have positive integer parameter")
	// ErrSessionMismatch is returned when a Session argument is missing or belongs to another dispatch.
	ErrSessionMismatch = errors.New("argument must be the session of this request")
	// ErrNoCallback is reported when a dispatch finds the registry empty.
	ErrNoCallback = errors.New("no callback object registered")
	// ErrUnknownMember is returned for a request sub-block name outside the fixed set.
	ErrUnknownMember = errors.New("unknown request member")
)

// IOError reports a failed write to the client. It is not retried.
type IOError struct {
	Op  string
	Err error
}

func (e *IOError) Error() string {
	if e.Err == nil {
		return e.Op + " failed"
	}
	return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

// InitAbortError is returned by Init; the host must refuse to serve.
type InitAbortError struct {
	Diagnostic string
	Err        error
}

func (e *InitAbortError) Error() string { return "Init: " + e.Diagnostic }

func (e *InitAbortError) Unwrap() error { return e.Err }
