// pkg/bridge/dispatch.go
package bridge

import (
	"context"
	"fmt"
	"time"

	"github.com/joeydtaylor/steeze-bridge/pkg/bridge/gate"
	"github.com/joeydtaylor/steeze-bridge/pkg/host"
	"github.com/joeydtaylor/steeze-bridge/pkg/pblock"
)

// Entry names a dispatch entry point.
type Entry string

const (
	EntryService   Entry = "Service"
	EntryAuthTrans Entry = "AuthTrans"
)

// Outcome describes one finished dispatch.
type Outcome struct {
	Entry    Entry
	Code     ControlCode
	URI      string
	Thread   string
	Latency  time.Duration
	GateWait time.Duration
}

// Observer is told about every finished dispatch (metrics, audit).
type Observer interface {
	ObserveDispatch(ctx context.Context, o Outcome)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ctx context.Context, o Outcome)

func (f ObserverFunc) ObserveDispatch(ctx context.Context, o Outcome) { f(ctx, o) }

// Dispatcher invokes the registered callback for host requests.
type Dispatcher struct {
	reg       *Registry
	gate      *gate.Handle
	log       *Logger
	observers []Observer
}

// NewDispatcher builds a dispatcher. g may be nil when no critical section was configured.
func NewDispatcher(reg *Registry, g *gate.Handle, l *Logger, obs ...Observer) *Dispatcher {
	if l == nil {
		l = NewLogger(nil)
	}
	return &Dispatcher{reg: reg, gate: g, log: l, observers: obs}
}

// AddObserver appends an observer. Not safe to call while dispatching.
func (d *Dispatcher) AddObserver(o Observer) {
	if o != nil {
		d.observers = append(d.observers, o)
	}
}

// Service runs the callback's Service capability.
func (d *Dispatcher) Service(ctx context.Context, pb *pblock.Block, sn *host.Session, rq *host.Request) ControlCode {
	return d.dispatch(ctx, EntryService, pb, sn, rq)
}

// AuthTrans runs the callback's AuthTrans capability.
func (d *Dispatcher) AuthTrans(ctx context.Context, pb *pblock.Block, sn *host.Session, rq *host.Request) ControlCode {
	return d.dispatch(ctx, EntryAuthTrans, pb, sn, rq)
}

func (d *Dispatcher) dispatch(ctx context.Context, entry Entry, pb *pblock.Block, sn *host.Session, rq *host.Request) ControlCode {
	start := time.Now()
	owner := gate.NewOwner()
	ctx = gate.WithOwner(ctx, owner)
	comp := string(entry)

	var waited time.Duration
	exitGate := func() {}
	if d.gate != nil {
		t0 := time.Now()
		if err := d.gate.Enter(owner); err != nil {
			d.log.Warnf(ctx, comp, "could not enter %s: %v", d.gate, err)
			return d.finish(ctx, entry, rq, Aborted, start, 0)
		}
		waited = time.Since(t0)
		d.log.Infof(ctx, comp, "entered %s", d.gate)

		done := false
		exitGate = func() {
			if done {
				return
			}
			done = true
			if !d.gate.HeldBy(owner) {
				d.log.Warnf(ctx, comp, "%s already exited", d.gate)
				return
			}
			d.log.Infof(ctx, comp, "exiting %s", d.gate)
			if err := d.gate.Exit(owner); err != nil {
				d.log.Warnf(ctx, comp, "exit of %s: %v", d.gate, err)
				return
			}
			for d.gate.HeldBy(owner) {
				d.log.Warnf(ctx, comp, "%s left entered by the callback, releasing", d.gate)
				if err := d.gate.Exit(owner); err != nil {
					return
				}
			}
		}
	}
	defer exitGate()

	scope := NewScope(ctx, d.log)
	defer scope.Dispose()

	code := d.invoke(ctx, entry, scope, pb, sn, rq)

	exitGate()
	scope.Dispose()
	return d.finish(ctx, entry, rq, code, start, waited)
}

func (d *Dispatcher) finish(ctx context.Context, entry Entry, rq *host.Request, code ControlCode, start time.Time, waited time.Duration) ControlCode {
	if code == Aborted {
		d.log.Warnf(ctx, string(entry), "Request Aborted (%s)", code)
	}
	if len(d.observers) > 0 {
		o := Outcome{
			Entry:    entry,
			Code:     code,
			Thread:   ThreadID(ctx),
			Latency:  time.Since(start),
			GateWait: waited,
		}
		if rq != nil {
			o.URI, _ = rq.ReqPB.FindVal("uri")
		}
		for _, obs := range d.observers {
			obs.ObserveDispatch(ctx, o)
		}
	}
	return code
}

func (d *Dispatcher) invoke(ctx context.Context, entry Entry, scope *Scope, pb *pblock.Block, sn *host.Session, rq *host.Request) ControlCode {
	comp := string(entry)

	lease := d.reg.Acquire()
	if lease == nil {
		d.log.Warnf(ctx, comp, "%v", ErrNoCallback)
		return Aborted
	}
	defer lease.Release()

	ppb, err := scope.ParamBlock(pb)
	if err != nil {
		d.log.Warnf(ctx, comp, "could not build proxy: %v", err)
		return Aborted
	}
	psn, err := scope.Session(sn)
	if err != nil {
		d.log.Warnf(ctx, comp, "could not build proxy: %v", err)
		return Aborted
	}
	prq, err := scope.Request(rq)
	if err != nil {
		d.log.Warnf(ctx, comp, "could not build proxy: %v", err)
		return Aborted
	}

	tok, err := call(ctx, lease.Callback(), entry, ppb, psn, prq)
	if err != nil {
		if out, ok := prq.LastStart(); ok && out == StartNoAction {
			d.log.Infof(ctx, comp, "%s() stopped after start_response asked for no body, returns PROCEED", comp)
			return Proceed
		}
		d.log.Warnf(ctx, comp, "%s() failed: %v", comp, err)
		return Aborted
	}
	if !tok.IsText() {
		d.log.Warnf(ctx, comp, "%s() did not return a string (got %s)", comp, tok)
		return Aborted
	}
	code, known := translate(tok.String())
	if !known {
		d.log.Warnf(ctx, comp, "%s() returns %s, defaults to ABORTED", comp, tok)
		return Aborted
	}
	d.log.Infof(ctx, comp, "%s() returns %s", comp, code)
	return code
}

// call invokes one capability; a panicking Go callback counts as a failed invocation.
func call(ctx context.Context, cb Callback, entry Entry, pb *ParamBlock, sn *Session, rq *Request) (tok Token, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("callback panicked: %v", r)
		}
	}()
	if entry == EntryAuthTrans {
		return cb.AuthTrans(ctx, pb, sn, rq)
	}
	return cb.Service(ctx, pb, sn, rq)
}
