// pkg/bridge/init.go
package bridge

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/joeydtaylor/steeze-bridge/pkg/bridge/gate"
	"github.com/joeydtaylor/steeze-bridge/pkg/pblock"
	"go.uber.org/zap"
)

// Parameter block keys read by Init.
const (
	KeyModule          = "module"
	KeyBootstrap       = "bootstrap"
	KeyCriticalSection = "critical-section"
	KeyError           = "error"
)

// Descriptor is the initialization request handed over by the host.
type Descriptor struct {
	Module          string
	Bootstrap       string
	CriticalSection bool
}

// PBlock renders d as the parameter block Init reads.
func (d Descriptor) PBlock() *pblock.Block {
	pb := pblock.New()
	if d.Module != "" {
		pb.NVInsert(KeyModule, d.Module)
	}
	if d.Bootstrap != "" {
		pb.NVInsert(KeyBootstrap, d.Bootstrap)
	}
	if d.CriticalSection {
		pb.NVInsert(KeyCriticalSection, "true")
	}
	return pb
}

// DescriptorFromPBlock reads a descriptor. The critical section is requested by the
// presence of its key, whatever the value.
func DescriptorFromPBlock(pb *pblock.Block) (Descriptor, error) {
	var d Descriptor
	var ok bool
	if d.Module, ok = pb.FindVal(KeyModule); !ok || d.Module == "" {
		return d, errors.New("No module defined in pb")
	}
	if d.Bootstrap, ok = pb.FindVal(KeyBootstrap); !ok || d.Bootstrap == "" {
		return d, errors.New("No bootstrap defined in pb")
	}
	_, d.CriticalSection = pb.FindVal(KeyCriticalSection)
	return d, nil
}

// Env is what Init publishes into a runtime before loading the module.
type Env struct {
	// Registry is the registration entry point.
	Registry *Registry
	// Gate is the dispatch critical section, nil when none was requested.
	Gate *gate.Handle
	Log  *Logger
}

// Runtime is an embedded interpreter the bridge can stand up and call into.
type Runtime interface {
	Start(ctx context.Context) error
	Bind(ctx context.Context, env Env) error
	Load(ctx context.Context, module string) error
	Exec(ctx context.Context, entry string) error
	Close() error
}

// Option customizes Init.
type Option func(*options)

type options struct {
	zl        *zap.Logger
	forward   bool
	observers []Observer
}

// WithLogger routes diagnostics to zl.
func WithLogger(zl *zap.Logger) Option { return func(o *options) { o.zl = zl } }

// WithForwardLog also hands diagnostic lines to the callback's Log.
func WithForwardLog(on bool) Option { return func(o *options) { o.forward = on } }

// WithObserver adds a dispatch observer.
func WithObserver(obs Observer) Option {
	return func(o *options) {
		if obs != nil {
			o.observers = append(o.observers, obs)
		}
	}
}

// Bridge is an initialized runtime with its registry, gate and dispatcher.
type Bridge struct {
	desc Descriptor
	rt   Runtime
	reg  *Registry
	gate *gate.Handle
	disp *Dispatcher
	log  *Logger

	closeOnce sync.Once
	closeErr  error
}

func (b *Bridge) Descriptor() Descriptor  { return b.desc }
func (b *Bridge) Registry() *Registry     { return b.reg }
func (b *Bridge) Gate() *gate.Handle      { return b.gate }
func (b *Bridge) Dispatcher() *Dispatcher { return b.disp }
func (b *Bridge) Logger() *Logger         { return b.log }
func (b *Bridge) Runtime() Runtime        { return b.rt }

// Init stands up rt and obtains the callback object. Any failure writes the
// diagnostic under "error" in pb, tears down what was built and returns an
// *InitAbortError.
func Init(ctx context.Context, pb *pblock.Block, rt Runtime, opts ...Option) (*Bridge, error) {
	var o options
	for _, fn := range opts {
		fn(&o)
	}
	l := NewLogger(o.zl)
	b := &Bridge{rt: rt, log: l, reg: NewRegistry(l)}

	abort := func(err error, format string, args ...any) (*Bridge, error) {
		diag := fmt.Sprintf(format, args...)
		l.Warnf(ctx, "Init", "%s", diag)
		if pb != nil {
			pb.NVInsert(KeyError, diag)
		}
		b.teardown()
		return nil, &InitAbortError{Diagnostic: diag, Err: err}
	}

	if pb == nil {
		return abort(ErrNilNative, "No parameter block")
	}
	desc, err := DescriptorFromPBlock(pb)
	if err != nil {
		return abort(err, "%s", err.Error())
	}
	b.desc = desc
	if rt == nil {
		return abort(ErrNilNative, "No runtime")
	}

	if err := rt.Start(ctx); err != nil {
		return abort(err, "could not start runtime: %v", err)
	}

	if desc.CriticalSection {
		g, err := gate.Create()
		if err != nil {
			return abort(err, "could not create CRITICAL variable")
		}
		b.gate = g
	}

	if err := rt.Bind(ctx, Env{Registry: b.reg, Gate: b.gate, Log: l}); err != nil {
		return abort(err, "could not bind runtime: %v", err)
	}
	if err := rt.Load(ctx, desc.Module); err != nil {
		return abort(err, "could not import %s: %v", desc.Module, err)
	}
	if err := rt.Exec(ctx, desc.Bootstrap); err != nil {
		return abort(err, "could not call %s: %v", desc.Bootstrap, err)
	}
	if b.reg.Current() == nil {
		return abort(ErrNoCallback, "after %s no callback object found", desc.Bootstrap)
	}

	l.ForwardTo(b.reg, o.forward)
	b.disp = NewDispatcher(b.reg, b.gate, l, o.observers...)
	l.Infof(ctx, "Init", "module %s ready", desc.Module)
	return b, nil
}

// Close drops the callback, destroys the gate and closes the runtime.
func (b *Bridge) Close() error {
	b.closeOnce.Do(func() { b.closeErr = b.teardown() })
	return b.closeErr
}

func (b *Bridge) teardown() error {
	b.log.ForwardTo(nil, false)
	b.reg.Clear()
	var errs []error
	if b.gate != nil {
		if err := b.gate.Destroy(); err != nil && !errors.Is(err, gate.ErrDestroyed) {
			errs = append(errs, fmt.Errorf("gate: %w", err))
		}
	}
	if b.rt != nil {
		if err := b.rt.Close(); err != nil {
			errs = append(errs, fmt.Errorf("runtime: %w", err))
		}
	}
	return errors.Join(errs...)
}
