// pkg/luart/runtime.go
package luart

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/joeydtaylor/steeze-bridge/pkg/bridge"
	"github.com/joeydtaylor/steeze-bridge/pkg/bridge/gate"
	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
)

// ErrClosed is returned once the VM was closed or before it was started.
var ErrClosed = errors.New("luart: runtime not running")

// Runtime hosts one Lua VM for the bridge. Every entry into the VM is
// serialized; nested entries made from inside the VM (through the context the
// VM carries) run without re-locking.
type Runtime struct {
	paths []string
	zl    *zap.Logger

	mu     sync.Mutex
	holder atomic.Uint64 // gate owner of the dispatch inside the VM, 0 when idle
	L      *lua.LState
	env    bridge.Env
}

// Option customizes New.
type Option func(*Runtime)

// WithScriptPath adds directories searched by require.
func WithScriptPath(dirs ...string) Option {
	return func(r *Runtime) { r.paths = append(r.paths, dirs...) }
}

// WithLogger sets the logger used by the runtime itself.
func WithLogger(zl *zap.Logger) Option { return func(r *Runtime) { r.zl = zl } }

// New returns an unstarted runtime.
func New(opts ...Option) *Runtime {
	r := &Runtime{zl: zap.NewNop()}
	for _, o := range opts {
		o(r)
	}
	return r
}

var _ bridge.Runtime = (*Runtime)(nil)

type vmKey struct{}

// inVM reports whether ctx belongs to the goroutine already inside the VM:
// either a context the VM handed out, or one carrying the gate owner of the
// dispatch currently running there.
func (r *Runtime) inVM(ctx context.Context) bool {
	if rt, _ := ctx.Value(vmKey{}).(*Runtime); rt == r {
		return true
	}
	o := gate.OwnerFrom(ctx)
	return o != gate.Main && r.holder.Load() == uint64(o)
}

// withVM runs fn with exclusive use of the VM and ctx installed as its context.
func (r *Runtime) withVM(ctx context.Context, fn func(L *lua.LState) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if r.inVM(ctx) {
		return fn(r.L)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.L == nil {
		return ErrClosed
	}
	r.holder.Store(uint64(gate.OwnerFrom(ctx)))
	r.L.SetContext(context.WithValue(ctx, vmKey{}, r))
	defer func() {
		r.L.RemoveContext()
		r.holder.Store(0)
	}()
	return fn(r.L)
}

// Start creates the VM, opens the standard libraries and installs the prelude.
func (r *Runtime) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.L != nil {
		return errors.New("luart: already started")
	}
	L := lua.NewState()
	if len(r.paths) > 0 {
		var sb strings.Builder
		for _, dir := range r.paths {
			sb.WriteString(filepath.ToSlash(filepath.Join(dir, "?.lua")))
			sb.WriteByte(';')
		}
		pkg := L.GetGlobal("package")
		cur := lua.LVAsString(L.GetField(pkg, "path"))
		L.SetField(pkg, "path", lua.LString(sb.String()+cur))
	}
	registerProxyTypes(L)
	L.PreloadModule(preludeModule, loadPrelude)
	r.L = L
	r.zl.Info("lua runtime started", zap.Strings("scriptPath", r.paths))
	return nil
}

// Bind publishes the bridge module (registration, critical sections, log).
func (r *Runtime) Bind(ctx context.Context, env bridge.Env) error {
	return r.withVM(ctx, func(L *lua.LState) error {
		r.env = env
		L.PreloadModule(bridgeModule, r.loadBridgeModule)
		return nil
	})
}

// Load requires module and binds it to the global of the same name.
func (r *Runtime) Load(ctx context.Context, module string) error {
	return r.withVM(ctx, func(L *lua.LState) error {
		if err := L.CallByParam(lua.P{
			Fn:      L.GetGlobal("require"),
			NRet:    1,
			Protect: true,
		}, lua.LString(module)); err != nil {
			return err
		}
		mod := L.Get(-1)
		L.Pop(1)
		L.SetGlobal(module, mod)
		return nil
	})
}

// Exec runs a chunk, typically the bootstrap expression.
func (r *Runtime) Exec(ctx context.Context, chunk string) error {
	return r.withVM(ctx, func(L *lua.LState) error {
		return L.DoString(chunk)
	})
}

// DoFile runs a script file in the VM.
func (r *Runtime) DoFile(ctx context.Context, path string) error {
	return r.withVM(ctx, func(L *lua.LState) error {
		return L.DoFile(path)
	})
}

// Close shuts the VM down. Closing twice, or before Start, is fine.
func (r *Runtime) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.L == nil {
		return nil
	}
	r.L.Close()
	r.L = nil
	r.zl.Info("lua runtime closed")
	return nil
}

// call invokes obj[method](obj, args...) and returns its first result.
func (r *Runtime) call(ctx context.Context, obj lua.LValue, method string, args func(L *lua.LState) []lua.LValue) (lua.LValue, error) {
	var ret lua.LValue = lua.LNil
	err := r.withVM(ctx, func(L *lua.LState) error {
		fn := L.GetField(obj, method)
		if fn == lua.LNil {
			return fmt.Errorf("%s: %w", method, bridge.ErrMissingCapability)
		}
		largs := append([]lua.LValue{obj}, args(L)...)
		if err := L.CallByParam(lua.P{Fn: fn, NRet: 1, Protect: true}, largs...); err != nil {
			return err
		}
		ret = L.Get(-1)
		L.Pop(1)
		return nil
	})
	return ret, err
}
