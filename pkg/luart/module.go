// pkg/luart/module.go
package luart

import (
	"errors"

	"github.com/joeydtaylor/steeze-bridge/pkg/bridge"
	"github.com/joeydtaylor/steeze-bridge/pkg/bridge/gate"
	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
)

const (
	bridgeModule     = "bridge"
	criticalTypeName = "bridge.critical"
)

// loadBridgeModule builds the table scripts get from require "bridge".
func (r *Runtime) loadBridgeModule(L *lua.LState) int {
	mod := L.SetFuncs(L.NewTable(), map[string]lua.LGFunction{
		"set_callback":   r.setCallback,
		"crit_init":      r.critInit,
		"crit_enter":     r.critEnter,
		"crit_exit":      r.critExit,
		"crit_terminate": r.critTerminate,
		"log":            r.log,
	})
	if r.env.Gate != nil {
		mod.RawSetString("CRITICAL", newUserData(L, r.env.Gate, criticalTypeName))
	}
	L.Push(mod)
	return 1
}

func registerCriticalType(L *lua.LState) {
	mt := L.NewTypeMetatable(criticalTypeName)
	L.SetField(mt, "__tostring", L.NewFunction(func(L *lua.LState) int {
		if h, ok := L.CheckUserData(1).Value.(*gate.Handle); ok && h != nil {
			L.Push(lua.LString(h.String()))
			return 1
		}
		L.Push(lua.LString("critical section"))
		return 1
	}))
}

// bridge.set_callback(obj): obj becomes the callback; last call wins.
func (r *Runtime) setCallback(L *lua.LState) int {
	obj := L.CheckAny(1)
	if obj == lua.LNil {
		L.RaiseError("TypeError: set_callback requires an object")
		return 0
	}
	if r.env.Registry == nil {
		raise(L, errors.New("runtime is not bound"))
		return 0
	}
	r.env.Registry.Register(L.Context(), &luaCallback{rt: r, obj: obj})
	return 0
}

func (r *Runtime) critInit(L *lua.LState) int {
	h, err := gate.Create()
	if err != nil {
		raise(L, err)
	}
	L.Push(newUserData(L, h, criticalTypeName))
	return 1
}

// handleArg unwraps a CRITICAL userdata; anything else is passed on so gate
// reports the type error.
func handleArg(L *lua.LState) any {
	v := L.Get(1)
	if ud, ok := v.(*lua.LUserData); ok {
		return ud.Value
	}
	return v
}

func (r *Runtime) critEnter(L *lua.LState) int {
	v := handleArg(L)
	if err := gate.Enter(v, gate.OwnerFrom(L.Context())); err != nil {
		raise(L, err)
	}
	r.logger().Infof(L.Context(), "crit_enter", "entered %v", v)
	return 0
}

func (r *Runtime) critExit(L *lua.LState) int {
	v := handleArg(L)
	if h, ok := v.(*gate.Handle); ok && h != nil {
		r.logger().Infof(L.Context(), "crit_exit", "exiting %s", h)
	}
	if err := gate.Exit(v, gate.OwnerFrom(L.Context())); err != nil {
		raise(L, err)
	}
	return 0
}

func (r *Runtime) critTerminate(L *lua.LState) int {
	if err := gate.Destroy(handleArg(L)); err != nil {
		raise(L, err)
	}
	return 0
}

// bridge.log(msg) writes to the bridge log without forwarding back to the script.
func (r *Runtime) log(L *lua.LState) int {
	msg := L.CheckString(1)
	r.logger().Zap().Info("",
		zap.String("diagnostic", bridge.Line(L.Context(), "script", msg)),
		zap.String("thread", bridge.ThreadID(L.Context())),
		zap.String("component", "script"),
	)
	return 0
}

func (r *Runtime) logger() *bridge.Logger {
	if r.env.Log == nil {
		return bridge.NewLogger(r.zl)
	}
	return r.env.Log
}
