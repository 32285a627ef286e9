// pkg/luart/callback.go
package luart

import (
	"context"
	"sync/atomic"

	"github.com/joeydtaylor/steeze-bridge/pkg/bridge"
	lua "github.com/yuin/gopher-lua"
)

// luaCallback is a Lua value registered with bridge.set_callback. Its methods
// are looked up on every call, so a script may replace them at any time.
type luaCallback struct {
	rt       *Runtime
	obj      lua.LValue
	released atomic.Bool
}

var (
	_ bridge.Callback = (*luaCallback)(nil)
	_ bridge.Releaser = (*luaCallback)(nil)
)

func (c *luaCallback) Service(ctx context.Context, pb *bridge.ParamBlock, sn *bridge.Session, rq *bridge.Request) (bridge.Token, error) {
	return c.handle(ctx, string(bridge.EntryService), pb, sn, rq)
}

func (c *luaCallback) AuthTrans(ctx context.Context, pb *bridge.ParamBlock, sn *bridge.Session, rq *bridge.Request) (bridge.Token, error) {
	return c.handle(ctx, string(bridge.EntryAuthTrans), pb, sn, rq)
}

func (c *luaCallback) handle(ctx context.Context, method string, pb *bridge.ParamBlock, sn *bridge.Session, rq *bridge.Request) (bridge.Token, error) {
	ret, err := c.rt.call(ctx, c.obj, method, func(L *lua.LState) []lua.LValue {
		return []lua.LValue{
			newUserData(L, pb, pblockTypeName),
			newUserData(L, sn, sessionTypeName),
			newUserData(L, rq, requestTypeName),
		}
	})
	if err != nil {
		return bridge.Token{}, err
	}
	return tokenOf(ret), nil
}

func (c *luaCallback) Log(ctx context.Context, line string) error {
	_, err := c.rt.call(ctx, c.obj, "Log", func(*lua.LState) []lua.LValue {
		return []lua.LValue{lua.LString(line)}
	})
	return err
}

// Release marks the callback superseded. The Lua value itself is left to the collector.
func (c *luaCallback) Release() { c.released.Store(true) }

func tokenOf(v lua.LValue) bridge.Token {
	if s, ok := v.(lua.LString); ok {
		return bridge.Text(string(s))
	}
	return bridge.NonText(v.Type().String())
}
