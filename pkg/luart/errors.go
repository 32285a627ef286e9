// pkg/luart/errors.go
package luart

import (
	"errors"

	"github.com/joeydtaylor/steeze-bridge/pkg/bridge"
	"github.com/joeydtaylor/steeze-bridge/pkg/bridge/gate"
	lua "github.com/yuin/gopher-lua"
)

// errClass names the error class a script sees as the message prefix.
func errClass(err error) string {
	var ioErr *bridge.IOError
	var typeErr *gate.TypeError
	switch {
	case errors.As(err, &ioErr):
		return "IOError"
	case errors.As(err, &typeErr), errors.Is(err, bridge.ErrUnknownMember), errors.Is(err, bridge.ErrSessionMismatch):
		return "TypeError"
	case errors.Is(err, bridge.ErrNotFound), errors.Is(err, bridge.ErrInvalidLength):
		return "ValueError"
	default:
		return "RuntimeError"
	}
}

// raise turns err into a Lua error. It does not return.
func raise(L *lua.LState, err error) {
	L.RaiseError("%s: %s", errClass(err), err.Error())
}
