// pkg/luart/prelude.go
package luart

import (
	_ "embed"

	lua "github.com/yuin/gopher-lua"
)

const preludeModule = "steeze"

//go:embed steeze.lua
var preludeSource string

// loadPrelude is the preload loader for require "steeze".
func loadPrelude(L *lua.LState) int {
	fn, err := L.LoadString(preludeSource)
	if err != nil {
		L.RaiseError("steeze prelude: %v", err)
	}
	L.Push(fn)
	L.Call(0, 1)
	return 1
}
