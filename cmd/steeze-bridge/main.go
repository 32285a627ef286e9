// Command steeze-bridge serves HTTP requests through an embedded Lua callback.
//
//	BRIDGE_MANIFEST=examples/manifest.toml steeze-bridge
package main

import (
	"github.com/joeydtaylor/steeze-bridge/pkg/serverfx"
	"go.uber.org/fx"
)

func main() {
	fx.New(
		serverfx.Module(serverfx.WithService("steeze-bridge")),
	).Run()
}
