package serverfx

import (
	"context"
	"time"

	"github.com/joeydtaylor/steeze-bridge/pkg/bridge"
	"github.com/joeydtaylor/steeze-bridge/pkg/electrician"
	"github.com/joeydtaylor/steeze-bridge/pkg/luart"
	"github.com/joeydtaylor/steeze-bridge/pkg/manifest"
	"github.com/joeydtaylor/steeze-bridge/pkg/middleware/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// BridgeHost owns the initialized bridge for the lifetime of the app.
type BridgeHost struct {
	Bridge *bridge.Bridge
}

type bridgeDeps struct {
	fx.In
	LC       fx.Lifecycle
	Manifest manifest.Config
	System   *zap.Logger
	Diag     *zap.Logger `name:"bridge"`
	Dispatch metrics.DispatchObserver
	Audit    *electrician.AuditPublisher `optional:"true"`
}

// provideBridge runs the initialization handshake. An abort fails the
// constructor, so the app never starts serving.
func provideBridge(d bridgeDeps) (*BridgeHost, error) {
	desc := bridge.Descriptor{
		Module:          d.Manifest.Bridge.Module,
		Bootstrap:       d.Manifest.Bridge.Bootstrap,
		CriticalSection: d.Manifest.Bridge.CriticalSection,
	}
	rt := luart.New(
		luart.WithScriptPath(d.Manifest.Bridge.ScriptPath...),
		luart.WithLogger(d.System),
	)

	opts := []bridge.Option{
		bridge.WithLogger(d.Diag),
		bridge.WithForwardLog(d.Manifest.Bridge.Debug),
		bridge.WithObserver(d.Dispatch),
	}
	if d.Audit != nil {
		opts = append(opts, bridge.WithObserver(d.Audit))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	b, err := bridge.Init(ctx, desc.PBlock(), rt, opts...)
	if err != nil {
		d.System.Error("bridge init aborted", zap.Error(err))
		return nil, err
	}
	d.System.Info("bridge initialized",
		zap.String("module", desc.Module),
		zap.Bool("criticalSection", desc.CriticalSection),
		zap.Bool("audit", d.Audit != nil))

	d.LC.Append(fx.Hook{OnStop: func(context.Context) error {
		d.System.Info("bridge closing")
		return b.Close()
	}})
	return &BridgeHost{Bridge: b}, nil
}
