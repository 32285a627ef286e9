package metrics

import (
	"context"

	"github.com/joeydtaylor/steeze-bridge/pkg/bridge"
)

// DispatchObserver feeds the bridge_* collectors from finished dispatches.
type DispatchObserver struct{}

var _ bridge.Observer = DispatchObserver{}

func (DispatchObserver) ObserveDispatch(_ context.Context, o bridge.Outcome) {
	entry := string(o.Entry)
	bridgeDispatchTotal.WithLabelValues(entry, o.Code.String()).Inc()
	bridgeDispatchSeconds.WithLabelValues(entry).Observe(o.Latency.Seconds())
	if o.GateWait > 0 {
		bridgeGateWaitSeconds.Observe(o.GateWait.Seconds())
	}
}

// ProvideDispatchObserver is the Fx provider for the bridge observer.
func ProvideDispatchObserver() DispatchObserver { return DispatchObserver{} }
