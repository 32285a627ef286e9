package metrics

import "go.uber.org/fx"

// Module provides the /metrics handler (name:"metrics") and the dispatch observer.
var Module = fx.Options(
	fx.Provide(fx.Annotate(ProvideMetrics, fx.ResultTags(`name:"metrics"`))),
	fx.Provide(ProvideDispatchObserver),
)
