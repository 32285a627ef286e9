// bundlefx/bundlefx.go
package bundlefx

import (
	"github.com/joeydtaylor/steeze-bridge/pkg/middleware/auth"
	"github.com/joeydtaylor/steeze-bridge/pkg/middleware/logger"
	"github.com/joeydtaylor/steeze-bridge/pkg/middleware/metrics"
	"go.uber.org/fx"
)

// Module bundles the HTTP middleware stack: auth, loggers and metrics.
var Module = fx.Options(
	auth.Module,
	logger.Module,
	metrics.Module,
)
