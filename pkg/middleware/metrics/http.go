package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewPromHttpHandler returns the /metrics handler.
func NewPromHttpHandler() http.Handler { return promhttp.Handler() }

// ProvideMetrics serves the default registry, bridge collectors included.
func ProvideMetrics() http.Handler { return NewPromHttpHandler() }
