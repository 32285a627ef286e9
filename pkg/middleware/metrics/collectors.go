package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	responseTime = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "response_time",
			Help:    "http response time.",
			Buckets: []float64{0.5, 1, 5, 10, 30, 60},
		},
	)

	totalHttpRequestsFromRole = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "total_http_requests_from_role", Help: "http requests from role"},
		[]string{"role"},
	)

	totalHttpRequestsToUri = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "total_http_requests_to_uri", Help: "http requests to uri"},
		[]string{"code", "uri", "method"},
	)

	totalHttpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "total_http_requests", Help: "http requests by code, and method"},
		[]string{"code", "method"},
	)

	bridgeDispatchTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "bridge_dispatch_total", Help: "bridge dispatches by entry point and control code"},
		[]string{"entry", "code"},
	)

	bridgeDispatchSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bridge_dispatch_seconds",
			Help:    "time spent inside the callback, gate wait included.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"entry"},
	)

	bridgeGateWaitSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "bridge_gate_wait_seconds",
			Help:    "time spent waiting for the critical section.",
			Buckets: []float64{0.0001, 0.001, 0.01, 0.1, 1, 5},
		},
	)
)

func init() {
	prometheus.MustRegister(
		responseTime,
		totalHttpRequestsFromRole,
		totalHttpRequestsToUri,
		totalHttpRequests,
		bridgeDispatchTotal,
		bridgeDispatchSeconds,
		bridgeGateWaitSeconds,
	)
}
