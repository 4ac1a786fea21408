package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Registry holds every indexer metric; the health server exposes it at /metrics.
var Registry = prometheus.NewRegistry()

var RPCRequestsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "indexer_rpc_requests_total",
		Help: "Total RPC requests performed by the indexer",
	},
	[]string{"method", "endpoint", "outcome"},
)

var RPCRequestDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "indexer_rpc_request_duration_seconds",
		Help:    "Duration of RPC requests in seconds",
		Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
	},
	[]string{"method", "endpoint", "outcome"},
)

func init() {
	Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		RPCRequestsTotal,
		RPCRequestDuration,
	)
}
