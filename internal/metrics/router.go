package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RouterRegistry is the set of collectors the fleet router exposes.
type RouterRegistry struct {
	registry *prometheus.Registry

	RequestsTotal     *prometheus.CounterVec
	RequestDuration   *prometheus.HistogramVec
	RoutingErrorsTotal *prometheus.CounterVec
}

// NewRouterRegistry builds and registers every router collector against
// a fresh, process-local registry.
func NewRouterRegistry() *RouterRegistry {
	reg := prometheus.NewRegistry()

	r := &RouterRegistry{
		registry: reg,

		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gw_requests_total",
			Help: "Total requests proxied to a shard, by response status class.",
		}, []string{"shard", "status_class"}),

		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "gw_request_duration_seconds",
			Help:    "Latency of a proxied request from receipt to response.",
			Buckets: matchDurationBuckets,
		}, []string{"shard"}),

		RoutingErrorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gw_routing_errors_total",
			Help: "Requests that failed to route, by reason.",
		}, []string{"reason"}),
	}

	reg.MustRegister(r.RequestsTotal, r.RequestDuration, r.RoutingErrorsTotal)
	return r
}

// Handler returns the promhttp handler serving this registry's
// collectors in text exposition format.
func (r *RouterRegistry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// Routing error reasons, per spec's gw_routing_errors_total{reason} label.
const (
	ReasonUnknownSymbol   = "unknown_symbol"
	ReasonShardUnavailable = "shard_unavailable"
	ReasonTimeout         = "timeout"
)
