// Package metrics holds the Prometheus collectors shared by the HTTP server
// and the Cloudflare gateway.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "cfapi"

var (
	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "Inbound API requests by route pattern, method and status code.",
	}, []string{"route", "method", "code"})

	httpDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "Inbound API request latency.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"route", "method"})

	upstreamRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "cloudflare_requests_total",
		Help:      "Outbound Cloudflare API calls by product, operation and status.",
	}, []string{"api", "op", "status"})

	upstreamDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "cloudflare_request_duration_seconds",
		Help:      "Outbound Cloudflare API call latency.",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	}, []string{"api", "op"})
)

// ObserveRequest records one inbound request.
func ObserveRequest(route, method string, code int, elapsed time.Duration) {
	httpRequests.WithLabelValues(route, method, strconv.Itoa(code)).Inc()
	httpDuration.WithLabelValues(route, method).Observe(elapsed.Seconds())
}

// ObserveUpstream records one outbound Cloudflare call. A zero code means the
// call failed before a response arrived.
func ObserveUpstream(api, op string, code int, elapsed time.Duration) {
	status := "error"
	if code > 0 {
		status = strconv.Itoa(code)
	}
	upstreamRequests.WithLabelValues(api, op, status).Inc()
	upstreamDuration.WithLabelValues(api, op).Observe(elapsed.Seconds())
}

// Handler serves the default registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.Handler()
}
