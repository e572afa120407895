package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	HTTPRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "roadassist",
		Name:      "http_requests_total",
		Help:      "HTTP requests by route, method and status.",
	}, []string{"route", "method", "status"})

	HTTPDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "roadassist",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"route", "method"})

	RelayDelivered = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "roadassist",
		Name:      "relay_frames_delivered_total",
		Help:      "Realtime frames queued to a live connection.",
	}, []string{"event"})

	RelayDropped = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "roadassist",
		Name:      "relay_frames_dropped_total",
		Help:      "Realtime frames dropped because the target was offline or its buffer was full.",
	}, []string{"event", "reason"})

	RelayConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "roadassist",
		Name:      "relay_connections",
		Help:      "Open realtime connections on this instance.",
	})

	EmergencyDispatched = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "roadassist",
		Name:      "emergency_dispatch_providers",
		Help:      "Providers reached per emergency dispatch.",
		Buckets:   []float64{0, 1, 2, 5, 10, 20, 50},
	})
)

func init() {
	prometheus.MustRegister(HTTPRequests, HTTPDuration, RelayDelivered, RelayDropped, RelayConnections, EmergencyDispatched)
}
