// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "socialchat",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "route", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "socialchat",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		},
		[]string{"method", "route"},
	)

	liveConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "socialchat",
			Subsystem: "chat",
			Name:      "live_connections",
			Help:      "Currently open live chat connections.",
		},
	)

	messagesPersisted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "socialchat",
			Subsystem: "chat",
			Name:      "messages_persisted_total",
			Help:      "Chat messages written to the message log.",
		},
	)

	mediaBytes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "socialchat",
			Subsystem: "media",
			Name:      "uploaded_bytes_total",
			Help:      "Attachment bytes written to the blob store.",
		},
		[]string{"kind"},
	)

	rateLimited = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "socialchat",
			Subsystem: "http",
			Name:      "rate_limited_total",
			Help:      "Requests rejected by the per-IP rate limiter.",
		},
	)
)

func init() {
	Registry.MustRegister(
		httpRequests,
		httpDuration,
		liveConnections,
		messagesPersisted,
		mediaBytes,
		rateLimited,
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)
}

// Handler serves the registry in the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// RecordHTTPRequest records one handled request.
func RecordHTTPRequest(method, route string, status int, d time.Duration) {
	httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	httpDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// ConnectionOpened and ConnectionClosed track the live connection gauge.
func ConnectionOpened() { liveConnections.Inc() }
func ConnectionClosed() { liveConnections.Dec() }

// MessagePersisted counts a chat message written to the log.
func MessagePersisted() { messagesPersisted.Inc() }

// MediaUploaded counts attachment bytes by media kind.
func MediaUploaded(kind string, n int64) {
	if n > 0 {
		mediaBytes.WithLabelValues(kind).Add(float64(n))
	}
}

// RateLimited counts a rejected request.
func RateLimited() { rateLimited.Inc() }
