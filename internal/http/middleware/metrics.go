// Package middleware contains the Gin middleware used by the webhook server.
//
// This file exposes Prometheus instrumentation for the inbound HTTP surface.
// Labels are kept low-cardinality: the path label uses the registered Gin
// route, not the raw URL.
package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// httpReqs counts requests by method, route path, and status code.
	httpReqs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_http_requests_total",
			Help: "Total number of HTTP requests handled by the bot server.",
		},
		[]string{"method", "path", "status"},
	)

	// httpLat records request duration in seconds by method and route path.
	// Status is omitted to keep histogram cardinality low.
	httpLat = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bot_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// httpInflight gauges the number of in-flight requests.
	httpInflight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "bot_http_requests_inflight",
			Help: "Current number of in-flight HTTP requests.",
		},
	)

	// updatesProcessed counts webhook updates by terminal outcome.
	updatesProcessed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_updates_processed_total",
			Help: "Total number of webhook updates by outcome.",
		},
		[]string{"outcome"},
	)
)

func init() {
	prometheus.MustRegister(httpReqs, httpLat, httpInflight, updatesProcessed)
}

// Update outcomes recorded by CountUpdate.
const (
	UpdateHandled   = "handled"
	UpdateDuplicate = "duplicate"
	UpdateRejected  = "rejected"
)

// CountUpdate records one webhook update outcome.
func CountUpdate(outcome string) {
	updatesProcessed.WithLabelValues(outcome).Inc()
}

// Metrics returns a Gin middleware that instruments requests with Prometheus:
// request totals per (method, path, status), a latency histogram per
// (method, path), and an in-flight gauge.
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		httpInflight.Inc()
		defer httpInflight.Dec()

		c.Next()

		dur := time.Since(start).Seconds()
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		method := c.Request.Method
		status := strconv.Itoa(c.Writer.Status())

		httpReqs.WithLabelValues(method, path, status).Inc()
		httpLat.WithLabelValues(method, path).Observe(dur)
	}
}
