// Package metrics registers the Prometheus collectors exported on /metrics.
package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpReqTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "endpoint", "status"})

	httpLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ledger_http_request_duration_seconds",
		Help:    "Request latency",
		Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1},
	}, []string{"method", "endpoint"})

	networkEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_network_events_total",
		Help: "Network events processed by type and decision",
	}, []string{"type", "decision", "duplicate"})

	networkEventLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ledger_network_event_duration_seconds",
		Help:    "Time spent processing one network event",
		Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
	}, []string{"type"})

	declines = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_declines_total",
		Help: "Declined authorizations by reason",
	}, []string{"reason"})

	holdsExpired = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_hold_expiry_total",
		Help: "Holds handled by the expiry sweeper",
	}, []string{"result"})

	corrections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_negative_balance_corrections_total",
		Help: "Negative balance correction runs by result",
	}, []string{"result"})

	suspensions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ledger_business_suspensions_total",
		Help: "Businesses suspended for a negative total balance",
	})
)

// ObserveNetworkEvent records one processed network event.
func ObserveNetworkEvent(eventType, decision string, duplicate bool, elapsed time.Duration) {
	networkEvents.WithLabelValues(eventType, decision, strconv.FormatBool(duplicate)).Inc()
	networkEventLatency.WithLabelValues(eventType).Observe(elapsed.Seconds())
}

func IncDecline(reason string) {
	declines.WithLabelValues(reason).Inc()
}

// AddHoldsExpired counts sweeper results; result is "expired" or "failed".
func AddHoldsExpired(result string, n int) {
	holdsExpired.WithLabelValues(result).Add(float64(n))
}

// IncCorrection counts corrector runs; result is "corrected", "suspended" or "failed".
func IncCorrection(result string) {
	corrections.WithLabelValues(result).Inc()
}

func IncSuspension() {
	suspensions.Inc()
}

// GinMiddleware records request count and latency per route template.
func GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = "unmatched"
		}
		httpReqTotal.WithLabelValues(c.Request.Method, endpoint, strconv.Itoa(c.Writer.Status())).Inc()
		httpLatency.WithLabelValues(c.Request.Method, endpoint).Observe(time.Since(start).Seconds())
	}
}

// Handler serves the default registry.
func Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}
