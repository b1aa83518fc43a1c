package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups the service collectors. Each instance owns its registry so
// tests can build as many as they need.
type Metrics struct {
	registry *prometheus.Registry

	RequestCounter  *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	AttemptsCreated   prometheus.Counter
	AttemptsSubmitted *prometheus.CounterVec
	AttemptsGraded    prometheus.Counter
	SelectionFailures *prometheus.CounterVec

	SweepRuns     prometheus.Counter
	SweepFailures prometheus.Counter
	SweepDuration prometheus.Histogram
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		RequestCounter: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Duration of HTTP requests",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5},
			},
			[]string{"method", "endpoint"},
		),
		AttemptsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "exam_attempts_created_total",
			Help: "Attempts created",
		}),
		AttemptsSubmitted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "exam_attempts_submitted_total",
				Help: "Attempts submitted, by trigger",
			},
			[]string{"trigger"},
		),
		AttemptsGraded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "exam_attempts_graded_total",
			Help: "Manual grading calls applied",
		}),
		SelectionFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "exam_selection_failures_total",
				Help: "Attempt creations rejected by question selection, by kind",
			},
			[]string{"kind"},
		),
		SweepRuns: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "exam_expiry_sweep_runs_total",
			Help: "Expiry sweep executions",
		}),
		SweepFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "exam_expiry_sweep_failures_total",
			Help: "Attempts the expiry sweep failed to submit",
		}),
		SweepDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "exam_expiry_sweep_duration_seconds",
			Help:    "Duration of one expiry sweep",
			Buckets: prometheus.DefBuckets,
		}),
	}

	m.registry.MustRegister(
		m.RequestCounter,
		m.RequestDuration,
		m.AttemptsCreated,
		m.AttemptsSubmitted,
		m.AttemptsGraded,
		m.SelectionFailures,
		m.SweepRuns,
		m.SweepFailures,
		m.SweepDuration,
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Middleware records request counts and latency per route
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = "unmatched"
		}

		m.RequestCounter.WithLabelValues(
			c.Request.Method,
			endpoint,
			strconv.Itoa(c.Writer.Status()),
		).Inc()

		m.RequestDuration.WithLabelValues(
			c.Request.Method,
			endpoint,
		).Observe(time.Since(start).Seconds())
	}
}

// Handler exposes the registry in the Prometheus text format
func (m *Metrics) Handler() gin.HandlerFunc {
	h := promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}
