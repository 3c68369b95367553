package observability

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics stores Prometheus collectors used by the API and the background
// jobs. All methods are nil-safe so wiring stays optional in tests.
type Metrics struct {
	registry *prometheus.Registry

	httpRequestsTotal         *prometheus.CounterVec
	httpRequestDuration       *prometheus.HistogramVec
	alertAttemptsTotal        *prometheus.CounterVec
	alertDispatchDuration     *prometheus.HistogramVec
	dueRulesSelectedTotal     prometheus.Counter
	reconcileTransitionsTotal *prometheus.CounterVec
	reconcileDuration         prometheus.Histogram
}

func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "duetrack",
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests processed by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "duetrack",
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds by method and path.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		alertAttemptsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "duetrack",
				Name:      "alert_attempts_total",
				Help:      "Total number of alert dispatch attempts by channel and outcome.",
			},
			[]string{"channel", "outcome"},
		),
		alertDispatchDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "duetrack",
				Name:      "alert_dispatch_duration_seconds",
				Help:      "Channel send duration in seconds grouped by channel.",
				Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
			},
			[]string{"channel"},
		),
		dueRulesSelectedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "duetrack",
				Name:      "due_rules_selected_total",
				Help:      "Total number of alert rules selected as due by scheduler passes.",
			},
		),
		reconcileTransitionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "duetrack",
				Name:      "reconcile_transitions_total",
				Help:      "Total number of status transitions written by the reconciliation sweep.",
			},
			[]string{"to_status"},
		),
		reconcileDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "duetrack",
				Name:      "reconcile_duration_seconds",
				Help:      "Duration of one reconciliation sweep in seconds.",
				Buckets:   prometheus.DefBuckets,
			},
		),
	}

	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequestsTotal,
		m.httpRequestDuration,
		m.alertAttemptsTotal,
		m.alertDispatchDuration,
		m.dueRulesSelectedTotal,
		m.reconcileTransitionsTotal,
		m.reconcileDuration,
	)

	return m
}

func (m *Metrics) Handler() http.Handler {
	if m == nil || m.registry == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) HTTPMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		path := routePath(c)
		// Avoid self-scrape noise for request counters.
		if path == "/metrics" {
			return err
		}

		m.recordHTTPRequest(c.Method(), path, statusFromResult(c, err), time.Since(start))
		return err
	}
}

func (m *Metrics) IncAlertAttempt(channel string, outcome string) {
	if m == nil {
		return
	}
	outcomeLabel := strings.TrimSpace(strings.ToLower(outcome))
	if outcomeLabel == "" {
		outcomeLabel = "unknown"
	}
	m.alertAttemptsTotal.WithLabelValues(normalizeChannel(channel), outcomeLabel).Inc()
}

func (m *Metrics) ObserveDispatchDuration(channel string, duration time.Duration) {
	if m == nil {
		return
	}
	seconds := duration.Seconds()
	if seconds < 0 {
		seconds = 0
	}
	m.alertDispatchDuration.WithLabelValues(normalizeChannel(channel)).Observe(seconds)
}

func (m *Metrics) AddDueRulesSelected(count int) {
	if m == nil || count <= 0 {
		return
	}
	m.dueRulesSelectedTotal.Add(float64(count))
}

func (m *Metrics) IncReconcileTransition(toStatus string) {
	if m == nil {
		return
	}
	statusLabel := strings.TrimSpace(strings.ToLower(toStatus))
	if statusLabel == "" {
		statusLabel = "unknown"
	}
	m.reconcileTransitionsTotal.WithLabelValues(statusLabel).Inc()
}

func (m *Metrics) ObserveReconcileDuration(duration time.Duration) {
	if m == nil {
		return
	}
	seconds := duration.Seconds()
	if seconds < 0 {
		seconds = 0
	}
	m.reconcileDuration.Observe(seconds)
}

func (m *Metrics) recordHTTPRequest(method string, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}

	methodLabel := strings.ToUpper(strings.TrimSpace(method))
	if methodLabel == "" {
		methodLabel = "UNKNOWN"
	}
	pathLabel := strings.TrimSpace(path)
	if pathLabel == "" {
		pathLabel = "unmatched"
	}

	m.httpRequestsTotal.WithLabelValues(methodLabel, pathLabel, strconv.Itoa(status)).Inc()
	m.httpRequestDuration.WithLabelValues(methodLabel, pathLabel).Observe(duration.Seconds())
}

func normalizeChannel(channel string) string {
	normalized := strings.TrimSpace(strings.ToLower(channel))
	if normalized == "" {
		return "unknown"
	}
	return normalized
}

func routePath(c *fiber.Ctx) string {
	if c == nil {
		return "unmatched"
	}

	if route := c.Route(); route != nil {
		if path := strings.TrimSpace(route.Path); path != "" {
			return path
		}
	}
	return "unmatched"
}

func statusFromResult(c *fiber.Ctx, err error) int {
	if err != nil {
		if fiberErr, ok := err.(*fiber.Error); ok {
			return fiberErr.Code
		}
		return fiber.StatusInternalServerError
	}

	if c == nil {
		return fiber.StatusOK
	}
	return c.Response().StatusCode()
}
