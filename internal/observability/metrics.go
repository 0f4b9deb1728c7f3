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

// Metrics stores Prometheus collectors used by API, intake, and worker flows.
type Metrics struct {
	registry *prometheus.Registry

	httpRequestsTotal           *prometheus.CounterVec
	httpRequestDuration         *prometheus.HistogramVec
	eventsAcceptedTotal         *prometheus.CounterVec
	duplicateEventsTotal        prometheus.Counter
	deliveryAttemptsTotal       *prometheus.CounterVec
	notificationsDeliveredTotal *prometheus.CounterVec
	notificationsExhaustedTotal prometheus.Counter
	sendDuration                *prometheus.HistogramVec
	workerInflight              *prometheus.GaugeVec
	retryScheduledTotal         *prometheus.CounterVec
	connectedUsers              prometheus.Gauge
}

func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "notification_service",
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests processed by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "notification_service",
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds by method and path.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		eventsAcceptedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "notification_service",
				Name:      "events_accepted_total",
				Help:      "Total number of inbound events accepted for dispatch.",
			},
			[]string{"event_type"},
		),
		duplicateEventsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "notification_service",
				Name:      "duplicate_events_total",
				Help:      "Total number of events ignored because their correlation id was already processed.",
			},
		),
		deliveryAttemptsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "notification_service",
				Name:      "delivery_attempts_total",
				Help:      "Total number of delivery attempts by channel and outcome.",
			},
			[]string{"channel", "outcome"},
		),
		notificationsDeliveredTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "notification_service",
				Name:      "notifications_delivered_total",
				Help:      "Total number of notifications delivered, by winning channel.",
			},
			[]string{"channel"},
		),
		notificationsExhaustedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "notification_service",
				Name:      "notifications_exhausted_total",
				Help:      "Total number of notifications that exhausted every eligible channel.",
			},
		),
		sendDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "notification_service",
				Name:      "send_duration_seconds",
				Help:      "Channel send duration in seconds grouped by channel.",
				Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
			},
			[]string{"channel"},
		),
		workerInflight: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "notification_service",
				Name:      "worker_inflight",
				Help:      "Current number of in-flight dispatch jobs grouped by channel.",
			},
			[]string{"channel"},
		),
		retryScheduledTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "notification_service",
				Name:      "retry_scheduled_total",
				Help:      "Total number of deferred retries scheduled, by channel.",
			},
			[]string{"channel"},
		),
		connectedUsers: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "notification_service",
				Name:      "connected_users",
				Help:      "Current number of users with a live websocket connection on this instance.",
			},
		),
	}

	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequestsTotal,
		m.httpRequestDuration,
		m.eventsAcceptedTotal,
		m.duplicateEventsTotal,
		m.deliveryAttemptsTotal,
		m.notificationsDeliveredTotal,
		m.notificationsExhaustedTotal,
		m.sendDuration,
		m.workerInflight,
		m.retryScheduledTotal,
		m.connectedUsers,
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

func (m *Metrics) IncEventAccepted(eventType string) {
	if m == nil {
		return
	}
	label := strings.TrimSpace(strings.ToLower(eventType))
	if label == "" {
		label = "unknown"
	}
	m.eventsAcceptedTotal.WithLabelValues(label).Inc()
}

func (m *Metrics) IncDuplicateEvent() {
	if m == nil {
		return
	}
	m.duplicateEventsTotal.Inc()
}

func (m *Metrics) IncDeliveryAttempt(channel string, outcome string) {
	if m == nil {
		return
	}
	outcomeLabel := strings.TrimSpace(strings.ToLower(outcome))
	if outcomeLabel == "" {
		outcomeLabel = "unknown"
	}
	m.deliveryAttemptsTotal.WithLabelValues(normalizeChannel(channel), outcomeLabel).Inc()
}

func (m *Metrics) IncNotificationDelivered(channel string) {
	if m == nil {
		return
	}
	m.notificationsDeliveredTotal.WithLabelValues(normalizeChannel(channel)).Inc()
}

func (m *Metrics) IncNotificationExhausted() {
	if m == nil {
		return
	}
	m.notificationsExhaustedTotal.Inc()
}

func (m *Metrics) ObserveSendDuration(channel string, duration time.Duration) {
	if m == nil {
		return
	}
	seconds := duration.Seconds()
	if seconds < 0 {
		seconds = 0
	}
	m.sendDuration.WithLabelValues(normalizeChannel(channel)).Observe(seconds)
}

func (m *Metrics) IncWorkerInFlight(channel string) {
	if m == nil {
		return
	}
	m.workerInflight.WithLabelValues(normalizeChannel(channel)).Inc()
}

func (m *Metrics) DecWorkerInFlight(channel string) {
	if m == nil {
		return
	}
	m.workerInflight.WithLabelValues(normalizeChannel(channel)).Dec()
}

func (m *Metrics) IncRetryScheduled(channel string) {
	if m == nil {
		return
	}
	m.retryScheduledTotal.WithLabelValues(normalizeChannel(channel)).Inc()
}

func (m *Metrics) SetConnectedUsers(count int) {
	if m == nil {
		return
	}
	m.connectedUsers.Set(float64(count))
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

	status := c.Response().StatusCode()
	if status == 0 {
		return fiber.StatusOK
	}
	return status
}

func normalizeChannel(channel string) string {
	normalized := strings.ToLower(strings.TrimSpace(channel))
	if normalized == "" {
		return "unknown"
	}
	return normalized
}
