package observability

import (
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsDispatchCollectors(t *testing.T) {
	t.Parallel()

	metrics := NewMetrics()

	metrics.IncEventAccepted("RESERVATION_CONFIRMED")
	metrics.IncDuplicateEvent()
	metrics.IncDeliveryAttempt("PUSH", "TRANSIENT_FAILURE")
	metrics.IncNotificationDelivered("EMAIL")
	metrics.IncNotificationExhausted()
	metrics.ObserveSendDuration("push", 120*time.Millisecond)
	metrics.IncWorkerInFlight("push")
	metrics.DecWorkerInFlight("push")
	metrics.IncRetryScheduled("push")
	metrics.SetConnectedUsers(3)

	if got := testutil.ToFloat64(metrics.eventsAcceptedTotal.WithLabelValues("reservation_confirmed")); got != 1 {
		t.Fatalf("events_accepted_total = %v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.duplicateEventsTotal); got != 1 {
		t.Fatalf("duplicate_events_total = %v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.deliveryAttemptsTotal.WithLabelValues("push", "transient_failure")); got != 1 {
		t.Fatalf("delivery_attempts_total = %v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.notificationsDeliveredTotal.WithLabelValues("email")); got != 1 {
		t.Fatalf("notifications_delivered_total = %v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.notificationsExhaustedTotal); got != 1 {
		t.Fatalf("notifications_exhausted_total = %v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.retryScheduledTotal.WithLabelValues("push")); got != 1 {
		t.Fatalf("retry_scheduled_total = %v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.workerInflight.WithLabelValues("push")); got != 0 {
		t.Fatalf("worker_inflight = %v, want 0", got)
	}
	if got := testutil.ToFloat64(metrics.connectedUsers); got != 3 {
		t.Fatalf("connected_users = %v, want 3", got)
	}
}

func TestMetricsNilReceiverIsSafe(t *testing.T) {
	t.Parallel()

	var metrics *Metrics
	metrics.IncEventAccepted("RESERVATION_CONFIRMED")
	metrics.IncDuplicateEvent()
	metrics.IncDeliveryAttempt("PUSH", "SUCCESS")
	metrics.IncNotificationDelivered("EMAIL")
	metrics.IncNotificationExhausted()
	metrics.ObserveSendDuration("push", time.Second)
	metrics.IncWorkerInFlight("push")
	metrics.DecWorkerInFlight("push")
	metrics.IncRetryScheduled("push")
	metrics.SetConnectedUsers(1)
}

func TestMetricsHTTPMiddlewareRecordsRequest(t *testing.T) {
	t.Parallel()

	metrics := NewMetrics()
	app := fiber.New()
	app.Use(metrics.HTTPMiddleware())
	app.Get("/livez", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})

	req := httptest.NewRequest("GET", "/livez", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	if got := testutil.ToFloat64(metrics.httpRequestsTotal.WithLabelValues("GET", "/livez", "200")); got != 1 {
		t.Fatalf("http_requests_total = %v, want 1", got)
	}
}

func TestMetricsHTTPMiddlewareRecordsErrorStatus(t *testing.T) {
	t.Parallel()

	metrics := NewMetrics()
	app := fiber.New()
	app.Use(metrics.HTTPMiddleware())
	app.Get("/boom", func(c *fiber.Ctx) error {
		return errors.New("boom")
	})

	req := httptest.NewRequest("GET", "/boom", nil)
	_, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}

	if got := testutil.ToFloat64(metrics.httpRequestsTotal.WithLabelValues("GET", "/boom", "500")); got != 1 {
		t.Fatalf("http_requests_total = %v, want 1", got)
	}
}

func TestMetricsHTTPMiddlewareSkipsSelfScrape(t *testing.T) {
	t.Parallel()

	metrics := NewMetrics()
	app := fiber.New()
	app.Use(metrics.HTTPMiddleware())
	app.Get("/metrics", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})

	req := httptest.NewRequest("GET", "/metrics", nil)
	if _, err := app.Test(req); err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}

	if got := testutil.ToFloat64(metrics.httpRequestsTotal.WithLabelValues("GET", "/metrics", "200")); got != 0 {
		t.Fatalf("http_requests_total for /metrics = %v, want 0", got)
	}
}
