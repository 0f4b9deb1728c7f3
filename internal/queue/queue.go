package queue

import (
	"context"

	"github.com/easypark/notification-service/internal/domain"
)

const (
	// EventsExchange receives domain events from producer services; the
	// routing key is the dotted event type (reservation.confirmed).
	EventsExchange = "notifications.events"

	// EventsQueue is the inbound queue bound to every routing key on the
	// events exchange.
	EventsQueue = "notifications.inbound"

	// DispatchQueue carries dispatch jobs for the worker pool, including the
	// retry scanner's deferred re-enqueues.
	DispatchQueue = "notifications.dispatch"

	// DispatchDLQ receives dispatch jobs that were rejected.
	DispatchDLQ = "dlq.notifications.dispatch"

	// dispatchMaxPriority is the RabbitMQ x-max-priority for the dispatch queue.
	dispatchMaxPriority int32 = 4
)

// Publisher enqueues dispatch jobs.
type Publisher interface {
	PublishDispatch(ctx context.Context, msg DispatchMessage) error
	Close() error
}

// DispatchHandler handles a consumed dispatch job.
type DispatchHandler func(ctx context.Context, msg DispatchMessage) error

// EventHandler handles a consumed inbound domain event. The consumer has
// already normalized the event type from the routing key it arrived with.
type EventHandler func(ctx context.Context, event domain.NotificationEvent) error

// Consumer consumes from the inbound event queue and the dispatch work queue.
type Consumer interface {
	ConsumeEvents(ctx context.Context, handler EventHandler) error
	ConsumeDispatch(ctx context.Context, handler DispatchHandler) error
	Close() error
}

// PriorityValue maps domain priority to RabbitMQ message priority.
func PriorityValue(priority domain.Priority) uint8 {
	switch priority {
	case domain.PriorityUrgent:
		return 4
	case domain.PriorityHigh:
		return 3
	case domain.PriorityNormal:
		return 2
	case domain.PriorityLow:
		return 1
	default:
		return 0
	}
}
