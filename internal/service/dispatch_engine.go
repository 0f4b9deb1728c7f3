package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/easypark/notification-service/internal/domain"
	"github.com/easypark/notification-service/internal/observability"
	"github.com/easypark/notification-service/internal/queue"
	"github.com/easypark/notification-service/internal/repository"
)

// ExhaustedNoChannelsReason is reported for notifications that reached
// EXHAUSTED at intake because preference filtering left no channel to try.
const ExhaustedNoChannelsReason = "no eligible channels"

// DispatchEngine is the intake side of dispatch: it turns an inbound event
// into a persisted notification aggregate and a dispatch job on the queue.
// Duplicate correlation ids are absorbed as no-ops.
type DispatchEngine struct {
	notifications repository.NotificationRepository
	resolver      *PreferenceResolver
	publisher     queue.Publisher
	logger        *zap.Logger
	metrics       *observability.Metrics
	now           func() time.Time
}

func NewDispatchEngine(
	notifications repository.NotificationRepository,
	resolver *PreferenceResolver,
	publisher queue.Publisher,
	logger *zap.Logger,
) (*DispatchEngine, error) {
	if notifications == nil {
		return nil, fmt.Errorf("notification repository is required")
	}
	if resolver == nil {
		return nil, fmt.Errorf("preference resolver is required")
	}
	if publisher == nil {
		return nil, fmt.Errorf("publisher is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &DispatchEngine{
		notifications: notifications,
		resolver:      resolver,
		publisher:     publisher,
		logger:        logger,
		now:           time.Now,
	}, nil
}

func (e *DispatchEngine) SetMetrics(metrics *observability.Metrics) {
	if e == nil {
		return
	}
	e.metrics = metrics
}

// Handle ingests one event. Validation failures return domain.ErrValidation
// so the consumer drops the message instead of requeueing it; a failure to
// publish the dispatch job is logged only, because the retry scanner
// re-enqueues stale pending aggregates.
func (e *DispatchEngine) Handle(ctx context.Context, event *domain.NotificationEvent) (*domain.Notification, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if event == nil {
		return nil, fmt.Errorf("%w: event is required", domain.ErrValidation)
	}
	if err := event.Validate(); err != nil {
		return nil, err
	}

	logger := observability.WithContextLogger(e.logger, ctx)

	existing, err := e.notifications.GetByCorrelationID(ctx, event.CorrelationID)
	if err == nil {
		logger.Info("duplicate event ignored",
			zap.String("correlationId", event.CorrelationID),
			zap.String("notificationId", existing.ID),
		)
		if e.metrics != nil {
			e.metrics.IncDuplicateEvent()
		}
		return existing, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("failed to check correlation id: %w", err)
	}

	order, recipient, err := e.resolver.Resolve(ctx, event)
	if err != nil {
		return nil, err
	}

	notification := &domain.Notification{
		ID:            uuid.NewString(),
		CorrelationID: strings.TrimSpace(event.CorrelationID),
		UserID:        strings.TrimSpace(event.UserID),
		EventType:     event.EventType,
		Data:          event.Data,
		Priority:      event.Priority,
		EmailAddress:  recipient.EmailAddress,
		PushToken:     recipient.PushToken,
		ChannelOrder:  order,
		Status:        domain.StatusPending,
		CreatedAt:     e.now().UTC(),
	}

	// Every channel opted out or missing a contact target: terminal at birth.
	// The status API reports ExhaustedNoChannelsReason for this shape.
	if len(order) == 0 {
		notification.Status = domain.StatusExhausted
		logger.Warn("notification exhausted at intake",
			zap.String("correlationId", notification.CorrelationID),
			zap.String("userId", notification.UserID),
			zap.String("eventType", notification.EventType),
		)
	}

	if err := e.notifications.Create(ctx, notification); err != nil {
		resolved, resolveErr := e.resolveCorrelationConflict(ctx, err, event.CorrelationID)
		if resolveErr != nil {
			return nil, resolveErr
		}
		if resolved != nil {
			return resolved, nil
		}
		return nil, err
	}

	if e.metrics != nil {
		e.metrics.IncEventAccepted(notification.EventType)
	}

	if notification.Status.IsTerminal() {
		return notification, nil
	}

	msg := queue.DispatchMessage{
		NotificationID: notification.ID,
		CorrelationID:  notification.CorrelationID,
		Priority:       notification.Priority,
	}
	if err := e.publisher.PublishDispatch(ctx, msg); err != nil {
		logger.Error("failed to publish dispatch job, scanner will recover",
			zap.String("notificationId", notification.ID),
			zap.String("correlationId", notification.CorrelationID),
			zap.Error(err),
		)
	}

	return notification, nil
}

// resolveCorrelationConflict absorbs the race where two consumers ingest the
// same correlation id concurrently: the loser's unique violation resolves to
// the winner's aggregate.
func (e *DispatchEngine) resolveCorrelationConflict(
	ctx context.Context,
	createErr error,
	correlationID string,
) (*domain.Notification, error) {
	if !isUniqueViolationError(createErr) {
		return nil, nil
	}

	existing, err := e.notifications.GetByCorrelationID(ctx, correlationID)
	if err != nil {
		return nil, fmt.Errorf("failed to load existing notification after correlation conflict: %w", err)
	}
	observability.WithContextLogger(e.logger, ctx).Info("correlation conflict resolved",
		zap.String("existingId", existing.ID),
		zap.String("correlationId", correlationID),
	)
	return existing, nil
}

func isUniqueViolationError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) || errors.Is(err, domain.ErrConflict) {
		return true
	}

	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate key") || strings.Contains(msg, "unique constraint")
}
