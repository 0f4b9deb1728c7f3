package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/easypark/notification-service/internal/domain"
	"github.com/easypark/notification-service/internal/repository"
)

// DeliveryTracker is the read/record side of dispatch: it appends attempt
// records and answers status and history queries. Attempt history is
// append-only; nothing ever updates or deletes a recorded attempt.
type DeliveryTracker struct {
	notifications repository.NotificationRepository
	attempts      repository.AttemptRepository
	logger        *zap.Logger
	now           func() time.Time
}

func NewDeliveryTracker(
	notifications repository.NotificationRepository,
	attempts repository.AttemptRepository,
	logger *zap.Logger,
) (*DeliveryTracker, error) {
	if notifications == nil {
		return nil, fmt.Errorf("notification repository is required")
	}
	if attempts == nil {
		return nil, fmt.Errorf("attempt repository is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &DeliveryTracker{
		notifications: notifications,
		attempts:      attempts,
		logger:        logger,
		now:           time.Now,
	}, nil
}

// Record appends one delivery attempt. The attempt number is the caller's
// per-channel counter at send time, starting at 1.
func (t *DeliveryTracker) Record(
	ctx context.Context,
	notificationID string,
	ch domain.Channel,
	attemptNumber int,
	outcome domain.Outcome,
	sendErr error,
) error {
	var errText *string
	if sendErr != nil {
		value := sendErr.Error()
		errText = &value
	}

	attempt := &domain.DeliveryAttempt{
		ID:             uuid.NewString(),
		NotificationID: notificationID,
		Channel:        ch,
		AttemptNumber:  attemptNumber,
		Outcome:        outcome,
		Error:          errText,
		CreatedAt:      t.now().UTC(),
	}

	return t.attempts.Create(ctx, attempt)
}

func (t *DeliveryTracker) GetByID(ctx context.Context, id string) (*domain.Notification, error) {
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("%w: notification id is required", domain.ErrValidation)
	}
	return t.notifications.GetByID(ctx, strings.TrimSpace(id))
}

func (t *DeliveryTracker) FindByCorrelationID(ctx context.Context, correlationID string) (*domain.Notification, error) {
	if strings.TrimSpace(correlationID) == "" {
		return nil, fmt.Errorf("%w: correlation id is required", domain.ErrValidation)
	}
	return t.notifications.GetByCorrelationID(ctx, strings.TrimSpace(correlationID))
}

// History returns every recorded attempt for a notification in creation order.
func (t *DeliveryTracker) History(ctx context.Context, notificationID string) ([]domain.DeliveryAttempt, error) {
	if strings.TrimSpace(notificationID) == "" {
		return nil, fmt.Errorf("%w: notification id is required", domain.ErrValidation)
	}

	if _, err := t.notifications.GetByID(ctx, strings.TrimSpace(notificationID)); err != nil {
		return nil, err
	}
	return t.attempts.GetByNotificationID(ctx, strings.TrimSpace(notificationID))
}

func (t *DeliveryTracker) List(
	ctx context.Context,
	params repository.ListParams,
) ([]domain.Notification, int64, error) {
	return t.notifications.List(ctx, params)
}
