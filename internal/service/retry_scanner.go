package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/easypark/notification-service/internal/domain"
	"github.com/easypark/notification-service/internal/queue"
	"github.com/easypark/notification-service/internal/repository"
)

const (
	defaultRetryScanInterval = 5 * time.Second
	defaultRetryScanLimit    = 100

	// stalePendingAge is how long a PENDING aggregate may sit unqueued before
	// the scanner assumes its dispatch publish was lost and re-enqueues it.
	stalePendingAge = time.Minute
)

// RetryScanner periodically re-enqueues notifications whose deferred retry is
// due, plus pending aggregates whose initial enqueue was lost.
type RetryScanner struct {
	notifications repository.NotificationRepository
	publisher     queue.Publisher
	logger        *zap.Logger
	interval      time.Duration
	limit         int
	now           func() time.Time
}

func NewRetryScanner(
	notifications repository.NotificationRepository,
	publisher queue.Publisher,
	interval time.Duration,
	limit int,
	logger *zap.Logger,
) (*RetryScanner, error) {
	if notifications == nil {
		return nil, fmt.Errorf("notification repository is required")
	}
	if publisher == nil {
		return nil, fmt.Errorf("publisher is required")
	}
	if interval <= 0 {
		interval = defaultRetryScanInterval
	}
	if limit <= 0 {
		limit = defaultRetryScanLimit
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &RetryScanner{
		notifications: notifications,
		publisher:     publisher,
		logger:        logger,
		interval:      interval,
		limit:         limit,
		now:           time.Now,
	}, nil
}

func (s *RetryScanner) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	// Run an initial scan so already-due retries do not wait for the first ticker edge.
	if err := s.Scan(ctx); err != nil && ctx.Err() == nil {
		s.logger.Error("retry scanner initial scan failed", zap.Error(err))
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := s.Scan(ctx); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				s.logger.Error("retry scanner scan failed", zap.Error(err))
			}
		}
	}
}

// Scan runs one pass over due retries and stale pending aggregates.
func (s *RetryScanner) Scan(ctx context.Context) error {
	if err := s.scanDueRetries(ctx); err != nil {
		return err
	}
	return s.scanStalePending(ctx)
}

func (s *RetryScanner) scanDueRetries(ctx context.Context) error {
	due, err := s.notifications.GetDueForRetry(ctx, s.limit)
	if err != nil {
		return fmt.Errorf("failed to fetch due retries: %w", err)
	}

	for i := range due {
		notification := due[i]
		if err := s.enqueue(ctx, &notification); err != nil {
			continue
		}

		// Clearing the timestamp stops duplicate re-enqueues on the next tick.
		if err := s.notifications.ClearNextRetryAt(ctx, notification.ID); err != nil {
			s.logger.Error("failed to clear next retry timestamp after enqueue",
				zap.String("notificationId", notification.ID),
				zap.Error(err),
			)
			continue
		}
	}

	return nil
}

func (s *RetryScanner) scanStalePending(ctx context.Context) error {
	olderThan := s.now().Add(-stalePendingAge)
	stale, err := s.notifications.GetStalePending(ctx, olderThan, s.limit)
	if err != nil {
		return fmt.Errorf("failed to fetch stale pending notifications: %w", err)
	}

	for i := range stale {
		notification := stale[i]
		if err := s.enqueue(ctx, &notification); err != nil {
			continue
		}
		s.logger.Info("recovered stale pending notification",
			zap.String("notificationId", notification.ID),
			zap.String("correlationId", notification.CorrelationID),
		)
	}

	return nil
}

func (s *RetryScanner) enqueue(ctx context.Context, notification *domain.Notification) error {
	msg := queue.DispatchMessage{
		NotificationID: notification.ID,
		CorrelationID:  notification.CorrelationID,
		Priority:       notification.Priority,
	}
	if err := s.publisher.PublishDispatch(ctx, msg); err != nil {
		s.logger.Error("failed to enqueue notification",
			zap.String("notificationId", notification.ID),
			zap.Error(err),
		)
		return err
	}
	return nil
}
