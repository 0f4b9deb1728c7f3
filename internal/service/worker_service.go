package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/easypark/notification-service/internal/channel"
	"github.com/easypark/notification-service/internal/domain"
	"github.com/easypark/notification-service/internal/observability"
	"github.com/easypark/notification-service/internal/queue"
	"github.com/easypark/notification-service/internal/realtime"
	"github.com/easypark/notification-service/internal/repository"
)

const (
	minWorkerConcurrency  = 1
	maxAttemptsPerChannel = 3
	defaultSendTimeout    = 10 * time.Second
	defaultBaseRetryDelay = time.Second
	defaultMaxRetryDelay  = 60 * time.Second
)

// ChannelSet bundles the outbound delivery ports in fallback order.
type ChannelSet struct {
	Realtime channel.RealtimeChannel
	Push     channel.PushChannel
	Email    channel.EmailChannel
}

// WorkerConfig tunes the dispatch worker pool.
type WorkerConfig struct {
	Concurrency    int
	SendTimeout    time.Duration
	BaseRetryDelay time.Duration
	MaxRetryDelay  time.Duration
}

// WorkerService consumes dispatch jobs and walks each notification through
// its channel order. A transient failure never blocks the worker slot: the
// aggregate is parked with a next-retry timestamp and the retry scanner
// re-enqueues it when due.
type WorkerService struct {
	notifications repository.NotificationRepository
	tracker       *DeliveryTracker
	templates     *TemplateResolver
	registry      realtime.ConnectionRegistry
	channels      ChannelSet
	consumer      queue.Consumer
	logger        *zap.Logger
	metrics       *observability.Metrics
	cfg           WorkerConfig
	now           func() time.Time
}

func NewWorkerService(
	notifications repository.NotificationRepository,
	tracker *DeliveryTracker,
	templates *TemplateResolver,
	registry realtime.ConnectionRegistry,
	channels ChannelSet,
	consumer queue.Consumer,
	cfg WorkerConfig,
	logger *zap.Logger,
) (*WorkerService, error) {
	if notifications == nil {
		return nil, fmt.Errorf("notification repository is required")
	}
	if tracker == nil {
		return nil, fmt.Errorf("delivery tracker is required")
	}
	if templates == nil {
		return nil, fmt.Errorf("template resolver is required")
	}
	if registry == nil {
		return nil, fmt.Errorf("connection registry is required")
	}
	if cfg.Concurrency < minWorkerConcurrency {
		cfg.Concurrency = minWorkerConcurrency
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = defaultSendTimeout
	}
	if cfg.BaseRetryDelay <= 0 {
		cfg.BaseRetryDelay = defaultBaseRetryDelay
	}
	if cfg.MaxRetryDelay <= 0 {
		cfg.MaxRetryDelay = defaultMaxRetryDelay
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &WorkerService{
		notifications: notifications,
		tracker:       tracker,
		templates:     templates,
		registry:      registry,
		channels:      channels,
		consumer:      consumer,
		logger:        logger,
		cfg:           cfg,
		now:           time.Now,
	}, nil
}

func (s *WorkerService) SetMetrics(metrics *observability.Metrics) {
	if s == nil {
		return
	}
	s.metrics = metrics
}

// log returns the worker logger enriched with the correlation id the consumer
// put on the context.
func (s *WorkerService) log(ctx context.Context) *zap.Logger {
	return observability.WithContextLogger(s.logger, ctx)
}

// Start consumes the dispatch queue with the configured concurrency until
// context cancellation.
func (s *WorkerService) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if s.consumer == nil {
		return fmt.Errorf("consumer is required")
	}

	g, groupCtx := errgroup.WithContext(ctx)
	for i := 0; i < s.cfg.Concurrency; i++ {
		workerID := i + 1

		g.Go(func() error {
			s.logger.Info("dispatch worker started", zap.Int("workerId", workerID))

			err := s.consumer.ConsumeDispatch(groupCtx, s.ProcessDispatch)
			if err != nil {
				s.logger.Error("dispatch worker stopped with error",
					zap.Int("workerId", workerID),
					zap.Error(err),
				)
				return err
			}

			s.logger.Info("dispatch worker stopped", zap.Int("workerId", workerID))
			return nil
		})
	}

	return g.Wait()
}

// ProcessDispatch handles one dispatch job. It walks the channel order from
// the persisted cursor: success is terminal, a transient failure within the
// attempt budget parks the aggregate for the scanner, and everything else
// falls through to the next channel.
func (s *WorkerService) ProcessDispatch(ctx context.Context, msg queue.DispatchMessage) error {
	notification, err := s.notifications.MarkAttempting(ctx, msg.NotificationID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			s.log(ctx).Warn("notification not found for dispatch, skipping",
				zap.String("notificationId", msg.NotificationID),
			)
			return nil
		}
		return fmt.Errorf("failed to mark notification attempting: %w", err)
	}

	// Nil means the aggregate already reached a terminal state; ack and skip.
	if notification == nil {
		return nil
	}

	for {
		ch, ok := notification.CurrentChannel()
		if !ok {
			return s.finishExhausted(ctx, notification)
		}

		// A disconnected user is a skip, not a failure: no attempt is
		// recorded and the order falls through immediately.
		if ch == domain.ChannelRealtime {
			connected, err := s.registry.IsConnected(ctx, notification.UserID)
			if err != nil {
				s.log(ctx).Warn("connectivity check failed, skipping realtime",
					zap.String("notificationId", notification.ID),
					zap.String("userId", notification.UserID),
					zap.Error(err),
				)
				connected = false
			}
			if !connected {
				notification.AdvanceChannel()
				continue
			}
		}

		content, renderFailed, err := s.renderForChannel(ctx, notification, ch)
		if err != nil {
			return err
		}
		if renderFailed {
			continue
		}

		done, err := s.attemptSend(ctx, notification, ch, content)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
	}
}

// renderForChannel renders and caches the channel content on the aggregate.
// A render failure (missing template or placeholder) is permanent for the
// channel: it records an attempt, advances the cursor, and reports
// renderFailed so the caller continues with the next channel.
func (s *WorkerService) renderForChannel(
	ctx context.Context,
	notification *domain.Notification,
	ch domain.Channel,
) (domain.RenderedContent, bool, error) {
	if content, ok := notification.Rendered[ch]; ok {
		return content, false, nil
	}

	content, err := s.templates.Render(ctx, notification.EventType, ch, notification.Data)
	if err != nil {
		if !domain.IsRenderError(err) {
			return domain.RenderedContent{}, false, fmt.Errorf("failed to render content: %w", err)
		}

		attemptNumber := notification.ChannelAttempts + 1
		s.recordAttempt(ctx, notification, ch, attemptNumber, domain.OutcomePermanentFailure, err)
		notification.ChannelAttempts = attemptNumber
		notification.RecordFailureReason(ch, err.Error())
		notification.AdvanceChannel()

		s.log(ctx).Warn("render failed, falling through to next channel",
			zap.String("notificationId", notification.ID),
			zap.String("channel", ch.String()),
			zap.Error(err),
		)
		return domain.RenderedContent{}, true, nil
	}

	if notification.Rendered == nil {
		notification.Rendered = make(map[domain.Channel]domain.RenderedContent)
	}
	notification.Rendered[ch] = content
	return content, false, nil
}

// attemptSend performs one send on the current channel and applies the
// outcome. It returns done=true when the job is finished for now: delivered,
// exhausted, or parked for a deferred retry.
func (s *WorkerService) attemptSend(
	ctx context.Context,
	notification *domain.Notification,
	ch domain.Channel,
	content domain.RenderedContent,
) (bool, error) {
	channelName := strings.ToLower(ch.String())
	if s.metrics != nil {
		s.metrics.IncWorkerInFlight(channelName)
		defer s.metrics.DecWorkerInFlight(channelName)
	}

	attemptNumber := notification.ChannelAttempts + 1

	sendStart := s.now()
	sendErr := s.send(ctx, notification, ch, content)
	if s.metrics != nil {
		s.metrics.ObserveSendDuration(channelName, s.now().Sub(sendStart))
	}

	outcome := classifyOutcome(ch, sendErr)
	s.recordAttempt(ctx, notification, ch, attemptNumber, outcome, sendErr)
	notification.ChannelAttempts = attemptNumber

	switch outcome {
	case domain.OutcomeSuccess:
		deliveredAt := s.now().UTC()
		notification.Status = domain.StatusDelivered
		notification.DeliveredAt = &deliveredAt
		notification.NextRetryAt = nil
		if err := s.saveProgress(ctx, notification); err != nil {
			return true, err
		}
		if s.metrics != nil {
			s.metrics.IncNotificationDelivered(channelName)
		}
		s.log(ctx).Info("notification delivered",
			zap.String("notificationId", notification.ID),
			zap.String("channel", channelName),
			zap.Int("attempt", attemptNumber),
		)
		return true, nil

	case domain.OutcomeTransientFailure:
		if attemptNumber < maxAttemptsPerChannel {
			nextRetryAt := s.now().UTC().Add(s.retryDelay(attemptNumber))
			notification.NextRetryAt = &nextRetryAt
			if err := s.saveProgress(ctx, notification); err != nil {
				return true, err
			}
			if s.metrics != nil {
				s.metrics.IncRetryScheduled(channelName)
			}
			s.log(ctx).Info("retry scheduled",
				zap.String("notificationId", notification.ID),
				zap.String("channel", channelName),
				zap.Int("attempt", attemptNumber),
				zap.Time("nextRetryAt", nextRetryAt),
			)
			return true, nil
		}
		// Attempt budget spent on this channel; fall through.
	}

	notification.RecordFailureReason(ch, sendErr.Error())
	notification.AdvanceChannel()
	s.log(ctx).Warn("channel failed, falling through",
		zap.String("notificationId", notification.ID),
		zap.String("channel", channelName),
		zap.Int("attempt", attemptNumber),
		zap.String("outcome", outcome.String()),
		zap.Error(sendErr),
	)
	return false, nil
}

func (s *WorkerService) send(
	ctx context.Context,
	notification *domain.Notification,
	ch domain.Channel,
	content domain.RenderedContent,
) error {
	sendCtx, cancel := context.WithTimeout(ctx, s.cfg.SendTimeout)
	defer cancel()

	switch ch {
	case domain.ChannelRealtime:
		return s.channels.Realtime.Send(sendCtx, notification.UserID, content.Subject, content.Body)
	case domain.ChannelPush:
		return s.channels.Push.Send(sendCtx, notification.PushToken, content.Subject, content.Body)
	case domain.ChannelEmail:
		htmlBody := channel.WrapHTMLBody(content.Subject, content.Body)
		return s.channels.Email.Send(sendCtx, notification.EmailAddress, content.Subject, htmlBody)
	}
	return fmt.Errorf("unsupported channel %q", ch)
}

// classifyOutcome maps a send error to an attempt outcome. Realtime failures
// are never transient: the connection either delivered or it is gone, and the
// fallback channel is the remedy.
func classifyOutcome(ch domain.Channel, sendErr error) domain.Outcome {
	if sendErr == nil {
		return domain.OutcomeSuccess
	}
	if ch == domain.ChannelRealtime {
		return domain.OutcomePermanentFailure
	}
	if channel.IsTransient(sendErr) {
		return domain.OutcomeTransientFailure
	}
	return domain.OutcomePermanentFailure
}

func (s *WorkerService) finishExhausted(ctx context.Context, notification *domain.Notification) error {
	notification.Status = domain.StatusExhausted
	notification.NextRetryAt = nil
	if err := s.saveProgress(ctx, notification); err != nil {
		return err
	}
	if s.metrics != nil {
		s.metrics.IncNotificationExhausted()
	}
	s.log(ctx).Warn("notification exhausted",
		zap.String("notificationId", notification.ID),
		zap.String("correlationId", notification.CorrelationID),
		zap.Any("failureReasons", notification.FailureReasons),
	)
	return nil
}

// saveProgress persists the cursor and state. A conflict means another worker
// already finished the aggregate; the job is acked without further work.
func (s *WorkerService) saveProgress(ctx context.Context, notification *domain.Notification) error {
	err := s.notifications.SaveProgress(ctx, notification)
	if errors.Is(err, domain.ErrConflict) {
		s.log(ctx).Warn("progress save conflicted with a terminal state, skipping",
			zap.String("notificationId", notification.ID),
		)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to save dispatch progress: %w", err)
	}
	return nil
}

// recordAttempt appends to the delivery history. History writes never fail the
// job: losing one record is preferable to re-sending a side effect.
func (s *WorkerService) recordAttempt(
	ctx context.Context,
	notification *domain.Notification,
	ch domain.Channel,
	attemptNumber int,
	outcome domain.Outcome,
	sendErr error,
) {
	if err := s.tracker.Record(ctx, notification.ID, ch, attemptNumber, outcome, sendErr); err != nil {
		s.log(ctx).Error("failed to record delivery attempt",
			zap.String("notificationId", notification.ID),
			zap.String("channel", ch.String()),
			zap.Error(err),
		)
	}
	if s.metrics != nil {
		s.metrics.IncDeliveryAttempt(strings.ToLower(ch.String()), strings.ToLower(outcome.String()))
	}
}

// retryDelay doubles the base delay per prior attempt and caps it.
func (s *WorkerService) retryDelay(attemptNumber int) time.Duration {
	if attemptNumber < 1 {
		attemptNumber = 1
	}

	delay := s.cfg.BaseRetryDelay
	for i := 1; i < attemptNumber; i++ {
		delay *= 2
		if delay >= s.cfg.MaxRetryDelay {
			return s.cfg.MaxRetryDelay
		}
	}

	if delay > s.cfg.MaxRetryDelay {
		delay = s.cfg.MaxRetryDelay
	}
	return delay
}
