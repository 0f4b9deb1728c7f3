package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/easypark/notification-service/internal/domain"
	"github.com/easypark/notification-service/internal/observability"
)

type RabbitMQConsumer struct {
	client   *RabbitMQ
	prefetch int
	logger   *zap.Logger
}

func NewRabbitMQConsumer(client *RabbitMQ, prefetch int, logger *zap.Logger) *RabbitMQConsumer {
	if prefetch < 1 {
		prefetch = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &RabbitMQConsumer{
		client:   client,
		prefetch: prefetch,
		logger:   logger,
	}
}

// ConsumeEvents consumes inbound domain events until context cancellation.
// Malformed payloads are rejected without requeue to avoid poison-message
// loops; validation errors raised by the handler are treated the same way.
func (c *RabbitMQConsumer) ConsumeEvents(ctx context.Context, handler EventHandler) error {
	if handler == nil {
		return fmt.Errorf("event handler is required")
	}
	return c.consumeLoop(ctx, EventsQueue, func(ctx context.Context, d amqp.Delivery) error {
		return c.handleEventDelivery(ctx, d, handler)
	})
}

// ConsumeDispatch consumes dispatch jobs until context cancellation.
func (c *RabbitMQConsumer) ConsumeDispatch(ctx context.Context, handler DispatchHandler) error {
	if handler == nil {
		return fmt.Errorf("dispatch handler is required")
	}
	return c.consumeLoop(ctx, DispatchQueue, func(ctx context.Context, d amqp.Delivery) error {
		return c.handleDispatchDelivery(ctx, d, handler)
	})
}

func (c *RabbitMQConsumer) consumeLoop(ctx context.Context, queueName string, handle func(context.Context, amqp.Delivery) error) error {
	if c == nil || c.client == nil {
		return fmt.Errorf("consumer is not initialized")
	}

	backoff := reconnectBackoff
	for {
		err := c.consumeOnce(ctx, queueName, handle)
		if ctx.Err() != nil {
			return nil
		}
		if err == nil {
			backoff = reconnectBackoff
			continue
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(backoff):
		}

		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

func (c *RabbitMQConsumer) consumeOnce(ctx context.Context, queueName string, handle func(context.Context, amqp.Delivery) error) error {
	ch, err := c.client.channel(ctx)
	if err != nil {
		return err
	}
	defer ch.Close() //nolint:errcheck // best-effort channel close

	if err := ch.Qos(c.prefetch, 0, false); err != nil {
		return fmt.Errorf("failed to set qos: %w", err)
	}

	deliveries, err := ch.Consume(
		queueName,
		"",
		false,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to consume queue %q: %w", queueName, err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("delivery channel closed")
			}

			if err := handle(ctx, d); err != nil {
				return err
			}
		}
	}
}

func (c *RabbitMQConsumer) handleEventDelivery(ctx context.Context, d amqp.Delivery, handler EventHandler) error {
	var event domain.NotificationEvent
	if err := json.Unmarshal(d.Body, &event); err != nil {
		c.logger.Warn("rejecting event: invalid JSON",
			zap.Error(err),
			zap.String("routingKey", d.RoutingKey),
		)
		if rejectErr := d.Reject(false); rejectErr != nil {
			return fmt.Errorf("failed to reject invalid event: %w", rejectErr)
		}
		return nil
	}

	event.Normalize(d.RoutingKey)

	if err := event.Validate(); err != nil {
		c.logger.Warn("rejecting event: validation failed",
			zap.Error(err),
			zap.String("routingKey", d.RoutingKey),
			zap.String("correlationId", event.CorrelationID),
		)
		if rejectErr := d.Reject(false); rejectErr != nil {
			return fmt.Errorf("failed to reject invalid event: %w", rejectErr)
		}
		return nil
	}

	// Downstream log lines carry the correlation id from here on.
	ctx = observability.WithCorrelationID(ctx, event.CorrelationID)

	if err := handler(ctx, event); err != nil {
		// A malformed-but-parseable event is acknowledged, never retried.
		if errors.Is(err, domain.ErrValidation) {
			c.logger.Warn("dropping event after validation failure",
				zap.Error(err),
				zap.String("correlationId", event.CorrelationID),
			)
			if ackErr := d.Ack(false); ackErr != nil {
				return fmt.Errorf("failed to ack dropped event: %w", ackErr)
			}
			return nil
		}
		if nackErr := d.Nack(false, true); nackErr != nil {
			return fmt.Errorf("event handler failed and nack failed: %w", nackErr)
		}
		return nil
	}

	if err := d.Ack(false); err != nil {
		return fmt.Errorf("failed to ack event: %w", err)
	}

	return nil
}

func (c *RabbitMQConsumer) handleDispatchDelivery(ctx context.Context, d amqp.Delivery, handler DispatchHandler) error {
	var msg DispatchMessage
	if err := json.Unmarshal(d.Body, &msg); err != nil {
		c.logger.Warn("rejecting dispatch message: invalid JSON", zap.Error(err))
		if rejectErr := d.Reject(false); rejectErr != nil {
			return fmt.Errorf("failed to reject invalid message: %w", rejectErr)
		}
		return nil
	}

	if err := msg.Validate(); err != nil {
		c.logger.Warn("rejecting dispatch message: validation failed",
			zap.Error(err),
			zap.String("notificationId", msg.NotificationID),
		)
		if rejectErr := d.Reject(false); rejectErr != nil {
			return fmt.Errorf("failed to reject invalid payload: %w", rejectErr)
		}
		return nil
	}

	if msg.CorrelationID != "" {
		ctx = observability.WithCorrelationID(ctx, msg.CorrelationID)
	}

	if err := handler(ctx, msg); err != nil {
		if nackErr := d.Nack(false, true); nackErr != nil {
			return fmt.Errorf("dispatch handler failed and nack failed: %w", nackErr)
		}
		return nil
	}

	if err := d.Ack(false); err != nil {
		return fmt.Errorf("failed to ack dispatch message: %w", err)
	}

	return nil
}

func (c *RabbitMQConsumer) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}
