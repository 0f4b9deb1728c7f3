package domain

import (
	"fmt"
	"strings"
)

// NotificationEvent is the canonical inbound event consumed from the bus.
// The routing key carries the event type; user_email and fcm_token are optional
// and fall back to the stored preference when absent.
type NotificationEvent struct {
	UserID        string         `json:"user_id"`
	UserEmail     string         `json:"user_email,omitempty"`
	FCMToken      string         `json:"fcm_token,omitempty"`
	EventType     string         `json:"event_type"`
	Data          map[string]any `json:"data"`
	Priority      Priority       `json:"priority"`
	CorrelationID string         `json:"correlation_id"`
}

func (e *NotificationEvent) Validate() error {
	if strings.TrimSpace(e.UserID) == "" {
		return fmt.Errorf("%w: user_id is required", ErrValidation)
	}
	if strings.TrimSpace(e.EventType) == "" {
		return fmt.Errorf("%w: event_type is required", ErrValidation)
	}
	if strings.TrimSpace(e.CorrelationID) == "" {
		return fmt.Errorf("%w: correlation_id is required", ErrValidation)
	}
	if e.Priority != "" && !e.Priority.IsValid() {
		return fmt.Errorf("%w: invalid priority %q", ErrValidation, e.Priority)
	}
	return nil
}

// Normalize fills defaults and canonicalizes the event type from the routing
// key when the producer published dotted keys (reservation.confirmed).
func (e *NotificationEvent) Normalize(routingKey string) {
	if strings.TrimSpace(e.EventType) == "" && routingKey != "" {
		e.EventType = NormalizeEventType(routingKey)
	} else {
		e.EventType = NormalizeEventType(e.EventType)
	}
	if e.Priority == "" {
		e.Priority = PriorityNormal
	}
	if e.Data == nil {
		e.Data = map[string]any{}
	}
}

// NormalizeEventType maps a bus routing key to the internal event type form:
// "reservation.confirmed" becomes "RESERVATION_CONFIRMED".
func NormalizeEventType(routingKey string) string {
	normalized := strings.ToUpper(strings.TrimSpace(routingKey))
	return strings.ReplaceAll(normalized, ".", "_")
}
