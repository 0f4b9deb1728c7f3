package queue

import (
	"fmt"
	"strings"

	"github.com/easypark/notification-service/internal/domain"
)

// DispatchMessage is the broker payload for one dispatch job. The worker
// reloads the aggregate by id, so the message stays small and replayable.
type DispatchMessage struct {
	NotificationID string          `json:"notificationId"`
	CorrelationID  string          `json:"correlationId,omitempty"`
	Priority       domain.Priority `json:"priority"`
}

func (m DispatchMessage) Validate() error {
	if strings.TrimSpace(m.NotificationID) == "" {
		return fmt.Errorf("notificationId is required")
	}
	if !m.Priority.IsValid() {
		return fmt.Errorf("invalid priority %q", m.Priority)
	}
	return nil
}
