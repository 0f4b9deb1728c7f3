package repository

import (
	"strings"
	"time"

	"gorm.io/datatypes"

	"github.com/easypark/notification-service/internal/domain"
)

// NotificationModel is the persistence model for the notifications table.
type NotificationModel struct {
	ID            string            `gorm:"type:uuid;primaryKey"`
	CorrelationID string            `gorm:"type:varchar(255);not null;uniqueIndex"`
	UserID        string            `gorm:"type:varchar(64);not null;index"`
	EventType     string            `gorm:"type:varchar(100);not null"`
	Data          datatypes.JSONMap `gorm:"type:jsonb"`
	Priority      domain.Priority   `gorm:"type:varchar(10);not null"`

	EmailAddress string `gorm:"type:varchar(255)"`
	PushToken    string `gorm:"type:varchar(500)"`

	ChannelOrder    string `gorm:"type:varchar(64);not null"`
	ChannelIndex    int    `gorm:"not null;default:0"`
	ChannelAttempts int    `gorm:"not null;default:0"`

	Rendered       datatypes.JSONMap `gorm:"type:jsonb"`
	FailureReasons datatypes.JSONMap `gorm:"type:jsonb"`

	Status      domain.Status `gorm:"type:varchar(20);not null"`
	NextRetryAt *time.Time
	DeliveredAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (NotificationModel) TableName() string {
	return "notifications"
}

// DeliveryAttemptModel is the persistence model for delivery_attempts.
// Rows are append-only: the dispatch flow inserts and reads, never updates.
type DeliveryAttemptModel struct {
	ID             string         `gorm:"type:uuid;primaryKey"`
	NotificationID string         `gorm:"type:uuid;not null;index"`
	Channel        domain.Channel `gorm:"type:varchar(10);not null"`
	AttemptNumber  int            `gorm:"not null"`
	Outcome        domain.Outcome `gorm:"type:varchar(20);not null"`
	Error          *string        `gorm:"type:text"`
	CreatedAt      time.Time
}

func (DeliveryAttemptModel) TableName() string {
	return "delivery_attempts"
}

// TemplateModel is the persistence model for notification_templates.
type TemplateModel struct {
	ID             string         `gorm:"type:uuid;primaryKey"`
	EventType      string         `gorm:"type:varchar(100);not null;uniqueIndex:idx_templates_event_channel,priority:1"`
	Channel        domain.Channel `gorm:"type:varchar(10);not null;uniqueIndex:idx_templates_event_channel,priority:2"`
	SubjectPattern string         `gorm:"type:varchar(255)"`
	BodyPattern    string         `gorm:"type:text;not null"`
	Active         bool           `gorm:"not null;default:true"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (TemplateModel) TableName() string {
	return "notification_templates"
}

// PreferenceModel is the persistence model for user_notification_preferences.
type PreferenceModel struct {
	ID              string            `gorm:"type:uuid;primaryKey"`
	UserID          string            `gorm:"type:varchar(64);not null;uniqueIndex"`
	RealtimeEnabled bool              `gorm:"not null;default:true"`
	PushEnabled     bool              `gorm:"not null;default:true"`
	EmailEnabled    bool              `gorm:"not null;default:true"`
	PushToken       string            `gorm:"type:varchar(500)"`
	EmailAddress    string            `gorm:"type:varchar(255)"`
	EventOverrides  datatypes.JSONMap `gorm:"type:jsonb"`
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (PreferenceModel) TableName() string {
	return "user_notification_preferences"
}

const channelOrderSeparator = ","

func encodeChannelOrder(order []domain.Channel) string {
	parts := make([]string, 0, len(order))
	for _, ch := range order {
		parts = append(parts, ch.String())
	}
	return strings.Join(parts, channelOrderSeparator)
}

func decodeChannelOrder(encoded string) []domain.Channel {
	if strings.TrimSpace(encoded) == "" {
		return nil
	}
	parts := strings.Split(encoded, channelOrderSeparator)
	order := make([]domain.Channel, 0, len(parts))
	for _, p := range parts {
		order = append(order, domain.Channel(p))
	}
	return order
}

func encodeRendered(rendered map[domain.Channel]domain.RenderedContent) datatypes.JSONMap {
	if len(rendered) == 0 {
		return nil
	}
	out := make(datatypes.JSONMap, len(rendered))
	for ch, content := range rendered {
		out[ch.String()] = map[string]any{
			"subject": content.Subject,
			"body":    content.Body,
		}
	}
	return out
}

func decodeRendered(raw datatypes.JSONMap) map[domain.Channel]domain.RenderedContent {
	if len(raw) == 0 {
		return nil
	}
	out := make(map[domain.Channel]domain.RenderedContent, len(raw))
	for key, value := range raw {
		fields, ok := value.(map[string]any)
		if !ok {
			continue
		}
		content := domain.RenderedContent{}
		if subject, ok := fields["subject"].(string); ok {
			content.Subject = subject
		}
		if body, ok := fields["body"].(string); ok {
			content.Body = body
		}
		out[domain.Channel(key)] = content
	}
	return out
}

func encodeFailureReasons(reasons map[domain.Channel]string) datatypes.JSONMap {
	if len(reasons) == 0 {
		return nil
	}
	out := make(datatypes.JSONMap, len(reasons))
	for ch, reason := range reasons {
		out[ch.String()] = reason
	}
	return out
}

func decodeFailureReasons(raw datatypes.JSONMap) map[domain.Channel]string {
	if len(raw) == 0 {
		return nil
	}
	out := make(map[domain.Channel]string, len(raw))
	for key, value := range raw {
		if reason, ok := value.(string); ok {
			out[domain.Channel(key)] = reason
		}
	}
	return out
}

func encodeEventOverrides(overrides domain.EventOverrides) datatypes.JSONMap {
	if len(overrides) == 0 {
		return nil
	}
	out := make(datatypes.JSONMap, len(overrides))
	for eventType, flags := range overrides {
		channelFlags := make(map[string]any, len(flags))
		for ch, enabled := range flags {
			channelFlags[ch.String()] = enabled
		}
		out[eventType] = channelFlags
	}
	return out
}

func decodeEventOverrides(raw datatypes.JSONMap) domain.EventOverrides {
	if len(raw) == 0 {
		return nil
	}
	out := make(domain.EventOverrides, len(raw))
	for eventType, value := range raw {
		fields, ok := value.(map[string]any)
		if !ok {
			continue
		}
		flags := make(domain.ChannelFlags, len(fields))
		for ch, enabled := range fields {
			if b, ok := enabled.(bool); ok {
				flags[domain.Channel(ch)] = b
			}
		}
		out[eventType] = flags
	}
	return out
}

func notificationModelFromDomain(n *domain.Notification) *NotificationModel {
	if n == nil {
		return nil
	}

	return &NotificationModel{
		ID:              n.ID,
		CorrelationID:   n.CorrelationID,
		UserID:          n.UserID,
		EventType:       n.EventType,
		Data:            datatypes.JSONMap(n.Data),
		Priority:        n.Priority,
		EmailAddress:    n.EmailAddress,
		PushToken:       n.PushToken,
		ChannelOrder:    encodeChannelOrder(n.ChannelOrder),
		ChannelIndex:    n.ChannelIndex,
		ChannelAttempts: n.ChannelAttempts,
		Rendered:        encodeRendered(n.Rendered),
		FailureReasons:  encodeFailureReasons(n.FailureReasons),
		Status:          n.Status,
		NextRetryAt:     n.NextRetryAt,
		DeliveredAt:     n.DeliveredAt,
		CreatedAt:       n.CreatedAt,
		UpdatedAt:       n.UpdatedAt,
	}
}

func notificationModelToDomain(m *NotificationModel) *domain.Notification {
	if m == nil {
		return nil
	}

	return &domain.Notification{
		ID:              m.ID,
		CorrelationID:   m.CorrelationID,
		UserID:          m.UserID,
		EventType:       m.EventType,
		Data:            map[string]any(m.Data),
		Priority:        m.Priority,
		EmailAddress:    m.EmailAddress,
		PushToken:       m.PushToken,
		ChannelOrder:    decodeChannelOrder(m.ChannelOrder),
		ChannelIndex:    m.ChannelIndex,
		ChannelAttempts: m.ChannelAttempts,
		Rendered:        decodeRendered(m.Rendered),
		FailureReasons:  decodeFailureReasons(m.FailureReasons),
		Status:          m.Status,
		NextRetryAt:     m.NextRetryAt,
		DeliveredAt:     m.DeliveredAt,
		CreatedAt:       m.CreatedAt,
		UpdatedAt:       m.UpdatedAt,
	}
}

func attemptModelFromDomain(a *domain.DeliveryAttempt) *DeliveryAttemptModel {
	if a == nil {
		return nil
	}

	return &DeliveryAttemptModel{
		ID:             a.ID,
		NotificationID: a.NotificationID,
		Channel:        a.Channel,
		AttemptNumber:  a.AttemptNumber,
		Outcome:        a.Outcome,
		Error:          a.Error,
		CreatedAt:      a.CreatedAt,
	}
}

func attemptModelToDomain(m *DeliveryAttemptModel) *domain.DeliveryAttempt {
	if m == nil {
		return nil
	}

	return &domain.DeliveryAttempt{
		ID:             m.ID,
		NotificationID: m.NotificationID,
		Channel:        m.Channel,
		AttemptNumber:  m.AttemptNumber,
		Outcome:        m.Outcome,
		Error:          m.Error,
		CreatedAt:      m.CreatedAt,
	}
}

func templateModelFromDomain(t *domain.Template) *TemplateModel {
	if t == nil {
		return nil
	}

	return &TemplateModel{
		ID:             t.ID,
		EventType:      t.EventType,
		Channel:        t.Channel,
		SubjectPattern: t.SubjectPattern,
		BodyPattern:    t.BodyPattern,
		Active:         t.Active,
		CreatedAt:      t.CreatedAt,
		UpdatedAt:      t.UpdatedAt,
	}
}

func templateModelToDomain(m *TemplateModel) *domain.Template {
	if m == nil {
		return nil
	}

	return &domain.Template{
		ID:             m.ID,
		EventType:      m.EventType,
		Channel:        m.Channel,
		SubjectPattern: m.SubjectPattern,
		BodyPattern:    m.BodyPattern,
		Active:         m.Active,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}
}

func preferenceModelFromDomain(p *domain.Preference) *PreferenceModel {
	if p == nil {
		return nil
	}

	return &PreferenceModel{
		UserID:          p.UserID,
		RealtimeEnabled: p.RealtimeEnabled,
		PushEnabled:     p.PushEnabled,
		EmailEnabled:    p.EmailEnabled,
		PushToken:       p.PushToken,
		EmailAddress:    p.EmailAddress,
		EventOverrides:  encodeEventOverrides(p.EventOverrides),
		CreatedAt:       p.CreatedAt,
		UpdatedAt:       p.UpdatedAt,
	}
}

func preferenceModelToDomain(m *PreferenceModel) *domain.Preference {
	if m == nil {
		return nil
	}

	return &domain.Preference{
		UserID:          m.UserID,
		RealtimeEnabled: m.RealtimeEnabled,
		PushEnabled:     m.PushEnabled,
		EmailEnabled:    m.EmailEnabled,
		PushToken:       m.PushToken,
		EmailAddress:    m.EmailAddress,
		EventOverrides:  decodeEventOverrides(m.EventOverrides),
		CreatedAt:       m.CreatedAt,
		UpdatedAt:       m.UpdatedAt,
	}
}
