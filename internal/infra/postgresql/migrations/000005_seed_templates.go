package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/easypark/notification-service/internal/domain"
	"github.com/easypark/notification-service/internal/repository"
)

type seedTemplate struct {
	eventType string
	channel   domain.Channel
	subject   string
	body      string
}

// Seed content for the reservation and payment event families. Operators can
// deactivate or replace any of these through the template API.
var seedTemplates = []seedTemplate{
	{
		eventType: "RESERVATION_CONFIRMED",
		channel:   domain.ChannelRealtime,
		subject:   "Reservation confirmed",
		body:      "Your reservation at {parking_name} is confirmed. Total: {price:currency}.",
	},
	{
		eventType: "RESERVATION_CONFIRMED",
		channel:   domain.ChannelPush,
		subject:   "Reservation confirmed",
		body:      "Your spot at {parking_name} is ready. Total: {price:currency}.",
	},
	{
		eventType: "RESERVATION_CONFIRMED",
		channel:   domain.ChannelEmail,
		subject:   "Your reservation at {parking_name} is confirmed",
		body:      "Your reservation at {parking_name} has been confirmed. The total charge is {price:currency}. We look forward to seeing you.",
	},
	{
		eventType: "RESERVATION_CANCELLED",
		channel:   domain.ChannelRealtime,
		subject:   "Reservation cancelled",
		body:      "Your reservation at {parking_name} has been cancelled.",
	},
	{
		eventType: "RESERVATION_CANCELLED",
		channel:   domain.ChannelPush,
		subject:   "Reservation cancelled",
		body:      "Your reservation at {parking_name} has been cancelled.",
	},
	{
		eventType: "RESERVATION_CANCELLED",
		channel:   domain.ChannelEmail,
		subject:   "Your reservation at {parking_name} was cancelled",
		body:      "Your reservation at {parking_name} has been cancelled. If you were charged, the refund of {price:currency} will arrive within a few business days.",
	},
	{
		eventType: "PAYMENT_COMPLETED",
		channel:   domain.ChannelRealtime,
		subject:   "Payment received",
		body:      "We received your payment of {price:currency}.",
	},
	{
		eventType: "PAYMENT_COMPLETED",
		channel:   domain.ChannelPush,
		subject:   "Payment received",
		body:      "We received your payment of {price:currency}.",
	},
	{
		eventType: "PAYMENT_COMPLETED",
		channel:   domain.ChannelEmail,
		subject:   "Payment receipt",
		body:      "We received your payment of {price:currency} for {parking_name}. Thank you for parking with us.",
	},
}

func seedDefaultTemplates() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000005_seed_templates",
		Migrate: func(tx *gorm.DB) error {
			for _, seed := range seedTemplates {
				model := repository.TemplateModel{
					ID:             uuid.NewString(),
					EventType:      seed.eventType,
					Channel:        seed.channel,
					SubjectPattern: seed.subject,
					BodyPattern:    seed.body,
					Active:         true,
				}
				err := tx.Where("event_type = ? AND channel = ?", seed.eventType, seed.channel).
					FirstOrCreate(&model).Error
				if err != nil {
					return err
				}
			}
			return nil
		},
		Rollback: func(tx *gorm.DB) error {
			for _, seed := range seedTemplates {
				err := tx.Where("event_type = ? AND channel = ?", seed.eventType, seed.channel).
					Delete(&repository.TemplateModel{}).Error
				if err != nil {
					return err
				}
			}
			return nil
		},
	}
}
