package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/easypark/notification-service/internal/domain"
	"github.com/easypark/notification-service/internal/repository"
)

// ResolvedRecipient carries the contact targets chosen during resolution.
// Event-supplied values win over stored preference values.
type ResolvedRecipient struct {
	EmailAddress string
	PushToken    string
}

// PreferenceResolver computes the eligible channel order for an event. The
// baseline order (realtime, push, email) is only ever filtered, never
// reordered; a channel also drops out when its contact target is missing.
type PreferenceResolver struct {
	preferences repository.PreferenceRepository
	logger      *zap.Logger
}

func NewPreferenceResolver(
	preferences repository.PreferenceRepository,
	logger *zap.Logger,
) (*PreferenceResolver, error) {
	if preferences == nil {
		return nil, fmt.Errorf("preference repository is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &PreferenceResolver{
		preferences: preferences,
		logger:      logger,
	}, nil
}

// Resolve returns the filtered channel order and the contact targets for the
// event's user. Users with no stored preference default to email only. The
// returned order may be empty.
func (r *PreferenceResolver) Resolve(
	ctx context.Context,
	event *domain.NotificationEvent,
) ([]domain.Channel, ResolvedRecipient, error) {
	if event == nil {
		return nil, ResolvedRecipient{}, fmt.Errorf("%w: event is required", domain.ErrValidation)
	}

	pref, err := r.preferences.GetByUserID(ctx, event.UserID)
	if errors.Is(err, domain.ErrNotFound) {
		pref = defaultPreference(event.UserID)
	} else if err != nil {
		return nil, ResolvedRecipient{}, fmt.Errorf("failed to load preferences: %w", err)
	}

	recipient := ResolvedRecipient{
		EmailAddress: strings.TrimSpace(event.UserEmail),
		PushToken:    strings.TrimSpace(event.FCMToken),
	}
	if recipient.EmailAddress == "" {
		recipient.EmailAddress = strings.TrimSpace(pref.EmailAddress)
	}
	if recipient.PushToken == "" {
		recipient.PushToken = strings.TrimSpace(pref.PushToken)
	}

	order := make([]domain.Channel, 0, 3)
	for _, ch := range domain.BaselineChannelOrder() {
		if !pref.ChannelEnabled(ch, event.EventType) {
			continue
		}
		if !r.hasContactTarget(ch, recipient, event) {
			r.logger.Debug("channel excluded: no contact target",
				zap.String("userId", event.UserID),
				zap.String("channel", ch.String()),
			)
			continue
		}
		order = append(order, ch)
	}

	return order, recipient, nil
}

func (r *PreferenceResolver) hasContactTarget(
	ch domain.Channel,
	recipient ResolvedRecipient,
	event *domain.NotificationEvent,
) bool {
	switch ch {
	case domain.ChannelRealtime:
		// Realtime needs only the user id; connectivity is checked at send time.
		return strings.TrimSpace(event.UserID) != ""
	case domain.ChannelPush:
		return recipient.PushToken != ""
	case domain.ChannelEmail:
		return recipient.EmailAddress != ""
	}
	return false
}

// defaultPreference is the implicit record for users who never saved one.
// Only email is opted in until the user says otherwise; realtime and push
// stay off so an unconfigured user is never pinged on surfaces they did not
// choose.
func defaultPreference(userID string) *domain.Preference {
	return &domain.Preference{
		UserID:       userID,
		EmailEnabled: true,
	}
}
