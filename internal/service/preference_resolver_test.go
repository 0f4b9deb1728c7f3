package service

import (
	"context"
	"testing"

	"go.uber.org/zap"

	"github.com/easypark/notification-service/internal/domain"
)

func newTestResolver(t *testing.T, prefs *fakePreferenceRepo) *PreferenceResolver {
	t.Helper()
	resolver, err := NewPreferenceResolver(prefs, zap.NewNop())
	if err != nil {
		t.Fatalf("NewPreferenceResolver() error = %v", err)
	}
	return resolver
}

func channelsEqual(got, want []domain.Channel) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range got {
		if got[i] != want[i] {
			return false
		}
	}
	return true
}

func TestResolveDefaultsToEmailOnlyWithoutRecord(t *testing.T) {
	t.Parallel()

	resolver := newTestResolver(t, &fakePreferenceRepo{})

	order, recipient, err := resolver.Resolve(context.Background(), validEvent())
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}

	want := []domain.Channel{domain.ChannelEmail}
	if !channelsEqual(order, want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
	if recipient.EmailAddress != "driver@example.com" {
		t.Fatalf("email = %q, want event email", recipient.EmailAddress)
	}
}

func TestResolveDefaultWithoutEmailAddressIsEmpty(t *testing.T) {
	t.Parallel()

	resolver := newTestResolver(t, &fakePreferenceRepo{})

	event := validEvent()
	event.UserEmail = ""

	order, _, err := resolver.Resolve(context.Background(), event)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if len(order) != 0 {
		t.Fatalf("order = %v, want empty", order)
	}
}

func TestResolveFiltersDisabledChannelsKeepingOrder(t *testing.T) {
	t.Parallel()

	resolver := newTestResolver(t, &fakePreferenceRepo{
		getByUserIDFn: func(ctx context.Context, userID string) (*domain.Preference, error) {
			return &domain.Preference{
				UserID:          userID,
				RealtimeEnabled: true,
				PushEnabled:     false,
				EmailEnabled:    true,
			}, nil
		},
	})

	order, _, err := resolver.Resolve(context.Background(), validEvent())
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}

	want := []domain.Channel{domain.ChannelRealtime, domain.ChannelEmail}
	if !channelsEqual(order, want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
}

func TestResolveEventOverrideWinsOverGlobalFlag(t *testing.T) {
	t.Parallel()

	resolver := newTestResolver(t, &fakePreferenceRepo{
		getByUserIDFn: func(ctx context.Context, userID string) (*domain.Preference, error) {
			return &domain.Preference{
				UserID:          userID,
				RealtimeEnabled: true,
				PushEnabled:     true,
				EmailEnabled:    true,
				EventOverrides: domain.EventOverrides{
					"RESERVATION_CONFIRMED": {domain.ChannelEmail: false},
				},
			}, nil
		},
	})

	order, _, err := resolver.Resolve(context.Background(), validEvent())
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}

	want := []domain.Channel{domain.ChannelRealtime, domain.ChannelPush}
	if !channelsEqual(order, want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
}

func TestResolveExcludesChannelsWithoutContactTarget(t *testing.T) {
	t.Parallel()

	resolver := newTestResolver(t, &fakePreferenceRepo{
		getByUserIDFn: func(ctx context.Context, userID string) (*domain.Preference, error) {
			return &domain.Preference{
				UserID:          userID,
				RealtimeEnabled: true,
				PushEnabled:     true,
				EmailEnabled:    true,
			}, nil
		},
	})

	event := validEvent()
	event.FCMToken = ""
	event.UserEmail = ""

	order, recipient, err := resolver.Resolve(context.Background(), event)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}

	// Realtime needs only the user id; push and email disappear silently.
	want := []domain.Channel{domain.ChannelRealtime}
	if !channelsEqual(order, want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
	if recipient.PushToken != "" || recipient.EmailAddress != "" {
		t.Fatalf("recipient = %+v, want empty targets", recipient)
	}
}

func TestResolvePreferenceContactFillsEventGaps(t *testing.T) {
	t.Parallel()

	resolver := newTestResolver(t, &fakePreferenceRepo{
		getByUserIDFn: func(ctx context.Context, userID string) (*domain.Preference, error) {
			return &domain.Preference{
				UserID:          userID,
				RealtimeEnabled: true,
				PushEnabled:     true,
				EmailEnabled:    true,
				PushToken:       "stored-token",
				EmailAddress:    "stored@example.com",
			}, nil
		},
	})

	event := validEvent()
	event.FCMToken = ""
	event.UserEmail = ""

	_, recipient, err := resolver.Resolve(context.Background(), event)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}

	if recipient.PushToken != "stored-token" {
		t.Fatalf("token = %q, want stored-token", recipient.PushToken)
	}
	if recipient.EmailAddress != "stored@example.com" {
		t.Fatalf("email = %q, want stored@example.com", recipient.EmailAddress)
	}
}
