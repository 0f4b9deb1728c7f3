package channel

import (
	"context"
	"errors"
	"testing"
	"time"
)

type fakeHub struct {
	pushFn func(ctx context.Context, userID string, payload any) (bool, error)
}

func (f *fakeHub) Push(ctx context.Context, userID string, payload any) (bool, error) {
	if f.pushFn != nil {
		return f.pushFn(ctx, userID, payload)
	}
	return true, nil
}

func TestHubRealtimeChannelSend(t *testing.T) {
	t.Parallel()

	var gotUserID string
	var gotPayload realtimePayload
	hub := &fakeHub{
		pushFn: func(ctx context.Context, userID string, payload any) (bool, error) {
			gotUserID = userID
			gotPayload = payload.(realtimePayload)
			return true, nil
		},
	}

	ch, err := NewHubRealtimeChannel(hub)
	if err != nil {
		t.Fatalf("NewHubRealtimeChannel() error = %v", err)
	}
	ch.now = func() time.Time { return time.Unix(1_700_000_000, 0).UTC() }

	if err := ch.Send(context.Background(), "user-1", "Reservation", "Your spot is ready."); err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	if gotUserID != "user-1" {
		t.Fatalf("userID = %q", gotUserID)
	}
	if gotPayload.Type != "notification" || gotPayload.Title != "Reservation" || gotPayload.Body != "Your spot is ready." {
		t.Fatalf("payload = %+v", gotPayload)
	}
	if gotPayload.SentAt != "2023-11-14T22:13:20Z" {
		t.Fatalf("SentAt = %q", gotPayload.SentAt)
	}
}

func TestHubRealtimeChannelNotDelivered(t *testing.T) {
	t.Parallel()

	hub := &fakeHub{
		pushFn: func(ctx context.Context, userID string, payload any) (bool, error) { return false, nil },
	}
	ch, err := NewHubRealtimeChannel(hub)
	if err != nil {
		t.Fatalf("NewHubRealtimeChannel() error = %v", err)
	}

	err = ch.Send(context.Background(), "user-1", "t", "b")
	if !errors.Is(err, ErrNotConnected) {
		t.Fatalf("Send() error = %v, want ErrNotConnected", err)
	}
}

func TestHubRealtimeChannelPushError(t *testing.T) {
	t.Parallel()

	hub := &fakeHub{
		pushFn: func(ctx context.Context, userID string, payload any) (bool, error) { return false, errors.New("socket write failed") },
	}
	ch, err := NewHubRealtimeChannel(hub)
	if err != nil {
		t.Fatalf("NewHubRealtimeChannel() error = %v", err)
	}

	err = ch.Send(context.Background(), "user-1", "t", "b")
	if err == nil {
		t.Fatal("expected error")
	}
	if IsTransient(err) {
		t.Fatalf("realtime failures are never transient, got %v", err)
	}
}

func TestHubRealtimeChannelCanceledContext(t *testing.T) {
	t.Parallel()

	ch, err := NewHubRealtimeChannel(&fakeHub{})
	if err != nil {
		t.Fatalf("NewHubRealtimeChannel() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := ch.Send(ctx, "user-1", "t", "b"); !errors.Is(err, context.Canceled) {
		t.Fatalf("Send() error = %v, want context.Canceled", err)
	}
}
