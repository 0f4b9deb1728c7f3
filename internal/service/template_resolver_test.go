package service

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/easypark/notification-service/internal/domain"
)

func TestTemplateResolverRendersSubjectAndBody(t *testing.T) {
	t.Parallel()

	resolver, err := NewTemplateResolver(&fakeTemplateRepo{
		getActiveFn: func(ctx context.Context, eventType string, ch domain.Channel) (*domain.Template, error) {
			return &domain.Template{
				EventType:      eventType,
				Channel:        ch,
				SubjectPattern: "Reservation at {parking_name}",
				BodyPattern:    "Total: {price:currency}",
				Active:         true,
			}, nil
		},
	}, zap.NewNop())
	if err != nil {
		t.Fatalf("NewTemplateResolver() error = %v", err)
	}

	content, err := resolver.Render(
		context.Background(),
		"RESERVATION_CONFIRMED",
		domain.ChannelEmail,
		map[string]any{"parking_name": "Centro", "price": 15.0},
	)
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}

	if content.Subject != "Reservation at Centro" {
		t.Fatalf("subject = %q", content.Subject)
	}
	if content.Body != "Total: 15.00" {
		t.Fatalf("body = %q", content.Body)
	}
}

func TestTemplateResolverMissingTemplate(t *testing.T) {
	t.Parallel()

	resolver, err := NewTemplateResolver(&fakeTemplateRepo{}, zap.NewNop())
	if err != nil {
		t.Fatalf("NewTemplateResolver() error = %v", err)
	}

	_, err = resolver.Render(context.Background(), "UNKNOWN_EVENT", domain.ChannelEmail, nil)
	if !errors.Is(err, domain.ErrTemplateNotFound) {
		t.Fatalf("Render() error = %v, want ErrTemplateNotFound", err)
	}
	if !domain.IsRenderError(err) {
		t.Fatal("missing template should classify as a render error")
	}
}

func TestTemplateResolverMissingVariable(t *testing.T) {
	t.Parallel()

	resolver, err := NewTemplateResolver(&fakeTemplateRepo{
		getActiveFn: func(ctx context.Context, eventType string, ch domain.Channel) (*domain.Template, error) {
			return &domain.Template{
				EventType:   eventType,
				Channel:     ch,
				BodyPattern: "Hello {name}",
				Active:      true,
			}, nil
		},
	}, zap.NewNop())
	if err != nil {
		t.Fatalf("NewTemplateResolver() error = %v", err)
	}

	_, err = resolver.Render(context.Background(), "RESERVATION_CONFIRMED", domain.ChannelPush, map[string]any{})
	if !errors.Is(err, domain.ErrMissingVariable) {
		t.Fatalf("Render() error = %v, want ErrMissingVariable", err)
	}
}
