package service

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/easypark/notification-service/internal/domain"
)

func newTestTemplateService(t *testing.T, repo *fakeTemplateRepo) *TemplateService {
	t.Helper()

	svc, err := NewTemplateService(repo, zap.NewNop())
	if err != nil {
		t.Fatalf("NewTemplateService() error = %v", err)
	}
	return svc
}

func TestTemplateServiceCreate(t *testing.T) {
	t.Parallel()

	var created *domain.Template
	svc := newTestTemplateService(t, &fakeTemplateRepo{
		createFn: func(ctx context.Context, tmpl *domain.Template) error {
			created = tmpl
			return nil
		},
	})

	out, err := svc.Create(context.Background(), &domain.Template{
		EventType:   "reservation.confirmed",
		Channel:     domain.ChannelEmail,
		BodyPattern: "Total: {price:currency}",
		Active:      true,
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if created == nil || created.ID == "" {
		t.Fatal("template id should be generated before persisting")
	}
	if out.EventType != "RESERVATION_CONFIRMED" {
		t.Fatalf("eventType = %q, want normalized form", out.EventType)
	}
}

func TestTemplateServiceCreateValidation(t *testing.T) {
	t.Parallel()

	svc := newTestTemplateService(t, &fakeTemplateRepo{
		createFn: func(ctx context.Context, tmpl *domain.Template) error {
			t.Error("create should not reach the repository")
			return nil
		},
	})

	_, err := svc.Create(context.Background(), &domain.Template{
		EventType: "RESERVATION_CONFIRMED",
		Channel:   domain.ChannelEmail,
	})
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("Create() error = %v, want ErrValidation", err)
	}
}

func TestTemplateServiceUpdateRequiresID(t *testing.T) {
	t.Parallel()

	svc := newTestTemplateService(t, &fakeTemplateRepo{})

	_, err := svc.Update(context.Background(), &domain.Template{
		EventType:   "RESERVATION_CONFIRMED",
		Channel:     domain.ChannelEmail,
		BodyPattern: "b",
	})
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("Update() error = %v, want ErrValidation", err)
	}
}

func TestTemplateServiceGetByID(t *testing.T) {
	t.Parallel()

	svc := newTestTemplateService(t, &fakeTemplateRepo{
		getByIDFn: func(ctx context.Context, id string) (*domain.Template, error) {
			return &domain.Template{ID: id}, nil
		},
	})

	tmpl, err := svc.GetByID(context.Background(), " t1 ")
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if tmpl.ID != "t1" {
		t.Fatalf("id = %q, want trimmed id", tmpl.ID)
	}

	if _, err := svc.GetByID(context.Background(), "  "); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("GetByID() error = %v, want ErrValidation", err)
	}
}
