package handler

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/easypark/notification-service/internal/domain"
	"github.com/easypark/notification-service/internal/repository"
	"github.com/easypark/notification-service/internal/transport"
)

type fakeTemplateService struct {
	createFn  func(ctx context.Context, t *domain.Template) (*domain.Template, error)
	updateFn  func(ctx context.Context, t *domain.Template) (*domain.Template, error)
	getByIDFn func(ctx context.Context, id string) (*domain.Template, error)
	listFn    func(ctx context.Context, params repository.TemplateListParams) ([]domain.Template, error)
}

func (f *fakeTemplateService) Create(ctx context.Context, t *domain.Template) (*domain.Template, error) {
	if f.createFn != nil {
		return f.createFn(ctx, t)
	}
	return t, nil
}

func (f *fakeTemplateService) Update(ctx context.Context, t *domain.Template) (*domain.Template, error) {
	if f.updateFn != nil {
		return f.updateFn(ctx, t)
	}
	return t, nil
}

func (f *fakeTemplateService) GetByID(ctx context.Context, id string) (*domain.Template, error) {
	if f.getByIDFn != nil {
		return f.getByIDFn(ctx, id)
	}
	return nil, domain.ErrNotFound
}

func (f *fakeTemplateService) List(ctx context.Context, params repository.TemplateListParams) ([]domain.Template, error) {
	if f.listFn != nil {
		return f.listFn(ctx, params)
	}
	return nil, nil
}

func newTemplateApp(t *testing.T, svc TemplateService) *fiber.App {
	t.Helper()

	app := fiber.New(fiber.Config{ErrorHandler: transport.ErrorHandler(zap.NewNop())})
	if err := RegisterTemplateRoutes(app, svc); err != nil {
		t.Fatalf("RegisterTemplateRoutes() error = %v", err)
	}
	return app
}

func TestCreateTemplate(t *testing.T) {
	t.Parallel()

	var created *domain.Template
	app := newTemplateApp(t, &fakeTemplateService{
		createFn: func(ctx context.Context, tmpl *domain.Template) (*domain.Template, error) {
			created = tmpl
			out := *tmpl
			out.ID = "t1"
			return &out, nil
		},
	})

	payload := `{"eventType":"RESERVATION_CONFIRMED","channel":"email","subjectPattern":"Reservation at {parking_name}","bodyPattern":"Total: {price:currency}"}`
	req := httptest.NewRequest("POST", "/v1/templates", strings.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}
	if resp.StatusCode != fiber.StatusCreated {
		t.Fatalf("status = %d, want 201", resp.StatusCode)
	}

	if created.Channel != domain.ChannelEmail {
		t.Fatalf("channel = %q", created.Channel)
	}
	if !created.Active {
		t.Fatal("active should default to true when omitted")
	}

	var body templateResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body.ID != "t1" {
		t.Fatalf("id = %q", body.ID)
	}
}

func TestCreateTemplateInvalidChannel(t *testing.T) {
	t.Parallel()

	app := newTemplateApp(t, &fakeTemplateService{})

	req := httptest.NewRequest("POST", "/v1/templates", strings.NewReader(`{"eventType":"X","channel":"SMS","bodyPattern":"b"}`))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestUpdateTemplateTakesIDFromPath(t *testing.T) {
	t.Parallel()

	var updated *domain.Template
	app := newTemplateApp(t, &fakeTemplateService{
		updateFn: func(ctx context.Context, tmpl *domain.Template) (*domain.Template, error) {
			updated = tmpl
			return tmpl, nil
		},
	})

	active := `{"eventType":"RESERVATION_CONFIRMED","channel":"push","bodyPattern":"b","active":false}`
	req := httptest.NewRequest("PUT", "/v1/templates/t1", strings.NewReader(active))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if updated.ID != "t1" {
		t.Fatalf("id = %q, want path id", updated.ID)
	}
	if updated.Active {
		t.Fatal("active=false in the body should be honored")
	}
}

func TestListTemplatesFilters(t *testing.T) {
	t.Parallel()

	var gotParams repository.TemplateListParams
	app := newTemplateApp(t, &fakeTemplateService{
		listFn: func(ctx context.Context, params repository.TemplateListParams) ([]domain.Template, error) {
			gotParams = params
			return []domain.Template{{ID: "t1", EventType: "RESERVATION_CONFIRMED", Channel: domain.ChannelPush, BodyPattern: "b", Active: true}}, nil
		},
	})

	resp, err := app.Test(httptest.NewRequest("GET", "/v1/templates?eventType=reservation.confirmed&channel=push", nil))
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	if gotParams.EventType == nil || *gotParams.EventType != "RESERVATION_CONFIRMED" {
		t.Fatalf("eventType filter = %v, want normalized form", gotParams.EventType)
	}
	if gotParams.Channel == nil || *gotParams.Channel != domain.ChannelPush {
		t.Fatalf("channel filter = %v", gotParams.Channel)
	}

	var body listTemplatesResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(body.Data) != 1 || body.Data[0].ID != "t1" {
		t.Fatalf("body = %+v", body)
	}
}

func TestGetTemplateNotFound(t *testing.T) {
	t.Parallel()

	app := newTemplateApp(t, &fakeTemplateService{})

	resp, err := app.Test(httptest.NewRequest("GET", "/v1/templates/missing", nil))
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}
	if resp.StatusCode != fiber.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
}
