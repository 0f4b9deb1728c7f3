package handler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/easypark/notification-service/internal/domain"
	"github.com/easypark/notification-service/internal/repository"
)

type TemplateService interface {
	Create(ctx context.Context, t *domain.Template) (*domain.Template, error)
	Update(ctx context.Context, t *domain.Template) (*domain.Template, error)
	GetByID(ctx context.Context, id string) (*domain.Template, error)
	List(ctx context.Context, params repository.TemplateListParams) ([]domain.Template, error)
}

type TemplateHandler struct {
	service TemplateService
}

func NewTemplateHandler(service TemplateService) (*TemplateHandler, error) {
	if service == nil {
		return nil, fmt.Errorf("template service is required")
	}
	return &TemplateHandler{service: service}, nil
}

func RegisterTemplateRoutes(router fiber.Router, service TemplateService) error {
	h, err := NewTemplateHandler(service)
	if err != nil {
		return err
	}

	v1 := router.Group("/v1")
	v1.Post("/templates", h.CreateTemplate)
	v1.Put("/templates/:id", h.UpdateTemplate)
	v1.Get("/templates/:id", h.GetTemplate)
	v1.Get("/templates", h.ListTemplates)

	return nil
}

type templateRequest struct {
	EventType      string `json:"eventType"`
	Channel        string `json:"channel"`
	SubjectPattern string `json:"subjectPattern"`
	BodyPattern    string `json:"bodyPattern"`
	Active         *bool  `json:"active,omitempty"`
}

type templateResponse struct {
	ID             string    `json:"id"`
	EventType      string    `json:"eventType"`
	Channel        string    `json:"channel"`
	SubjectPattern string    `json:"subjectPattern"`
	BodyPattern    string    `json:"bodyPattern"`
	Active         bool      `json:"active"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

type listTemplatesResponse struct {
	Data []templateResponse `json:"data"`
}

func (h *TemplateHandler) CreateTemplate(c *fiber.Ctx) error {
	tmpl, err := parseTemplateRequest(c)
	if err != nil {
		return toHTTPError(err)
	}

	created, err := h.service.Create(c.Context(), tmpl)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusCreated).JSON(toTemplateResponse(created))
}

func (h *TemplateHandler) UpdateTemplate(c *fiber.Ctx) error {
	tmpl, err := parseTemplateRequest(c)
	if err != nil {
		return toHTTPError(err)
	}
	tmpl.ID = strings.TrimSpace(c.Params("id"))

	updated, err := h.service.Update(c.Context(), tmpl)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(toTemplateResponse(updated))
}

func (h *TemplateHandler) GetTemplate(c *fiber.Ctx) error {
	tmpl, err := h.service.GetByID(c.Context(), strings.TrimSpace(c.Params("id")))
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(toTemplateResponse(tmpl))
}

func (h *TemplateHandler) ListTemplates(c *fiber.Ctx) error {
	var params repository.TemplateListParams

	if rawEventType := strings.TrimSpace(c.Query("eventType")); rawEventType != "" {
		eventType := domain.NormalizeEventType(rawEventType)
		params.EventType = &eventType
	}
	if rawChannel := strings.TrimSpace(c.Query("channel")); rawChannel != "" {
		ch, err := domain.ParseChannelFromString(rawChannel)
		if err != nil {
			return toHTTPError(err)
		}
		params.Channel = &ch
	}

	templates, err := h.service.List(c.Context(), params)
	if err != nil {
		return toHTTPError(err)
	}

	data := make([]templateResponse, 0, len(templates))
	for i := range templates {
		data = append(data, toTemplateResponse(&templates[i]))
	}

	return c.Status(fiber.StatusOK).JSON(listTemplatesResponse{Data: data})
}

func parseTemplateRequest(c *fiber.Ctx) (*domain.Template, error) {
	var req templateRequest
	if err := c.BodyParser(&req); err != nil {
		return nil, fmt.Errorf("%w: invalid request body", domain.ErrValidation)
	}

	ch, err := domain.ParseChannelFromString(req.Channel)
	if err != nil {
		return nil, err
	}

	active := true
	if req.Active != nil {
		active = *req.Active
	}

	return &domain.Template{
		EventType:      strings.TrimSpace(req.EventType),
		Channel:        ch,
		SubjectPattern: req.SubjectPattern,
		BodyPattern:    req.BodyPattern,
		Active:         active,
	}, nil
}

func toTemplateResponse(t *domain.Template) templateResponse {
	if t == nil {
		return templateResponse{}
	}

	return templateResponse{
		ID:             t.ID,
		EventType:      t.EventType,
		Channel:        t.Channel.String(),
		SubjectPattern: t.SubjectPattern,
		BodyPattern:    t.BodyPattern,
		Active:         t.Active,
		CreatedAt:      t.CreatedAt,
		UpdatedAt:      t.UpdatedAt,
	}
}
