package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/easypark/notification-service/internal/domain"
	"github.com/easypark/notification-service/internal/repository"
)

// TemplateService manages stored content templates. Pattern problems surface
// here at write time so the dispatch path only ever renders vetted templates.
type TemplateService struct {
	templates repository.TemplateRepository
	logger    *zap.Logger
}

func NewTemplateService(
	templates repository.TemplateRepository,
	logger *zap.Logger,
) (*TemplateService, error) {
	if templates == nil {
		return nil, fmt.Errorf("template repository is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &TemplateService{
		templates: templates,
		logger:    logger,
	}, nil
}

func (s *TemplateService) Create(ctx context.Context, t *domain.Template) (*domain.Template, error) {
	if t == nil {
		return nil, fmt.Errorf("%w: template is required", domain.ErrValidation)
	}

	t.EventType = domain.NormalizeEventType(t.EventType)
	if err := t.Validate(); err != nil {
		return nil, err
	}

	t.ID = uuid.NewString()
	if err := s.templates.Create(ctx, t); err != nil {
		return nil, err
	}

	s.logger.Info("template created",
		zap.String("templateId", t.ID),
		zap.String("eventType", t.EventType),
		zap.String("channel", t.Channel.String()),
	)
	return t, nil
}

func (s *TemplateService) Update(ctx context.Context, t *domain.Template) (*domain.Template, error) {
	if t == nil {
		return nil, fmt.Errorf("%w: template is required", domain.ErrValidation)
	}
	if strings.TrimSpace(t.ID) == "" {
		return nil, fmt.Errorf("%w: template id is required", domain.ErrValidation)
	}

	t.EventType = domain.NormalizeEventType(t.EventType)
	if err := t.Validate(); err != nil {
		return nil, err
	}

	if err := s.templates.Update(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

func (s *TemplateService) GetByID(ctx context.Context, id string) (*domain.Template, error) {
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("%w: template id is required", domain.ErrValidation)
	}
	return s.templates.GetByID(ctx, strings.TrimSpace(id))
}

func (s *TemplateService) List(ctx context.Context, params repository.TemplateListParams) ([]domain.Template, error) {
	return s.templates.List(ctx, params)
}
