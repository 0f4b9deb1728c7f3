package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/easypark/notification-service/internal/domain"
	"github.com/easypark/notification-service/internal/render"
	"github.com/easypark/notification-service/internal/repository"
)

// TemplateResolver loads the active template for an (event type, channel) pair
// and renders it with the event data. Rendering is pure: the same template and
// data always produce the same output.
type TemplateResolver struct {
	templates repository.TemplateRepository
	logger    *zap.Logger
}

func NewTemplateResolver(
	templates repository.TemplateRepository,
	logger *zap.Logger,
) (*TemplateResolver, error) {
	if templates == nil {
		return nil, fmt.Errorf("template repository is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &TemplateResolver{
		templates: templates,
		logger:    logger,
	}, nil
}

// Render resolves and renders both the subject and body patterns. It returns
// domain.ErrTemplateNotFound when no active template exists and
// domain.ErrMissingVariable when the data lacks a referenced placeholder;
// both classify as permanent failures for the requesting channel.
func (r *TemplateResolver) Render(
	ctx context.Context,
	eventType string,
	ch domain.Channel,
	data map[string]any,
) (domain.RenderedContent, error) {
	tmpl, err := r.templates.GetActive(ctx, eventType, ch)
	if err != nil {
		return domain.RenderedContent{}, err
	}

	subject, err := render.Render(tmpl.SubjectPattern, data)
	if err != nil {
		return domain.RenderedContent{}, fmt.Errorf("subject for %s/%s: %w", eventType, ch, err)
	}
	body, err := render.Render(tmpl.BodyPattern, data)
	if err != nil {
		return domain.RenderedContent{}, fmt.Errorf("body for %s/%s: %w", eventType, ch, err)
	}

	return domain.RenderedContent{Subject: subject, Body: body}, nil
}
