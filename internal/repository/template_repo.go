package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/easypark/notification-service/internal/domain"
)

type TemplateListParams struct {
	EventType *string
	Channel   *domain.Channel
	Active    *bool
}

type TemplateRepository interface {
	Create(ctx context.Context, t *domain.Template) error
	Update(ctx context.Context, t *domain.Template) error
	GetByID(ctx context.Context, id string) (*domain.Template, error)
	// GetActive returns domain.ErrTemplateNotFound when no active template
	// exists for the pair.
	GetActive(ctx context.Context, eventType string, channel domain.Channel) (*domain.Template, error)
	List(ctx context.Context, params TemplateListParams) ([]domain.Template, error)
}

type GormTemplateRepo struct {
	db *gorm.DB
}

func NewGormTemplateRepo(db *gorm.DB) *GormTemplateRepo {
	return &GormTemplateRepo{db: db}
}

func (r *GormTemplateRepo) Create(ctx context.Context, t *domain.Template) error {
	model := templateModelFromDomain(t)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return domain.ErrConflict
		}
		return err
	}
	if t != nil {
		*t = *templateModelToDomain(model)
	}
	return nil
}

func (r *GormTemplateRepo) Update(ctx context.Context, t *domain.Template) error {
	if t == nil {
		return domain.ErrValidation
	}

	result := r.db.WithContext(ctx).
		Model(&TemplateModel{}).
		Where("id = ?", t.ID).
		Updates(map[string]any{
			"subject_pattern": t.SubjectPattern,
			"body_pattern":    t.BodyPattern,
			"active":          t.Active,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *GormTemplateRepo) GetByID(ctx context.Context, id string) (*domain.Template, error) {
	var model TemplateModel
	err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return templateModelToDomain(&model), nil
}

func (r *GormTemplateRepo) GetActive(ctx context.Context, eventType string, channel domain.Channel) (*domain.Template, error) {
	var model TemplateModel
	err := r.db.WithContext(ctx).
		Where("event_type = ? AND channel = ? AND active = ?", eventType, channel, true).
		First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrTemplateNotFound
	}
	if err != nil {
		return nil, err
	}
	return templateModelToDomain(&model), nil
}

func (r *GormTemplateRepo) List(ctx context.Context, params TemplateListParams) ([]domain.Template, error) {
	query := r.db.WithContext(ctx).Model(&TemplateModel{})

	if params.EventType != nil {
		query = query.Where("event_type = ?", *params.EventType)
	}
	if params.Channel != nil {
		query = query.Where("channel = ?", *params.Channel)
	}
	if params.Active != nil {
		query = query.Where("active = ?", *params.Active)
	}

	var models []TemplateModel
	if err := query.Order("event_type ASC, channel ASC").Find(&models).Error; err != nil {
		return nil, err
	}

	templates := make([]domain.Template, 0, len(models))
	for i := range models {
		templates = append(templates, *templateModelToDomain(&models[i]))
	}

	return templates, nil
}
