package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/easypark/notification-service/internal/domain"
)

type PreferenceRepository interface {
	// GetByUserID returns domain.ErrNotFound when no record exists; the
	// resolver falls back to the default channel set in that case.
	GetByUserID(ctx context.Context, userID string) (*domain.Preference, error)
	Upsert(ctx context.Context, p *domain.Preference) error
}

type GormPreferenceRepo struct {
	db *gorm.DB
}

func NewGormPreferenceRepo(db *gorm.DB) *GormPreferenceRepo {
	return &GormPreferenceRepo{db: db}
}

func (r *GormPreferenceRepo) GetByUserID(ctx context.Context, userID string) (*domain.Preference, error) {
	var model PreferenceModel
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return preferenceModelToDomain(&model), nil
}

func (r *GormPreferenceRepo) Upsert(ctx context.Context, p *domain.Preference) error {
	if p == nil {
		return domain.ErrValidation
	}

	model := preferenceModelFromDomain(p)
	if model.ID == "" {
		model.ID = uuid.NewString()
	}

	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"realtime_enabled",
				"push_enabled",
				"email_enabled",
				"push_token",
				"email_address",
				"event_overrides",
				"updated_at",
			}),
		}).
		Create(model).Error
	if err != nil {
		return err
	}

	*p = *preferenceModelToDomain(model)
	return nil
}
