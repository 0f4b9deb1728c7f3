package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/easypark/notification-service/internal/domain"
	"github.com/easypark/notification-service/internal/repository"
)

// PreferenceService manages user channel opt-ins. Override maps are validated
// on write so the dispatch path can trust stored records as-is.
type PreferenceService struct {
	preferences repository.PreferenceRepository
	logger      *zap.Logger
}

func NewPreferenceService(
	preferences repository.PreferenceRepository,
	logger *zap.Logger,
) (*PreferenceService, error) {
	if preferences == nil {
		return nil, fmt.Errorf("preference repository is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &PreferenceService{
		preferences: preferences,
		logger:      logger,
	}, nil
}

// Get returns the stored preference, or the implicit email-only default when
// the user never saved one.
func (s *PreferenceService) Get(ctx context.Context, userID string) (*domain.Preference, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, fmt.Errorf("%w: user id is required", domain.ErrValidation)
	}

	pref, err := s.preferences.GetByUserID(ctx, strings.TrimSpace(userID))
	if errors.Is(err, domain.ErrNotFound) {
		return defaultPreference(strings.TrimSpace(userID)), nil
	}
	return pref, err
}

// Put replaces the user's preference record.
func (s *PreferenceService) Put(ctx context.Context, pref *domain.Preference) (*domain.Preference, error) {
	if pref == nil {
		return nil, fmt.Errorf("%w: preference is required", domain.ErrValidation)
	}

	pref.UserID = strings.TrimSpace(pref.UserID)
	normalized := make(domain.EventOverrides, len(pref.EventOverrides))
	for eventType, flags := range pref.EventOverrides {
		normalized[domain.NormalizeEventType(eventType)] = flags
	}
	if len(normalized) > 0 {
		pref.EventOverrides = normalized
	}

	if err := pref.Validate(); err != nil {
		return nil, err
	}

	if err := s.preferences.Upsert(ctx, pref); err != nil {
		return nil, err
	}

	s.logger.Info("preferences saved", zap.String("userId", pref.UserID))
	return pref, nil
}
