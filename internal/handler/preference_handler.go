package handler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/easypark/notification-service/internal/domain"
)

type PreferenceService interface {
	Get(ctx context.Context, userID string) (*domain.Preference, error)
	Put(ctx context.Context, pref *domain.Preference) (*domain.Preference, error)
}

type PreferenceHandler struct {
	service PreferenceService
}

func NewPreferenceHandler(service PreferenceService) (*PreferenceHandler, error) {
	if service == nil {
		return nil, fmt.Errorf("preference service is required")
	}
	return &PreferenceHandler{service: service}, nil
}

func RegisterPreferenceRoutes(router fiber.Router, service PreferenceService) error {
	h, err := NewPreferenceHandler(service)
	if err != nil {
		return err
	}

	v1 := router.Group("/v1")
	v1.Get("/users/:userId/preferences", h.GetPreferences)
	v1.Put("/users/:userId/preferences", h.PutPreferences)

	return nil
}

type preferenceRequest struct {
	RealtimeEnabled *bool                      `json:"realtimeEnabled,omitempty"`
	PushEnabled     *bool                      `json:"pushEnabled,omitempty"`
	EmailEnabled    *bool                      `json:"emailEnabled,omitempty"`
	PushToken       string                     `json:"pushToken,omitempty"`
	EmailAddress    string                     `json:"emailAddress,omitempty"`
	EventOverrides  map[string]map[string]bool `json:"eventOverrides,omitempty"`
}

type preferenceResponse struct {
	UserID          string                     `json:"userId"`
	RealtimeEnabled bool                       `json:"realtimeEnabled"`
	PushEnabled     bool                       `json:"pushEnabled"`
	EmailEnabled    bool                       `json:"emailEnabled"`
	PushToken       string                     `json:"pushToken,omitempty"`
	EmailAddress    string                     `json:"emailAddress,omitempty"`
	EventOverrides  map[string]map[string]bool `json:"eventOverrides,omitempty"`
	CreatedAt       time.Time                  `json:"createdAt"`
	UpdatedAt       time.Time                  `json:"updatedAt"`
}

func (h *PreferenceHandler) GetPreferences(c *fiber.Ctx) error {
	pref, err := h.service.Get(c.Context(), strings.TrimSpace(c.Params("userId")))
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(toPreferenceResponse(pref))
}

func (h *PreferenceHandler) PutPreferences(c *fiber.Ctx) error {
	var req preferenceRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	pref, err := requestToPreference(strings.TrimSpace(c.Params("userId")), req)
	if err != nil {
		return toHTTPError(err)
	}

	saved, err := h.service.Put(c.Context(), pref)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(toPreferenceResponse(saved))
}

// requestToPreference applies the all-enabled default for omitted flags so a
// partial PUT never silently disables a channel.
func requestToPreference(userID string, req preferenceRequest) (*domain.Preference, error) {
	pref := &domain.Preference{
		UserID:          userID,
		RealtimeEnabled: true,
		PushEnabled:     true,
		EmailEnabled:    true,
		PushToken:       strings.TrimSpace(req.PushToken),
		EmailAddress:    strings.TrimSpace(req.EmailAddress),
	}

	if req.RealtimeEnabled != nil {
		pref.RealtimeEnabled = *req.RealtimeEnabled
	}
	if req.PushEnabled != nil {
		pref.PushEnabled = *req.PushEnabled
	}
	if req.EmailEnabled != nil {
		pref.EmailEnabled = *req.EmailEnabled
	}

	if len(req.EventOverrides) > 0 {
		overrides := make(domain.EventOverrides, len(req.EventOverrides))
		for eventType, flags := range req.EventOverrides {
			channelFlags := make(domain.ChannelFlags, len(flags))
			for rawChannel, enabled := range flags {
				ch, err := domain.ParseChannelFromString(rawChannel)
				if err != nil {
					return nil, err
				}
				channelFlags[ch] = enabled
			}
			overrides[eventType] = channelFlags
		}
		pref.EventOverrides = overrides
	}

	return pref, nil
}

func toPreferenceResponse(p *domain.Preference) preferenceResponse {
	if p == nil {
		return preferenceResponse{}
	}

	var overrides map[string]map[string]bool
	if len(p.EventOverrides) > 0 {
		overrides = make(map[string]map[string]bool, len(p.EventOverrides))
		for eventType, flags := range p.EventOverrides {
			item := make(map[string]bool, len(flags))
			for ch, enabled := range flags {
				item[ch.String()] = enabled
			}
			overrides[eventType] = item
		}
	}

	return preferenceResponse{
		UserID:          p.UserID,
		RealtimeEnabled: p.RealtimeEnabled,
		PushEnabled:     p.PushEnabled,
		EmailEnabled:    p.EmailEnabled,
		PushToken:       p.PushToken,
		EmailAddress:    p.EmailAddress,
		EventOverrides:  overrides,
		CreatedAt:       p.CreatedAt,
		UpdatedAt:       p.UpdatedAt,
	}
}
