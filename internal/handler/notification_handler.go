package handler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/easypark/notification-service/internal/domain"
	"github.com/easypark/notification-service/internal/repository"
	"github.com/easypark/notification-service/internal/service"
)

const (
	defaultPage     = 1
	defaultPageSize = 50
	maxPageSize     = 100
)

type DeliveryTracker interface {
	GetByID(ctx context.Context, id string) (*domain.Notification, error)
	FindByCorrelationID(ctx context.Context, correlationID string) (*domain.Notification, error)
	History(ctx context.Context, notificationID string) ([]domain.DeliveryAttempt, error)
	List(ctx context.Context, params repository.ListParams) ([]domain.Notification, int64, error)
}

type NotificationHandler struct {
	tracker DeliveryTracker
}

func NewNotificationHandler(tracker DeliveryTracker) (*NotificationHandler, error) {
	if tracker == nil {
		return nil, fmt.Errorf("delivery tracker is required")
	}
	return &NotificationHandler{tracker: tracker}, nil
}

func RegisterNotificationRoutes(router fiber.Router, tracker DeliveryTracker) error {
	h, err := NewNotificationHandler(tracker)
	if err != nil {
		return err
	}

	v1 := router.Group("/v1")
	v1.Get("/notifications", h.ListNotifications)
	v1.Get("/notifications/correlation/:correlationId", h.GetByCorrelationID)
	v1.Get("/notifications/:id", h.GetNotification)
	v1.Get("/notifications/:id/attempts", h.GetAttempts)

	return nil
}

type notificationResponse struct {
	ID             string            `json:"id"`
	CorrelationID  string            `json:"correlationId"`
	UserID         string            `json:"userId"`
	EventType      string            `json:"eventType"`
	Priority       string            `json:"priority"`
	ChannelOrder   []string          `json:"channelOrder"`
	CurrentChannel *string           `json:"currentChannel,omitempty"`
	Status         string            `json:"status"`
	FailureReason  string            `json:"failureReason,omitempty"`
	FailureReasons map[string]string `json:"failureReasons,omitempty"`
	NextRetryAt    *time.Time        `json:"nextRetryAt,omitempty"`
	DeliveredAt    *time.Time        `json:"deliveredAt,omitempty"`
	CreatedAt      time.Time         `json:"createdAt"`
	UpdatedAt      time.Time         `json:"updatedAt"`
}

type attemptResponse struct {
	ID            string    `json:"id"`
	Channel       string    `json:"channel"`
	AttemptNumber int       `json:"attemptNumber"`
	Outcome       string    `json:"outcome"`
	Error         *string   `json:"error,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
}

type attemptsResponse struct {
	NotificationID string            `json:"notificationId"`
	Attempts       []attemptResponse `json:"attempts"`
}

type listNotificationsResponse struct {
	Data []notificationResponse `json:"data"`
	Meta listMeta               `json:"meta"`
}

type listMeta struct {
	Page     int   `json:"page"`
	PageSize int   `json:"pageSize"`
	Total    int64 `json:"total"`
}

func (h *NotificationHandler) GetNotification(c *fiber.Ctx) error {
	id := strings.TrimSpace(c.Params("id"))
	notification, err := h.tracker.GetByID(c.Context(), id)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(toNotificationResponse(notification))
}

func (h *NotificationHandler) GetByCorrelationID(c *fiber.Ctx) error {
	correlationID := strings.TrimSpace(c.Params("correlationId"))
	notification, err := h.tracker.FindByCorrelationID(c.Context(), correlationID)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(toNotificationResponse(notification))
}

func (h *NotificationHandler) GetAttempts(c *fiber.Ctx) error {
	id := strings.TrimSpace(c.Params("id"))
	attempts, err := h.tracker.History(c.Context(), id)
	if err != nil {
		return toHTTPError(err)
	}

	items := make([]attemptResponse, 0, len(attempts))
	for _, attempt := range attempts {
		items = append(items, attemptResponse{
			ID:            attempt.ID,
			Channel:       attempt.Channel.String(),
			AttemptNumber: attempt.AttemptNumber,
			Outcome:       attempt.Outcome.String(),
			Error:         attempt.Error,
			CreatedAt:     attempt.CreatedAt,
		})
	}

	return c.Status(fiber.StatusOK).JSON(attemptsResponse{
		NotificationID: id,
		Attempts:       items,
	})
}

func (h *NotificationHandler) ListNotifications(c *fiber.Ctx) error {
	params, err := parseListParams(c)
	if err != nil {
		return toHTTPError(err)
	}

	notifications, total, err := h.tracker.List(c.Context(), params)
	if err != nil {
		return toHTTPError(err)
	}

	data := make([]notificationResponse, 0, len(notifications))
	for i := range notifications {
		data = append(data, toNotificationResponse(&notifications[i]))
	}

	return c.Status(fiber.StatusOK).JSON(listNotificationsResponse{
		Data: data,
		Meta: listMeta{
			Page:     params.Page,
			PageSize: params.PageSize,
			Total:    total,
		},
	})
}

func parseListParams(c *fiber.Ctx) (repository.ListParams, error) {
	params := repository.ListParams{
		Page:     c.QueryInt("page", defaultPage),
		PageSize: c.QueryInt("pageSize", defaultPageSize),
	}

	if params.Page < 1 {
		return repository.ListParams{}, fmt.Errorf("%w: page must be >= 1", domain.ErrValidation)
	}
	if params.PageSize < 1 || params.PageSize > maxPageSize {
		return repository.ListParams{}, fmt.Errorf("%w: pageSize must be between 1 and %d", domain.ErrValidation, maxPageSize)
	}

	if rawUser := strings.TrimSpace(c.Query("userId")); rawUser != "" {
		params.UserID = &rawUser
	}

	if rawStatus := strings.TrimSpace(c.Query("status")); rawStatus != "" {
		status, err := domain.ParseStatusFromString(rawStatus)
		if err != nil {
			return repository.ListParams{}, err
		}
		params.Status = &status
	}

	if rawChannel := strings.TrimSpace(c.Query("channel")); rawChannel != "" {
		ch, err := domain.ParseChannelFromString(rawChannel)
		if err != nil {
			return repository.ListParams{}, err
		}
		params.Channel = &ch
	}

	from, err := parseRFC3339Query(c.Query("from"), "from")
	if err != nil {
		return repository.ListParams{}, err
	}
	to, err := parseRFC3339Query(c.Query("to"), "to")
	if err != nil {
		return repository.ListParams{}, err
	}
	params.From = from
	params.To = to

	return params, nil
}

func parseRFC3339Query(value string, field string) (*time.Time, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, nil
	}

	t, err := time.Parse(time.RFC3339, trimmed)
	if err != nil {
		return nil, fmt.Errorf("%w: %s must be RFC3339", domain.ErrValidation, field)
	}
	return &t, nil
}

func toNotificationResponse(n *domain.Notification) notificationResponse {
	if n == nil {
		return notificationResponse{}
	}

	order := make([]string, 0, len(n.ChannelOrder))
	for _, ch := range n.ChannelOrder {
		order = append(order, ch.String())
	}

	var current *string
	if ch, ok := n.CurrentChannel(); ok && !n.Status.IsTerminal() {
		value := ch.String()
		current = &value
	}

	var reasons map[string]string
	if len(n.FailureReasons) > 0 {
		reasons = make(map[string]string, len(n.FailureReasons))
		for ch, reason := range n.FailureReasons {
			reasons[ch.String()] = reason
		}
	}

	var failureReason string
	if n.Status == domain.StatusExhausted && len(n.ChannelOrder) == 0 {
		failureReason = service.ExhaustedNoChannelsReason
	}

	return notificationResponse{
		ID:             n.ID,
		CorrelationID:  n.CorrelationID,
		UserID:         n.UserID,
		EventType:      n.EventType,
		Priority:       n.Priority.String(),
		ChannelOrder:   order,
		CurrentChannel: current,
		Status:         n.Status.String(),
		FailureReason:  failureReason,
		FailureReasons: reasons,
		NextRetryAt:    n.NextRetryAt,
		DeliveredAt:    n.DeliveredAt,
		CreatedAt:      n.CreatedAt,
		UpdatedAt:      n.UpdatedAt,
	}
}

func toHTTPError(err error) error {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrTemplateNotFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrConflict):
		return fiber.NewError(fiber.StatusConflict, err.Error())
	default:
		return err
	}
}
