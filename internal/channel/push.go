package channel

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const defaultPushTimeout = 10 * time.Second

// FCM result error codes that indicate a dead token; the recipient is gone and
// retrying the same token can never succeed.
var permanentTokenErrors = map[string]bool{
	"InvalidRegistration": true,
	"NotRegistered":       true,
	"MismatchSenderId":    true,
	"MissingRegistration": true,
	"InvalidPackageName":  true,
}

type fcmRequest struct {
	To           string          `json:"to"`
	Notification fcmNotification `json:"notification"`
}

type fcmNotification struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

type fcmResponse struct {
	Success int `json:"success"`
	Failure int `json:"failure"`
	Results []struct {
		MessageID string `json:"message_id"`
		Error     string `json:"error"`
	} `json:"results"`
}

// FCMPushChannel sends push notifications through the FCM HTTP endpoint.
type FCMPushChannel struct {
	client    *resty.Client
	endpoint  string
	serverKey string
}

func NewFCMPushChannel(endpoint, serverKey string) (*FCMPushChannel, error) {
	client := resty.New()
	client.SetTimeout(defaultPushTimeout)
	client.SetRetryCount(0)

	return NewFCMPushChannelWithClient(endpoint, serverKey, client)
}

func NewFCMPushChannelWithClient(endpoint, serverKey string, client *resty.Client) (*FCMPushChannel, error) {
	trimmedEndpoint := strings.TrimSpace(endpoint)
	if trimmedEndpoint == "" {
		return nil, fmt.Errorf("fcm endpoint is required")
	}
	if _, err := url.ParseRequestURI(trimmedEndpoint); err != nil {
		return nil, fmt.Errorf("invalid fcm endpoint: %w", err)
	}
	if strings.TrimSpace(serverKey) == "" {
		return nil, fmt.Errorf("fcm server key is required")
	}
	if client == nil {
		return nil, fmt.Errorf("resty client is required")
	}

	if client.GetClient().Timeout == 0 {
		client.SetTimeout(defaultPushTimeout)
	}
	client.SetRetryCount(0)

	return &FCMPushChannel{
		client:    client,
		endpoint:  trimmedEndpoint,
		serverKey: serverKey,
	}, nil
}

func (p *FCMPushChannel) Send(ctx context.Context, token, title, body string) error {
	if p == nil || p.client == nil {
		return fmt.Errorf("push channel is not initialized")
	}
	if strings.TrimSpace(token) == "" {
		return &SendError{Message: "push token is empty", Transient: false}
	}

	var parsed fcmResponse
	response, err := p.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetHeader("Authorization", "key="+p.serverKey).
		SetBody(fcmRequest{
			To:           token,
			Notification: fcmNotification{Title: title, Body: body},
		}).
		SetResult(&parsed).
		Post(p.endpoint)
	if err != nil {
		return &SendError{
			Message:   "fcm request failed",
			Transient: !errors.Is(err, context.Canceled),
			Cause:     err,
		}
	}

	statusCode := response.StatusCode()
	if statusCode < http.StatusOK || statusCode >= http.StatusMultipleChoices {
		return &SendError{
			StatusCode: statusCode,
			Message:    fmt.Sprintf("fcm returned status %d", statusCode),
			Transient:  isTransientHTTPStatus(statusCode),
		}
	}

	if parsed.Failure > 0 && len(parsed.Results) > 0 {
		resultErr := parsed.Results[0].Error
		return &SendError{
			StatusCode: statusCode,
			Message:    fmt.Sprintf("fcm rejected token: %s", resultErr),
			Transient:  !permanentTokenErrors[resultErr],
		}
	}

	return nil
}

func isTransientHTTPStatus(statusCode int) bool {
	return statusCode == http.StatusTooManyRequests || (statusCode >= http.StatusInternalServerError && statusCode <= 599)
}
