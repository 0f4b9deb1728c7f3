package channel

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-resty/resty/v2"
)

func newPushChannel(t *testing.T, server *httptest.Server) *FCMPushChannel {
	t.Helper()

	client := resty.NewWithClient(server.Client())
	ch, err := NewFCMPushChannelWithClient(server.URL, "test-key", client)
	if err != nil {
		t.Fatalf("NewFCMPushChannelWithClient() error = %v", err)
	}
	return ch
}

func TestFCMPushChannelSend(t *testing.T) {
	t.Parallel()

	var captured fcmRequest
	var authHeader string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_ = json.NewEncoder(w).Encode(fcmResponse{Success: 1})
	}))
	defer server.Close()

	ch := newPushChannel(t, server)
	if err := ch.Send(context.Background(), "token-1", "Reservation", "Your spot is ready."); err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	if authHeader != "key=test-key" {
		t.Fatalf("Authorization header = %q", authHeader)
	}
	if captured.To != "token-1" {
		t.Fatalf("request To = %q", captured.To)
	}
	if captured.Notification.Title != "Reservation" || captured.Notification.Body != "Your spot is ready." {
		t.Fatalf("request notification = %+v", captured.Notification)
	}
}

func TestFCMPushChannelDeadTokenIsPermanent(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(fcmResponse{
			Failure: 1,
			Results: []struct {
				MessageID string `json:"message_id"`
				Error     string `json:"error"`
			}{{Error: "NotRegistered"}},
		})
	}))
	defer server.Close()

	err := newPushChannel(t, server).Send(context.Background(), "dead-token", "t", "b")
	if err == nil {
		t.Fatal("expected error for rejected token")
	}
	if IsTransient(err) {
		t.Fatalf("dead token should be permanent, got %v", err)
	}
}

func TestFCMPushChannelServerErrorIsTransient(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	err := newPushChannel(t, server).Send(context.Background(), "token-1", "t", "b")
	if err == nil {
		t.Fatal("expected error for 503 response")
	}
	if !IsTransient(err) {
		t.Fatalf("503 should be transient, got %v", err)
	}

	var sendErr *SendError
	if !errors.As(err, &sendErr) || sendErr.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("error = %v, want SendError with status 503", err)
	}
}

func TestFCMPushChannelClientErrorIsPermanent(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	err := newPushChannel(t, server).Send(context.Background(), "token-1", "t", "b")
	if err == nil {
		t.Fatal("expected error for 401 response")
	}
	if IsTransient(err) {
		t.Fatalf("401 should be permanent, got %v", err)
	}
}

func TestFCMPushChannelEmptyToken(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request should be sent for an empty token")
	}))
	defer server.Close()

	err := newPushChannel(t, server).Send(context.Background(), "  ", "t", "b")
	if err == nil || IsTransient(err) {
		t.Fatalf("empty token should fail permanently, got %v", err)
	}
}
