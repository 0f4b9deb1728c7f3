package channel

import (
	"context"
	"fmt"
	"time"
)

// socketPusher is the slice of the realtime hub the channel needs.
type socketPusher interface {
	Push(ctx context.Context, userID string, payload any) (bool, error)
}

// realtimePayload is the JSON frame written to the user's sockets.
type realtimePayload struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Body   string `json:"body"`
	SentAt string `json:"sent_at"`
}

// HubRealtimeChannel delivers through the websocket hub, which writes local
// connections directly and relays the frame to peer instances otherwise. The
// dispatch worker only routes here after the connection registry reported the
// user as connected, so a false push result means the socket died in between
// and is reported as ErrNotConnected.
type HubRealtimeChannel struct {
	hub socketPusher
	now func() time.Time
}

func NewHubRealtimeChannel(hub socketPusher) (*HubRealtimeChannel, error) {
	if hub == nil {
		return nil, fmt.Errorf("hub is required")
	}
	return &HubRealtimeChannel{hub: hub, now: time.Now}, nil
}

func (c *HubRealtimeChannel) Send(ctx context.Context, userID, title, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	delivered, err := c.hub.Push(ctx, userID, realtimePayload{
		Type:   "notification",
		Title:  title,
		Body:   body,
		SentAt: c.now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return &SendError{Message: "realtime push failed", Transient: false, Cause: err}
	}
	if !delivered {
		return ErrNotConnected
	}
	return nil
}
