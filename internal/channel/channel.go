// Package channel holds the outbound delivery ports consumed by the dispatch
// core and their transport implementations. All sends are bounded-latency
// calls: the caller supplies a context with a deadline and a deadline overrun
// classifies as a transient failure.
package channel

import "context"

// RealtimeChannel delivers to a live socket connection. Send returns
// ErrNotConnected when the user has no active connection; the check itself is
// non-blocking and never retried.
type RealtimeChannel interface {
	Send(ctx context.Context, userID, title, body string) error
}

// PushChannel delivers to a mobile/web push token.
type PushChannel interface {
	Send(ctx context.Context, token, title, body string) error
}

// EmailChannel delivers a rendered HTML email.
type EmailChannel interface {
	Send(ctx context.Context, address, subject, htmlBody string) error
}
