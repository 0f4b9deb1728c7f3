package domain

import (
	"fmt"
	"strings"
	"time"
)

// Status represents the lifecycle state of a notification aggregate.
type Status string

const (
	StatusPending    Status = "PENDING"
	StatusAttempting Status = "ATTEMPTING"
	StatusDelivered  Status = "DELIVERED"
	StatusExhausted  Status = "EXHAUSTED"
)

func (s Status) String() string { return string(s) }

func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusAttempting, StatusDelivered, StatusExhausted:
		return true
	}
	return false
}

// IsTerminal reports whether the status can never change again.
func (s Status) IsTerminal() bool {
	return s == StatusDelivered || s == StatusExhausted
}

// CanTransition reports whether the monotonic lifecycle allows moving to next.
// PENDING -> ATTEMPTING -> {DELIVERED, EXHAUSTED}; terminal states are final.
func (s Status) CanTransition(next Status) bool {
	switch s {
	case StatusPending:
		return next == StatusAttempting
	case StatusAttempting:
		return next == StatusDelivered || next == StatusExhausted
	}
	return false
}

func ParseStatusFromString(s string) (Status, error) {
	st := Status(strings.ToUpper(strings.TrimSpace(s)))
	if !st.IsValid() {
		return "", fmt.Errorf("%w: invalid status %q", ErrValidation, s)
	}
	return st, nil
}

// Channel represents a delivery mechanism.
type Channel string

const (
	ChannelRealtime Channel = "REALTIME"
	ChannelPush     Channel = "PUSH"
	ChannelEmail    Channel = "EMAIL"
)

func (c Channel) String() string { return string(c) }

func (c Channel) IsValid() bool {
	switch c {
	case ChannelRealtime, ChannelPush, ChannelEmail:
		return true
	}
	return false
}

func ParseChannelFromString(s string) (Channel, error) {
	ch := Channel(strings.ToUpper(strings.TrimSpace(s)))
	if !ch.IsValid() {
		return "", fmt.Errorf("%w: invalid channel %q", ErrValidation, s)
	}
	return ch, nil
}

// BaselineChannelOrder returns the fixed fallback priority: realtime, push, email.
// Preference resolution filters this order but never reorders it.
func BaselineChannelOrder() []Channel {
	return []Channel{ChannelRealtime, ChannelPush, ChannelEmail}
}

// Priority represents the message priority level.
type Priority string

const (
	PriorityLow    Priority = "LOW"
	PriorityNormal Priority = "NORMAL"
	PriorityHigh   Priority = "HIGH"
	PriorityUrgent Priority = "URGENT"
)

func (p Priority) String() string { return string(p) }

func (p Priority) IsValid() bool {
	switch p {
	case PriorityLow, PriorityNormal, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

func ParsePriorityFromString(s string) (Priority, error) {
	pr := Priority(strings.ToUpper(strings.TrimSpace(s)))
	if !pr.IsValid() {
		return "", fmt.Errorf("%w: invalid priority %q", ErrValidation, s)
	}
	return pr, nil
}

// Outcome classifies a single delivery attempt.
type Outcome string

const (
	OutcomeSuccess          Outcome = "SUCCESS"
	OutcomeTransientFailure Outcome = "TRANSIENT_FAILURE"
	OutcomePermanentFailure Outcome = "PERMANENT_FAILURE"
)

func (o Outcome) String() string { return string(o) }

func (o Outcome) IsValid() bool {
	switch o {
	case OutcomeSuccess, OutcomeTransientFailure, OutcomePermanentFailure:
		return true
	}
	return false
}

// RenderedContent holds the channel-specific text produced from a template.
// Subject doubles as the push/realtime title.
type RenderedContent struct {
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// DeliveryAttempt records one send on one channel.
type DeliveryAttempt struct {
	ID             string
	NotificationID string
	Channel        Channel
	AttemptNumber  int
	Outcome        Outcome
	Error          *string
	CreatedAt      time.Time
}

// Notification is the dispatch aggregate: one originating event, its fixed
// channel order, rendered content per channel, and delivery progress.
type Notification struct {
	ID            string
	CorrelationID string
	UserID        string
	EventType     string
	Data          map[string]any
	Priority      Priority

	// Contact targets snapshotted at creation from the event and preferences.
	EmailAddress string
	PushToken    string

	// ChannelOrder is fixed at creation and never re-evaluated mid-flight.
	// ChannelIndex points at the channel currently being attempted and
	// ChannelAttempts counts sends on that channel (resets on fallthrough).
	ChannelOrder    []Channel
	ChannelIndex    int
	ChannelAttempts int

	Rendered       map[Channel]RenderedContent
	FailureReasons map[Channel]string

	Status      Status
	NextRetryAt *time.Time
	DeliveredAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// CurrentChannel returns the channel under attempt, or false when the order is
// exhausted.
func (n *Notification) CurrentChannel() (Channel, bool) {
	if n.ChannelIndex < 0 || n.ChannelIndex >= len(n.ChannelOrder) {
		return "", false
	}
	return n.ChannelOrder[n.ChannelIndex], true
}

// AdvanceChannel moves to the next channel in the fixed order and resets the
// per-channel attempt counter.
func (n *Notification) AdvanceChannel() {
	n.ChannelIndex++
	n.ChannelAttempts = 0
}

// RecordFailureReason keeps the last failure per channel for exhaustion reporting.
func (n *Notification) RecordFailureReason(channel Channel, reason string) {
	if n.FailureReasons == nil {
		n.FailureReasons = make(map[Channel]string)
	}
	n.FailureReasons[channel] = reason
}

func (n *Notification) Validate() error {
	if strings.TrimSpace(n.CorrelationID) == "" {
		return fmt.Errorf("%w: correlation id is required", ErrValidation)
	}
	if strings.TrimSpace(n.UserID) == "" {
		return fmt.Errorf("%w: user id is required", ErrValidation)
	}
	if strings.TrimSpace(n.EventType) == "" {
		return fmt.Errorf("%w: event type is required", ErrValidation)
	}
	if !n.Priority.IsValid() {
		return fmt.Errorf("%w: invalid priority %q", ErrValidation, n.Priority)
	}
	if !n.Status.IsValid() {
		return fmt.Errorf("%w: invalid status %q", ErrValidation, n.Status)
	}
	for _, ch := range n.ChannelOrder {
		if !ch.IsValid() {
			return fmt.Errorf("%w: invalid channel %q in channel order", ErrValidation, ch)
		}
	}
	return nil
}
