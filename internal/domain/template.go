package domain

import (
	"fmt"
	"strings"
	"time"
)

// Template is the stored content pattern for one (event type, channel) pair.
// SubjectPattern serves as the email subject and the push/realtime title.
type Template struct {
	ID             string
	EventType      string
	Channel        Channel
	SubjectPattern string
	BodyPattern    string
	Active         bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (t *Template) Validate() error {
	if strings.TrimSpace(t.EventType) == "" {
		return fmt.Errorf("%w: event type is required", ErrValidation)
	}
	if !t.Channel.IsValid() {
		return fmt.Errorf("%w: invalid channel %q", ErrValidation, t.Channel)
	}
	if strings.TrimSpace(t.BodyPattern) == "" {
		return fmt.Errorf("%w: body pattern is required", ErrValidation)
	}
	return nil
}
