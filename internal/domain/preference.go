package domain

import (
	"fmt"
	"strings"
	"time"
)

// ChannelFlags is a per-channel enabled map used by event-specific overrides.
type ChannelFlags map[Channel]bool

// EventOverrides maps an event type to its per-channel overrides. A channel
// absent from the map inherits the global flag for that channel.
type EventOverrides map[string]ChannelFlags

func (o EventOverrides) Validate() error {
	for eventType, flags := range o {
		if strings.TrimSpace(eventType) == "" {
			return fmt.Errorf("%w: override event type must not be empty", ErrValidation)
		}
		for ch := range flags {
			if !ch.IsValid() {
				return fmt.Errorf("%w: invalid channel %q in overrides for %q", ErrValidation, ch, eventType)
			}
		}
	}
	return nil
}

// Preference holds a user's channel opt-ins and contact targets. It is mutated
// through the preference API only; the dispatch core reads it as-is, so the
// override map is validated here at write time, never on the dispatch path.
type Preference struct {
	UserID          string
	RealtimeEnabled bool
	PushEnabled     bool
	EmailEnabled    bool
	PushToken       string
	EmailAddress    string
	EventOverrides  EventOverrides
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// ChannelEnabled resolves the effective opt-in for a channel and event type:
// the event-specific override wins over the global flag when present.
func (p *Preference) ChannelEnabled(channel Channel, eventType string) bool {
	if flags, ok := p.EventOverrides[eventType]; ok {
		if enabled, ok := flags[channel]; ok {
			return enabled
		}
	}
	switch channel {
	case ChannelRealtime:
		return p.RealtimeEnabled
	case ChannelPush:
		return p.PushEnabled
	case ChannelEmail:
		return p.EmailEnabled
	}
	return false
}

func (p *Preference) Validate() error {
	if strings.TrimSpace(p.UserID) == "" {
		return fmt.Errorf("%w: user id is required", ErrValidation)
	}
	return p.EventOverrides.Validate()
}
