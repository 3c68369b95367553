package domain

import (
	"fmt"
	"strings"
	"time"
)

// Channel represents a reminder delivery medium.
type Channel string

const (
	ChannelEmail   Channel = "EMAIL"
	ChannelPush    Channel = "PUSH"
	ChannelDesktop Channel = "DESKTOP"
)

func (c Channel) String() string { return string(c) }

func (c Channel) IsValid() bool {
	switch c {
	case ChannelEmail, ChannelPush, ChannelDesktop:
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

// Defaults for the rule auto-created with every expiration.
const (
	DefaultOffsetDays = 30
	DefaultMaxFires   = 3
)

// AlertRule is a reminder policy attached to one expiration. A rule fires
// when the parent's remaining days equal OffsetDays; FiredCount never
// exceeds MaxFires.
type AlertRule struct {
	ID           string
	ExpirationID string
	OffsetDays   int
	FiredCount   int
	MaxFires     int
	Email        bool
	Push         bool
	Desktop      bool
	Active       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// DefaultRule returns the rule created alongside a new expiration: 30 days
// before due, at most 3 fires, all channels enabled.
func DefaultRule(expirationID string) AlertRule {
	return AlertRule{
		ExpirationID: expirationID,
		OffsetDays:   DefaultOffsetDays,
		MaxFires:     DefaultMaxFires,
		Email:        true,
		Push:         true,
		Desktop:      true,
		Active:       true,
	}
}

func (r *AlertRule) Validate() error {
	if strings.TrimSpace(r.ExpirationID) == "" {
		return fmt.Errorf("%w: expiration id is required", ErrValidation)
	}
	if r.OffsetDays < 0 {
		return fmt.Errorf("%w: offset days must be non-negative", ErrValidation)
	}
	if r.MaxFires <= 0 {
		return fmt.Errorf("%w: max fires must be positive", ErrValidation)
	}
	if r.FiredCount < 0 || r.FiredCount > r.MaxFires {
		return fmt.Errorf("%w: fired count %d outside [0,%d]", ErrValidation, r.FiredCount, r.MaxFires)
	}
	return nil
}

// Exhausted reports whether the fire budget is spent. An exhausted rule stays
// dormant until manually reset.
func (r *AlertRule) Exhausted() bool {
	return r.FiredCount >= r.MaxFires
}

// EnabledChannels returns the channels this rule fans out to, in dispatch
// order.
func (r *AlertRule) EnabledChannels() []Channel {
	channels := make([]Channel, 0, 3)
	if r.Email {
		channels = append(channels, ChannelEmail)
	}
	if r.Push {
		channels = append(channels, ChannelPush)
	}
	if r.Desktop {
		channels = append(channels, ChannelDesktop)
	}
	return channels
}
