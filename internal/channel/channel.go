package channel

import (
	"context"
	"errors"

	"github.com/calerio/duetrack/internal/domain"
)

// ErrDisabled marks a channel that is switched off in configuration. The
// dispatcher skips the channel without recording an attempt.
var ErrDisabled = errors.New("channel disabled")

// Message is the rendered input for one channel delivery.
type Message struct {
	Rule       domain.AlertRule
	Expiration domain.Expiration
	Recipient  *domain.User
	Priority   *domain.Priority
	Sector     *domain.Sector
	DaysUntil  int
}

// Sender is the outbound delivery port for one channel. Implementations
// must be safe for concurrent use.
type Sender interface {
	Channel() domain.Channel
	Send(ctx context.Context, msg Message) error
}
