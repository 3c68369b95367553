package channel

import (
	"context"

	"github.com/calerio/duetrack/internal/domain"
)

// DesktopSender acknowledges desktop notifications. Rendering happens on the
// client that polls the attempt ledger; the server only records the intent.
type DesktopSender struct {
	enabled bool
}

func NewDesktopSender(enabled bool) *DesktopSender {
	return &DesktopSender{enabled: enabled}
}

func (s *DesktopSender) Channel() domain.Channel { return domain.ChannelDesktop }

func (s *DesktopSender) Send(_ context.Context, _ Message) error {
	if !s.enabled {
		return ErrDisabled
	}
	return nil
}
