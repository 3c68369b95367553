package service

import (
	"context"
	"time"

	"go.uber.org/zap"
)

const defaultAlertScanInterval = 15 * time.Minute

// AlertProcessor is the scheduler entry point the scanner invokes.
// Implemented by Dispatcher.
type AlertProcessor interface {
	ProcessDueAlerts(ctx context.Context, asOf time.Time) (int, error)
}

// AlertScanner periodically triggers a due-alert dispatch pass. The exact
// point in time of each pass is what determines which rules match, so the
// interval should divide a day comfortably.
type AlertScanner struct {
	processor AlertProcessor
	interval  time.Duration
	logger    *zap.Logger
	now       func() time.Time
}

func NewAlertScanner(processor AlertProcessor, interval time.Duration, logger *zap.Logger) (*AlertScanner, error) {
	if interval <= 0 {
		interval = defaultAlertScanInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &AlertScanner{
		processor: processor,
		interval:  interval,
		logger:    logger,
		now:       time.Now,
	}, nil
}

// WithNow overrides the clock. Test hook.
func (s *AlertScanner) WithNow(now func() time.Time) *AlertScanner {
	if now != nil {
		s.now = now
	}
	return s
}

func (s *AlertScanner) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	if err := s.scan(ctx); err != nil && ctx.Err() == nil {
		s.logger.Error("initial alert scan failed", zap.Error(err))
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := s.scan(ctx); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				s.logger.Error("alert scan failed", zap.Error(err))
			}
		}
	}
}

func (s *AlertScanner) scan(ctx context.Context) error {
	succeeded, err := s.processor.ProcessDueAlerts(ctx, s.now())
	if err != nil {
		return err
	}
	if succeeded > 0 {
		s.logger.Info("alert scan dispatched rules", zap.Int("succeeded", succeeded))
	}
	return nil
}
