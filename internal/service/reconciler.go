package service

import (
	"context"
	"time"

	"github.com/calerio/duetrack/internal/observability"
	"go.uber.org/zap"
)

const defaultReconcileInterval = 1 * time.Hour

// StatusReconciler is the sweep entry point the job invokes. Implemented by
// ExpirationService.
type StatusReconciler interface {
	Reconcile(ctx context.Context, asOf time.Time) (int, error)
}

// RunMarker remembers that the sweep already ran on a given day, so restarts
// within the same day skip a redundant scan. Optional; correctness does not
// depend on it.
type RunMarker interface {
	AlreadyRan(ctx context.Context, day string) (bool, error)
	MarkRan(ctx context.Context, day string) error
}

// Reconciler periodically runs the status reconciliation sweep.
type Reconciler struct {
	reconciler StatusReconciler
	marker     RunMarker
	interval   time.Duration
	logger     *zap.Logger
	metrics    *observability.Metrics
	now        func() time.Time
}

func NewReconciler(
	reconciler StatusReconciler,
	marker RunMarker,
	interval time.Duration,
	logger *zap.Logger,
	metrics *observability.Metrics,
) (*Reconciler, error) {
	if interval <= 0 {
		interval = defaultReconcileInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Reconciler{
		reconciler: reconciler,
		marker:     marker,
		interval:   interval,
		logger:     logger,
		metrics:    metrics,
		now:        time.Now,
	}, nil
}

// WithNow overrides the clock. Test hook.
func (r *Reconciler) WithNow(now func() time.Time) *Reconciler {
	if now != nil {
		r.now = now
	}
	return r
}

func (r *Reconciler) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	if err := r.runOnce(ctx); err != nil && ctx.Err() == nil {
		r.logger.Error("initial reconciliation failed", zap.Error(err))
	}

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := r.runOnce(ctx); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				r.logger.Error("reconciliation failed", zap.Error(err))
			}
		}
	}
}

func (r *Reconciler) runOnce(ctx context.Context) error {
	asOf := r.now()
	day := asOf.UTC().Format(time.DateOnly)

	if r.marker != nil {
		ran, err := r.marker.AlreadyRan(ctx, day)
		if err != nil {
			// The marker is an efficiency aid only; sweep anyway.
			r.logger.Warn("reconciliation marker unavailable", zap.Error(err))
		} else if ran {
			r.logger.Debug("reconciliation already ran today", zap.String("day", day))
			return nil
		}
	}

	start := r.now()
	changed, err := r.reconciler.Reconcile(ctx, asOf)
	r.metrics.ObserveReconcileDuration(r.now().Sub(start))
	if err != nil {
		return err
	}

	if changed > 0 {
		r.logger.Info("reconciliation run finished",
			zap.String("day", day),
			zap.Int("transitions", changed),
		)
	}

	if r.marker != nil {
		if err := r.marker.MarkRan(ctx, day); err != nil {
			r.logger.Warn("failed to persist reconciliation marker", zap.Error(err))
		}
	}

	return nil
}
