package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/calerio/duetrack/internal/service"
	goredis "github.com/redis/go-redis/v9"
)

const (
	markerKeyPrefix = "duetrack:reconcile:"
	markerTTL       = 48 * time.Hour
)

var _ service.RunMarker = (*RunMarker)(nil)

// RunMarker remembers the last day the reconciliation sweep ran, so process
// restarts within the same day skip a redundant full scan. Keys expire on
// their own; losing them only costs one extra sweep.
type RunMarker struct {
	client *goredis.Client
}

func NewRunMarker(client *goredis.Client) (*RunMarker, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	return &RunMarker{client: client}, nil
}

func (m *RunMarker) AlreadyRan(ctx context.Context, day string) (bool, error) {
	n, err := m.client.Exists(ctx, markerKeyPrefix+day).Result()
	if err != nil {
		return false, fmt.Errorf("failed to read reconciliation marker: %w", err)
	}
	return n > 0, nil
}

func (m *RunMarker) MarkRan(ctx context.Context, day string) error {
	if err := m.client.Set(ctx, markerKeyPrefix+day, "1", markerTTL).Err(); err != nil {
		return fmt.Errorf("failed to write reconciliation marker: %w", err)
	}
	return nil
}
