package ticker

import (
	"context"
	"fmt"
	"time"
)

// Periodically runs task once right away and then every interval, until ctx is
// done or task fails.
func Periodically(ctx context.Context, interval time.Duration, task func(context.Context) error) error {
	if err := task(ctx); err != nil {
		return fmt.Errorf("periodic task failed: %w", err)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := task(ctx); err != nil {
				return fmt.Errorf("periodic task failed: %w", err)
			}
		}
	}
}
