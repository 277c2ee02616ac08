package ticker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPeriodicallyRunsImmediately(t *testing.T) {
	ctx, cancel := context.WithCancel(t.Context())

	runs := 0
	err := Periodically(ctx, time.Hour, func(ctx context.Context) error {
		runs++
		cancel()
		return nil
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, runs)
}

func TestPeriodicallyStopsOnError(t *testing.T) {
	boom := errors.New("boom")

	runs := 0
	err := Periodically(t.Context(), time.Millisecond, func(ctx context.Context) error {
		runs++
		if runs == 3 {
			return boom
		}
		return nil
	})

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 3, runs)
}
