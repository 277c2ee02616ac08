package mptt

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProcessLockerExcludes(t *testing.T) {
	l := NewProcessLocker()
	ctx := context.Background()

	var mu sync.Mutex
	var inside, peak int

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := l.Lock(ctx, "categories")
			if !assert.NoError(t, err) {
				return
			}
			defer release()

			mu.Lock()
			inside++
			peak = max(peak, inside)
			mu.Unlock()

			time.Sleep(time.Millisecond)

			mu.Lock()
			inside--
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, peak)
}

func TestProcessLockerNamesAreIndependent(t *testing.T) {
	l := NewProcessLocker()
	ctx := context.Background()

	release, err := l.Lock(ctx, "a")
	require.NoError(t, err)
	defer release()

	ctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	other, err := l.Lock(ctx, "b")
	require.NoError(t, err)
	other()
}

func TestProcessLockerHonoursContext(t *testing.T) {
	l := NewProcessLocker()

	release, err := l.Lock(context.Background(), "categories")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = l.Lock(ctx, "categories")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	release()

	again, err := l.Lock(context.Background(), "categories")
	require.NoError(t, err)
	again()
}
