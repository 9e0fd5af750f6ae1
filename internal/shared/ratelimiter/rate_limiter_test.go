package ratelimiter

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimiter_AllowsUpToLimit(t *testing.T) {
	rl := NewRateLimiter(3, time.Hour)

	for i := 0; i < 3; i++ {
		require.NoError(t, rl.Wait(context.Background()))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := rl.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRateLimiter_ResetsAfterInterval(t *testing.T) {
	rl := NewRateLimiter(1, 30*time.Millisecond)

	require.NoError(t, rl.Wait(context.Background()))
	start := time.Now()
	require.NoError(t, rl.Wait(context.Background()))
	assert.GreaterOrEqual(t, time.Since(start), 10*time.Millisecond)
}

func TestRateLimiter_Unlimited(t *testing.T) {
	var nilLimiter *RateLimiter
	assert.NoError(t, nilLimiter.Wait(context.Background()))
	assert.NoError(t, NewRateLimiter(0, time.Second).Wait(context.Background()))
}

func TestRateLimiter_Concurrent(t *testing.T) {
	rl := NewRateLimiter(10, time.Hour)

	var wg sync.WaitGroup
	errs := make(chan error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- rl.Wait(context.Background())
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, 10, rl.count)
}
