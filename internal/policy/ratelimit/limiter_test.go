package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLimiter_WaitSpacesSameHost(t *testing.T) {
	l := New(Config{Interval: 50 * time.Millisecond})
	ctx := context.Background()

	start := time.Now()
	require.NoError(t, l.Wait(ctx, "https://purdue.campusdish.com/LocationsAndMenus/A"))
	require.NoError(t, l.Wait(ctx, "https://purdue.campusdish.com/LocationsAndMenus/B"))
	assert.GreaterOrEqual(t, time.Since(start), 40*time.Millisecond)
}

func TestLimiter_HostsAreIndependent(t *testing.T) {
	l := New(Config{Interval: time.Hour})
	ctx := context.Background()

	require.NoError(t, l.Wait(ctx, "https://a.example/x"))
	start := time.Now()
	require.NoError(t, l.Wait(ctx, "https://b.example/x"))
	assert.Less(t, time.Since(start), 50*time.Millisecond)
}

func TestLimiter_ContextCanceled(t *testing.T) {
	l := New(Config{Interval: time.Hour})
	require.NoError(t, l.Wait(context.Background(), "https://a.example/x"))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	err := l.Wait(ctx, "https://a.example/y")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limit wait")
}

func TestLimiter_ZeroIntervalNeverBlocks(t *testing.T) {
	l := New(Config{})
	start := time.Now()
	for i := 0; i < 100; i++ {
		require.NoError(t, l.Wait(context.Background(), "not a url"))
	}
	assert.Less(t, time.Since(start), 100*time.Millisecond)
}
