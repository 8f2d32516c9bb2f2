package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"zenith/internal/pkg/errs"
)

func TestAllowWithinWindow(t *testing.T) {
	now := time.Unix(1000, 0)
	l := NewLimiter(3, time.Minute)
	l.nowFn = func() time.Time { return now }

	assert.True(t, l.Allow())
	assert.True(t, l.Allow())
	assert.True(t, l.Allow())
	assert.False(t, l.Allow())
}

func TestAllowAfterWindowSlides(t *testing.T) {
	now := time.Unix(1000, 0)
	l := NewLimiter(2, time.Minute)
	l.nowFn = func() time.Time { return now }

	require.True(t, l.Allow())
	require.True(t, l.Allow())
	require.False(t, l.Allow())

	now = now.Add(61 * time.Second)
	assert.True(t, l.Allow())
}

func TestWaitTimesOut(t *testing.T) {
	l := NewLimiter(1, time.Hour)
	require.True(t, l.Allow())

	err := l.Wait(context.Background(), 150*time.Millisecond)
	assert.ErrorIs(t, err, errs.ErrRateLimited)
}

func TestWaitHonorsContext(t *testing.T) {
	l := NewLimiter(1, time.Hour)
	require.True(t, l.Allow())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := l.Wait(ctx, time.Minute)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestStatsCountsHitsAndBlocks(t *testing.T) {
	l := NewLimiter(1, time.Minute)
	l.Allow()
	l.Allow()
	l.Allow()

	got := l.Stats()
	assert.Equal(t, int64(1), got.Hits)
	assert.Equal(t, int64(2), got.Blocks)
	assert.Equal(t, 1, got.InWindow)
	assert.Equal(t, 1, got.MaxCalls)
}
