package admission

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryLimiter_FixedWindow(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	l := NewMemoryLimiter(2, time.Minute)
	l.now = func() time.Time { return now }
	ctx := context.Background()

	d, err := l.Allow(ctx, "10.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, Decision{Allowed: true, Remaining: 1}, d)

	d, _ = l.Allow(ctx, "10.0.0.1")
	assert.Equal(t, Decision{Allowed: true, Remaining: 0}, d)

	now = now.Add(20 * time.Second)
	d, _ = l.Allow(ctx, "10.0.0.1")
	assert.False(t, d.Allowed)
	assert.Equal(t, 40*time.Second, d.RetryAfter)

	// other origins have their own window
	d, _ = l.Allow(ctx, "10.0.0.2")
	assert.True(t, d.Allowed)

	now = now.Add(40 * time.Second)
	d, _ = l.Allow(ctx, "10.0.0.1")
	assert.Equal(t, Decision{Allowed: true, Remaining: 1}, d)
}

func TestMemoryLimiter_SweepsStaleWindows(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	l := NewMemoryLimiter(1, time.Minute)
	l.now = func() time.Time { return now }

	for i := 0; i <= sweepThreshold; i++ {
		_, err := l.Allow(context.Background(), time.Duration(i).String())
		require.NoError(t, err)
	}
	now = now.Add(time.Hour)
	_, err := l.Allow(context.Background(), "fresh")
	require.NoError(t, err)

	l.mu.Lock()
	defer l.mu.Unlock()
	assert.Len(t, l.windows, 1)
}

func TestUnlimited(t *testing.T) {
	d, err := Unlimited{}.Allow(context.Background(), "x")
	require.NoError(t, err)
	assert.True(t, d.Allowed)
}
