package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fintra/credvault/logger"
)

func newTestLimiter(t *testing.T) *Limiter {
	t.Helper()
	l, err := NewLimiter(logger.NewNopLogger(), DefaultConfig())
	require.NoError(t, err)
	t.Cleanup(l.Close)
	return l
}

func TestLimiter_WindowBoundary(t *testing.T) {
	l := newTestLimiter(t)

	assert.True(t, l.Allow("user-1", 3, time.Second))
	assert.True(t, l.Allow("user-1", 3, time.Second))
	assert.True(t, l.Allow("user-1", 3, time.Second))
	assert.False(t, l.Allow("user-1", 3, time.Second))

	// Denied attempts do not extend or refill the window
	assert.False(t, l.Allow("user-1", 3, time.Second))
}

func TestLimiter_WindowElapses(t *testing.T) {
	l := newTestLimiter(t)

	window := 50 * time.Millisecond
	assert.True(t, l.Allow("user-1", 1, window))
	assert.False(t, l.Allow("user-1", 1, window))

	time.Sleep(window + 20*time.Millisecond)
	assert.True(t, l.Allow("user-1", 1, window))
}

func TestLimiter_Reset(t *testing.T) {
	l := newTestLimiter(t)

	assert.True(t, l.Allow("user-1", 1, time.Minute))
	assert.False(t, l.Allow("user-1", 1, time.Minute))

	l.Reset("user-1")
	assert.True(t, l.Allow("user-1", 1, time.Minute))
}

func TestLimiter_IdentifiersAreIndependent(t *testing.T) {
	l := newTestLimiter(t)

	assert.True(t, l.Allow("user-1", 1, time.Minute))
	assert.False(t, l.Allow("user-1", 1, time.Minute))

	assert.True(t, l.Allow("user-2", 1, time.Minute))
}

func TestLimiter_IdentifiersAreHashed(t *testing.T) {
	l := newTestLimiter(t)

	key := l.hasher.salt("user-1")
	assert.NotContains(t, key, "user-1")
	assert.Contains(t, key, "hmac-sha256:")

	// Same identifier hashes to the same key within one limiter
	assert.Equal(t, key, l.hasher.salt("user-1"))
}

func TestLimiter_Metrics(t *testing.T) {
	l := newTestLimiter(t)

	l.Allow("user-1", 1, time.Minute)
	l.Allow("user-1", 1, time.Minute)
	l.Reset("user-1")

	snapshot := l.GetMetrics()
	assert.Equal(t, int64(1), snapshot["allowed"])
	assert.Equal(t, int64(1), snapshot["denied"])
	assert.Equal(t, int64(1), snapshot["resets"])
}
