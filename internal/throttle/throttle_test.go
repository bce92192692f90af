package throttle

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLimiter_Allow(t *testing.T) {
	l := New(3, time.Minute)
	start := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		require.NoError(t, l.Allow("1.2.3.4", start.Add(time.Duration(i)*time.Second)))
	}
	assert.ErrorIs(t, l.Allow("1.2.3.4", start.Add(10*time.Second)), ErrLimited)
	assert.Equal(t, 0, l.Remaining("1.2.3.4", start.Add(10*time.Second)))

	// other clients are independent
	assert.NoError(t, l.Allow("5.6.7.8", start.Add(10*time.Second)))

	// the first request leaves the window after one minute
	assert.NoError(t, l.Allow("1.2.3.4", start.Add(time.Minute)))
	assert.ErrorIs(t, l.Allow("1.2.3.4", start.Add(time.Minute+500*time.Millisecond)), ErrLimited)
	assert.NoError(t, l.Allow("1.2.3.4", start.Add(time.Minute+2*time.Second)))
}

func TestLimiter_RejectedRequestsAreNotCounted(t *testing.T) {
	l := New(1, time.Minute)
	start := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, l.Allow("c", start))
	for i := 1; i <= 5; i++ {
		assert.ErrorIs(t, l.Allow("c", start.Add(time.Duration(i)*time.Second)), ErrLimited)
	}
	assert.NoError(t, l.Allow("c", start.Add(time.Minute+time.Second)))
}

func TestLimiter_SweepsIdleClients(t *testing.T) {
	l := New(5, time.Minute)
	start := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, l.Allow("a", start))
	require.NoError(t, l.Allow("b", start.Add(30*time.Second)))
	assert.Equal(t, 2, l.Clients())

	require.NoError(t, l.Allow("c", start.Add(2*time.Minute)))
	assert.Equal(t, 1, l.Clients())
	assert.Equal(t, 5, l.Remaining("a", start.Add(2*time.Minute)))
}
