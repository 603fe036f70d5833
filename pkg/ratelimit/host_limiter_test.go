package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHostLimiter_WaitForHost(t *testing.T) {
	tests := []struct {
		name            string
		interval        time.Duration
		expectedMinWait time.Duration
	}{
		{
			name:            "300ms interval",
			interval:        300 * time.Millisecond,
			expectedMinWait: 250 * time.Millisecond,
		},
		{
			name:            "no interval",
			interval:        0,
			expectedMinWait: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			limiter := NewHostLimiter(tt.interval)
			ctx := context.Background()

			start := time.Now()
			require.NoError(t, limiter.WaitForHost(ctx, "lagged.com"))
			// First request should be immediate
			assert.Less(t, time.Since(start), 100*time.Millisecond)

			// Second request should wait
			start = time.Now()
			require.NoError(t, limiter.WaitForHost(ctx, "lagged.com"))
			assert.GreaterOrEqual(t, time.Since(start), tt.expectedMinWait)
		})
	}
}

func TestHostLimiter_HostsAreIndependent(t *testing.T) {
	limiter := NewHostLimiter(time.Second)
	ctx := context.Background()

	require.NoError(t, limiter.Wait(ctx, "https://lagged.com/en/g/slope"))

	start := time.Now()
	require.NoError(t, limiter.Wait(ctx, "https://cdn.jsdelivr.net/gh/gn-math/assets@main/zones.json"))
	assert.Less(t, time.Since(start), 100*time.Millisecond)

	stats := limiter.Stats()
	assert.Equal(t, int64(1), stats["lagged.com"].RequestCount)
	assert.Equal(t, int64(1), stats["cdn.jsdelivr.net"].RequestCount)
}

func TestHostLimiter_ContextCancellation(t *testing.T) {
	limiter := NewHostLimiter(5 * time.Second)

	require.NoError(t, limiter.WaitForHost(context.Background(), "lagged.com"))

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	err := limiter.WaitForHost(ctx, "lagged.com")
	assert.Error(t, err)
}

func TestHostLimiter_RecordError(t *testing.T) {
	limiter := NewHostLimiter(0)
	limiter.RecordError("Lagged.com")
	limiter.RecordError("lagged.com")

	assert.Equal(t, int64(2), limiter.Stats()["lagged.com"].ErrorCount)
}

func TestHostOf(t *testing.T) {
	assert.Equal(t, "lagged.com", HostOf("https://Lagged.com:443/en/g/x"))
	assert.Equal(t, "not a url", HostOf("not a url"))
}
