package redis

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimitStore_CountsPerKey(t *testing.T) {
	mr, client := newTestClient(t)
	limiter := NewRateLimitStore(client, "wlg:")
	ctx := context.Background()

	var remaining []int64
	for range 4 {
		res, err := limiter.Allow(ctx, "transfers:actor:alice", 3, time.Hour)
		require.NoError(t, err)
		assert.Equal(t, int64(3), res.Limit)
		remaining = append(remaining, res.Remaining)
		if len(remaining) == 4 {
			assert.False(t, res.Allowed, "fourth transfer in the window is refused")
		} else {
			assert.True(t, res.Allowed)
		}
	}
	assert.Equal(t, []int64{2, 1, 0, 0}, remaining)

	other, err := limiter.Allow(ctx, "transfers:actor:bob", 3, time.Hour)
	require.NoError(t, err)
	assert.True(t, other.Allowed)
	assert.Equal(t, int64(2), other.Remaining)

	for _, k := range mr.Keys() {
		assert.True(t, strings.HasPrefix(k, "wlg:"), "key %q outside the prefix", k)
	}
}

func TestRateLimitStore_WindowExpiry(t *testing.T) {
	mr, client := newTestClient(t)
	limiter := NewRateLimitStore(client, "wlg:")
	ctx := context.Background()

	res, err := limiter.Allow(ctx, "admin:actor:root", 1, time.Minute)
	require.NoError(t, err)
	assert.True(t, res.Allowed)
	assert.GreaterOrEqual(t, res.ResetAt, time.Now().Unix())
	assert.LessOrEqual(t, res.ResetAt, time.Now().Add(time.Minute).Unix())

	res, err = limiter.Allow(ctx, "admin:actor:root", 1, time.Minute)
	require.NoError(t, err)
	assert.False(t, res.Allowed)

	mr.FastForward(62 * time.Second)

	res, err = limiter.Allow(ctx, "admin:actor:root", 1, time.Minute)
	require.NoError(t, err)
	assert.True(t, res.Allowed)
}

func TestRateLimitStore_SubSecondWindow(t *testing.T) {
	_, client := newTestClient(t)
	limiter := NewRateLimitStore(client, "wlg:")

	res, err := limiter.Allow(context.Background(), "reads:actor:carol", 5, 10*time.Millisecond)
	require.NoError(t, err)
	assert.True(t, res.Allowed)
	assert.Equal(t, int64(4), res.Remaining)
}

func TestRateLimitStore_RedisDown(t *testing.T) {
	mr, client := newTestClient(t)
	mr.Close()

	_, err := NewRateLimitStore(client, "wlg:").Allow(context.Background(), "transfers:actor:alice", 3, time.Minute)
	assert.ErrorContains(t, err, "redis rate limit incr")
}
