package redisstore

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb, mr
}

func TestRateLimiter_BlocksAfterLimit(t *testing.T) {
	rdb, mr := setupTestRedis(t)
	ctx := context.Background()
	l := NewRateLimiter(rdb, 3, time.Minute)

	for i := 0; i < 3; i++ {
		d, err := l.Allow(ctx, "submit", "10.0.0.1")
		require.NoError(t, err)
		assert.True(t, d.Allowed)
		assert.Equal(t, 2-i, d.Remaining)
	}

	d, err := l.Allow(ctx, "submit", "10.0.0.1")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, 0, d.Remaining)
	assert.Greater(t, d.RetryAfter, time.Duration(0))
	assert.LessOrEqual(t, d.RetryAfter, time.Minute)

	// other clients have their own window
	d, err = l.Allow(ctx, "submit", "10.0.0.2")
	require.NoError(t, err)
	assert.True(t, d.Allowed)

	mr.FastForward(61 * time.Second)
	d, err = l.Allow(ctx, "submit", "10.0.0.1")
	require.NoError(t, err)
	assert.True(t, d.Allowed)
}

func TestRateLimiter_RedisDown(t *testing.T) {
	rdb, mr := setupTestRedis(t)
	mr.Close()

	_, err := NewRateLimiter(rdb, 1, time.Minute).Allow(context.Background(), "submit", "x")
	assert.Error(t, err)
}

func TestIdempotency_ClaimSaveReplay(t *testing.T) {
	rdb, _ := setupTestRedis(t)
	ctx := context.Background()
	s := NewIdempotencyStore(rdb, time.Hour)

	got, err := s.Claim(ctx, "submit", "k1")
	require.NoError(t, err)
	assert.Nil(t, got)

	_, err = s.Claim(ctx, "submit", "k1")
	assert.ErrorIs(t, err, ErrInProgress)

	body := json.RawMessage(`{"success":true}`)
	require.NoError(t, s.Save(ctx, "submit", "k1", StoredResponse{Status: 201, Body: body}))

	got, err = s.Claim(ctx, "submit", "k1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 201, got.Status)
	assert.JSONEq(t, string(body), string(got.Body))
}

func TestIdempotency_ReleaseAllowsRetry(t *testing.T) {
	rdb, _ := setupTestRedis(t)
	ctx := context.Background()
	s := NewIdempotencyStore(rdb, time.Hour)

	_, err := s.Claim(ctx, "submit", "k2")
	require.NoError(t, err)
	require.NoError(t, s.Release(ctx, "submit", "k2"))

	got, err := s.Claim(ctx, "submit", "k2")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestIdempotency_ClaimExpires(t *testing.T) {
	rdb, mr := setupTestRedis(t)
	ctx := context.Background()
	s := NewIdempotencyStore(rdb, time.Hour)

	_, err := s.Claim(ctx, "submit", "k3")
	require.NoError(t, err)
	mr.FastForward(2 * time.Minute)

	got, err := s.Claim(ctx, "submit", "k3")
	require.NoError(t, err)
	assert.Nil(t, got)
}
