package store

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/layer-3/beatauth/core"
)

func redisClient(t *testing.T) *redis.Client {
	t.Helper()
	url := os.Getenv("BEATAUTH_TEST_REDIS_URL")
	if url == "" {
		t.Skip("BEATAUTH_TEST_REDIS_URL not set")
	}
	client, err := ConnectRedis(context.Background(), url, 5*time.Second)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestRedisChallengeConsumedOnce(t *testing.T) {
	s := NewRedisChallengeStore(redisClient(t))
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)
	c := &core.Challenge{Nonce: uuid.NewString(), IssuedAt: now, ExpiresAt: now.Add(time.Minute)}

	require.NoError(t, s.Save(ctx, c, time.Minute))
	assert.Error(t, s.Save(ctx, c, time.Minute), "a nonce is never overwritten")

	got, err := s.Consume(ctx, c.Nonce)
	require.NoError(t, err)
	assert.Equal(t, c.Nonce, got.Nonce)
	assert.True(t, got.IssuedAt.Equal(now))
	assert.True(t, got.Consumed)

	_, err = s.Consume(ctx, c.Nonce)
	assert.ErrorIs(t, err, core.ErrChallengeNotFound)
}

func TestRedisChallengeExpires(t *testing.T) {
	s := NewRedisChallengeStore(redisClient(t))
	ctx := context.Background()
	c := &core.Challenge{Nonce: uuid.NewString(), IssuedAt: time.Now()}

	require.NoError(t, s.Save(ctx, c, 50*time.Millisecond))
	time.Sleep(150 * time.Millisecond)

	_, err := s.Consume(ctx, c.Nonce)
	assert.ErrorIs(t, err, core.ErrChallengeNotFound)
}

func TestRedisTokenInvalidation(t *testing.T) {
	s := NewRedisTokenStore(redisClient(t))
	ctx := context.Background()
	id := uuid.NewString()

	revoked, err := s.IsTokenInvalidated(ctx, id)
	require.NoError(t, err)
	assert.False(t, revoked)

	require.NoError(t, s.InvalidateToken(ctx, id, time.Minute))
	revoked, err = s.IsTokenInvalidated(ctx, id)
	require.NoError(t, err)
	assert.True(t, revoked)
}

func TestRedisSessionStore(t *testing.T) {
	s := NewRedisSessionStore(redisClient(t), uuid.NewString(), time.Minute)
	ctx := context.Background()

	_, err := s.Load(ctx)
	assert.ErrorIs(t, err, core.ErrSessionNotFound)

	p := &core.PersistedSession{ID: "s1", Address: "0xabc", SignatureProof: "0xsig", Timestamp: time.Now().UTC().Truncate(time.Second)}
	require.NoError(t, s.Save(ctx, p))
	got, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, p.Address, got.Address)
	assert.True(t, got.Timestamp.Equal(p.Timestamp))

	require.NoError(t, s.Clear(ctx))
	require.NoError(t, s.Clear(ctx))
	_, err = s.Load(ctx)
	assert.ErrorIs(t, err, core.ErrSessionNotFound)
}
