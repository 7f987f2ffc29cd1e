package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/layer-3/beatauth/core"
	"github.com/layer-3/beatauth/ports"
)

const keyPrefix = "beatauth:"

// RedisTokenStore is a Redis implementation of ports.TokenStore
type RedisTokenStore struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisTokenStore creates a new Redis revocation store
func NewRedisTokenStore(client redis.UniversalClient) *RedisTokenStore {
	return &RedisTokenStore{
		client: client,
		prefix: keyPrefix + "invalidated:",
	}
}

var _ ports.TokenStore = (*RedisTokenStore)(nil)

// InvalidateToken marks a token as invalidated in Redis
func (s *RedisTokenStore) InvalidateToken(ctx context.Context, tokenID string, expiry time.Duration) error {
	if err := s.client.Set(ctx, s.prefix+tokenID, "1", expiry).Err(); err != nil {
		return fmt.Errorf("failed to invalidate token: %w", err)
	}
	return nil
}

// IsTokenInvalidated checks if a token is invalidated in Redis
func (s *RedisTokenStore) IsTokenInvalidated(ctx context.Context, tokenID string) (bool, error) {
	val, err := s.client.Exists(ctx, s.prefix+tokenID).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check token invalidation: %w", err)
	}
	return val > 0, nil
}

// RedisChallengeStore keeps outstanding challenges as expiring keys.
// Consumption uses GETDEL so a nonce can be taken exactly once across
// every instance sharing the Redis.
type RedisChallengeStore struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisChallengeStore creates a Redis-backed challenge store
func NewRedisChallengeStore(client redis.UniversalClient) *RedisChallengeStore {
	return &RedisChallengeStore{
		client: client,
		prefix: keyPrefix + "challenge:",
	}
}

var _ ports.ChallengeStore = (*RedisChallengeStore)(nil)

// Save stores the challenge with ttl; an existing nonce is never overwritten
func (s *RedisChallengeStore) Save(ctx context.Context, challenge *core.Challenge, ttl time.Duration) error {
	payload, err := json.Marshal(challenge)
	if err != nil {
		return fmt.Errorf("marshal challenge: %w", err)
	}
	ok, err := s.client.SetNX(ctx, s.prefix+challenge.Nonce, payload, ttl).Result()
	if err != nil {
		return fmt.Errorf("save challenge: %w", err)
	}
	if !ok {
		return fmt.Errorf("save challenge: nonce collision")
	}
	return nil
}

// Consume atomically fetches and deletes the challenge
func (s *RedisChallengeStore) Consume(ctx context.Context, nonce string) (*core.Challenge, error) {
	raw, err := s.client.GetDel(ctx, s.prefix+nonce).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, core.ErrChallengeNotFound
		}
		return nil, fmt.Errorf("consume challenge: %w", err)
	}

	var c core.Challenge
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, fmt.Errorf("decode challenge: %w", err)
	}
	c.Consumed = true
	return &c, nil
}

// RedisSessionStore persists one device's session under a namespaced key
type RedisSessionStore struct {
	client redis.UniversalClient
	key    string
	ttl    time.Duration
}

// NewRedisSessionStore creates a session store for deviceID. Entries expire
// after ttl so an abandoned device never keeps a session past its lifetime.
func NewRedisSessionStore(client redis.UniversalClient, deviceID string, ttl time.Duration) *RedisSessionStore {
	return &RedisSessionStore{
		client: client,
		key:    keyPrefix + "session:" + deviceID,
		ttl:    ttl,
	}
}

var _ ports.SessionStore = (*RedisSessionStore)(nil)

// Load reads the persisted session
func (s *RedisSessionStore) Load(ctx context.Context) (*core.PersistedSession, error) {
	raw, err := s.client.Get(ctx, s.key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, core.ErrSessionNotFound
		}
		return nil, fmt.Errorf("load session: %w", err)
	}

	var p core.PersistedSession
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	return &p, nil
}

// Save writes the persisted session
func (s *RedisSessionStore) Save(ctx context.Context, session *core.PersistedSession) error {
	payload, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	if err := s.client.Set(ctx, s.key, payload, s.ttl).Err(); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// Clear deletes the persisted session
func (s *RedisSessionStore) Clear(ctx context.Context) error {
	if err := s.client.Del(ctx, s.key).Err(); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}

// ConnectRedis parses url, connects and pings within timeout.
func ConnectRedis(ctx context.Context, url string, timeout time.Duration) (*redis.Client, error) {
	options, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("redis url: %w", err)
	}
	client := redis.NewClient(options)

	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return client, nil
}
