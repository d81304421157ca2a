package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/lockerd/lockerd"
)

// sessionKeyPrefix namespaces session entries in Redis.
const sessionKeyPrefix = "sess:"

// RedisStore keeps sessions in Redis so they survive process restarts and
// can be shared across replicas. The Redis TTL matches the absolute session
// lifetime, so expiry needs no sweeper.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore connects to Redis at the given URL and returns a session
// store with the given absolute session lifetime.
func NewRedisStore(ctx context.Context, redisURL string, ttl time.Duration) (*RedisStore, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	opt.PoolSize = 10
	opt.MinIdleConns = 2
	opt.PoolTimeout = 4 * time.Second
	opt.ConnMaxIdleTime = 5 * time.Minute

	client := redis.NewClient(opt)

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return &RedisStore{client: client, ttl: ttl}, nil
}

// Close closes the underlying Redis client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) Create(ctx context.Context, username string) (Session, error) {
	token, err := NewToken()
	if err != nil {
		return Session{}, err
	}

	now := time.Now()
	sess := Session{
		Token:     token,
		Username:  username,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}

	data, err := json.Marshal(sess)
	if err != nil {
		return Session{}, fmt.Errorf("encode session: %w", err)
	}

	if err := s.client.Set(ctx, sessionKeyPrefix+token, data, s.ttl).Err(); err != nil {
		return Session{}, fmt.Errorf("store session: %w", err)
	}

	return sess, nil
}

func (s *RedisStore) Get(ctx context.Context, token string) (Session, error) {
	data, err := s.client.Get(ctx, sessionKeyPrefix+token).Bytes()
	if errors.Is(err, redis.Nil) {
		return Session{}, fmt.Errorf("get session: %w", lockerd.ErrUnauthorized)
	}
	if err != nil {
		return Session{}, fmt.Errorf("get session: %w", err)
	}

	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		// Corrupted entry - treat as absent
		return Session{}, fmt.Errorf("get session: %w", lockerd.ErrUnauthorized)
	}

	if sess.Expired(time.Now()) {
		_ = s.client.Del(ctx, sessionKeyPrefix+token).Err()
		return Session{}, fmt.Errorf("get session: expired: %w", lockerd.ErrUnauthorized)
	}

	return sess, nil
}

func (s *RedisStore) Destroy(ctx context.Context, token string) error {
	if err := s.client.Del(ctx, sessionKeyPrefix+token).Err(); err != nil {
		return fmt.Errorf("destroy session: %w", err)
	}

	return nil
}
