package idempotency

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
)

// Store keeps one status value per key.
type Store interface {
	// Claim sets key to processing unless it already exists.
	Claim(ctx context.Context, key string, ttl time.Duration) (bool, error)
	// Status returns the stored status or "" when the key is gone.
	Status(ctx context.Context, key string) (string, error)
	Complete(ctx context.Context, key string, ttl time.Duration) error
	Release(ctx context.Context, key string) error
}

// RedisStore implements Store with plain Redis string keys.
type RedisStore struct {
	client *redis.Client
	log    *slog.Logger
}

// NewRedisStore creates a Redis-backed store.
func NewRedisStore(client *redis.Client, log *slog.Logger) *RedisStore {
	if log == nil {
		log = slog.Default()
	}

	return &RedisStore{client: client, log: log}
}

func (s *RedisStore) Claim(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	acquired, err := s.client.SetNX(ctx, recordKey(key), StatusProcessing, ttl).Result()
	if err != nil {
		s.log.Error("failed to claim idempotency key", slog.String("key", key), slog.Any("error", err))
		return false, err
	}
	return acquired, nil
}

func (s *RedisStore) Status(ctx context.Context, key string) (string, error) {
	status, err := s.client.Get(ctx, recordKey(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		s.log.Error("failed to fetch idempotency record", slog.String("key", key), slog.Any("error", err))
		return "", err
	}
	return status, nil
}

func (s *RedisStore) Complete(ctx context.Context, key string, ttl time.Duration) error {
	return s.client.Set(ctx, recordKey(key), StatusCompleted, ttl).Err()
}

func (s *RedisStore) Release(ctx context.Context, key string) error {
	return s.client.Del(ctx, recordKey(key)).Err()
}

func recordKey(key string) string {
	return "idempotency:" + key
}
