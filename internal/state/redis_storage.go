package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const conversationStateKeyPattern = "conv:state:%s"

// RedisCache keeps hot sessions in Redis in front of a durable Store. Writes go to the durable
// store first; the cache is refreshed only after they succeed.
type RedisCache struct {
	next   Store
	client *redis.Client
	log    *slog.Logger
	ttl    time.Duration
}

// NewRedisCache wraps next with a Redis read-through cache.
func NewRedisCache(next Store, client *redis.Client, log *slog.Logger, ttl time.Duration) *RedisCache {
	if log == nil {
		log = slog.Default()
	}
	if ttl <= 0 {
		ttl = time.Hour
	}

	return &RedisCache{
		next:   next,
		client: client,
		log:    log,
		ttl:    ttl,
	}
}

// Load returns the cached session or falls through to the durable store.
func (c *RedisCache) Load(ctx context.Context, key Key) (*Session, error) {
	redisKey := redisConversationKey(key)

	data, err := c.client.Get(ctx, redisKey).Bytes()
	switch {
	case err == nil:
		var session Session
		if err := json.Unmarshal(data, &session); err == nil {
			if _, err := Parse(string(session.State)); err == nil {
				return &session, nil
			}
		}
		c.log.Warn("dropping undecodable cached conversation", slog.String("conversation", key.String()))
		_ = c.client.Del(ctx, redisKey).Err()
	case !errors.Is(err, redis.Nil):
		c.log.Error("failed to get conversation from redis", slog.String("conversation", key.String()), slog.Any("error", err))
	}

	session, err := c.next.Load(ctx, key)
	if err != nil {
		return session, err
	}

	c.put(ctx, session)
	return session, nil
}

// Save writes to the durable store and refreshes the cache entry.
func (c *RedisCache) Save(ctx context.Context, session *Session) error {
	if err := c.next.Save(ctx, session); err != nil {
		_ = c.client.Del(ctx, redisConversationKey(session.Key())).Err()
		return err
	}

	c.put(ctx, session)
	return nil
}

func (c *RedisCache) put(ctx context.Context, session *Session) {
	data, err := json.Marshal(session)
	if err != nil {
		c.log.Error("failed to encode conversation", slog.String("conversation", session.Key().String()), slog.Any("error", err))
		return
	}

	if err := c.client.Set(ctx, redisConversationKey(session.Key()), data, c.ttl).Err(); err != nil {
		c.log.Error("failed to cache conversation", slog.String("conversation", session.Key().String()), slog.Any("error", err))
	}
}

func redisConversationKey(key Key) string {
	return fmt.Sprintf(conversationStateKeyPattern, key)
}
