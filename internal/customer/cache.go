package customer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/Proton-105/chatshop/internal/domain"
)

// KV is the subset of the Redis client the cache needs.
type KV interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// Cache provides Redis-backed caching for customer records.
type Cache struct {
	client KV
	ttl    time.Duration
}

// NewCache constructs a customer cache backed by the provided Redis client.
func NewCache(client KV, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl}
}

// Get fetches a cached customer if it exists.
func (c *Cache) Get(ctx context.Context, businessID int64, address string) (*domain.Customer, error) {
	if c == nil || c.client == nil {
		return nil, nil
	}

	data, err := c.client.Get(ctx, cacheKey(businessID, address))
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("get cached customer: %w", err)
	}

	var cust domain.Customer
	if err := json.Unmarshal([]byte(data), &cust); err != nil {
		return nil, fmt.Errorf("decode cached customer: %w", err)
	}

	return &cust, nil
}

// Set stores the customer for the cache TTL.
func (c *Cache) Set(ctx context.Context, cust *domain.Customer) error {
	if c == nil || c.client == nil || cust == nil {
		return nil
	}

	payload, err := json.Marshal(cust)
	if err != nil {
		return fmt.Errorf("encode customer for cache: %w", err)
	}

	if err := c.client.Set(ctx, cacheKey(cust.BusinessID, cust.ChatAddress), payload, c.ttl); err != nil {
		return fmt.Errorf("set cached customer: %w", err)
	}

	return nil
}

// Invalidate removes the cached entry if it exists.
func (c *Cache) Invalidate(ctx context.Context, businessID int64, address string) error {
	if c == nil || c.client == nil {
		return nil
	}

	if err := c.client.Delete(ctx, cacheKey(businessID, address)); err != nil {
		return fmt.Errorf("delete cached customer: %w", err)
	}

	return nil
}

func cacheKey(businessID int64, address string) string {
	return fmt.Sprintf("customer:%d:%s", businessID, address)
}
