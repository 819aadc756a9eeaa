// Package cache is the Redis-backed implementation of ports.Cache.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jcmexdev/storefront/internal/storefront/core/ports"
)

type redisCache struct {
	client      redis.UniversalClient
	serviceName string
}

var _ ports.Cache = (*redisCache)(nil)

func NewRedisCache(addr, serviceName string) ports.Cache {
	return NewWithClient(redis.NewClient(&redis.Options{Addr: addr}), serviceName)
}

func NewWithClient(client redis.UniversalClient, serviceName string) ports.Cache {
	return &redisCache{client: client, serviceName: serviceName}
}

// Ping checks that the server is reachable.
func Ping(ctx context.Context, c ports.Cache) error {
	rc, ok := c.(*redisCache)
	if !ok {
		return nil
	}
	return rc.client.Ping(ctx).Err()
}

// Close releases the connection pool of a cache built by this package.
func Close(c ports.Cache) error {
	rc, ok := c.(*redisCache)
	if !ok {
		return nil
	}
	return rc.client.Close()
}

func (r *redisCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if err := r.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("cache: set %s: %w", key, err)
	}
	return nil
}

func (r *redisCache) Get(ctx context.Context, key string) (string, error) {
	val, err := r.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("cache: get %s: %w", key, err)
	}
	return val, nil
}

func (r *redisCache) SetNX(ctx context.Context, key string, value interface{}, ttl time.Duration) (bool, error) {
	ok, err := r.client.SetNX(ctx, key, value, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("cache: setnx %s: %w", key, err)
	}
	return ok, nil
}

func (r *redisCache) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("cache: del %s: %w", key, err)
	}
	return nil
}

func (r *redisCache) GenerateKey(operation, key string) string {
	return fmt.Sprintf("%s:%s:%s", r.serviceName, operation, key)
}
