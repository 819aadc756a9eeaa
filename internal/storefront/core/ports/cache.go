package ports

import (
	"context"
	"time"
)

// Cache is a shared key/value cache. Get returns "" with a nil error on a miss.
type Cache interface {
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	// SetNX stores value only if key is absent and reports whether it did.
	SetNX(ctx context.Context, key string, value interface{}, ttl time.Duration) (bool, error)
	Delete(ctx context.Context, key string) error
	GenerateKey(operation, key string) string
}
