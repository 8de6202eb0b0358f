package ai

import (
	"context"
	"errors"
	"time"
)

// ErrCacheMiss is returned by Cache.Get when no value is stored under key.
var ErrCacheMiss = errors.New("cache miss")

// Cache stores serialized weather and market payloads. Implementations must be
// safe for concurrent use.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}
