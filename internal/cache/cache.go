package cache

import (
	"context"
	"time"
)

// Cache хранит сериализованные значения с TTL.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration)
}

// Nop - кеш выключен (CACHE_TYPE=none).
type Nop struct{}

func (Nop) Get(ctx context.Context, key string) ([]byte, bool) { return nil, false }

func (Nop) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {}
