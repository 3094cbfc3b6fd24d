// Package cache implements the namespaced, TTL-keyed byte-store
// abstraction behind local (in-process LRU) and remote (Redis) backends.
package cache

import (
	"context"
	"time"
)

// Stats describes one namespace's occupancy.
type Stats struct {
	Keys int
}

// Cache is the §4.8 contract. ns is an opaque namespace prefix; within a
// namespace, keys are opaque and values are provider-opaque bytes. TTL
// is a lower bound: entries may persist longer than ttl but never
// shorter, except via an eviction event.
type Cache interface {
	Get(ctx context.Context, ns, key string) ([]byte, bool, error)
	Set(ctx context.Context, ns, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, ns, key string) error
	Clear(ctx context.Context, ns string) error
	Stats(ctx context.Context, ns string) (Stats, error)
	HealthCheck(ctx context.Context) error
}
