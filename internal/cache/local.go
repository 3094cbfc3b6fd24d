package cache

import (
	"context"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

const DefaultLocalCacheSize = 1000

type entry struct {
	value     []byte
	expiresAt time.Time
	hasTTL    bool
}

// LocalCache is an in-process, bounded, LRU-evicted cache, namespaced by
// prefixing keys with "ns\x00key" within a single LRU, scaled up from a
// single-map-with-composed-key shape to multiple logical namespaces.
type LocalCache struct {
	mu    sync.Mutex
	store *lru.Cache[string, entry]
	// nsKeys tracks which composite keys belong to each namespace so
	// Clear(ns) and Stats(ns) don't have to scan the whole LRU.
	nsKeys map[string]map[string]struct{}
}

// NewLocalCache creates a LocalCache holding at most size entries across
// all namespaces combined.
func NewLocalCache(size int) *LocalCache {
	if size <= 0 {
		size = DefaultLocalCacheSize
	}
	c := &LocalCache{nsKeys: make(map[string]map[string]struct{})}
	store, _ := lru.NewWithEvict[string, entry](size, c.onEvict)
	c.store = store
	return c
}

func (c *LocalCache) onEvict(compositeKey string, _ entry) {
	ns, key := splitKey(compositeKey)
	if keys, ok := c.nsKeys[ns]; ok {
		delete(keys, key)
	}
}

func composeKey(ns, key string) string {
	return ns + "\x00" + key
}

func splitKey(composite string) (ns, key string) {
	for i := 0; i < len(composite); i++ {
		if composite[i] == 0 {
			return composite[:i], composite[i+1:]
		}
	}
	return "", composite
}

func (c *LocalCache) Get(ctx context.Context, ns, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.store.Get(composeKey(ns, key))
	if !ok {
		return nil, false, nil
	}
	if e.hasTTL && time.Now().After(e.expiresAt) {
		c.store.Remove(composeKey(ns, key))
		return nil, false, nil
	}
	return e.value, true, nil
}

func (c *LocalCache) Set(ctx context.Context, ns, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	e := entry{value: value}
	if ttl > 0 {
		e.hasTTL = true
		e.expiresAt = time.Now().Add(ttl)
	}
	c.store.Add(composeKey(ns, key), e)

	keys, ok := c.nsKeys[ns]
	if !ok {
		keys = make(map[string]struct{})
		c.nsKeys[ns] = keys
	}
	keys[key] = struct{}{}
	return nil
}

func (c *LocalCache) Delete(ctx context.Context, ns, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.store.Remove(composeKey(ns, key))
	if keys, ok := c.nsKeys[ns]; ok {
		delete(keys, key)
	}
	return nil
}

func (c *LocalCache) Clear(ctx context.Context, ns string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key := range c.nsKeys[ns] {
		c.store.Remove(composeKey(ns, key))
	}
	delete(c.nsKeys, ns)
	return nil
}

func (c *LocalCache) Stats(ctx context.Context, ns string) (Stats, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{Keys: len(c.nsKeys[ns])}, nil
}

func (c *LocalCache) HealthCheck(ctx context.Context) error {
	return nil
}
