package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalCache_SetGetRoundTrip(t *testing.T) {
	c := NewLocalCache(10)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "ns1", "k", []byte("v"), 0))
	val, ok, err := c.Get(ctx, "ns1", "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("v"), val)
}

func TestLocalCache_MissingKeyReturnsNotOk(t *testing.T) {
	c := NewLocalCache(10)
	_, ok, err := c.Get(context.Background(), "ns1", "nope")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLocalCache_ExpiredEntryIsEvictedLazily(t *testing.T) {
	c := NewLocalCache(10)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "ns1", "k", []byte("v"), time.Millisecond))
	time.Sleep(5 * time.Millisecond)

	_, ok, err := c.Get(ctx, "ns1", "k")
	require.NoError(t, err)
	assert.False(t, ok)

	stats, err := c.Stats(ctx, "ns1")
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Keys)
}

func TestLocalCache_NamespacesAreIsolated(t *testing.T) {
	c := NewLocalCache(10)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "ns1", "k", []byte("one"), 0))
	require.NoError(t, c.Set(ctx, "ns2", "k", []byte("two"), 0))

	v1, ok, err := c.Get(ctx, "ns1", "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("one"), v1)

	v2, ok, err := c.Get(ctx, "ns2", "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("two"), v2)
}

func TestLocalCache_ClearOnlyAffectsOwnNamespace(t *testing.T) {
	c := NewLocalCache(10)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "ns1", "a", []byte("1"), 0))
	require.NoError(t, c.Set(ctx, "ns1", "b", []byte("2"), 0))
	require.NoError(t, c.Set(ctx, "ns2", "a", []byte("3"), 0))

	require.NoError(t, c.Clear(ctx, "ns1"))

	stats1, err := c.Stats(ctx, "ns1")
	require.NoError(t, err)
	assert.Equal(t, 0, stats1.Keys)

	stats2, err := c.Stats(ctx, "ns2")
	require.NoError(t, err)
	assert.Equal(t, 1, stats2.Keys)

	_, ok, err := c.Get(ctx, "ns2", "a")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestLocalCache_DeleteRemovesSingleKey(t *testing.T) {
	c := NewLocalCache(10)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "ns1", "a", []byte("1"), 0))
	require.NoError(t, c.Set(ctx, "ns1", "b", []byte("2"), 0))
	require.NoError(t, c.Delete(ctx, "ns1", "a"))

	_, ok, err := c.Get(ctx, "ns1", "a")
	require.NoError(t, err)
	assert.False(t, ok)

	stats, err := c.Stats(ctx, "ns1")
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Keys)
}

func TestLocalCache_EvictionUnderCapacityPrunesNamespaceTracking(t *testing.T) {
	c := NewLocalCache(2)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "ns1", "a", []byte("1"), 0))
	require.NoError(t, c.Set(ctx, "ns1", "b", []byte("2"), 0))
	// Exceeds capacity of 2 entries; LRU evicts "a" and fires onEvict.
	require.NoError(t, c.Set(ctx, "ns1", "c", []byte("3"), 0))

	stats, err := c.Stats(ctx, "ns1")
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Keys)

	_, ok, err := c.Get(ctx, "ns1", "a")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLocalCache_HealthCheckAlwaysHealthy(t *testing.T) {
	c := NewLocalCache(10)
	assert.NoError(t, c.HealthCheck(context.Background()))
}

func TestComposeSplitKey_RoundTrips(t *testing.T) {
	composite := composeKey("namespace", "key")
	ns, key := splitKey(composite)
	assert.Equal(t, "namespace", ns)
	assert.Equal(t, "key", key)
}

func TestRedisKey_NamespacesWithColon(t *testing.T) {
	assert.Equal(t, "ns:key", redisKey("ns", "key"))
}
