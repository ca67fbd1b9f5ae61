package fifo

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCachePutGet(t *testing.T) {
	cache := New[string, int](3)

	cache.Put("a", 1)
	cache.Put("b", 2)

	value, ok := cache.Get("a")
	require.True(t, ok)
	require.Equal(t, 1, value)

	_, ok = cache.Get("missing")
	require.False(t, ok)
	require.Equal(t, 2, cache.Len())
}

func TestCacheEvictsOldestInsertion(t *testing.T) {
	cache := New[string, int](2)

	cache.Put("a", 1)
	cache.Put("b", 2)

	// A read must not protect "a" from eviction; this is FIFO, not LRU.
	_, _ = cache.Get("a")

	cache.Put("c", 3)

	_, ok := cache.Get("a")
	require.False(t, ok)
	for _, key := range []string{"b", "c"} {
		_, ok := cache.Get(key)
		require.True(t, ok, key)
	}
}

func TestCacheUpdateKeepsInsertionOrder(t *testing.T) {
	cache := New[string, int](2)

	cache.Put("a", 1)
	cache.Put("b", 2)
	cache.Put("a", 10)
	cache.Put("c", 3)

	// "a" kept its original position, so it was evicted first.
	_, ok := cache.Get("a")
	require.False(t, ok)

	value, ok := cache.Get("b")
	require.True(t, ok)
	require.Equal(t, 2, value)
}

func TestCacheRangeOldestFirst(t *testing.T) {
	cache := New[string, int](4)
	for i, key := range []string{"w", "x", "y", "z"} {
		cache.Put(key, i)
	}

	var keys []string
	cache.Range(func(key string, _ int) bool {
		keys = append(keys, key)
		return true
	})
	require.Equal(t, []string{"w", "x", "y", "z"}, keys)

	keys = keys[:0]
	cache.Range(func(key string, _ int) bool {
		keys = append(keys, key)
		return len(keys) < 2
	})
	require.Equal(t, []string{"w", "x"}, keys)
}

func TestCacheDelete(t *testing.T) {
	cache := New[string, int](2)
	cache.Put("a", 1)
	cache.Delete("a")
	cache.Delete("missing")

	_, ok := cache.Get("a")
	require.False(t, ok)
	require.Equal(t, 0, cache.Len())
}
