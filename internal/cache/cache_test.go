package cache

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCache_Get_MissInvokesComputeAndCaches(t *testing.T) {
	// Given: an empty cache
	c := New[int](time.Hour, 10)
	var calls int32

	// When: I Get a missing key twice
	v1, err := c.Get("k", func() (int, error) { atomic.AddInt32(&calls, 1); return 42, nil })
	require.NoError(t, err)
	v2, err := c.Get("k", func() (int, error) { atomic.AddInt32(&calls, 1); return 99, nil })
	require.NoError(t, err)

	// Then: both calls return the first computed value and compute ran once
	assert.Equal(t, 42, v1)
	assert.Equal(t, 42, v2)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))

	stats := c.Stats()
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
}

func TestCache_Get_PropagatesComputeError(t *testing.T) {
	c := New[int](time.Hour, 10)
	wantErr := errors.New("boom")

	_, err := c.Get("k", func() (int, error) { return 0, wantErr })
	assert.ErrorIs(t, err, wantErr)

	// And: the failed compute does not poison the cache for a later success
	v, err := c.Get("k", func() (int, error) { return 7, nil })
	require.NoError(t, err)
	assert.Equal(t, 7, v)
}

func TestCache_Get_ExpiresAfterTTL(t *testing.T) {
	c := New[int](10*time.Millisecond, 10)

	v, err := c.Get("k", func() (int, error) { return 1, nil })
	require.NoError(t, err)
	assert.Equal(t, 1, v)

	time.Sleep(20 * time.Millisecond)

	var called bool
	v, err = c.Get("k", func() (int, error) { called = true; return 2, nil })
	require.NoError(t, err)
	assert.True(t, called)
	assert.Equal(t, 2, v)
}

func TestCache_Put_EvictsLeastRecentlyUsedAtCapacity(t *testing.T) {
	// Given: a cache with capacity 2
	c := New[int](0, 2)
	c.Put("a", 1)
	c.Put("b", 2)

	// And: "a" is touched, making "b" the least recently used
	_, _ = c.Peek("a")

	// When: a third key is inserted
	c.Put("c", 3)

	// Then: "b" is evicted, "a" and "c" remain
	_, aOK := c.Peek("a")
	_, bOK := c.Peek("b")
	_, cOK := c.Peek("c")
	assert.True(t, aOK)
	assert.False(t, bOK)
	assert.True(t, cOK)
	assert.Equal(t, int64(1), c.Stats().Evictions)
}

func TestCache_Invalidate_RemovesEntry(t *testing.T) {
	c := New[int](0, 10)
	c.Put("k", 1)
	c.Invalidate("k")

	_, ok := c.Peek("k")
	assert.False(t, ok)
}

func TestCache_Warm_PopulatesOnlyMissingKeys(t *testing.T) {
	c := New[int](0, 10)
	c.Put("a", 100)

	var computed []string
	var mu sync.Mutex
	c.Warm([]string{"a", "b", "c"}, func(key string) (int, error) {
		mu.Lock()
		computed = append(computed, key)
		mu.Unlock()
		return len(key), nil
	})

	assert.ElementsMatch(t, []string{"b", "c"}, computed)
	va, _ := c.Peek("a")
	assert.Equal(t, 100, va)
}

func TestCache_Get_ConcurrentMissesShareOneComputation(t *testing.T) {
	// Given: an empty cache and 20 concurrent callers for the same key
	c := New[int](0, 10)
	var calls int32
	var wg sync.WaitGroup
	results := make([]int, 20)

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			v, _ := c.Get("shared", func() (int, error) {
				atomic.AddInt32(&calls, 1)
				time.Sleep(5 * time.Millisecond)
				return 7, nil
			})
			results[idx] = v
		}(i)
	}
	wg.Wait()

	// Then: the compute closure ran exactly once
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	for _, r := range results {
		assert.Equal(t, 7, r)
	}
}

func TestManager_NewManager_AppliesDefaults(t *testing.T) {
	m := NewManager(DefaultConfig())

	_, err := m.QueryEmbedding.Get("q", func() ([]float32, error) { return []float32{1, 2}, nil })
	require.NoError(t, err)

	stats := m.AllStats()
	assert.Contains(t, stats, "query_embedding")
	assert.Contains(t, stats, "search_result")
	assert.Contains(t, stats, "file_digest")
	assert.Equal(t, 1, stats["query_embedding"].Size)
}

func TestManager_FileDigest_NeverExpires(t *testing.T) {
	m := NewManager(DefaultConfig())
	_, err := m.FileDigest.Get("path.md", func() (any, error) { return "digest-1", nil })
	require.NoError(t, err)

	v, ok := m.FileDigest.Peek("path.md")
	require.True(t, ok)
	assert.Equal(t, "digest-1", v)
}
