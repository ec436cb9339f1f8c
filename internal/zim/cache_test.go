package zim

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCacheLRUEviction(t *testing.T) {
	c := NewCache[int, string](EvictionLRU, 2)
	c.Put(1, "a")
	c.Put(2, "b")
	assert.Equal(t, 2, c.Len())

	// touch 1 so it's more recent than 2
	_, _ = c.Get(1)
	c.Put(3, "c")

	assert.Equal(t, 2, c.Len())
	_, ok := c.Get(2)
	assert.False(t, ok, "2 should have been evicted as least recently used")
	v, ok := c.Get(1)
	assert.True(t, ok)
	assert.Equal(t, "a", v)
	v, ok = c.Get(3)
	assert.True(t, ok)
	assert.Equal(t, "c", v)
}

func TestCachePinPreventsEviction(t *testing.T) {
	c := NewCache[int, string](EvictionLRU, 1)
	c.Put(1, "a")
	c.Pin(1)
	c.Put(2, "b") // would evict 1, but it's pinned

	_, ok := c.Get(1)
	assert.True(t, ok, "pinned entry must survive eviction pressure")

	c.Unpin(1)
	c.Put(3, "c")
	_, ok = c.Get(1)
	assert.False(t, ok, "unpinned entry should now be evictable")
}

func TestCacheEvictionNoneIsNoOp(t *testing.T) {
	c := NewCache[int, string](EvictionNone, 10)
	c.Put(1, "a")
	_, ok := c.Get(1)
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())
}

func TestCacheZeroCapacityBecomesNone(t *testing.T) {
	c := NewCache[int, string](EvictionLRU, 0)
	c.Put(1, "a")
	_, ok := c.Get(1)
	assert.False(t, ok)
}

func TestCacheUnboundedIgnoresCapacity(t *testing.T) {
	c := NewCache[int, string](EvictionUnbounded, 1)
	for i := 0; i < 100; i++ {
		c.Put(i, "v")
	}
	assert.Equal(t, 100, c.Len())
}

func TestCacheInvalidate(t *testing.T) {
	c := NewCache[int, string](EvictionLRU, 10)
	c.Put(1, "a")
	c.Pin(1)
	c.Invalidate(1)
	_, ok := c.Get(1)
	assert.False(t, ok)

	// re-adding after invalidate should not be considered pinned
	c.Put(1, "b")
	c.Put(2, "c")
	c.Put(3, "d")
	// With capacity 10 nothing is evicted yet; just confirm pin state was cleared.
	assert.Equal(t, 3, c.Len())
}
