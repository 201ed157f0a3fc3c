package cache

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/restbridge/internal/testutil"
)

func newTestCache(clock *testutil.FakeClock, max int, ttl time.Duration) *Cache[string] {
	return New[string](Options{Name: "test", Max: max, TTL: ttl, Now: clock.Now})
}

func TestCache_SetGet(t *testing.T) {
	c := newTestCache(testutil.NewFakeClock(time.Unix(1000, 0)), 5, time.Second)

	c.Set("key1", "value1")
	v, ok := c.Get("key1")
	require.True(t, ok)
	assert.Equal(t, "value1", v)

	_, ok = c.Get("missing")
	assert.False(t, ok)
}

func TestCache_OverwriteKeepsSize(t *testing.T) {
	c := newTestCache(testutil.NewFakeClock(time.Unix(1000, 0)), 5, time.Second)

	c.Set("key", "value1")
	c.Set("key", "value2")

	assert.Equal(t, 1, c.Len())
	v, _ := c.Get("key")
	assert.Equal(t, "value2", v)
}

func TestCache_DeleteAndClear(t *testing.T) {
	c := newTestCache(testutil.NewFakeClock(time.Unix(1000, 0)), 5, time.Second)

	c.Set("a", "1")
	c.Set("b", "2")
	c.Set("c", "3")

	assert.True(t, c.Delete("a"))
	assert.False(t, c.Delete("a"))
	assert.False(t, c.Has("a"))
	assert.Equal(t, 2, c.Len())

	c.Clear()
	assert.Equal(t, 0, c.Len())
	assert.False(t, c.Has("b"))

	// Clearing an empty cache is fine.
	c.Clear()
	assert.Equal(t, 0, c.Len())
}

func TestCache_EvictsLeastRecentlySet(t *testing.T) {
	c := newTestCache(testutil.NewFakeClock(time.Unix(1000, 0)), 5, time.Minute)

	for i := 1; i <= 5; i++ {
		c.Set(fmt.Sprintf("key%d", i), fmt.Sprintf("value%d", i))
	}
	require.Equal(t, 5, c.Len())

	c.Set("key6", "value6")

	assert.Equal(t, 5, c.Len())
	assert.False(t, c.Has("key1"))
	assert.True(t, c.Has("key6"))
	assert.Equal(t, int64(1), c.Stats().Evictions)
}

func TestCache_GetRefreshesRecency(t *testing.T) {
	c := newTestCache(testutil.NewFakeClock(time.Unix(1000, 0)), 5, time.Minute)

	for i := 1; i <= 5; i++ {
		c.Set(fmt.Sprintf("key%d", i), "v")
	}

	_, ok := c.Get("key1")
	require.True(t, ok)

	c.Set("key6", "v")

	assert.True(t, c.Has("key1"), "accessed entry must survive")
	assert.False(t, c.Has("key2"), "least recently used entry must be evicted")
	assert.True(t, c.Has("key6"))
}

func TestCache_HasDoesNotRefreshRecency(t *testing.T) {
	c := newTestCache(testutil.NewFakeClock(time.Unix(1000, 0)), 2, time.Minute)

	c.Set("a", "1")
	c.Set("b", "2")
	assert.True(t, c.Has("a"))

	c.Set("c", "3")
	assert.False(t, c.Has("a"))
	assert.True(t, c.Has("b"))
}

func TestCache_NeverExceedsMax(t *testing.T) {
	c := newTestCache(testutil.NewFakeClock(time.Unix(1000, 0)), 5, time.Minute)

	for i := 1; i <= 10; i++ {
		c.Set(fmt.Sprintf("key%d", i), "v")
	}
	assert.Equal(t, 5, c.Len())
}

func TestCache_TTLExpiry(t *testing.T) {
	clock := testutil.NewFakeClock(time.Unix(1000, 0))
	c := newTestCache(clock, 5, 50*time.Millisecond)

	c.Set("key", "value")
	assert.True(t, c.Has("key"))

	clock.Advance(60 * time.Millisecond)

	assert.False(t, c.Has("key"))
	_, ok := c.Get("key")
	assert.False(t, ok)
}

func TestCache_WithinTTL(t *testing.T) {
	clock := testutil.NewFakeClock(time.Unix(1000, 0))
	c := newTestCache(clock, 5, 100*time.Millisecond)

	c.Set("key", "value")
	clock.Advance(30 * time.Millisecond)

	v, ok := c.Get("key")
	assert.True(t, ok)
	assert.Equal(t, "value", v)
}

func TestCache_PerEntryTTL(t *testing.T) {
	clock := testutil.NewFakeClock(time.Unix(1000, 0))
	c := newTestCache(clock, 5, 50*time.Millisecond)

	c.Set("key1", "value1", WithTTL(100*time.Millisecond))
	c.Set("key2", "value2")

	clock.Advance(70 * time.Millisecond)

	assert.True(t, c.Has("key1"))
	assert.False(t, c.Has("key2"))
}

func TestCache_GetResetsAge(t *testing.T) {
	clock := testutil.NewFakeClock(time.Unix(1000, 0))
	c := newTestCache(clock, 5, 80*time.Millisecond)

	c.Set("key", "value")
	clock.Advance(60 * time.Millisecond)

	_, ok := c.Get("key")
	require.True(t, ok)

	clock.Advance(40 * time.Millisecond)

	v, ok := c.Get("key")
	assert.True(t, ok)
	assert.Equal(t, "value", v)
}

func TestCache_Defaults(t *testing.T) {
	c := New[int](Options{})

	for i := 0; i < DefaultMax+100; i++ {
		c.Set(fmt.Sprintf("key%d", i), i)
	}
	assert.Equal(t, DefaultMax, c.Len())
}

func TestCache_EmptyAndLongKeys(t *testing.T) {
	c := newTestCache(testutil.NewFakeClock(time.Unix(1000, 0)), 5, time.Second)

	c.Set("", "empty")
	v, ok := c.Get("")
	assert.True(t, ok)
	assert.Equal(t, "empty", v)

	long := string(make([]byte, 1000))
	c.Set(long, "long")
	v, ok = c.Get(long)
	assert.True(t, ok)
	assert.Equal(t, "long", v)
}

func TestCache_Stats(t *testing.T) {
	c := newTestCache(testutil.NewFakeClock(time.Unix(1000, 0)), 5, time.Second)

	c.Set("a", "1")
	c.Get("a")
	c.Get("b")

	stats := c.Stats()
	assert.Equal(t, "test", stats.Name)
	assert.Equal(t, 1, stats.Size)
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
}
