package packager

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avelichko/clip-keeper/internal/logger"
)

type tickClock struct{ t time.Time }

func (c *tickClock) Now() time.Time          { return c.t }
func (c *tickClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func openTestCache(t *testing.T, maxBytes int64, ttl time.Duration, clock *tickClock) *Cache {
	t.Helper()
	c, err := OpenCache(t.TempDir(), maxBytes, ttl, clock, logger.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestCache_PutGetRoundTrip(t *testing.T) {
	clock := &tickClock{t: time.UnixMilli(0)}
	c := openTestCache(t, 1<<20, time.Hour, clock)

	require.NoError(t, c.Put("pkg-a", []byte("archive-bytes")))

	got, ok := c.Get("pkg-a")
	require.True(t, ok)
	assert.Equal(t, []byte("archive-bytes"), got)

	_, ok = c.Get("missing")
	assert.False(t, ok)
}

func TestCache_TTLExpiry(t *testing.T) {
	clock := &tickClock{t: time.UnixMilli(0)}
	c := openTestCache(t, 1<<20, time.Minute, clock)

	require.NoError(t, c.Put("pkg-a", []byte("data")))

	clock.advance(2 * time.Minute)
	_, ok := c.Get("pkg-a")
	assert.False(t, ok, "expired entry must be a miss")

	size, err := c.Size()
	require.NoError(t, err)
	assert.Zero(t, size)
}

func TestCache_EvictsLeastRecentlyAccessed(t *testing.T) {
	clock := &tickClock{t: time.UnixMilli(0)}
	c := openTestCache(t, 30, time.Hour, clock)

	require.NoError(t, c.Put("old", make([]byte, 10)))
	clock.advance(time.Second)
	require.NoError(t, c.Put("mid", make([]byte, 10)))
	clock.advance(time.Second)
	require.NoError(t, c.Put("new", make([]byte, 10)))

	// Touch "old" so "mid" becomes the LRU victim.
	clock.advance(time.Second)
	_, ok := c.Get("old")
	require.True(t, ok)

	clock.advance(time.Second)
	require.NoError(t, c.Put("extra", make([]byte, 10)))

	_, ok = c.Get("mid")
	assert.False(t, ok, "least recently accessed entry must be evicted")
	_, ok = c.Get("old")
	assert.True(t, ok)
	_, ok = c.Get("new")
	assert.True(t, ok)
	_, ok = c.Get("extra")
	assert.True(t, ok)
}

func TestCache_SizeStaysBounded(t *testing.T) {
	clock := &tickClock{t: time.UnixMilli(0)}
	c := openTestCache(t, 100, time.Hour, clock)

	for i := 0; i < 20; i++ {
		clock.advance(time.Second)
		require.NoError(t, c.Put(fmt.Sprintf("pkg-%02d", i), make([]byte, 25)))

		size, err := c.Size()
		require.NoError(t, err)
		assert.LessOrEqual(t, size, int64(100))
	}
}

func TestCache_OversizeBlobNotCached(t *testing.T) {
	clock := &tickClock{t: time.UnixMilli(0)}
	c := openTestCache(t, 10, time.Hour, clock)

	require.NoError(t, c.Put("huge", make([]byte, 100)))

	_, ok := c.Get("huge")
	assert.False(t, ok)
}

func TestCache_Remove(t *testing.T) {
	clock := &tickClock{t: time.UnixMilli(0)}
	c := openTestCache(t, 1<<20, time.Hour, clock)

	require.NoError(t, c.Put("pkg-a", []byte("data")))
	require.NoError(t, c.Remove("pkg-a"))

	_, ok := c.Get("pkg-a")
	assert.False(t, ok)
	// Removing twice is harmless.
	assert.NoError(t, c.Remove("pkg-a"))
}
