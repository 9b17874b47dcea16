package cache

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheGetAdd(t *testing.T) {
	t.Parallel()

	c, err := New[string, string](10, time.Minute)
	require.NoError(t, err)

	_, ok := c.Get("missing")
	assert.False(t, ok)

	c.Add("group/a", "SECURE")
	got, ok := c.Get("group/a")
	require.True(t, ok)
	assert.Equal(t, "SECURE", got)

	c.Add("group/a", "OPEN")
	got, ok = c.Get("group/a")
	require.True(t, ok)
	assert.Equal(t, "OPEN", got)

	c.Remove("group/a")
	_, ok = c.Get("group/a")
	assert.False(t, ok)
}

func TestCacheCapacityEviction(t *testing.T) {
	t.Parallel()

	c, err := New[string, int](3, 0)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		c.Add(fmt.Sprintf("k%d", i), i)
	}

	assert.Equal(t, 3, c.Len())
	// Oldest entries displaced, newest retained.
	_, ok := c.Get("k0")
	assert.False(t, ok)
	_, ok = c.Get("k4")
	assert.True(t, ok)
}

func TestCacheAccessExpiry(t *testing.T) {
	t.Parallel()

	c, err := New[string, string](10, 10*time.Minute)
	require.NoError(t, err)

	now := time.Unix(1_700_000_000, 0)
	c.now = func() time.Time { return now }

	c.Add("id", "SECURE")

	// Repeated access inside the window keeps the entry alive.
	for i := 0; i < 3; i++ {
		now = now.Add(9 * time.Minute)
		got, ok := c.Get("id")
		require.True(t, ok, "access %d", i)
		assert.Equal(t, "SECURE", got)
	}

	// Untouched past the TTL: treated as absent.
	now = now.Add(11 * time.Minute)
	_, ok := c.Get("id")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())
}

func TestCacheZeroTTLNeverExpires(t *testing.T) {
	t.Parallel()

	c, err := New[string, string](10, 0)
	require.NoError(t, err)

	now := time.Unix(1_700_000_000, 0)
	c.now = func() time.Time { return now }

	c.Add("id", "OPEN")
	now = now.Add(24 * time.Hour)
	_, ok := c.Get("id")
	assert.True(t, ok)
}

func TestCachePurge(t *testing.T) {
	t.Parallel()

	c, err := New[string, string](10, time.Minute)
	require.NoError(t, err)

	c.Add("a", "x")
	c.Add("b", "y")
	c.Purge()
	assert.Equal(t, 0, c.Len())
}

func TestCacheInvalidSize(t *testing.T) {
	t.Parallel()

	_, err := New[string, string](0, time.Minute)
	require.Error(t, err)
}
