package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestLRU(size int, ttl time.Duration) (*LRU[int], *fakeClock) {
	clock := &fakeClock{t: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	c := NewLRU[int](size, ttl)
	c.now = clock.now
	return c, clock
}

func TestLRU_EvictsLeastRecentlyUsed(t *testing.T) {
	c, _ := newTestLRU(2, time.Hour)
	c.Set("a", 1)
	c.Set("b", 2)
	_, _ = c.Get("a")
	c.Set("c", 3)

	_, ok := c.Get("b")
	assert.False(t, ok, "b was least recently used")
	v, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, 1, v)
	assert.Equal(t, 2, c.Len())
}

func TestLRU_Expiry(t *testing.T) {
	c, clock := newTestLRU(10, time.Minute)
	c.Set("a", 1)
	clock.advance(30 * time.Second)
	c.Set("b", 2)
	clock.advance(45 * time.Second)

	_, ok := c.Get("a")
	assert.False(t, ok)
	assert.Equal(t, 1, c.Len())

	clock.advance(time.Minute)
	assert.Equal(t, 1, c.CleanExpired())
	assert.Zero(t, c.Len())
}

func TestLRU_SetOverwritesAndRefreshes(t *testing.T) {
	c, clock := newTestLRU(10, time.Minute)
	c.Set("a", 1)
	clock.advance(50 * time.Second)
	c.Set("a", 7)
	clock.advance(50 * time.Second)

	v, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, 7, v)
}

func TestLRU_DeleteFuncAndPurge(t *testing.T) {
	c, _ := newTestLRU(10, time.Minute)
	c.Set("a", 2)
	c.Set("b", 3)
	c.Set("c", 4)

	n := c.DeleteFunc(func(_ string, v int) bool { return v%2 == 0 })
	assert.Equal(t, 2, n)
	assert.Equal(t, 1, c.Len())

	c.Delete("b")
	c.Delete("missing")
	assert.Zero(t, c.Len())

	c.Set("x", 1)
	c.Purge()
	assert.Zero(t, c.Len())
}

func TestJanitor_SweepAndLifecycle(t *testing.T) {
	c, clock := newTestLRU(10, time.Minute)
	c.Set("a", 1)
	clock.advance(2 * time.Minute)

	j := NewJanitor(nil)
	j.Register(c)
	assert.Equal(t, 1, j.Sweep())

	j.Start(context.Background(), time.Millisecond)
	j.Start(context.Background(), time.Millisecond)
	j.Stop()
	j.Stop()
}
