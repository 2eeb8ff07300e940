package cache

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

func newClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func TestGetReturnsValueWithinTTL(t *testing.T) {
	clock := newClock()
	c := NewTTL[string](time.Minute, WithClock(clock.Now))

	c.Set("weather:berlin", "sunny")
	clock.Advance(59 * time.Second)

	got, ok := c.Get("weather:berlin")
	require.True(t, ok)
	require.Equal(t, "sunny", got)
}

func TestGetAfterExpiryIsMissAndEvicts(t *testing.T) {
	clock := newClock()
	c := NewTTL[int](5*time.Minute, WithClock(clock.Now))

	c.Set("k", 42)
	clock.Advance(5*time.Minute + time.Millisecond)

	_, ok := c.Get("k")
	require.False(t, ok)
	require.Equal(t, 0, c.Len(), "stale entry should be evicted on read")
}

func TestEntryAtExactDeadlineIsStillValid(t *testing.T) {
	clock := newClock()
	c := NewTTL[int](time.Minute, WithClock(clock.Now))

	c.Set("k", 1)
	clock.Advance(time.Minute)

	_, ok := c.Get("k")
	require.True(t, ok)
}

func TestSetRestartsTTL(t *testing.T) {
	clock := newClock()
	c := NewTTL[int](time.Minute, WithClock(clock.Now))

	c.Set("k", 1)
	clock.Advance(50 * time.Second)
	c.Set("k", 2)
	clock.Advance(50 * time.Second)

	got, ok := c.Get("k")
	require.True(t, ok)
	require.Equal(t, 2, got)
}

func TestPurgeRemovesOnlyExpired(t *testing.T) {
	clock := newClock()
	c := NewTTL[string](time.Minute, WithClock(clock.Now))

	c.Set("old", "a")
	clock.Advance(45 * time.Second)
	c.Set("fresh", "b")
	clock.Advance(30 * time.Second)

	require.Equal(t, 1, c.Purge())
	require.Equal(t, 1, c.Len())
	_, ok := c.Get("fresh")
	require.True(t, ok)
}

func TestNonPositiveTTLFallsBackToDefault(t *testing.T) {
	c := NewTTL[int](0)
	require.Equal(t, DefaultTTL, c.TTL())
}

func TestDelete(t *testing.T) {
	c := NewTTL[int](time.Minute)
	c.Set("k", 1)
	c.Delete("k")

	_, ok := c.Get("k")
	require.False(t, ok)
}

func TestConcurrentAccess(t *testing.T) {
	c := NewTTL[int](time.Minute)
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			c.Set("shared", n)
			c.Get("shared")
			c.Purge()
		}(i)
	}
	wg.Wait()

	_, ok := c.Get("shared")
	require.True(t, ok)
}
