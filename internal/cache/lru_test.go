package cache

import (
	"strconv"
	"sync"
	"testing"
	"time"
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
	f.now = f.now.Add(d)
	f.mu.Unlock()
}

func newTestCache(size int, ttl time.Duration) (*LRUCache[string], *fakeClock) {
	clock := &fakeClock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := NewLRUCache[string](size, ttl)
	c.SetClock(clock.Now)
	return c, clock
}

func TestLRUCache_GetSet(t *testing.T) {
	c, _ := newTestCache(10, time.Minute)
	c.Set("a", "1")

	if v, ok := c.Get("a"); !ok || v != "1" {
		t.Errorf("Get(a) = %q, %v; want 1, true", v, ok)
	}
	if _, ok := c.Get("missing"); ok {
		t.Error("Get(missing) should miss")
	}
	c.Delete("a")
	if _, ok := c.Get("a"); ok {
		t.Error("Get after Delete should miss")
	}
}

func TestLRUCache_Expiry(t *testing.T) {
	c, clock := newTestCache(10, time.Minute)
	c.Set("short", "x")
	c.SetWithTTL("long", "y", time.Hour)

	_, exp, ok := c.GetWithExpiry("long")
	if !ok || !exp.Equal(clock.Now().Add(time.Hour)) {
		t.Errorf("GetWithExpiry(long) expiry = %v, want +1h", exp)
	}

	clock.Advance(2 * time.Minute)
	if _, ok := c.Get("short"); ok {
		t.Error("short entry should have expired")
	}
	if _, ok := c.Get("long"); !ok {
		t.Error("long entry should still be present")
	}
}

func TestLRUCache_SetRestartsTTL(t *testing.T) {
	c, clock := newTestCache(10, time.Minute)
	c.Set("k", "1")
	clock.Advance(50 * time.Second)
	c.Set("k", "2")
	clock.Advance(50 * time.Second)

	if v, ok := c.Get("k"); !ok || v != "2" {
		t.Errorf("Get(k) = %q, %v; want 2, true", v, ok)
	}
}

func TestLRUCache_EvictsLeastRecentlyUsed(t *testing.T) {
	c, _ := newTestCache(2, time.Minute)
	c.Set("a", "1")
	c.Set("b", "2")
	c.Get("a")
	c.Set("c", "3")

	if _, ok := c.Get("b"); ok {
		t.Error("b should have been evicted")
	}
	if _, ok := c.Get("a"); !ok {
		t.Error("a was used recently and should remain")
	}
	if c.Size() != 2 {
		t.Errorf("Size() = %d, want 2", c.Size())
	}
}

func TestLRUCache_CleanExpired(t *testing.T) {
	c, clock := newTestCache(100, time.Minute)
	for i := 0; i < 5; i++ {
		c.Set(strconv.Itoa(i), "v")
	}
	c.SetWithTTL("keep", "v", time.Hour)
	clock.Advance(2 * time.Minute)

	if n := c.CleanExpired(); n != 5 {
		t.Errorf("CleanExpired() = %d, want 5", n)
	}
	if c.Size() != 1 {
		t.Errorf("Size() = %d, want 1", c.Size())
	}
}

func TestManager_CleanNow(t *testing.T) {
	c, clock := newTestCache(10, time.Minute)
	c.Set("a", "1")
	clock.Advance(time.Hour)

	m := NewManager()
	m.Register("sessions", c)
	got := m.CleanNow()
	if got["sessions"] != 1 {
		t.Errorf("CleanNow() = %v, want sessions:1", got)
	}
	m.Stop()
	m.Stop()
}

func TestManager_StartStop(t *testing.T) {
	m := NewManager()
	m.Register("x", NewLRUCache[int](1, time.Minute))
	m.StartCleanup(time.Millisecond)
	time.Sleep(5 * time.Millisecond)
	m.Stop()
}
