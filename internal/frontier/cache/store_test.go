package cache

import (
	"testing"
	"time"
)

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time          { return c.now }
func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestStore(t *testing.T, ttl time.Duration) (*Store, *fakeClock) {
	t.Helper()
	clock := &fakeClock{now: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)}
	s, err := NewStore(ttl, 16, WithClock(clock.Now))
	if err != nil {
		t.Fatal(err)
	}
	return s, clock
}

func TestStore_GetSet(t *testing.T) {
	s, _ := newTestStore(t, time.Minute)

	if _, ok := s.Get("headlines:business:3"); ok {
		t.Fatal("expected miss on empty store")
	}

	s.Set("headlines:business:3", []string{"a", "b"})
	v, ok := s.Get("headlines:business:3")
	if !ok {
		t.Fatal("expected hit after Set")
	}
	if got := v.([]string); len(got) != 2 {
		t.Fatalf("unexpected value: %v", got)
	}
}

func TestStore_LazyExpiry(t *testing.T) {
	s, clock := newTestStore(t, 5*time.Minute)
	s.Set("k", 1)

	clock.Advance(5*time.Minute - time.Second)
	if _, ok := s.Get("k"); !ok {
		t.Fatal("expected hit just inside the TTL")
	}

	clock.Advance(time.Second)
	if _, ok := s.Get("k"); ok {
		t.Fatal("expected miss once the TTL has elapsed")
	}
	if s.Len() != 1 {
		t.Fatalf("expired entry should not be evicted eagerly, len=%d", s.Len())
	}

	s.Set("k", 2)
	v, ok := s.Get("k")
	if !ok || v.(int) != 2 {
		t.Fatalf("expected overwrite to restore the entry, got %v %v", v, ok)
	}
}

func TestStore_SetOverwritesTimestamp(t *testing.T) {
	s, clock := newTestStore(t, time.Minute)
	s.Set("k", "old")
	clock.Advance(50 * time.Second)
	s.Set("k", "new")
	clock.Advance(50 * time.Second)

	v, ok := s.Get("k")
	if !ok || v.(string) != "new" {
		t.Fatalf("expected refreshed entry, got %v %v", v, ok)
	}
}

func TestStore_Clear(t *testing.T) {
	s, _ := newTestStore(t, time.Minute)
	s.Set("a", 1)
	s.Set("b", 2)
	s.Clear()

	if s.Len() != 0 {
		t.Fatalf("expected empty store, len=%d", s.Len())
	}
	if _, ok := s.Get("a"); ok {
		t.Fatal("expected miss after Clear")
	}
}

func TestStore_SetIfCurrentSkipsWritesFromBeforeClear(t *testing.T) {
	s, _ := newTestStore(t, time.Minute)

	gen := s.Generation()
	if !s.SetIfCurrent(gen, "a", 1) {
		t.Fatal("expected write in the current generation to be stored")
	}

	s.Clear()
	if s.Generation() == gen {
		t.Fatal("expected Clear to start a new generation")
	}
	if s.SetIfCurrent(gen, "b", 2) {
		t.Fatal("expected write from an earlier generation to be dropped")
	}
	if _, ok := s.Get("b"); ok {
		t.Fatal("stale write repopulated the cleared store")
	}
}

func TestNewStore_Defaults(t *testing.T) {
	s, err := NewStore(0, 0)
	if err != nil {
		t.Fatal(err)
	}
	if s.TTL() != DefaultTTL {
		t.Fatalf("expected default TTL, got %s", s.TTL())
	}
}

func TestFingerprint(t *testing.T) {
	a := Fingerprint("search", "stock market", 20, 1)
	b := Fingerprint("search", "stock market", 20, 1)
	if a != b {
		t.Fatalf("expected identical fingerprints, got %q and %q", a, b)
	}

	if Fingerprint("search", "a:b", "c") == Fingerprint("search", "a", "b:c") {
		t.Fatal("expected escaped params not to collide")
	}
	if Fingerprint("headlines", "business", 3) == Fingerprint("headlines", "business", 10) {
		t.Fatal("expected page size to be part of the fingerprint")
	}
	if Fingerprint("image", "ecb") == Fingerprint("videos", "ecb") {
		t.Fatal("expected operation name to be part of the fingerprint")
	}
}
