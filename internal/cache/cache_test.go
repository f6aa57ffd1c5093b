package cache

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestCache_FreshHit(t *testing.T) {
	c := New[string]()
	c.Put("firefox:10", "result", time.Minute)

	got, ok := c.Get("firefox:10")
	if !ok {
		t.Fatal("expected hit for fresh entry")
	}
	if got != "result" {
		t.Fatalf("expected %q, got %q", "result", got)
	}
}

func TestCache_Miss(t *testing.T) {
	c := New[string]()
	if _, ok := c.Get("absent"); ok {
		t.Fatal("expected miss for absent key")
	}
}

func TestCache_ExpiredEntryMissesAndIsEvicted(t *testing.T) {
	c := New[string]()
	c.Put("key", "stale", -time.Second)

	if _, ok := c.Get("key"); ok {
		t.Fatal("expected miss for expired entry")
	}
	if c.Len() != 0 {
		t.Fatalf("expired entry not evicted, len=%d", c.Len())
	}
}

func TestCache_PutOverwrites(t *testing.T) {
	c := New[string]()
	c.Put("key", "first", time.Minute)
	c.Put("key", "second", time.Minute)

	got, ok := c.Get("key")
	if !ok || got != "second" {
		t.Fatalf("expected overwrite to win, got %q ok=%v", got, ok)
	}
	if c.Len() != 1 {
		t.Fatalf("expected single entry, len=%d", c.Len())
	}
}

func TestCache_PutRefreshesExpiry(t *testing.T) {
	c := New[string]()
	c.Put("key", "old", -time.Second)
	c.Put("key", "new", time.Minute)

	if _, ok := c.Get("key"); !ok {
		t.Fatal("re-put entry should be fresh")
	}
}

func TestCache_Sweep(t *testing.T) {
	c := New[int]()
	c.Put("live-1", 1, time.Minute)
	c.Put("live-2", 2, time.Minute)
	c.Put("dead-1", 3, -time.Second)
	c.Put("dead-2", 4, -time.Second)

	if removed := c.Sweep(); removed != 2 {
		t.Fatalf("expected 2 removed, got %d", removed)
	}
	if c.Len() != 2 {
		t.Fatalf("expected 2 remaining, got %d", c.Len())
	}
	if removed := c.Sweep(); removed != 0 {
		t.Fatalf("second sweep should remove nothing, got %d", removed)
	}
}

func TestCache_ConcurrentAccess(t *testing.T) {
	c := New[int]()
	var wg sync.WaitGroup

	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				key := fmt.Sprintf("key-%d", j%8)
				c.Put(key, n, time.Minute)
				c.Get(key)
				if j%50 == 0 {
					c.Sweep()
				}
			}
		}(i)
	}
	wg.Wait()

	// Last writer wins per key; every surviving value must be one that
	// some goroutine actually wrote.
	for j := 0; j < 8; j++ {
		v, ok := c.Get(fmt.Sprintf("key-%d", j))
		if !ok {
			t.Fatalf("key-%d missing after concurrent writes", j)
		}
		if v < 0 || v >= 16 {
			t.Fatalf("key-%d holds impossible value %d", j, v)
		}
	}
}

func TestFamilies_TTLs(t *testing.T) {
	tests := []struct {
		family Family
		want   time.Duration
	}{
		{FamilySearch, 10 * time.Minute},
		{FamilyPackageInfo, 30 * time.Minute},
		{FamilyLocate, 5 * time.Minute},
		{FamilyEval, 5 * time.Minute},
		{FamilyPrefetch, 24 * time.Hour},
		{FamilyClosureSize, 30 * time.Minute},
		{FamilyDerivation, 30 * time.Minute},
	}
	for _, tt := range tests {
		if got := tt.family.TTL(); got != tt.want {
			t.Errorf("%s: expected %v, got %v", tt.family, tt.want, got)
		}
		if !tt.family.Known() {
			t.Errorf("%s should be known", tt.family)
		}
	}
	if Family("bogus").Known() {
		t.Error("unknown family should not be known")
	}
}

func TestSet_RoutesByFamily(t *testing.T) {
	s := NewSet[string](nil)

	s.Put(FamilySearch, "firefox:10", "search result")
	s.Put(FamilyEval, "1 + 1", "2")

	if v, ok := s.Get(FamilySearch, "firefox:10"); !ok || v != "search result" {
		t.Fatalf("search family lookup failed: %q ok=%v", v, ok)
	}
	if _, ok := s.Get(FamilyEval, "firefox:10"); ok {
		t.Fatal("families must not share keyspaces")
	}
	if s.Len() != 2 {
		t.Fatalf("expected 2 entries total, got %d", s.Len())
	}
}

func TestSet_UnknownFamilyAlwaysMisses(t *testing.T) {
	s := NewSet[string](nil)
	s.Put(Family("bogus"), "k", "v")
	if _, ok := s.Get(Family("bogus"), "k"); ok {
		t.Fatal("unknown family should drop writes")
	}
}

func TestSet_TTLOverride(t *testing.T) {
	s := NewSet[string](map[Family]time.Duration{FamilySearch: time.Hour})
	if got := s.TTL(FamilySearch); got != time.Hour {
		t.Fatalf("expected overridden TTL 1h, got %v", got)
	}
	if got := s.TTL(FamilyEval); got != 5*time.Minute {
		t.Fatalf("expected default TTL for eval, got %v", got)
	}
}

func BenchmarkCache_Get_FreshHit(b *testing.B) {
	c := New[string]()
	c.Put("key", "value", time.Hour)

	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		c.Get("key")
	}
}
