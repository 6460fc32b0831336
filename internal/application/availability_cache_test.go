package application

import (
	"testing"
	"time"
)

func TestMonthCacheExpiresEntries(t *testing.T) {
	current := referenceTime
	cache := newMonthCache(time.Minute, 2, func() time.Time { return current })
	key := monthCacheKey("mentor-1", 2024, time.May)

	if !cache.Store(key, "mentor-1", cache.Generation("mentor-1"), MonthAvailability{MentorID: "mentor-1", Days: []int{6}}) {
		t.Fatalf("expected view to be stored")
	}
	hit, ok := cache.Get(key)
	if !ok || len(hit.Days) != 1 {
		t.Fatalf("expected cache hit, got %v %v", hit, ok)
	}
	hit.Days[0] = 99
	if again, _ := cache.Get(key); again.Days[0] != 6 {
		t.Fatalf("expected cached views to be copied")
	}

	current = current.Add(2 * time.Minute)
	if _, ok := cache.Get(key); ok {
		t.Fatalf("expected entry to expire")
	}
}

func TestMonthCacheInvalidateMentorAndEviction(t *testing.T) {
	current := referenceTime
	cache := newMonthCache(time.Minute, 2, func() time.Time { return current })

	cache.Store(monthCacheKey("mentor-1", 2024, time.May), "mentor-1", 0, MonthAvailability{})
	current = current.Add(time.Second)
	cache.Store(monthCacheKey("mentor-2", 2024, time.May), "mentor-2", 0, MonthAvailability{})
	current = current.Add(time.Second)
	cache.Store(monthCacheKey("mentor-2", 2024, time.June), "mentor-2", 0, MonthAvailability{})

	if _, ok := cache.Get(monthCacheKey("mentor-1", 2024, time.May)); ok {
		t.Fatalf("expected oldest entry to be evicted")
	}

	cache.InvalidateMentor("mentor-2")
	if _, ok := cache.Get(monthCacheKey("mentor-2", 2024, time.June)); ok {
		t.Fatalf("expected mentor entries to be invalidated")
	}
}

func TestMonthCacheRejectsViewsReadBeforeInvalidation(t *testing.T) {
	cache := newMonthCache(time.Minute, 0, fixedNow)
	key := monthCacheKey("mentor-1", 2024, time.May)

	before := cache.Generation("mentor-1")
	cache.InvalidateMentor("mentor-1")
	if cache.Store(key, "mentor-1", before, MonthAvailability{Days: []int{6}}) {
		t.Fatalf("expected a view read before invalidation to be rejected")
	}
	if _, ok := cache.Get(key); ok {
		t.Fatalf("expected no entry after rejected store")
	}

	other := cache.Generation("mentor-2")
	cache.InvalidateMentor("mentor-1")
	if !cache.Store(monthCacheKey("mentor-2", 2024, time.May), "mentor-2", other, MonthAvailability{}) {
		t.Fatalf("expected invalidating one mentor to leave others cacheable")
	}

	after := cache.Generation("mentor-1")
	if after != before+2 {
		t.Fatalf("expected generation %d, got %d", before+2, after)
	}
	if !cache.Store(key, "mentor-1", after, MonthAvailability{Days: []int{6}}) {
		t.Fatalf("expected a current view to be stored")
	}
}

func TestMonthCacheDisabledWithoutPositiveTTL(t *testing.T) {
	for _, ttl := range []time.Duration{0, -time.Second} {
		cache := newMonthCache(ttl, 0, fixedNow)
		if cache != nil {
			t.Fatalf("expected ttl %s to disable the cache", ttl)
		}
		if cache.Store("k", "mentor-1", cache.Generation("mentor-1"), MonthAvailability{}) {
			t.Fatalf("expected nil cache to refuse stores")
		}
		cache.InvalidateMentor("mentor-1")
		if _, ok := cache.Get("k"); ok {
			t.Fatalf("expected nil cache to miss")
		}
	}
}
