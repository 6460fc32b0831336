package application

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// monthCache stores recently resolved month views so repeated calendar
// renders skip the store while a mentor's rules and bookings are unchanged.
//
// Every InvalidateMentor bumps the mentor's generation. A view resolved from a
// snapshot taken before the bump is never stored.
type monthCache struct {
	mu          sync.RWMutex
	now         func() time.Time
	ttl         time.Duration
	maxEntries  int
	entries     map[string]monthCacheEntry
	generations map[string]uint64
}

type monthCacheEntry struct {
	view      MonthAvailability
	expiresAt time.Time
}

// newMonthCache returns nil when ttl is not positive. A nil cache never hits.
func newMonthCache(ttl time.Duration, maxEntries int, now func() time.Time) *monthCache {
	if ttl <= 0 {
		return nil
	}
	if maxEntries <= 0 {
		maxEntries = 256
	}
	if now == nil {
		now = time.Now
	}
	return &monthCache{
		now:         now,
		ttl:         ttl,
		maxEntries:  maxEntries,
		entries:     make(map[string]monthCacheEntry),
		generations: make(map[string]uint64),
	}
}

func monthCacheKey(mentorID string, year int, month time.Month) string {
	return fmt.Sprintf("%s|%04d-%02d", mentorID, year, int(month))
}

func (c *monthCache) Get(key string) (MonthAvailability, bool) {
	if c == nil {
		return MonthAvailability{}, false
	}
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return MonthAvailability{}, false
	}
	if c.now().After(entry.expiresAt) {
		c.mu.Lock()
		delete(c.entries, key)
		c.mu.Unlock()
		return MonthAvailability{}, false
	}
	return cloneMonthView(entry.view), true
}

// Generation reports the mentor's invalidation counter. Read it before taking
// the snapshot a view is resolved from.
func (c *monthCache) Generation(mentorID string) uint64 {
	if c == nil {
		return 0
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.generations[mentorID]
}

// Store keeps view under key unless mentorID was invalidated after generation
// was read. It reports whether the view was kept.
func (c *monthCache) Store(key, mentorID string, generation uint64, view MonthAvailability) bool {
	if c == nil {
		return false
	}
	cloned := cloneMonthView(view)
	expiry := c.now().Add(c.ttl)

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.generations[mentorID] != generation {
		return false
	}
	c.cleanupLocked()
	if len(c.entries) >= c.maxEntries {
		c.evictOneLocked()
	}
	c.entries[key] = monthCacheEntry{view: cloned, expiresAt: expiry}
	return true
}

// InvalidateMentor drops every cached month of one mentor.
func (c *monthCache) InvalidateMentor(mentorID string) {
	if c == nil {
		return
	}
	prefix := mentorID + "|"
	c.mu.Lock()
	c.generations[mentorID]++
	for key := range c.entries {
		if strings.HasPrefix(key, prefix) {
			delete(c.entries, key)
		}
	}
	c.mu.Unlock()
}

func (c *monthCache) cleanupLocked() {
	now := c.now()
	for key, entry := range c.entries {
		if now.After(entry.expiresAt) {
			delete(c.entries, key)
		}
	}
}

func (c *monthCache) evictOneLocked() {
	var (
		oldestKey string
		oldest    time.Time
	)
	for key, entry := range c.entries {
		if oldestKey == "" || entry.expiresAt.Before(oldest) {
			oldestKey, oldest = key, entry.expiresAt
		}
	}
	if oldestKey != "" {
		delete(c.entries, oldestKey)
	}
}

func cloneMonthView(view MonthAvailability) MonthAvailability {
	if view.Days != nil {
		view.Days = append([]int(nil), view.Days...)
	}
	return view
}
