package token

import (
	"context"
	"sync"
	"time"
)

// MemoryBlacklist is the in-process Blacklist used when no redis is configured.
// Entries disappear once their token would have expired.
type MemoryBlacklist struct {
	mu      sync.Mutex
	now     func() time.Time
	entries map[string]time.Time
}

// NewMemoryBlacklist returns an empty MemoryBlacklist.
func NewMemoryBlacklist(now func() time.Time) *MemoryBlacklist {
	if now == nil {
		now = time.Now
	}
	return &MemoryBlacklist{now: now, entries: make(map[string]time.Time)}
}

func (b *MemoryBlacklist) BlacklistToken(_ context.Context, jti string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	now := b.now()
	for id, until := range b.entries {
		if !now.Before(until) {
			delete(b.entries, id)
		}
	}
	b.entries[jti] = now.Add(ttl)
	return nil
}

func (b *MemoryBlacklist) IsBlacklisted(_ context.Context, jti string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	until, ok := b.entries[jti]
	if !ok {
		return false, nil
	}
	if !b.now().Before(until) {
		delete(b.entries, jti)
		return false, nil
	}
	return true, nil
}
