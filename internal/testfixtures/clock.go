package testfixtures

import (
	"sync"
	"time"

	"github.com/example/mentorbook/internal/availability"
)

// Clock is the time source of a fixture stack. Services, the month cache and
// the token manager all read it, so Advance ages cached views and issued
// tokens together.
type Clock struct {
	mu  sync.RWMutex
	now time.Time
}

// NewClock starts a clock at start in UTC, or at ReferenceTime when start is
// the zero value.
func NewClock(start time.Time) *Clock {
	if start.IsZero() {
		start = ReferenceTime()
	}
	return &Clock{now: start.UTC()}
}

func (c *Clock) Now() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.now
}

// NowFunc is Now in the shape services take. A nil clock falls back to
// wall time.
func (c *Clock) NowFunc() func() time.Time {
	if c == nil {
		return time.Now
	}
	return c.Now
}

// Advance moves the clock forward and returns the new instant. The clock
// never runs backwards; a negative d panics.
func (c *Clock) Advance(d time.Duration) time.Time {
	if d < 0 {
		panic("testfixtures: clock cannot move backwards")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	return c.now
}

// Today is the clock's current date in the YYYY-MM-DD form sessions use.
func (c *Clock) Today() string {
	return availability.FormatDate(c.Now())
}
