package clock

import "time"

// FakeClock is a manually advanced Clock for tests. It always reports UTC and
// only moves when Advance is called, so period math stays deterministic.
type FakeClock struct {
	now time.Time
}

// NewFakeClock returns a FakeClock frozen at t.
func NewFakeClock(t time.Time) *FakeClock {
	return &FakeClock{now: t.UTC()}
}

// Now reports the frozen instant.
func (c *FakeClock) Now() time.Time { return c.now }

// Advance moves the clock forward by d.
func (c *FakeClock) Advance(d time.Duration) {
	c.now = c.now.Add(d)
}
