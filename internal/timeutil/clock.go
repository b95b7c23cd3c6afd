// Package timeutil provides the time source for run timing and artifact load
// stamps, so both can be pinned in tests.
package timeutil

import (
	"sync"
	"time"
)

// Clock reports the current time.
type Clock interface {
	Now() time.Time
	Since(t time.Time) time.Duration
}

// RealClock reads the system clock.
type RealClock struct{}

func (RealClock) Now() time.Time                  { return time.Now() }
func (RealClock) Since(t time.Time) time.Duration { return time.Since(t) }

// MockClock only moves when told to. A run cost set with WithRunCost is
// added on every Since call, which gives timed runs a fixed nonzero
// duration.
type MockClock struct {
	mu   sync.Mutex
	now  time.Time
	cost time.Duration
}

func NewMockClock(t time.Time) *MockClock {
	return &MockClock{now: t}
}

// WithRunCost sets the amount each Since call advances the clock by.
func (c *MockClock) WithRunCost(d time.Duration) *MockClock {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cost = d
	return c
}

func (c *MockClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d.
func (c *MockClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func (c *MockClock) Since(t time.Time) time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(c.cost)
	return c.now.Sub(t)
}
