// Package clock abstracts time so cache expiry and retry backoff can be tested.
package clock

import (
	"sync"
	"time"
)

// Clock abstracts time operations for testing
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

// RealClock uses actual time
type RealClock struct{}

// Now returns the current time
func (RealClock) Now() time.Time {
	return time.Now()
}

// After waits for the duration to elapse and then sends the current time
func (RealClock) After(d time.Duration) <-chan time.Time {
	return time.After(d)
}

// MockClock is a manually driven Clock.
type MockClock struct {
	mu      sync.Mutex
	cond    *sync.Cond
	current time.Time
	waiters []*waiter
	waits   []time.Duration
}

type waiter struct {
	deadline time.Time
	ch       chan time.Time
}

// NewMockClock creates a new mock clock
func NewMockClock(t time.Time) *MockClock {
	m := &MockClock{current: t}
	m.cond = sync.NewCond(&m.mu)
	return m
}

// Now returns the mock current time
func (m *MockClock) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// After returns a channel that receives once the clock is advanced past d.
// Non-positive durations fire immediately.
func (m *MockClock) After(d time.Duration) <-chan time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.waits = append(m.waits, d)
	ch := make(chan time.Time, 1)
	if d <= 0 {
		ch <- m.current
		return ch
	}
	m.waiters = append(m.waiters, &waiter{deadline: m.current.Add(d), ch: ch})
	m.cond.Broadcast()
	return ch
}

// Advance moves the mock clock forward and fires expired waiters.
func (m *MockClock) Advance(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.current = m.current.Add(d)
	remaining := m.waiters[:0]
	for _, w := range m.waiters {
		if !w.deadline.After(m.current) {
			w.ch <- m.current
			continue
		}
		remaining = append(remaining, w)
	}
	m.waiters = remaining
}

// Set sets the mock clock to a specific time without firing waiters.
func (m *MockClock) Set(t time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = t
}

// BlockUntil blocks until at least n waiters are pending.
func (m *MockClock) BlockUntil(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for len(m.waiters) < n {
		m.cond.Wait()
	}
}

// Waits returns every duration passed to After, in call order.
func (m *MockClock) Waits() []time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]time.Duration, len(m.waits))
	copy(out, m.waits)
	return out
}
