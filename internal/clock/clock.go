// Package clock abstracts time so expiry and retention logic can be tested
// without waiting.
package clock

import (
	"sync"
	"time"
)

type Clock interface {
	Now() time.Time
}

// Real uses the system time.
type Real struct{}

func (Real) Now() time.Time {
	return time.Now()
}

// Mock is a manually advanced clock.
type Mock struct {
	mu      sync.RWMutex
	current time.Time
}

// NewMock creates a mock clock set to t, or to the current time if t is zero.
func NewMock(t time.Time) *Mock {
	if t.IsZero() {
		t = time.Now()
	}
	return &Mock{current: t}
}

func (m *Mock) Now() time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

func (m *Mock) Advance(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = m.current.Add(d)
}

func (m *Mock) Set(t time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = t
}
