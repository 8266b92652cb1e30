// Package timer arms wall-clock timers that fire back into the event loop
// as PortKey events, keeping the protocol state machines free of goroutines.
package timer

import (
	"fmt"
	"sync"
	"time"

	"github.com/lcalzada-xor/mlmed/internal/core/domain"
	"github.com/lcalzada-xor/mlmed/internal/core/ports"
)

// Clock abstracts time for deterministic tests.
type Clock interface {
	Now() time.Time
	// AfterFunc runs fn after d and returns a cancel function reporting
	// whether the timer was stopped before firing.
	AfterFunc(d time.Duration, fn func()) (cancel func() bool)
}

// RealClock delegates to the time package.
type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }

func (RealClock) AfterFunc(d time.Duration, fn func()) func() bool {
	t := time.AfterFunc(d, fn)
	return t.Stop
}

// Manager implements ports.TimerManager. Fired timers deliver their PortKey
// on the events channel; the channel owner demuxes them back into the loop.
// Safe for concurrent use: firing callbacks run on clock goroutines.
type Manager struct {
	clock  Clock
	events chan<- domain.PortKey

	mu      sync.Mutex
	nextID  uint64
	pending map[uint64]func() bool
}

// NewManager creates a manager delivering fired timers on events.
func NewManager(clock Clock, events chan<- domain.PortKey) *Manager {
	return &Manager{
		clock:   clock,
		events:  events,
		pending: make(map[uint64]func() bool),
	}
}

// Now returns the clock's current time.
func (m *Manager) Now() time.Time { return m.clock.Now() }

// Schedule arms one timer. Deadlines in the past fire immediately. The
// returned handle names the timer for Cancel and for matching the delivered
// PortKey.
func (m *Manager) Schedule(deadline time.Time, target domain.TimerTarget) (ports.TimerHandle, error) {
	if target == domain.TimerTargetNone {
		return ports.TimerHandle{}, fmt.Errorf("schedule timer: missing target: %w", domain.ErrInvalidArgs)
	}

	m.mu.Lock()
	m.nextID++
	id := m.nextID
	m.mu.Unlock()

	delay := deadline.Sub(m.clock.Now())
	if delay < 0 {
		delay = 0
	}

	cancel := m.clock.AfterFunc(delay, func() {
		m.mu.Lock()
		delete(m.pending, id)
		m.mu.Unlock()
		m.events <- domain.PortKey{
			Subtype: domain.PortSubtypeTimer,
			Target:  target,
			ID:      id,
		}
	})

	m.mu.Lock()
	m.pending[id] = cancel
	m.mu.Unlock()

	return ports.TimerHandle{Target: target, ID: id}, nil
}

// Cancel stops a pending timer. Already-fired or unknown handles are a no-op;
// the consumer must tolerate a late PortKey that raced the cancel.
func (m *Manager) Cancel(handle ports.TimerHandle) {
	m.mu.Lock()
	cancel, ok := m.pending[handle.ID]
	if ok {
		delete(m.pending, handle.ID)
	}
	m.mu.Unlock()
	if ok {
		cancel()
	}
}

// PendingCount reports armed timers, for introspection and tests.
func (m *Manager) PendingCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending)
}
