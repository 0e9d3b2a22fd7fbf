// ABOUTME: Manual clock and timer used to drive the scheduler deterministically
// ABOUTME: Tests advance time and fire ticks by hand instead of sleeping
package cable

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

type manualClock struct {
	now atomic.Int64
}

func newManualClock(start int64) *manualClock {
	c := &manualClock{}
	c.now.Store(start)
	return c
}

func (c *manualClock) Nanotime() int64         { return c.now.Load() }
func (c *manualClock) Set(t int64)             { c.now.Store(t) }
func (c *manualClock) Advance(d time.Duration) { c.now.Add(int64(d)) }

type manualTimer struct {
	mu        sync.Mutex
	fire      func(TimerSource)
	armed     []time.Duration
	cancelled bool
	armErr    error
}

func (t *manualTimer) Arm(d time.Duration) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.armErr != nil {
		return t.armErr
	}
	t.armed = append(t.armed, d)
	return nil
}

func (t *manualTimer) Cancel() {
	t.mu.Lock()
	t.cancelled = true
	t.mu.Unlock()
}

// Fire delivers one tick as the runtime timer would
func (t *manualTimer) Fire() {
	t.fire(t)
}

func (t *manualTimer) LastArmed() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.armed) == 0 {
		return 0
	}
	return t.armed[len(t.armed)-1]
}

func (t *manualTimer) ArmCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.armed)
}

// manualTimers is a TimerFactory that remembers every timer it created
type manualTimers struct {
	created   []*manualTimer
	createErr error
	armErr    error
}

func (m *manualTimers) New(fire func(TimerSource)) (TimerSource, error) {
	if m.createErr != nil {
		return nil, m.createErr
	}
	t := &manualTimer{fire: fire, armErr: m.armErr}
	m.created = append(m.created, t)
	return t, nil
}

func (m *manualTimers) Current() *manualTimer {
	if len(m.created) == 0 {
		return nil
	}
	return m.created[len(m.created)-1]
}

var errNoTimer = errors.New("no timer available")
