// ABOUTME: Clock and timer sources used by the scheduler
// ABOUTME: The runtime implementations are backed by the monotonic clock and time.AfterFunc
package cable

import (
	"fmt"
	"sync/atomic"
	"time"
)

// Clock reads the current time in nanoseconds
type Clock interface {
	Nanotime() int64
}

// TimerSource is a one-shot timer that the scheduler rearms on every tick
type TimerSource interface {
	// Arm schedules the next firing after d. A non-positive d fires as soon as possible.
	Arm(d time.Duration) error
	// Cancel stops the timer. Firings after Cancel are dropped.
	Cancel()
}

// TimerFactory creates a timer source that calls fire with itself on each firing
type TimerFactory func(fire func(TimerSource)) (TimerSource, error)

type systemClock struct {
	start time.Time
	epoch int64
}

// SystemClock returns a clock reporting Unix nanoseconds, advanced by the
// monotonic clock so wall-clock steps do not disturb tick pacing.
func SystemClock() Clock {
	now := time.Now()
	return &systemClock{start: now, epoch: now.UnixNano()}
}

func (c *systemClock) Nanotime() int64 {
	return c.epoch + int64(time.Since(c.start))
}

type runtimeTimer struct {
	t         *time.Timer
	fire      func(TimerSource)
	cancelled atomic.Bool
}

// NewRuntimeTimer is the default TimerFactory
func NewRuntimeTimer(fire func(TimerSource)) (TimerSource, error) {
	if fire == nil {
		return nil, fmt.Errorf("%w: nil callback", ErrTimerSource)
	}
	r := &runtimeTimer{fire: fire}
	r.t = time.AfterFunc(time.Hour, r.run)
	r.t.Stop()
	return r, nil
}

func (r *runtimeTimer) Arm(d time.Duration) error {
	if r.cancelled.Load() {
		return fmt.Errorf("%w: timer cancelled", ErrTimerSource)
	}
	if d < 0 {
		d = 0
	}
	r.t.Reset(d)
	return nil
}

func (r *runtimeTimer) Cancel() {
	r.cancelled.Store(true)
	r.t.Stop()
}

func (r *runtimeTimer) run() {
	if r.cancelled.Load() {
		return
	}
	r.fire(r)
}
