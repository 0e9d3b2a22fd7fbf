// ABOUTME: Self-rearming drift-corrected scheduler advancing the chunk counter
// ABOUTME: Each interval is corrected by the previous miss so timing error never accumulates
package cable

import (
	"fmt"
	"sync/atomic"
	"time"
)

type timerSlot struct {
	src TimerSource
}

// Scheduler owns the chunk counter and paces it at one chunk per interval.
// Start and Stop must not be called concurrently with each other; the
// tick itself touches only atomics.
type Scheduler struct {
	chunkCount int
	clock      Clock
	newTimer   TimerFactory
	onTick     func()

	interval     atomic.Int64
	counter      atomic.Int64
	nextDeadline atomic.Int64
	startedAt    atomic.Int64
	lastWrap     atomic.Int64

	timer   atomic.Pointer[timerSlot]
	running atomic.Bool

	ticks          atomic.Uint64
	wraps          atomic.Uint64
	lastDrift      atomic.Int64
	worstLateness  atomic.Int64
	lastProgrammed atomic.Int64
}

// NewScheduler creates a stopped scheduler. onTick runs at the start of
// every tick, before the counter advances.
func NewScheduler(chunkCount int, interval time.Duration, clock Clock, newTimer TimerFactory, onTick func()) (*Scheduler, error) {
	if chunkCount <= 0 {
		return nil, fmt.Errorf("%w: chunk count %d", ErrInvalidConfig, chunkCount)
	}
	if interval <= 0 {
		return nil, fmt.Errorf("%w: interval %v", ErrInvalidConfig, interval)
	}
	if clock == nil {
		clock = SystemClock()
	}
	if newTimer == nil {
		newTimer = NewRuntimeTimer
	}

	s := &Scheduler{
		chunkCount: chunkCount,
		clock:      clock,
		newTimer:   newTimer,
		onTick:     onTick,
	}
	s.interval.Store(int64(interval))
	return s, nil
}

// Start resets the counter and arms the first tick one interval from now
func (s *Scheduler) Start() error {
	if s.running.Load() {
		return nil
	}

	src, err := s.newTimer(s.tick)
	if err != nil {
		return fmt.Errorf("%w: create: %v", ErrTimerSource, err)
	}
	if src == nil {
		return fmt.Errorf("%w: factory returned no timer", ErrTimerSource)
	}

	now := s.clock.Nanotime()
	interval := s.interval.Load()
	s.counter.Store(0)
	s.startedAt.Store(now)
	s.lastWrap.Store(now)
	s.nextDeadline.Store(now + interval)
	s.ticks.Store(0)
	s.wraps.Store(0)
	s.lastDrift.Store(0)
	s.worstLateness.Store(0)
	s.lastProgrammed.Store(interval)

	s.timer.Store(&timerSlot{src: src})
	s.running.Store(true)

	if err := src.Arm(time.Duration(interval)); err != nil {
		s.running.Store(false)
		s.timer.Store(nil)
		src.Cancel()
		return fmt.Errorf("%w: arm: %v", ErrTimerSource, err)
	}
	return nil
}

// Stop cancels the pending tick. Nothing fires until the next Start.
func (s *Scheduler) Stop() {
	s.running.Store(false)
	if slot := s.timer.Swap(nil); slot != nil {
		slot.src.Cancel()
	}
}

// Running reports whether the scheduler is started
func (s *Scheduler) Running() bool {
	return s.running.Load()
}

// SetInterval changes the nominal interval. It takes effect when the next
// tick rearms; the deadline phase and counter are left alone.
func (s *Scheduler) SetInterval(d time.Duration) {
	s.interval.Store(int64(d))
}

// Interval returns the nominal interval
func (s *Scheduler) Interval() time.Duration {
	return time.Duration(s.interval.Load())
}

// Counter returns the current chunk index in [0, chunkCount)
func (s *Scheduler) Counter() int {
	return int(s.counter.Load())
}

// NextDeadline returns the absolute time, in clock nanoseconds, the next tick is aimed at
func (s *Scheduler) NextDeadline() int64 {
	return s.nextDeadline.Load()
}

// LastWrap returns the clock time of the last wrap to chunk 0, or of Start
func (s *Scheduler) LastWrap() int64 {
	return s.lastWrap.Load()
}

// tick is the timer callback. Firings from a timer that is no longer the
// current one are dropped. A nil source still advances the counter but
// cannot be rearmed.
func (s *Scheduler) tick(src TimerSource) {
	if !s.running.Load() {
		return
	}
	if src != nil {
		slot := s.timer.Load()
		if slot == nil || slot.src != src {
			return
		}
	}

	if s.onTick != nil {
		s.onTick()
	}

	if c := s.counter.Load(); c >= int64(s.chunkCount-1) {
		s.counter.Store(0)
		s.lastWrap.Store(s.clock.Nanotime())
		s.wraps.Add(1)
	} else {
		s.counter.Store(c + 1)
	}
	s.ticks.Add(1)

	// Without a source the hook and counter have already run; only the rearm is skipped
	if src == nil {
		return
	}

	now := s.clock.Nanotime()
	deadline := s.nextDeadline.Load()
	interval := s.interval.Load()
	drift := deadline - now

	s.lastDrift.Store(drift)
	if -drift > s.worstLateness.Load() {
		s.worstLateness.Store(-drift)
	}

	next := interval + drift
	s.lastProgrammed.Store(next)
	s.nextDeadline.Store(deadline + interval)

	// A failed rearm leaves the scheduler running with no pending tick; Stop still cleans up.
	_ = src.Arm(time.Duration(next))
}

// SchedulerStats is a point-in-time view of the scheduler diagnostics
type SchedulerStats struct {
	Running        bool
	Counter        int
	Ticks          uint64
	Wraps          uint64
	Interval       time.Duration
	LastDrift      time.Duration
	WorstLateness  time.Duration
	LastProgrammed time.Duration
	NextDeadline   int64
	LastWrap       int64
}

// Stats returns the current diagnostics. Fields are read individually
// and may be from adjacent ticks.
func (s *Scheduler) Stats() SchedulerStats {
	return SchedulerStats{
		Running:        s.running.Load(),
		Counter:        int(s.counter.Load()),
		Ticks:          s.ticks.Load(),
		Wraps:          s.wraps.Load(),
		Interval:       time.Duration(s.interval.Load()),
		LastDrift:      time.Duration(s.lastDrift.Load()),
		WorstLateness:  time.Duration(s.worstLateness.Load()),
		LastProgrammed: time.Duration(s.lastProgrammed.Load()),
		NextDeadline:   s.nextDeadline.Load(),
		LastWrap:       s.lastWrap.Load(),
	}
}
