// ABOUTME: Signal-presence tracker driving the cable mute state
// ABOUTME: Scrubs the transfer buffer exactly once when a producer reattaches
package cable

import "sync/atomic"

// MuteState is the gate between the transfer buffer and the consumer side
type MuteState int32

const (
	Muted MuteState = iota
	Active
)

func (s MuteState) String() string {
	switch s {
	case Muted:
		return "muted"
	case Active:
		return "active"
	default:
		return "unknown"
	}
}

// Transition is the outcome of one presence observation
type Transition int

const (
	TransitionNone Transition = iota
	TransitionMuted
	TransitionActivated
)

// ClientCounter reports how many producers are attached to the output side
type ClientCounter interface {
	ProducerClients() int
}

// ClientCounterFunc adapts a function to ClientCounter
type ClientCounterFunc func() int

func (f ClientCounterFunc) ProducerClients() int { return f() }

// Presence holds the mute flag. Observe runs on the tick goroutine only;
// State may be called from anywhere.
type Presence struct {
	state    atomic.Int32
	zeroings atomic.Uint64
}

// State returns the current mute state
func (p *Presence) State() MuteState {
	return MuteState(p.state.Load())
}

// Muted reports whether the consumer side should receive silence
func (p *Presence) Muted() bool {
	return p.State() == Muted
}

// Zeroings returns how many Muted→Active scrubs have been done
func (p *Presence) Zeroings() uint64 {
	return p.zeroings.Load()
}

// Reset puts the tracker back into Muted
func (p *Presence) Reset() {
	p.state.Store(int32(Muted))
}

// Observe applies one tick's worth of the mute state machine.
// The buffer is cleared before Active is published, so a reader that
// sees Active also sees the cleared buffer.
func (p *Presence) Observe(clients int, buf *TransferBuffer) Transition {
	if clients <= 0 {
		if p.state.Swap(int32(Muted)) == int32(Muted) {
			return TransitionNone
		}
		return TransitionMuted
	}
	if p.State() == Active {
		return TransitionNone
	}

	buf.Zero()
	p.zeroings.Add(1)
	p.state.Store(int32(Active))
	return TransitionActivated
}
