// ABOUTME: Cable ties the transfer buffer, presence tracker, scheduler and negotiator together
// ABOUTME: One Cable connects one producer stream to one consumer stream
package cable

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Resonate-Protocol/vac-go/pkg/audio"
)

const (
	DefaultChunkSize  = 2048
	DefaultChunkCount = 32
	DefaultSampleRate = 48000
)

// Config describes one cable
type Config struct {
	Name           string
	ChunkSize      int
	ChunkCount     int
	SampleRate     int
	SupportedRates []int

	// Clients reports attached producers. Nil means none are ever attached.
	Clients ClientCounter

	// Clock and NewTimer default to the system clock and time.AfterFunc
	Clock    Clock
	NewTimer TimerFactory

	// Debug logs mute transitions from the tick goroutine
	Debug bool
}

// Cable is a self-clocked loopback between an output and an input stream
type Cable struct {
	id         string
	name       string
	chunkSize  int
	chunkCount int
	clients    ClientCounter
	debug      bool

	buf       *TransferBuffer
	presence  Presence
	sched     *Scheduler
	negotiate *Negotiator

	mu      sync.Mutex // control operations only
	started bool
}

// New builds a stopped cable. Zero geometry fields take the defaults.
func New(cfg Config) (*Cable, error) {
	if cfg.ChunkSize == 0 {
		cfg.ChunkSize = DefaultChunkSize
	}
	if cfg.ChunkCount == 0 {
		cfg.ChunkCount = DefaultChunkCount
	}
	if cfg.SampleRate == 0 {
		cfg.SampleRate = DefaultSampleRate
	}
	if cfg.Name == "" {
		cfg.Name = "cable"
	}

	neg, err := NewNegotiator(cfg.ChunkSize, cfg.SupportedRates, cfg.SampleRate)
	if err != nil {
		return nil, fmt.Errorf("cable %s: %w", cfg.Name, err)
	}
	buf, err := NewTransferBuffer(cfg.ChunkSize, cfg.ChunkCount)
	if err != nil {
		return nil, fmt.Errorf("cable %s: %w", cfg.Name, err)
	}

	c := &Cable{
		id:         uuid.New().String(),
		name:       cfg.Name,
		chunkSize:  cfg.ChunkSize,
		chunkCount: cfg.ChunkCount,
		clients:    cfg.Clients,
		debug:      cfg.Debug,
		buf:        buf,
		negotiate:  neg,
	}

	sched, err := NewScheduler(cfg.ChunkCount, neg.Interval(), cfg.Clock, cfg.NewTimer, c.observe)
	if err != nil {
		return nil, fmt.Errorf("cable %s: %w", cfg.Name, err)
	}
	c.sched = sched
	return c, nil
}

// ID returns the cable's unique instance id
func (c *Cable) ID() string { return c.id }

// Name returns the configured cable name
func (c *Cable) Name() string { return c.name }

// Start resets the counter and mute state and begins ticking
func (c *Cable) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.started {
		return nil
	}
	c.presence.Reset()
	if err := c.sched.Start(); err != nil {
		return fmt.Errorf("cable %s: start: %w", c.name, err)
	}
	c.started = true
	log.Printf("[cable %s] started: %d Hz, %d x %d frames, interval %v",
		c.name, c.negotiate.Rate(), c.chunkCount, c.chunkSize, c.negotiate.Interval())
	return nil
}

// Stop cancels the pending tick
func (c *Cable) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.started {
		return nil
	}
	c.sched.Stop()
	c.started = false
	log.Printf("[cable %s] stopped", c.name)
	return nil
}

// ChangeFormat switches the sample rate. Only the tick interval changes.
func (c *Cable) ChangeFormat(rate int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	old := c.negotiate.Rate()
	interval, err := c.negotiate.ChangeRate(rate)
	if err != nil {
		return fmt.Errorf("cable %s: %w", c.name, err)
	}
	c.sched.SetInterval(interval)
	if old != rate {
		log.Printf("[cable %s] rate %d -> %d Hz, interval %v", c.name, old, rate, interval)
	}
	return nil
}

// CurrentFramePosition returns the frame index the engine has reached
func (c *Cable) CurrentFramePosition() int {
	return c.sched.Counter() * c.chunkSize
}

// ClipOutput stores producer frames in the transfer buffer
func (c *Cable) ClipOutput(mix []byte, firstFrame, frameCount int, format audio.Format) error {
	if err := c.negotiate.Validate(format); err != nil {
		return err
	}
	return c.buf.Write(mix, firstFrame, frameCount)
}

// ConvertInput hands frames to the consumer side, or silence while muted.
// dst is always filled from its own frame 0.
func (c *Cable) ConvertInput(dst []byte, firstFrame, frameCount int, format audio.Format) error {
	if err := c.negotiate.Validate(format); err != nil {
		return err
	}
	return c.buf.Read(dst, firstFrame, frameCount, c.presence.Muted())
}

func (c *Cable) observe() {
	clients := 0
	if c.clients != nil {
		clients = c.clients.ProducerClients()
	}
	t := c.presence.Observe(clients, c.buf)
	if c.debug && t != TransitionNone {
		log.Printf("[cable %s] %s (%d producers)", c.name, c.presence.State(), clients)
	}
}

// Format returns the advertised format at the active rate
func (c *Cable) Format() audio.Format { return c.negotiate.Format() }

// SupportedRates returns the declared sample rates
func (c *Cable) SupportedRates() []int { return c.negotiate.SupportedRates() }

// SampleRate returns the active sample rate
func (c *Cable) SampleRate() int { return c.negotiate.Rate() }

// MuteState returns the current mute state
func (c *Cable) MuteState() MuteState { return c.presence.State() }

// Running reports whether the cable is ticking
func (c *Cable) Running() bool { return c.sched.Running() }

// ChunkSize returns the frames per tick
func (c *Cable) ChunkSize() int { return c.chunkSize }

// BufferFrames returns the transfer buffer capacity in frames
func (c *Cable) BufferFrames() int { return c.buf.Frames() }

// Latency returns the input latency and output offset, in frames.
// Both are one chunk.
func (c *Cable) Latency() (input, outputOffset int) {
	return c.chunkSize, c.chunkSize
}

// LastWrap returns the clock time of the most recent wrap to chunk 0
func (c *Cable) LastWrap() time.Time {
	return time.Unix(0, c.sched.LastWrap())
}

// Stats is a snapshot of a cable for display
type Stats struct {
	ID            string
	Name          string
	SampleRate    int
	Mute          MuteState
	Zeroings      uint64
	FramePosition int
	Scheduler     SchedulerStats
}

// Stats returns a diagnostics snapshot
func (c *Cable) Stats() Stats {
	s := c.sched.Stats()
	return Stats{
		ID:            c.id,
		Name:          c.name,
		SampleRate:    c.negotiate.Rate(),
		Mute:          c.presence.State(),
		Zeroings:      c.presence.Zeroings(),
		FramePosition: s.Counter * c.chunkSize,
		Scheduler:     s,
	}
}
