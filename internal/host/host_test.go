// ABOUTME: Tests for the host device, streams and mixer
// ABOUTME: Drives engine ticks by hand and runs IO cycles directly
package host

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Resonate-Protocol/vac-go/pkg/cable"
)

// handTimer never fires on its own; tests call tick
type handTimer struct {
	fire func(cable.TimerSource)
}

func (h *handTimer) Arm(time.Duration) error { return nil }
func (h *handTimer) Cancel()                 {}
func (h *handTimer) tick()                   { h.fire(h) }

type handTimers struct {
	mu     sync.Mutex
	timers []*handTimer
	// failAt > 0 makes the failAt-th creation fail
	failAt int
}

func (f *handTimers) New(fire func(cable.TimerSource)) (cable.TimerSource, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAt > 0 && len(f.timers)+1 == f.failAt {
		return nil, errors.New("no timer")
	}
	t := &handTimer{fire: fire}
	f.timers = append(f.timers, t)
	return t, nil
}

// rampProducer emits frame index * step on both channels
type rampProducer struct {
	name     string
	rate     int
	channels int
	next     int
	step     float32
}

func (r *rampProducer) Read(samples []float32) (int, error) {
	frames := len(samples) / r.channels
	for i := 0; i < frames; i++ {
		v := float32(r.next) * r.step
		for ch := 0; ch < r.channels; ch++ {
			samples[i*r.channels+ch] = v
		}
		r.next++
	}
	return frames * r.channels, nil
}

func (r *rampProducer) SampleRate() int { return r.rate }
func (r *rampProducer) Channels() int   { return r.channels }
func (r *rampProducer) Name() string    { return r.name }

// captureConsumer keeps the left channel of everything it receives
type captureConsumer struct {
	mu    sync.Mutex
	left  []float32
	right []float32
	rate  int
}

func (c *captureConsumer) Name() string { return "capture" }

func (c *captureConsumer) Consume(samples []float32, rate int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := 0; i+1 < len(samples); i += 2 {
		c.left = append(c.left, samples[i])
		c.right = append(c.right, samples[i+1])
	}
	c.rate = rate
}

func newTestDevice(t *testing.T, ioFrames int) (*Device, *handTimers) {
	t.Helper()
	timers := &handTimers{}
	d, err := NewDevice(Config{
		Cables:     []string{"A"},
		ChunkSize:  64,
		ChunkCount: 4,
		SampleRate: 48000,
		IOFrames:   ioFrames,
		NewTimer:   timers.New,
	})
	require.NoError(t, err)
	return d, timers
}

func TestNewDeviceDefaults(t *testing.T) {
	d, err := NewDevice(Config{})
	require.NoError(t, err)

	cables := d.Cables()
	require.Len(t, cables, 2)
	assert.Equal(t, "SDR-RX", cables[0].Name())
	assert.Equal(t, "SDR-TX", cables[1].Name())

	c, ok := d.Cable("SDR-TX")
	require.True(t, ok)
	assert.Equal(t, cable.DefaultSampleRate, c.Engine().SampleRate())
	assert.Equal(t, DefaultIOFrames, c.Mixer().Frames())
}

func TestNewDeviceRejectsBadConfig(t *testing.T) {
	_, err := NewDevice(Config{Cables: []string{"X", "X"}})
	assert.ErrorIs(t, err, cable.ErrInvalidConfig)

	_, err = NewDevice(Config{Cables: []string{"X"}, SampleRate: 12345})
	assert.ErrorIs(t, err, cable.ErrInvalidConfig)

	// IO block larger than the transfer buffer
	_, err = NewDevice(Config{Cables: []string{"X"}, ChunkSize: 16, ChunkCount: 2, IOFrames: 64})
	assert.Error(t, err)
}

func TestActivateFailureStopsStartedCables(t *testing.T) {
	timers := &handTimers{failAt: 2}
	d, err := NewDevice(Config{Cables: []string{"A", "B"}, ChunkSize: 64, ChunkCount: 4, IOFrames: 32, NewTimer: timers.New})
	require.NoError(t, err)

	err = d.Activate(context.Background())
	require.ErrorIs(t, err, cable.ErrTimerSource)
	assert.Contains(t, err.Error(), "cable B")
	require.Len(t, timers.timers, 1, "first cable should have started")
	for _, c := range d.Cables() {
		assert.False(t, c.Engine().Running(), c.Name())
	}
}

func TestStreamRegistry(t *testing.T) {
	s := NewStream(DirectionOutput)
	assert.Equal(t, 0, s.Clients())

	a := s.Attach("tone")
	b := s.Attach("file")
	assert.NotEqual(t, a, b)
	assert.Equal(t, 2, s.ProducerClients())
	assert.Equal(t, []string{"file", "tone"}, s.ClientNames())

	assert.True(t, s.Detach(a))
	assert.False(t, s.Detach(a))
	assert.Equal(t, 1, s.Clients())
	assert.Equal(t, "output", s.Direction().String())
}

func TestMixerDeliversWithOutputOffset(t *testing.T) {
	d, timers := newTestDevice(t, 48)
	c, _ := d.Cable("A")
	require.NoError(t, c.Engine().Start())
	defer c.Engine().Stop()

	prod := &rampProducer{name: "ramp", rate: 48000, channels: 2, step: 1.0 / 4096}
	c.AttachProducer(prod)
	capture := &captureConsumer{}
	c.AttachConsumer(capture)

	// Producer attached: the next tick activates the cable
	timers.timers[0].tick()
	require.Equal(t, cable.Active, c.Engine().MuteState())

	// 256-frame buffer, 48-frame blocks: several cycles cross the ring end
	const cycles = 20
	for i := 0; i < cycles; i++ {
		require.NoError(t, c.Mixer().Cycle())
	}

	_, offset := c.Engine().Latency()
	require.Len(t, capture.left, cycles*48)
	for k := range capture.left {
		want := float32(0)
		if k >= offset {
			want = float32(k-offset) / 4096
		}
		if capture.left[k] != want || capture.right[k] != want {
			t.Fatalf("frame %d = %v/%v, want %v", k, capture.left[k], capture.right[k], want)
		}
	}
	assert.Equal(t, 48000, capture.rate)
	assert.EqualValues(t, cycles, c.Mixer().Cycles())
}

func TestMixerMutedWithoutProducer(t *testing.T) {
	d, timers := newTestDevice(t, 32)
	c, _ := d.Cable("A")
	require.NoError(t, c.Engine().Start())
	defer c.Engine().Stop()

	prod := &rampProducer{name: "ramp", rate: 48000, channels: 2, step: 0.001}
	id := c.AttachProducer(prod)
	capture := &captureConsumer{}
	c.AttachConsumer(capture)

	// No tick yet: still muted even though audio is being clipped in
	for i := 0; i < 8; i++ {
		require.NoError(t, c.Mixer().Cycle())
	}
	for k, v := range capture.left {
		require.Zero(t, v, "frame %d", k)
	}

	timers.timers[0].tick()
	require.Equal(t, cable.Active, c.Engine().MuteState())
	for i := 0; i < 4; i++ {
		require.NoError(t, c.Mixer().Cycle())
	}
	assert.NotZero(t, capture.left[len(capture.left)-1])

	// Producer leaves: the next tick mutes the consumer side
	require.True(t, c.DetachProducer(id))
	timers.timers[0].tick()
	assert.Equal(t, cable.Muted, c.Engine().MuteState())

	before := len(capture.left)
	require.NoError(t, c.Mixer().Cycle())
	for _, v := range capture.left[before:] {
		require.Zero(t, v)
	}
}

func TestMixerMonoAndRateMismatch(t *testing.T) {
	d, timers := newTestDevice(t, 64)
	c, _ := d.Cable("A")
	require.NoError(t, c.Engine().Start())
	defer c.Engine().Stop()

	mono := &rampProducer{name: "mono", rate: 48000, channels: 1, step: 0.5}
	wrongRate := &rampProducer{name: "cd", rate: 44100, channels: 2, step: 0.25}
	c.AttachProducer(mono)
	c.AttachProducer(wrongRate)
	capture := &captureConsumer{}
	c.AttachConsumer(capture)
	timers.timers[0].tick()

	// One chunk of latency, then the mono ramp appears on both channels
	for i := 0; i < 2; i++ {
		require.NoError(t, c.Mixer().Cycle())
	}
	assert.Equal(t, float32(0), capture.left[64])
	assert.Equal(t, float32(0.5), capture.left[65])
	assert.Equal(t, float32(0.5), capture.right[65])

	// Mixed output is clipped to full scale
	assert.Equal(t, float32(1), capture.left[127])
	assert.Zero(t, wrongRate.next, "mismatched producer was read")
}

func TestCableRateCycling(t *testing.T) {
	d, _ := newTestDevice(t, 32)
	c, _ := d.Cable("A")

	require.NoError(t, c.NextRate())
	assert.Equal(t, 16000, c.Engine().SampleRate())
	require.NoError(t, c.NextRate())
	assert.Equal(t, 44100, c.Engine().SampleRate())
	assert.Equal(t, cable.ChunkInterval(32, 44100), c.Mixer().Period())

	assert.ErrorIs(t, c.SetRate(8000), cable.ErrUnsupportedRate)

	require.NoError(t, d.CycleRate("A"))
	assert.Equal(t, 48000, c.Engine().SampleRate())
	assert.Error(t, d.CycleRate("missing"))
}

func TestDeviceRunLifecycle(t *testing.T) {
	d, _ := newTestDevice(t, 32)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	c, _ := d.Cable("A")
	require.Eventually(t, func() bool { return c.Engine().Running() }, time.Second, time.Millisecond)
	require.Eventually(t, func() bool { return c.Mixer().Cycles() > 0 }, 2*time.Second, time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return")
	}
	assert.False(t, c.Engine().Running())

	st := d.Status()
	require.Len(t, st, 1)
	assert.Equal(t, "A", st[0].Name)
}

type memOutput struct {
	mu     sync.Mutex
	rate   int
	writes int
	closed bool
}

func (m *memOutput) Open(rate, channels int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rate = rate
	return nil
}

func (m *memOutput) Write(samples []float32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writes++
	return nil
}

func (m *memOutput) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func TestSinkConsumer(t *testing.T) {
	out := &memOutput{}
	s := NewSinkConsumer("mem", out, 4)

	for i := 0; i < 3; i++ {
		s.Consume(make([]float32, 8), 44100)
	}
	require.NoError(t, s.Close())

	assert.EqualValues(t, 3, s.Written())
	assert.Equal(t, 44100, out.rate)
	assert.True(t, out.closed)

	// Consume after Close is ignored
	s.Consume(make([]float32, 8), 44100)
	assert.EqualValues(t, 3, s.Written())
}
