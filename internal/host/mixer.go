// ABOUTME: Host mixer driving a cable's real-time copy entry points
// ABOUTME: Mixes producers, clips into the cable, converts out and feeds consumers each IO cycle
package host

import (
	"context"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Resonate-Protocol/vac-go/pkg/audio"
	"github.com/Resonate-Protocol/vac-go/pkg/cable"
)

// DefaultIOFrames is the number of frames moved per IO cycle
const DefaultIOFrames = 512

type producerEntry struct {
	id       string
	producer Producer
	warned   int // last mismatched rate logged
}

type consumerEntry struct {
	id       string
	consumer Consumer
}

// Mixer plays the part of the host audio framework for one cable. The
// output mix ring has the same geometry as the transfer buffer so that
// ClipOutput can address it with the same frame offsets.
type Mixer struct {
	engine *cable.Cable
	frames int

	mu        sync.RWMutex
	producers []*producerEntry
	consumers []consumerEntry

	// Owned by the cycle goroutine
	writeCursor int
	mixRing     []byte
	block       []float32
	scratch     []float32
	inBytes     []byte
	inSamples   []float32
	deliver     []Consumer

	cycles atomic.Uint64
	errors atomic.Uint64
}

// NewMixer creates a mixer moving frames frames per cycle
func NewMixer(engine *cable.Cable, frames int) (*Mixer, error) {
	if frames <= 0 {
		frames = DefaultIOFrames
	}
	if frames > engine.BufferFrames() {
		return nil, fmt.Errorf("io block of %d frames exceeds cable buffer of %d", frames, engine.BufferFrames())
	}
	return &Mixer{
		engine:    engine,
		frames:    frames,
		mixRing:   make([]byte, engine.BufferFrames()*cable.FrameBytes),
		block:     make([]float32, frames*cable.ChannelCount),
		scratch:   make([]float32, frames*cable.ChannelCount),
		inBytes:   make([]byte, frames*cable.FrameBytes),
		inSamples: make([]float32, frames*cable.ChannelCount),
	}, nil
}

// Frames returns the IO block size
func (m *Mixer) Frames() int { return m.frames }

// Period returns the wall time one IO block lasts at the cable's current rate
func (m *Mixer) Period() time.Duration {
	return cable.ChunkInterval(m.frames, m.engine.SampleRate())
}

// Cycles returns how many IO cycles have run
func (m *Mixer) Cycles() uint64 { return m.cycles.Load() }

// Errors returns how many cycles hit a copy error
func (m *Mixer) Errors() uint64 { return m.errors.Load() }

func (m *Mixer) addProducer(id string, p Producer) {
	m.mu.Lock()
	m.producers = append(m.producers, &producerEntry{id: id, producer: p})
	m.mu.Unlock()
}

func (m *Mixer) removeProducer(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, e := range m.producers {
		if e.id == id {
			m.producers = append(m.producers[:i], m.producers[i+1:]...)
			return
		}
	}
}

func (m *Mixer) addConsumer(id string, c Consumer) {
	m.mu.Lock()
	m.consumers = append(m.consumers, consumerEntry{id: id, consumer: c})
	m.mu.Unlock()
}

func (m *Mixer) removeConsumer(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, e := range m.consumers {
		if e.id == id {
			m.consumers = append(m.consumers[:i], m.consumers[i+1:]...)
			return
		}
	}
}

// Cycle runs one IO cycle. It is not safe to call concurrently with itself.
func (m *Mixer) Cycle() error {
	rate := m.engine.SampleRate()
	format := m.engine.Format()

	clear(m.block)
	m.mu.RLock()
	for _, e := range m.producers {
		m.mixProducer(e, rate)
	}
	m.deliver = m.deliver[:0]
	for _, e := range m.consumers {
		m.deliver = append(m.deliver, e.consumer)
	}
	m.mu.RUnlock()

	clipSamples(m.block)

	if err := m.clip(format); err != nil {
		return fmt.Errorf("clip output: %w", err)
	}
	if err := m.convert(format); err != nil {
		return fmt.Errorf("convert input: %w", err)
	}

	audio.Float32s(m.inSamples, m.inBytes)
	for _, c := range m.deliver {
		c.Consume(m.inSamples, rate)
	}

	m.writeCursor = (m.writeCursor + m.frames) % m.engine.BufferFrames()
	m.cycles.Add(1)
	return nil
}

func (m *Mixer) mixProducer(e *producerEntry, rate int) {
	p := e.producer
	if p.SampleRate() != rate {
		if f, ok := p.(rateFollower); ok {
			f.SetSampleRate(rate)
		} else {
			if e.warned != p.SampleRate() {
				log.Printf("[mixer %s] producer %s is %d Hz, cable is %d Hz; skipping",
					m.engine.Name(), p.Name(), p.SampleRate(), rate)
				e.warned = p.SampleRate()
			}
			return
		}
	}

	ch := p.Channels()
	if ch <= 0 {
		return
	}
	need := m.frames * ch
	if cap(m.scratch) < need {
		m.scratch = make([]float32, need)
	}
	buf := m.scratch[:need]

	n, err := p.Read(buf)
	if err != nil {
		log.Printf("[mixer %s] producer %s read error: %v", m.engine.Name(), p.Name(), err)
	}

	frames := n / ch
	for i := 0; i < frames; i++ {
		l := buf[i*ch]
		r := l
		if ch > 1 {
			r = buf[i*ch+1]
		}
		m.block[i*2] += l
		m.block[i*2+1] += r
	}
}

func clipSamples(samples []float32) {
	for i, s := range samples {
		if s > 1 {
			samples[i] = 1
		} else if s < -1 {
			samples[i] = -1
		}
	}
}

// clip places the block in the mix ring at the write cursor and hands the
// same frame range to the cable, in two pieces when it crosses the end.
func (m *Mixer) clip(format audio.Format) error {
	total := m.engine.BufferFrames()
	first := m.writeCursor
	n1 := min(m.frames, total-first)

	audio.PutFloat32s(m.mixRing[first*cable.FrameBytes:], m.block[:n1*cable.ChannelCount])
	if err := m.engine.ClipOutput(m.mixRing, first, n1, format); err != nil {
		return err
	}
	if n1 == m.frames {
		return nil
	}

	n2 := m.frames - n1
	audio.PutFloat32s(m.mixRing, m.block[n1*cable.ChannelCount:])
	return m.engine.ClipOutput(m.mixRing, 0, n2, format)
}

// convert reads the block that is one output offset behind the write cursor
func (m *Mixer) convert(format audio.Format) error {
	total := m.engine.BufferFrames()
	_, offset := m.engine.Latency()
	readPos := ((m.writeCursor-offset)%total + total) % total
	n1 := min(m.frames, total-readPos)

	if err := m.engine.ConvertInput(m.inBytes, readPos, n1, format); err != nil {
		return err
	}
	if n1 == m.frames {
		return nil
	}
	return m.engine.ConvertInput(m.inBytes[n1*cable.FrameBytes:], 0, m.frames-n1, format)
}

// Run cycles at the cable's IO period until ctx is done. The period
// follows rate changes.
func (m *Mixer) Run(ctx context.Context) error {
	rate := m.engine.SampleRate()
	ticker := time.NewTicker(m.Period())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if r := m.engine.SampleRate(); r != rate {
				rate = r
				ticker.Reset(m.Period())
			}
			if err := m.Cycle(); err != nil {
				if m.errors.Add(1) == 1 {
					log.Printf("[mixer %s] %v", m.engine.Name(), err)
				}
			}
		}
	}
}
