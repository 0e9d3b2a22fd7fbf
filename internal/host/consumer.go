// ABOUTME: Producer and consumer interfaces for the host mixer
// ABOUTME: SinkConsumer adapts an audio output so slow devices never stall the mixer
package host

import (
	"log"
	"sync"
	"sync/atomic"

	"github.com/Resonate-Protocol/vac-go/pkg/audio/output"
)

// Producer supplies interleaved float32 audio to a cable's output side.
// decode.Source satisfies it.
type Producer interface {
	Read(samples []float32) (int, error)
	SampleRate() int
	Channels() int
	Name() string
}

// rateFollower is implemented by producers that can switch rate with the cable
type rateFollower interface {
	SetSampleRate(rate int)
}

// Consumer receives the cable's input side, one IO block at a time.
// Consume must not block and must copy samples if it keeps them.
type Consumer interface {
	Name() string
	Consume(samples []float32, sampleRate int)
}

type sinkBlock struct {
	samples []float32
	rate    int
}

// SinkConsumer feeds an output.Output from its own goroutine
type SinkConsumer struct {
	name string
	out  output.Output

	mu     sync.RWMutex
	closed bool
	queue  chan sinkBlock
	done   chan struct{}

	dropped atomic.Uint64
	written atomic.Uint64
}

// NewSinkConsumer starts a consumer that writes to out. depth is the number
// of blocks queued before new blocks are dropped.
func NewSinkConsumer(name string, out output.Output, depth int) *SinkConsumer {
	if depth <= 0 {
		depth = 16
	}
	s := &SinkConsumer{
		name:  name,
		out:   out,
		queue: make(chan sinkBlock, depth),
		done:  make(chan struct{}),
	}
	go s.run()
	return s
}

func (s *SinkConsumer) Name() string { return s.name }

// Consume queues a copy of samples, dropping it if the sink is behind
func (s *SinkConsumer) Consume(samples []float32, sampleRate int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return
	}

	b := sinkBlock{samples: append([]float32(nil), samples...), rate: sampleRate}
	select {
	case s.queue <- b:
	default:
		s.dropped.Add(1)
	}
}

// Dropped returns how many blocks were discarded because the sink was full
func (s *SinkConsumer) Dropped() uint64 { return s.dropped.Load() }

// Written returns how many blocks reached the output
func (s *SinkConsumer) Written() uint64 { return s.written.Load() }

func (s *SinkConsumer) run() {
	defer close(s.done)

	openRate := 0
	failedRate := 0
	for b := range s.queue {
		if b.rate != openRate {
			if b.rate == failedRate {
				continue
			}
			if err := s.out.Open(b.rate, 2); err != nil {
				log.Printf("[sink %s] open at %d Hz failed: %v", s.name, b.rate, err)
				failedRate = b.rate
				continue
			}
			openRate = b.rate
			failedRate = 0
		}
		if err := s.out.Write(b.samples); err != nil {
			log.Printf("[sink %s] write failed: %v", s.name, err)
			continue
		}
		s.written.Add(1)
	}
}

// Close drains the queue and closes the output
func (s *SinkConsumer) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.queue)
	s.mu.Unlock()

	<-s.done
	return s.out.Close()
}
