// ABOUTME: Test tone generator source
// ABOUTME: Generates a stereo sine wave at the cable rate
package decode

import (
	"fmt"
	"math"
	"sync"
)

const (
	DefaultToneFrequency = 440.0
	DefaultToneLevel     = 0.5
)

// ToneSource generates a sine tone duplicated to both channels
type ToneSource struct {
	mu          sync.Mutex
	sampleIndex uint64
	sampleRate  int
	frequency   float64
	level       float64
}

// NewTone creates a tone generator
func NewTone(sampleRate int, frequency, level float64) *ToneSource {
	return &ToneSource{
		sampleRate: sampleRate,
		frequency:  frequency,
		level:      level,
	}
}

func (s *ToneSource) Read(samples []float32) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	frames := len(samples) / 2
	for i := 0; i < frames; i++ {
		t := float64(s.sampleIndex+uint64(i)) / float64(s.sampleRate)
		v := float32(math.Sin(2*math.Pi*s.frequency*t) * s.level)
		samples[i*2] = v
		samples[i*2+1] = v
	}
	s.sampleIndex += uint64(frames)

	return frames * 2, nil
}

// SetSampleRate retunes the generator to follow a cable rate change
func (s *ToneSource) SetSampleRate(rate int) {
	s.mu.Lock()
	s.sampleRate = rate
	s.sampleIndex = 0
	s.mu.Unlock()
}

func (s *ToneSource) SampleRate() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sampleRate
}

func (s *ToneSource) Channels() int { return 2 }
func (s *ToneSource) Name() string  { return fmt.Sprintf("Test Tone %.0f Hz", s.frequency) }
func (s *ToneSource) Close() error  { return nil }
