// ABOUTME: Format and sample rate negotiation for a cable
// ABOUTME: Advertises stereo float32 and derives the tick interval from the active rate
package cable

import (
	"fmt"
	"sort"
	"sync/atomic"
	"time"

	"github.com/Resonate-Protocol/vac-go/pkg/audio"
)

const (
	// ChannelCount is fixed: the cable is always stereo
	ChannelCount = 2

	// SampleBytes is the size of one float32 sample
	SampleBytes = audio.BytesPerFloat

	// FrameBytes is the size of one interleaved frame
	FrameBytes = ChannelCount * SampleBytes
)

// DefaultRates are the sample rates declared when none are configured
var DefaultRates = []int{16000, 44100, 48000}

// ChunkInterval returns the nominal time one chunk of frames lasts at rate.
// Integer nanoseconds, truncated.
func ChunkInterval(chunkSize, rate int) time.Duration {
	return time.Duration(int64(chunkSize) * int64(time.Second) / int64(rate))
}

// Negotiator declares the single advertised format and the admissible rates,
// and tracks the active rate and its chunk interval.
type Negotiator struct {
	chunkSize int
	rates     []int

	rate     atomic.Int64
	interval atomic.Int64 // nanoseconds
}

// NewNegotiator creates a negotiator for chunkSize frames per tick.
// rates may be nil to use DefaultRates; initial must be one of them.
func NewNegotiator(chunkSize int, rates []int, initial int) (*Negotiator, error) {
	if chunkSize <= 0 {
		return nil, fmt.Errorf("%w: chunk size %d", ErrInvalidConfig, chunkSize)
	}
	if len(rates) == 0 {
		rates = DefaultRates
	}

	declared := make([]int, 0, len(rates))
	seen := make(map[int]bool, len(rates))
	for _, r := range rates {
		if r <= 0 {
			return nil, fmt.Errorf("%w: sample rate %d", ErrInvalidConfig, r)
		}
		if !seen[r] {
			seen[r] = true
			declared = append(declared, r)
		}
	}
	sort.Ints(declared)

	n := &Negotiator{
		chunkSize: chunkSize,
		rates:     declared,
	}
	if err := n.setRate(initial); err != nil {
		return nil, fmt.Errorf("%w: initial rate: %v", ErrInvalidConfig, err)
	}
	return n, nil
}

// Format returns the advertised stream format at the active rate
func (n *Negotiator) Format() audio.Format {
	return audio.Float32Stereo(n.Rate())
}

// SupportedRates returns the declared rates in ascending order
func (n *Negotiator) SupportedRates() []int {
	out := make([]int, len(n.rates))
	copy(out, n.rates)
	return out
}

// Supports reports whether rate is in the declared set
func (n *Negotiator) Supports(rate int) bool {
	for _, r := range n.rates {
		if r == rate {
			return true
		}
	}
	return false
}

// Rate returns the active sample rate
func (n *Negotiator) Rate() int {
	return int(n.rate.Load())
}

// Interval returns the chunk interval for the active rate
func (n *Negotiator) Interval() time.Duration {
	return time.Duration(n.interval.Load())
}

// ChangeRate switches the active rate and returns the new chunk interval.
// Only pacing changes; nothing else about the cable is touched here.
func (n *Negotiator) ChangeRate(rate int) (time.Duration, error) {
	if err := n.setRate(rate); err != nil {
		return 0, err
	}
	return n.Interval(), nil
}

func (n *Negotiator) setRate(rate int) error {
	if !n.Supports(rate) {
		return fmt.Errorf("%w: %d Hz (supported: %v)", ErrUnsupportedRate, rate, n.rates)
	}
	n.interval.Store(int64(ChunkInterval(n.chunkSize, rate)))
	n.rate.Store(int64(rate))
	return nil
}

// Validate checks that f carries the one advertised layout.
// The rate is not compared: the host may issue copies across a rate switch.
func (n *Negotiator) Validate(f audio.Format) error {
	if f.Channels != ChannelCount {
		return fmt.Errorf("%w: %d channels, want %d", ErrFormatMismatch, f.Channels, ChannelCount)
	}
	if f.Codec != "" && f.Codec != audio.CodecFloat {
		return fmt.Errorf("%w: codec %q, want %q", ErrFormatMismatch, f.Codec, audio.CodecFloat)
	}
	if f.BitDepth != 0 && f.BitDepth != 32 {
		return fmt.Errorf("%w: %d-bit, want 32-bit float", ErrFormatMismatch, f.BitDepth)
	}
	return nil
}
