// ABOUTME: Opus audio encoder
// ABOUTME: Encodes 20ms blocks of float32 samples to Opus packets
package encode

import (
	"fmt"

	"github.com/Resonate-Protocol/vac-go/pkg/audio"
	"gopkg.in/hraban/opus.v2"
)

// OpusFrameDuration is the packet length used on the tap, in milliseconds
const OpusFrameDuration = 20

const maxOpusPacket = 4000

// OpusEncoder encodes Opus audio
type OpusEncoder struct {
	encoder   *opus.Encoder
	channels  int
	frameSize int // per channel
	packet    []byte
}

// NewOpus creates a new Opus encoder. Only 48 kHz is accepted since the
// tap carries a fixed 20ms frame.
func NewOpus(format audio.Format) (Encoder, error) {
	if format.Codec != audio.CodecOpus {
		return nil, fmt.Errorf("invalid codec for Opus encoder: %s", format.Codec)
	}
	if format.SampleRate != 48000 {
		return nil, fmt.Errorf("opus requires 48000 Hz, got %d", format.SampleRate)
	}

	encoder, err := opus.NewEncoder(format.SampleRate, format.Channels, opus.AppAudio)
	if err != nil {
		return nil, fmt.Errorf("failed to create opus encoder: %w", err)
	}

	return &OpusEncoder{
		encoder:   encoder,
		channels:  format.Channels,
		frameSize: format.SampleRate * OpusFrameDuration / 1000,
		packet:    make([]byte, maxOpusPacket),
	}, nil
}

// Encode converts exactly one frame of samples to an Opus packet
func (e *OpusEncoder) Encode(samples []float32) ([]byte, error) {
	if len(samples) != e.FrameSamples() {
		return nil, fmt.Errorf("opus frame must be %d samples, got %d", e.FrameSamples(), len(samples))
	}

	n, err := e.encoder.EncodeFloat32(samples, e.packet)
	if err != nil {
		return nil, fmt.Errorf("opus encode error: %w", err)
	}

	out := make([]byte, n)
	copy(out, e.packet[:n])
	return out, nil
}

// FrameSamples returns the interleaved sample count of one 20ms frame
func (e *OpusEncoder) FrameSamples() int {
	return e.frameSize * e.channels
}

// Close releases resources
func (e *OpusEncoder) Close() error {
	return nil
}
