// ABOUTME: Encoder interface definition
// ABOUTME: Common interface for tap stream encoders
package encode

import (
	"fmt"

	"github.com/Resonate-Protocol/vac-go/pkg/audio"
)

// Encoder encodes interleaved float32 samples to wire bytes
type Encoder interface {
	// Encode converts one block of samples to encoded audio data
	Encode(samples []float32) ([]byte, error)

	// FrameSamples returns the number of interleaved samples Encode expects
	// per call, or 0 if any length is accepted
	FrameSamples() int

	// Close releases encoder resources
	Close() error
}

// New returns the encoder for format.Codec
func New(format audio.Format) (Encoder, error) {
	switch format.Codec {
	case audio.CodecPCM:
		return NewPCM(format)
	case audio.CodecOpus:
		return NewOpus(format)
	default:
		return nil, fmt.Errorf("unsupported codec: %s", format.Codec)
	}
}
