// ABOUTME: PCM audio encoder
// ABOUTME: Encodes float32 samples to 16-bit little-endian PCM bytes
package encode

import (
	"encoding/binary"
	"fmt"

	"github.com/Resonate-Protocol/vac-go/pkg/audio"
)

// PCMEncoder encodes 16-bit PCM audio
type PCMEncoder struct {
	buf []byte
}

// NewPCM creates a new PCM encoder
func NewPCM(format audio.Format) (Encoder, error) {
	if format.Codec != audio.CodecPCM {
		return nil, fmt.Errorf("invalid codec for PCM encoder: %s", format.Codec)
	}
	if format.BitDepth != 16 {
		return nil, fmt.Errorf("unsupported bit depth: %d (supported: 16)", format.BitDepth)
	}
	return &PCMEncoder{}, nil
}

// Encode converts float32 samples to PCM bytes. The returned slice is
// reused by the next call.
func (e *PCMEncoder) Encode(samples []float32) ([]byte, error) {
	n := len(samples) * 2
	if cap(e.buf) < n {
		e.buf = make([]byte, n)
	}
	out := e.buf[:n]
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(audio.Float32ToInt16(s)))
	}
	return out, nil
}

func (e *PCMEncoder) FrameSamples() int { return 0 }

// Close releases resources
func (e *PCMEncoder) Close() error {
	return nil
}
