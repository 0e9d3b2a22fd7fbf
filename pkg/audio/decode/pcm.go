// ABOUTME: PCM audio decoder
// ABOUTME: Decodes 16-bit little-endian PCM to float32 samples
package decode

import (
	"encoding/binary"
	"fmt"

	"github.com/Resonate-Protocol/vac-go/pkg/audio"
)

// PCMDecoder decodes 16-bit PCM audio
type PCMDecoder struct {
	samples []float32
}

// NewPCM creates a new PCM decoder
func NewPCM(format audio.Format) (Decoder, error) {
	if format.Codec != audio.CodecPCM {
		return nil, fmt.Errorf("invalid codec for PCM decoder: %s", format.Codec)
	}
	if format.BitDepth != 16 {
		return nil, fmt.Errorf("unsupported bit depth: %d (supported: 16)", format.BitDepth)
	}
	return &PCMDecoder{}, nil
}

// Decode converts PCM bytes to float32 samples
func (d *PCMDecoder) Decode(data []byte) ([]float32, error) {
	n := len(data) / 2
	if cap(d.samples) < n {
		d.samples = make([]float32, n)
	}
	out := d.samples[:n]
	for i := range out {
		out[i] = audio.Int16ToFloat32(int16(binary.LittleEndian.Uint16(data[i*2:])))
	}
	return out, nil
}

// Close releases resources
func (d *PCMDecoder) Close() error {
	return nil
}
