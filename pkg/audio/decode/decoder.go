// ABOUTME: Packet decoder interface for tap streams
// ABOUTME: Turns PCM or Opus payloads back into float32 samples
package decode

import (
	"fmt"

	"github.com/Resonate-Protocol/vac-go/pkg/audio"
)

// Decoder decodes one tap payload to interleaved float32 samples
type Decoder interface {
	// Decode converts encoded audio data to samples. The returned slice
	// may be reused by the next call.
	Decode(data []byte) ([]float32, error)

	// Close releases decoder resources
	Close() error
}

// New returns the decoder for format.Codec
func New(format audio.Format) (Decoder, error) {
	switch format.Codec {
	case audio.CodecPCM:
		return NewPCM(format)
	case audio.CodecOpus:
		return NewOpus(format)
	default:
		return nil, fmt.Errorf("unsupported codec: %s", format.Codec)
	}
}
