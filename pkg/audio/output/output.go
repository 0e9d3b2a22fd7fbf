// ABOUTME: Audio output interface definition
// ABOUTME: Common interface for playback backends and recorders
package output

import (
	"fmt"

	"github.com/Resonate-Protocol/vac-go/pkg/audio"
)

// Output represents an audio sink for interleaved float32 samples
type Output interface {
	// Open initializes the output device
	Open(sampleRate, channels int) error

	// Write outputs audio samples
	Write(samples []float32) error

	// Close releases output resources
	Close() error
}

// Backend names accepted by New
const (
	BackendOto       = "oto"
	BackendMalgo     = "malgo"
	BackendPortAudio = "portaudio"
)

// New returns the playback backend with the given name
func New(backend string) (Output, error) {
	switch backend {
	case BackendOto, "":
		return NewOto(), nil
	case BackendMalgo:
		return NewMalgo(), nil
	case BackendPortAudio:
		return NewPortAudio(), nil
	default:
		return nil, fmt.Errorf("unknown output backend: %s", backend)
	}
}

// applyVolume scales samples in place by volume (0-100) with clipping
func applyVolume(samples []float32, volume int, muted bool) {
	multiplier := getVolumeMultiplier(volume, muted)
	if multiplier == 1 {
		return
	}
	for i, s := range samples {
		v := s * multiplier
		if v > 1 {
			v = 1
		} else if v < -1 {
			v = -1
		}
		samples[i] = v
	}
}

// getVolumeMultiplier calculates volume multiplier
func getVolumeMultiplier(volume int, muted bool) float32 {
	if muted {
		return 0
	}
	return float32(volume) / 100
}

func clampVolume(volume int) int {
	if volume < 0 {
		return 0
	}
	if volume > 100 {
		return 100
	}
	return volume
}

// encodeFloat32 writes samples as little-endian float32 into buf, growing it if needed
func encodeFloat32(buf []byte, samples []float32) []byte {
	n := len(samples) * audio.BytesPerFloat
	if cap(buf) < n {
		buf = make([]byte, n)
	}
	buf = buf[:n]
	audio.PutFloat32s(buf, samples)
	return buf
}
