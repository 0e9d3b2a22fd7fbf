// ABOUTME: Audio type definitions
// ABOUTME: Defines stream formats and float32 sample conversions
package audio

import (
	"encoding/binary"
	"fmt"
	"math"
)

const (
	// Codec names used in stream formats
	CodecFloat = "float"
	CodecPCM   = "pcm"
	CodecOpus  = "opus"

	// BytesPerFloat is the size of one IEEE-754 float32 sample
	BytesPerFloat = 4
)

// Format describes audio stream format
type Format struct {
	Codec      string
	SampleRate int
	Channels   int
	BitDepth   int
}

// Float32Stereo returns the float32 interleaved stereo format at the given rate
func Float32Stereo(sampleRate int) Format {
	return Format{
		Codec:      CodecFloat,
		SampleRate: sampleRate,
		Channels:   2,
		BitDepth:   32,
	}
}

// FrameBytes returns the size in bytes of one frame (all channels)
func (f Format) FrameBytes() int {
	return f.Channels * f.BitDepth / 8
}

func (f Format) String() string {
	return fmt.Sprintf("%s %dHz %dch %d-bit", f.Codec, f.SampleRate, f.Channels, f.BitDepth)
}

// Float32ToInt16 converts a float sample in [-1,1] to int16 with clipping
func Float32ToInt16(sample float32) int16 {
	if sample > 1.0 {
		sample = 1.0
	} else if sample < -1.0 {
		sample = -1.0
	}
	return int16(sample * 32767.0)
}

// Int16ToFloat32 converts an int16 sample to the [-1,1] float range
func Int16ToFloat32(sample int16) float32 {
	return float32(sample) / 32768.0
}

// PutFloat32s encodes samples as little-endian float32 bytes into dst.
// Returns the number of samples written.
func PutFloat32s(dst []byte, samples []float32) int {
	n := len(dst) / BytesPerFloat
	if n > len(samples) {
		n = len(samples)
	}
	for i := 0; i < n; i++ {
		binary.LittleEndian.PutUint32(dst[i*BytesPerFloat:], math.Float32bits(samples[i]))
	}
	return n
}

// Float32s decodes little-endian float32 bytes from src into dst.
// Returns the number of samples decoded.
func Float32s(dst []float32, src []byte) int {
	n := len(src) / BytesPerFloat
	if n > len(dst) {
		n = len(dst)
	}
	for i := 0; i < n; i++ {
		dst[i] = math.Float32frombits(binary.LittleEndian.Uint32(src[i*BytesPerFloat:]))
	}
	return n
}
