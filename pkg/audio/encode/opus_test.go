// ABOUTME: Unit tests for Opus encoder
// ABOUTME: Tests Opus encoding of 20ms float32 frames
package encode

import (
	"math"
	"strings"
	"testing"

	"github.com/Resonate-Protocol/vac-go/pkg/audio"
)

func opusFormat(rate, channels int) audio.Format {
	return audio.Format{Codec: "opus", SampleRate: rate, Channels: channels, BitDepth: 16}
}

func TestNewOpus(t *testing.T) {
	tests := []struct {
		name        string
		format      audio.Format
		errContains string
	}{
		{name: "valid Opus 48kHz stereo", format: opusFormat(48000, 2)},
		{name: "valid Opus 48kHz mono", format: opusFormat(48000, 1)},
		{name: "rejects 44.1kHz", format: opusFormat(44100, 2), errContains: "48000"},
		{
			name:        "invalid codec",
			format:      audio.Format{Codec: "pcm", SampleRate: 48000, Channels: 2, BitDepth: 16},
			errContains: "invalid codec",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			encoder, err := NewOpus(tt.format)
			if tt.errContains != "" {
				if err == nil || !strings.Contains(err.Error(), tt.errContains) {
					t.Errorf("NewOpus() error = %v, want error containing %q", err, tt.errContains)
				}
				return
			}
			if err != nil {
				t.Fatalf("NewOpus() unexpected error = %v", err)
			}
			encoder.Close()
		})
	}
}

func TestOpusEncoder_Encode(t *testing.T) {
	encoder, err := NewOpus(opusFormat(48000, 2))
	if err != nil {
		t.Fatalf("NewOpus() failed: %v", err)
	}
	defer encoder.Close()

	if encoder.FrameSamples() != 960*2 {
		t.Fatalf("FrameSamples() = %d, want %d", encoder.FrameSamples(), 960*2)
	}

	samples := make([]float32, encoder.FrameSamples())
	for i := 0; i < len(samples)/2; i++ {
		v := float32(0.5 * math.Sin(2*math.Pi*440*float64(i)/48000))
		samples[i*2] = v
		samples[i*2+1] = v
	}

	output, err := encoder.Encode(samples)
	if err != nil {
		t.Fatalf("Encode() failed: %v", err)
	}
	if len(output) == 0 || len(output) > 4000 {
		t.Errorf("Encode() output size %d out of range", len(output))
	}

	// Silence still yields a packet
	silence, err := encoder.Encode(make([]float32, encoder.FrameSamples()))
	if err != nil || len(silence) == 0 {
		t.Errorf("Encode(silence) = %d bytes, %v", len(silence), err)
	}
}

func TestOpusEncoder_WrongFrameLength(t *testing.T) {
	encoder, err := NewOpus(opusFormat(48000, 2))
	if err != nil {
		t.Fatalf("NewOpus() failed: %v", err)
	}
	defer encoder.Close()

	if _, err := encoder.Encode(make([]float32, 100)); err == nil {
		t.Error("Encode() accepted a partial frame")
	}
}
