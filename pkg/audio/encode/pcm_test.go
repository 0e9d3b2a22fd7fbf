// ABOUTME: Unit tests for PCM encoder
// ABOUTME: Tests 16-bit PCM encoding from float32
package encode

import (
	"encoding/binary"
	"strings"
	"testing"

	"github.com/Resonate-Protocol/vac-go/pkg/audio"
)

func TestNewPCM(t *testing.T) {
	tests := []struct {
		name        string
		format      audio.Format
		errContains string
	}{
		{
			name:   "valid 16-bit PCM",
			format: audio.Format{Codec: "pcm", SampleRate: 48000, Channels: 2, BitDepth: 16},
		},
		{
			name:        "invalid codec",
			format:      audio.Format{Codec: "opus", SampleRate: 48000, Channels: 2, BitDepth: 16},
			errContains: "invalid codec",
		},
		{
			name:        "unsupported bit depth",
			format:      audio.Format{Codec: "pcm", SampleRate: 48000, Channels: 2, BitDepth: 24},
			errContains: "unsupported bit depth",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			encoder, err := NewPCM(tt.format)
			if tt.errContains != "" {
				if err == nil || !strings.Contains(err.Error(), tt.errContains) {
					t.Errorf("NewPCM() error = %v, want error containing %q", err, tt.errContains)
				}
				return
			}
			if err != nil {
				t.Fatalf("NewPCM() unexpected error = %v", err)
			}
			if encoder == nil {
				t.Errorf("NewPCM() returned nil encoder")
			}
		})
	}
}

func TestPCMEncoder_Encode16Bit(t *testing.T) {
	encoder, err := NewPCM(audio.Format{Codec: "pcm", SampleRate: 48000, Channels: 2, BitDepth: 16})
	if err != nil {
		t.Fatalf("NewPCM() failed: %v", err)
	}
	defer encoder.Close()

	samples := []float32{0, 1, -1, 0.5, -0.25, 3}
	want := []int16{0, 32767, -32767, 16383, -8191, 32767}

	output, err := encoder.Encode(samples)
	if err != nil {
		t.Fatalf("Encode() failed: %v", err)
	}
	if len(output) != len(samples)*2 {
		t.Fatalf("Encode() output size = %d, want %d", len(output), len(samples)*2)
	}
	for i := range samples {
		got := int16(binary.LittleEndian.Uint16(output[i*2:]))
		if got != want[i] {
			t.Errorf("Sample %d: got %d, want %d", i, got, want[i])
		}
	}
	if encoder.FrameSamples() != 0 {
		t.Errorf("FrameSamples() = %d, want 0", encoder.FrameSamples())
	}
}

func TestNewDispatchesOnCodec(t *testing.T) {
	if _, err := New(audio.Format{Codec: "pcm", SampleRate: 44100, Channels: 2, BitDepth: 16}); err != nil {
		t.Errorf("New(pcm) error = %v", err)
	}
	if _, err := New(audio.Format{Codec: "flac", SampleRate: 44100, Channels: 2, BitDepth: 16}); err == nil {
		t.Error("New(flac) expected error")
	}
}
