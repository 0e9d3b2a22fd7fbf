// ABOUTME: Tests for PCM and Opus packet decoders
// ABOUTME: Checks codec validation and 16-bit conversion
package decode

import (
	"encoding/binary"
	"strings"
	"testing"

	"github.com/Resonate-Protocol/vac-go/pkg/audio"
)

func TestNewPCM(t *testing.T) {
	if _, err := NewPCM(audio.Format{Codec: "pcm", SampleRate: 48000, Channels: 2, BitDepth: 16}); err != nil {
		t.Fatalf("NewPCM() error = %v", err)
	}

	_, err := NewPCM(audio.Format{Codec: "opus", SampleRate: 48000, Channels: 2, BitDepth: 16})
	if err == nil || err.Error() != "invalid codec for PCM decoder: opus" {
		t.Errorf("wrong codec error = %v", err)
	}

	_, err = NewPCM(audio.Format{Codec: "pcm", SampleRate: 48000, Channels: 2, BitDepth: 24})
	if err == nil || !strings.Contains(err.Error(), "unsupported bit depth") {
		t.Errorf("24-bit error = %v", err)
	}
}

func TestPCMDecoder_Decode(t *testing.T) {
	dec, err := NewPCM(audio.Format{Codec: "pcm", SampleRate: 48000, Channels: 2, BitDepth: 16})
	if err != nil {
		t.Fatal(err)
	}
	defer dec.Close()

	in := []int16{0, 16384, -16384, -32768, 32767}
	data := make([]byte, len(in)*2)
	for i, v := range in {
		binary.LittleEndian.PutUint16(data[i*2:], uint16(v))
	}

	got, err := dec.Decode(data)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	want := []float32{0, 0.5, -0.5, -1, 32767.0 / 32768.0}
	if len(got) != len(want) {
		t.Fatalf("Decode() returned %d samples, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("sample %d = %v, want %v", i, got[i], want[i])
		}
	}

	// Trailing odd byte is ignored
	got, _ = dec.Decode(data[:3])
	if len(got) != 1 {
		t.Errorf("odd-length payload decoded to %d samples", len(got))
	}
}

func TestNewOpus(t *testing.T) {
	dec, err := NewOpus(audio.Format{Codec: "opus", SampleRate: 48000, Channels: 2, BitDepth: 16})
	if err != nil {
		t.Fatalf("NewOpus() error = %v", err)
	}
	dec.Close()

	if _, err := NewOpus(audio.Format{Codec: "pcm", SampleRate: 48000, Channels: 2}); err == nil {
		t.Error("NewOpus(pcm) expected error")
	}
	if _, err := NewOpus(audio.Format{Codec: "opus", SampleRate: 44100, Channels: 2}); err == nil {
		t.Error("NewOpus at 44.1 kHz expected error")
	}
}

func TestNew(t *testing.T) {
	if _, err := New(audio.Format{Codec: "mp3", SampleRate: 48000, Channels: 2}); err == nil {
		t.Error("New(mp3) expected error")
	}
}
