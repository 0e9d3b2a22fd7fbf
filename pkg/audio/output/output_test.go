// ABOUTME: Audio output tests
// ABOUTME: Verifies backends, volume scaling, the ring buffer and WAV recording
package output

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/go-audio/wav"
)

func TestBackendsImplementOutput(t *testing.T) {
	var _ Output = (*PortAudio)(nil)
	var _ Output = (*Oto)(nil)
	var _ Output = (*Malgo)(nil)
	var _ Output = (*WAVRecorder)(nil)
}

func TestNew(t *testing.T) {
	for _, name := range []string{"", BackendOto, BackendMalgo, BackendPortAudio} {
		out, err := New(name)
		if err != nil || out == nil {
			t.Errorf("New(%q) = %v, %v", name, out, err)
		}
	}
	if _, err := New("alsa"); err == nil {
		t.Error("New(alsa) expected error")
	}
}

func TestApplyVolume(t *testing.T) {
	samples := []float32{0.5, -0.5, 1}
	applyVolume(samples, 50, false)
	if samples[0] != 0.25 || samples[1] != -0.25 || samples[2] != 0.5 {
		t.Errorf("50%% volume: %v", samples)
	}

	samples = []float32{0.5, -0.5}
	applyVolume(samples, 100, true)
	if samples[0] != 0 || samples[1] != 0 {
		t.Errorf("muted: %v", samples)
	}

	if clampVolume(150) != 100 || clampVolume(-3) != 0 {
		t.Error("clampVolume out of range")
	}
}

func TestRingBuffer(t *testing.T) {
	rb := NewRingBuffer(4)
	if n := rb.Write([]float32{1, 2, 3, 4, 5}); n != 4 {
		t.Errorf("Write() = %d, want 4 (full)", n)
	}
	if rb.Free() != 0 || rb.Available() != 4 {
		t.Errorf("free %d available %d", rb.Free(), rb.Available())
	}

	out := make([]float32, 3)
	if n := rb.Read(out); n != 3 || out[0] != 1 || out[2] != 3 {
		t.Errorf("Read() = %d %v", n, out)
	}

	rb.Write([]float32{6, 7})
	out = make([]float32, 5)
	n := rb.Read(out)
	if n != 3 || out[0] != 4 || out[1] != 6 || out[2] != 7 {
		t.Errorf("wrapped Read() = %d %v", n, out)
	}
	if out[3] != 0 || out[4] != 0 {
		t.Errorf("underrun not zero-filled: %v", out)
	}
}

func TestWAVRecorder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cable.wav")
	rec := NewWAVRecorder(path)

	if err := rec.Write([]float32{0}); err == nil {
		t.Error("Write before Open expected error")
	}
	if err := rec.Open(44100, 2); err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if err := rec.Write([]float32{0, 0, 0.5, -0.5}); err != nil {
		t.Fatal(err)
	}
	if err := rec.Write([]float32{1, -1}); err != nil {
		t.Fatal(err)
	}
	if rec.Frames() != 3 {
		t.Errorf("Frames() = %d, want 3", rec.Frames())
	}
	if err := rec.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		t.Fatalf("FullPCMBuffer() error = %v", err)
	}
	if dec.SampleRate != 44100 || dec.NumChans != 2 || dec.BitDepth != 16 {
		t.Errorf("header: %d Hz, %d ch, %d-bit", dec.SampleRate, dec.NumChans, dec.BitDepth)
	}
	want := []int{0, 0, 16383, -16383, 32767, -32767}
	if len(buf.Data) != len(want) {
		t.Fatalf("decoded %d samples, want %d", len(buf.Data), len(want))
	}
	for i := range want {
		if buf.Data[i] != want[i] {
			t.Errorf("sample %d = %d, want %d", i, buf.Data[i], want[i])
		}
	}
}
