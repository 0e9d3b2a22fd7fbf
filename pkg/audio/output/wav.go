// ABOUTME: WAV recorder output
// ABOUTME: Writes the consumer side of a cable to a 16-bit WAV file using go-audio/wav
package output

import (
	"fmt"
	"log"
	"os"
	"sync"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/Resonate-Protocol/vac-go/pkg/audio"
)

// WAVRecorder records samples to a WAV file
type WAVRecorder struct {
	mu      sync.Mutex
	path    string
	file    *os.File
	encoder *wav.Encoder
	buf     *goaudio.IntBuffer
	frames  int64
}

// NewWAVRecorder creates a recorder writing to path on Open
func NewWAVRecorder(path string) *WAVRecorder {
	return &WAVRecorder{path: path}
}

// Open creates the file and writes the header
func (w *WAVRecorder) Open(sampleRate, channels int) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.encoder != nil {
		return fmt.Errorf("recorder already open: %s", w.path)
	}

	f, err := os.Create(w.path)
	if err != nil {
		return fmt.Errorf("failed to create WAV file: %w", err)
	}

	w.file = f
	w.encoder = wav.NewEncoder(f, sampleRate, 16, channels, 1)
	w.buf = &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: channels, SampleRate: sampleRate},
		SourceBitDepth: 16,
	}
	w.frames = 0

	log.Printf("[recorder] writing %s (%dHz, %d channels, 16-bit)", w.path, sampleRate, channels)
	return nil
}

// Write appends samples to the file
func (w *WAVRecorder) Write(samples []float32) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.encoder == nil {
		return fmt.Errorf("recorder not open")
	}

	if cap(w.buf.Data) < len(samples) {
		w.buf.Data = make([]int, len(samples))
	}
	w.buf.Data = w.buf.Data[:len(samples)]
	for i, s := range samples {
		w.buf.Data[i] = int(audio.Float32ToInt16(s))
	}

	if err := w.encoder.Write(w.buf); err != nil {
		return fmt.Errorf("wav write failed: %w", err)
	}
	w.frames += int64(len(samples) / w.buf.Format.NumChannels)
	return nil
}

// Frames returns the number of frames written so far
func (w *WAVRecorder) Frames() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.frames
}

// Close finalizes the header and closes the file
func (w *WAVRecorder) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.encoder == nil {
		return nil
	}
	encErr := w.encoder.Close()
	fileErr := w.file.Close()
	w.encoder = nil
	w.file = nil

	if encErr != nil {
		return fmt.Errorf("failed to finalize WAV: %w", encErr)
	}
	if fileErr != nil {
		return fmt.Errorf("failed to close WAV file: %w", fileErr)
	}
	log.Printf("[recorder] closed %s (%d frames)", w.path, w.frames)
	return nil
}
