// ABOUTME: WAV file source
// ABOUTME: Decodes and loops a PCM WAV file using go-audio/wav
package decode

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// ErrNotWAV is returned when a file lacks a valid RIFF/WAVE header
var ErrNotWAV = errors.New("not a valid WAV file")

// WAVSource reads from a WAV file
type WAVSource struct {
	file       *os.File
	dec        *wav.Decoder
	sampleRate int
	channels   int
	scale      float32
	bias       int
	title      string
	buf        *goaudio.IntBuffer
}

// NewWAVSource creates a new WAV audio source
func NewWAVSource(path string) (*WAVSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open WAV file: %w", err)
	}

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		f.Close()
		return nil, fmt.Errorf("%s: %w", path, ErrNotWAV)
	}
	if err := dec.FwdToPCM(); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to locate WAV data: %w", err)
	}

	bitDepth := int(dec.BitDepth)
	if bitDepth == 0 || bitDepth > 32 {
		f.Close()
		return nil, fmt.Errorf("unsupported WAV bit depth: %d", bitDepth)
	}

	s := &WAVSource{
		file:       f,
		dec:        dec,
		sampleRate: int(dec.SampleRate),
		channels:   int(dec.NumChans),
		scale:      float32(int64(1) << (bitDepth - 1)),
		bias:       unsignedBias(bitDepth),
		title:      titleOf(path),
		buf: &goaudio.IntBuffer{
			Format: &goaudio.Format{NumChannels: int(dec.NumChans), SampleRate: int(dec.SampleRate)},
		},
	}
	log.Printf("[source] loaded WAV: %s (%d Hz, %d ch, %d-bit)", s.title, s.sampleRate, s.channels, bitDepth)
	return s, nil
}

func (s *WAVSource) Read(samples []float32) (int, error) {
	if cap(s.buf.Data) < len(samples) {
		s.buf.Data = make([]int, len(samples))
	}
	s.buf.Data = s.buf.Data[:len(samples)]

	n, err := s.dec.PCMBuffer(s.buf)
	if err != nil && err != io.EOF {
		return 0, fmt.Errorf("wav decode error: %w", err)
	}
	for i := 0; i < n; i++ {
		samples[i] = float32(s.buf.Data[i]-s.bias) / s.scale
	}

	if n < len(samples) {
		if err := s.dec.Rewind(); err != nil {
			return n, fmt.Errorf("failed to rewind WAV: %w", err)
		}
	}
	return n, nil
}

// 8-bit WAV data is unsigned, centred on 128
func unsignedBias(bitDepth int) int {
	if bitDepth == 8 {
		return 128
	}
	return 0
}

func (s *WAVSource) SampleRate() int { return s.sampleRate }
func (s *WAVSource) Channels() int   { return s.channels }
func (s *WAVSource) Name() string    { return s.title }
func (s *WAVSource) Close() error    { return s.file.Close() }
