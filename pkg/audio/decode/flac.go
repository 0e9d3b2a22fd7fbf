// ABOUTME: FLAC file source
// ABOUTME: Decodes and loops a FLAC file using mewkiz/flac
package decode

import (
	"fmt"
	"io"
	"log"
	"os"

	"github.com/mewkiz/flac"
)

// FLACSource reads from a FLAC file
type FLACSource struct {
	file       *os.File
	stream     *flac.Stream
	sampleRate int
	channels   int
	scale      float32
	title      string

	// decoded samples of the current frame not yet returned
	pending []float32
}

// NewFLACSource creates a new FLAC audio source
func NewFLACSource(path string) (*FLACSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open FLAC file: %w", err)
	}

	stream, err := flac.New(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to decode FLAC: %w", err)
	}

	info := stream.Info
	s := &FLACSource{
		file:       f,
		stream:     stream,
		sampleRate: int(info.SampleRate),
		channels:   int(info.NChannels),
		scale:      float32(int64(1) << (info.BitsPerSample - 1)),
		title:      titleOf(path),
	}
	log.Printf("[source] loaded FLAC: %s (%d Hz, %d ch, %d-bit)",
		s.title, s.sampleRate, s.channels, info.BitsPerSample)
	return s, nil
}

func (s *FLACSource) Read(samples []float32) (int, error) {
	read := 0
	for read < len(samples) {
		if len(s.pending) > 0 {
			n := copy(samples[read:], s.pending)
			s.pending = s.pending[n:]
			read += n
			continue
		}

		frame, err := s.stream.ParseNext()
		if err == io.EOF {
			if err := s.rewind(); err != nil {
				return read, err
			}
			continue
		}
		if err != nil {
			return read, fmt.Errorf("flac decode error: %w", err)
		}

		block := int(frame.BlockSize)
		decoded := make([]float32, block*s.channels)
		for i := 0; i < block; i++ {
			for ch := 0; ch < s.channels; ch++ {
				decoded[i*s.channels+ch] = float32(frame.Subframes[ch].Samples[i]) / s.scale
			}
		}
		s.pending = decoded
	}
	return read, nil
}

func (s *FLACSource) rewind() error {
	if _, err := s.file.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("failed to seek to start: %w", err)
	}
	stream, err := flac.New(s.file)
	if err != nil {
		return fmt.Errorf("failed to create new stream: %w", err)
	}
	s.stream = stream
	return nil
}

func (s *FLACSource) SampleRate() int { return s.sampleRate }
func (s *FLACSource) Channels() int   { return s.channels }
func (s *FLACSource) Name() string    { return s.title }
func (s *FLACSource) Close() error    { return s.file.Close() }
