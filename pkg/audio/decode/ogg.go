// ABOUTME: Ogg Vorbis file source
// ABOUTME: Decodes and loops an Ogg Vorbis file using jfreymuth/oggvorbis
package decode

import (
	"fmt"
	"io"
	"log"
	"os"

	"github.com/jfreymuth/oggvorbis"
)

// OggSource reads from an Ogg Vorbis file
type OggSource struct {
	file       *os.File
	reader     *oggvorbis.Reader
	sampleRate int
	channels   int
	title      string
}

// NewOggSource creates a new Ogg Vorbis audio source
func NewOggSource(path string) (*OggSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open Ogg file: %w", err)
	}

	reader, err := oggvorbis.NewReader(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to decode Ogg Vorbis: %w", err)
	}

	s := &OggSource{
		file:       f,
		reader:     reader,
		sampleRate: reader.SampleRate(),
		channels:   reader.Channels(),
		title:      titleOf(path),
	}
	log.Printf("[source] loaded Ogg Vorbis: %s (%d Hz, %d ch)", s.title, s.sampleRate, s.channels)
	return s, nil
}

func (s *OggSource) Read(samples []float32) (int, error) {
	// Whole frames only, so channels stay aligned
	want := len(samples) / s.channels * s.channels
	read := 0
	for read < want {
		n, err := s.reader.Read(samples[read:want])
		read += n
		if err == io.EOF {
			if err := s.rewind(); err != nil {
				return read, err
			}
			continue
		}
		if err != nil {
			return read, fmt.Errorf("ogg decode error: %w", err)
		}
		if n == 0 {
			break
		}
	}
	return read, nil
}

func (s *OggSource) rewind() error {
	if _, err := s.file.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("failed to seek to start: %w", err)
	}
	reader, err := oggvorbis.NewReader(s.file)
	if err != nil {
		return fmt.Errorf("failed to create new reader: %w", err)
	}
	s.reader = reader
	return nil
}

func (s *OggSource) SampleRate() int { return s.sampleRate }
func (s *OggSource) Channels() int   { return s.channels }
func (s *OggSource) Name() string    { return s.title }
func (s *OggSource) Close() error    { return s.file.Close() }
