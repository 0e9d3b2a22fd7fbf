// ABOUTME: MP3 file source
// ABOUTME: Decodes and loops an MP3 file using go-mp3
package decode

import (
	"encoding/binary"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/Resonate-Protocol/vac-go/pkg/audio"
	"github.com/hajimehoshi/go-mp3"
)

// MP3Source reads from an MP3 file
type MP3Source struct {
	file       *os.File
	decoder    *mp3.Decoder
	sampleRate int
	title      string
	buf        []byte
}

// NewMP3Source creates a new MP3 audio source
func NewMP3Source(path string) (*MP3Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open MP3 file: %w", err)
	}

	decoder, err := mp3.NewDecoder(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to decode MP3: %w", err)
	}

	s := &MP3Source{
		file:       f,
		decoder:    decoder,
		sampleRate: decoder.SampleRate(),
		title:      titleOf(path),
	}
	log.Printf("[source] loaded MP3: %s (%d Hz)", s.title, s.sampleRate)
	return s, nil
}

func (s *MP3Source) Read(samples []float32) (int, error) {
	// go-mp3 always produces 16-bit stereo
	need := len(samples) * 2
	if cap(s.buf) < need {
		s.buf = make([]byte, need)
	}
	buf := s.buf[:need]

	n, err := io.ReadFull(s.decoder, buf)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return 0, fmt.Errorf("mp3 decode error: %w", err)
	}

	count := n / 2
	for i := 0; i < count; i++ {
		samples[i] = audio.Int16ToFloat32(int16(binary.LittleEndian.Uint16(buf[i*2:])))
	}

	if err != nil {
		if _, seekErr := s.file.Seek(0, io.SeekStart); seekErr != nil {
			return count, fmt.Errorf("failed to seek to start: %w", seekErr)
		}
		decoder, decErr := mp3.NewDecoder(s.file)
		if decErr != nil {
			return count, fmt.Errorf("failed to create new decoder: %w", decErr)
		}
		s.decoder = decoder
	}
	return count, nil
}

func (s *MP3Source) SampleRate() int { return s.sampleRate }
func (s *MP3Source) Channels() int   { return 2 }
func (s *MP3Source) Name() string    { return s.title }
func (s *MP3Source) Close() error    { return s.file.Close() }
