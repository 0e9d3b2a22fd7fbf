// ABOUTME: Producer sources that feed audio into a cable
// ABOUTME: Opens files by extension and loops them; falls back to a test tone
package decode

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrUnsupportedFormat is returned for a file extension no source handles
var ErrUnsupportedFormat = errors.New("unsupported audio format")

// Source provides interleaved float32 samples in [-1, 1]
type Source interface {
	// Read fills samples and returns how many were written. File sources
	// loop at end of stream, so io.EOF is not returned.
	Read(samples []float32) (int, error)
	SampleRate() int
	Channels() int
	// Name is a display name for the source
	Name() string
	Close() error
}

// Open creates a source for path. An empty path yields a 440 Hz tone at toneRate.
func Open(path string, toneRate int) (Source, error) {
	if path == "" {
		return NewTone(toneRate, DefaultToneFrequency, DefaultToneLevel), nil
	}

	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("audio file not found: %w", err)
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".mp3":
		return NewMP3Source(path)
	case ".flac":
		return NewFLACSource(path)
	case ".wav":
		return NewWAVSource(path)
	case ".ogg", ".oga":
		return NewOggSource(path)
	default:
		return nil, fmt.Errorf("%w: %s (supported: .mp3, .flac, .wav, .ogg)", ErrUnsupportedFormat, ext)
	}
}

func titleOf(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
