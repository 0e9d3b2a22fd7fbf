// ABOUTME: Encoder state for a tap: format tracking and frame accumulation
// ABOUTME: Opus runs on whole 20ms frames and falls back to PCM off 48 kHz
package tap

import (
	"fmt"
	"log"

	"github.com/Resonate-Protocol/vac-go/internal/protocol"
	"github.com/Resonate-Protocol/vac-go/pkg/audio"
	"github.com/Resonate-Protocol/vac-go/pkg/audio/encode"
)

const (
	channels = 2
	bitDepth = 16

	opusRate = 48000
)

// block is one IO cycle handed over by the mixer
type block struct {
	samples   []float32
	rate      int
	timestamp int64 // µs on the tap clock
}

// stream is owned by the encode goroutine
type stream struct {
	codec string

	onStart func(protocol.StreamStart)
	onFrame func(timestamp int64, payload []byte)

	rate    int
	format  audio.Format
	encoder encode.Encoder
	broken  bool

	pending      []float32
	pendingStart int64
}

func newStream(codec string, onStart func(protocol.StreamStart), onFrame func(int64, []byte)) *stream {
	return &stream{codec: codec, onStart: onStart, onFrame: onFrame}
}

// formatFor picks the wire format for a cable rate
func (s *stream) formatFor(rate int) audio.Format {
	codec := s.codec
	if codec == audio.CodecOpus && rate != opusRate {
		codec = audio.CodecPCM
	}
	return audio.Format{Codec: codec, SampleRate: rate, Channels: channels, BitDepth: bitDepth}
}

// reformat swaps the encoder when the cable rate changes
func (s *stream) reformat(rate int) error {
	s.close()
	s.rate = rate
	s.pending = s.pending[:0]

	format := s.formatFor(rate)
	if format.Codec != s.codec {
		log.Printf("[tap] %s needs %d Hz, sending %s at %d Hz", s.codec, opusRate, format.Codec, rate)
	}

	enc, err := encode.New(format)
	if err != nil {
		s.broken = true
		return fmt.Errorf("encoder for %s: %w", format, err)
	}
	s.broken = false
	s.encoder = enc
	s.format = format

	s.onStart(protocol.StreamStart{
		Codec:      format.Codec,
		SampleRate: format.SampleRate,
		Channels:   format.Channels,
		BitDepth:   format.BitDepth,
	})
	return nil
}

// push encodes a block, emitting zero or more frames
func (s *stream) push(b block) error {
	if b.rate != s.rate {
		if err := s.reformat(b.rate); err != nil {
			log.Printf("[tap] %v", err)
			return err
		}
	}
	if s.broken {
		return nil
	}

	size := s.encoder.FrameSamples()
	if size == 0 {
		payload, err := s.encoder.Encode(b.samples)
		if err != nil {
			return err
		}
		s.onFrame(b.timestamp, payload)
		return nil
	}

	if len(s.pending) == 0 {
		s.pendingStart = b.timestamp
	}
	s.pending = append(s.pending, b.samples...)

	for len(s.pending) >= size {
		payload, err := s.encoder.Encode(s.pending[:size])
		if err != nil {
			s.pending = s.pending[:0]
			return err
		}
		s.onFrame(s.pendingStart, payload)

		n := copy(s.pending, s.pending[size:])
		s.pending = s.pending[:n]
		s.pendingStart += int64(size/channels) * 1_000_000 / int64(s.rate)
	}
	return nil
}

func (s *stream) close() {
	if s.encoder != nil {
		s.encoder.Close()
		s.encoder = nil
	}
}
