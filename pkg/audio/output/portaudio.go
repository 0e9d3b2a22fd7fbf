//go:build portaudio

// ABOUTME: PortAudio output implementation
// ABOUTME: Cross-platform float32 playback using PortAudio
package output

import (
	"fmt"
	"log"

	"github.com/gordonklaus/portaudio"
)

// PortAudio output implementation
type PortAudio struct {
	stream     *portaudio.Stream
	ringBuffer *RingBuffer
}

// NewPortAudio creates a new PortAudio output
func NewPortAudio() Output {
	return &PortAudio{}
}

// Open initializes PortAudio
func (p *PortAudio) Open(sampleRate, channels int) error {
	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize portaudio: %w", err)
	}

	p.ringBuffer = NewRingBuffer(sampleRate * channels / 2)
	stream, err := portaudio.OpenDefaultStream(0, channels, float64(sampleRate), 0, func(out []float32) {
		p.ringBuffer.Read(out)
	})
	if err != nil {
		portaudio.Terminate()
		return fmt.Errorf("failed to open stream: %w", err)
	}

	p.stream = stream
	if err := stream.Start(); err != nil {
		stream.Close()
		portaudio.Terminate()
		return fmt.Errorf("failed to start stream: %w", err)
	}
	log.Printf("[portaudio] output initialized: %dHz, %d channels", sampleRate, channels)
	return nil
}

// Write queues audio samples
func (p *PortAudio) Write(samples []float32) error {
	if p.stream == nil {
		return fmt.Errorf("output not opened")
	}
	p.ringBuffer.Write(samples)
	return nil
}

// Close releases resources
func (p *PortAudio) Close() error {
	if p.stream != nil {
		if err := p.stream.Stop(); err != nil {
			return err
		}
		if err := p.stream.Close(); err != nil {
			return err
		}
		p.stream = nil
	}
	return portaudio.Terminate()
}
