// ABOUTME: Malgo-based audio output implementation
// ABOUTME: Plays float32 samples through miniaudio from a ring buffer
package output

import (
	"fmt"
	"log"
	"sync"

	"github.com/Resonate-Protocol/vac-go/pkg/audio"
	"github.com/gen2brain/malgo"
)

// Malgo output implementation using malgo/miniaudio library
type Malgo struct {
	mu         sync.Mutex
	malgoCtx   *malgo.AllocatedContext
	device     *malgo.Device
	sampleRate int
	channels   int
	volume     int
	muted      bool
	ready      bool

	ringBuffer *RingBuffer
	scratch    []float32
	callback   []float32
}

// NewMalgo creates a new Malgo output
func NewMalgo() *Malgo {
	return &Malgo{volume: 100}
}

// Open initializes the output device with specified format
func (m *Malgo) Open(sampleRate, channels int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.device != nil && m.sampleRate == sampleRate && m.channels == channels {
		log.Printf("[malgo] already initialized with same format, reusing device")
		return nil
	}

	if m.device != nil {
		log.Printf("[malgo] format change (%dHz/%dch -> %dHz/%dch), reinitializing device",
			m.sampleRate, m.channels, sampleRate, channels)
		m.closeDevice()
	}

	if m.malgoCtx == nil {
		ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
		if err != nil {
			return fmt.Errorf("failed to initialize malgo context: %w", err)
		}
		m.malgoCtx = ctx
	}

	// 500ms of headroom
	m.ringBuffer = NewRingBuffer(sampleRate * channels / 2)

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Playback)
	deviceConfig.Playback.Format = malgo.FormatF32
	deviceConfig.Playback.Channels = uint32(channels)
	deviceConfig.SampleRate = uint32(sampleRate)
	deviceConfig.Alsa.NoMMap = 1

	m.channels = channels
	callbacks := malgo.DeviceCallbacks{
		Data: func(pOutput, _ []byte, frameCount uint32) {
			m.dataCallback(pOutput, frameCount)
		},
	}

	device, err := malgo.InitDevice(m.malgoCtx.Context, deviceConfig, callbacks)
	if err != nil {
		return fmt.Errorf("failed to initialize playback device: %w", err)
	}
	if err := device.Start(); err != nil {
		device.Uninit()
		return fmt.Errorf("failed to start device: %w", err)
	}

	m.device = device
	m.sampleRate = sampleRate
	m.ready = true

	log.Printf("[malgo] output initialized: %dHz, %d channels, f32", sampleRate, channels)
	return nil
}

// Write queues audio samples for playback. Samples beyond the ring
// capacity are dropped.
func (m *Malgo) Write(samples []float32) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.ready {
		return fmt.Errorf("output not initialized")
	}
	m.scratch = append(m.scratch[:0], samples...)
	applyVolume(m.scratch, m.volume, m.muted)
	m.ringBuffer.Write(m.scratch)
	return nil
}

// dataCallback is called by malgo to fill the device buffer
func (m *Malgo) dataCallback(pOutput []byte, frameCount uint32) {
	total := int(frameCount) * m.channels
	if cap(m.callback) < total {
		m.callback = make([]float32, total)
	}
	samples := m.callback[:total]
	m.ringBuffer.Read(samples)

	audio.PutFloat32s(pOutput, samples)
}

// Close releases output resources
func (m *Malgo) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closeDevice()

	if m.malgoCtx != nil {
		if err := m.malgoCtx.Uninit(); err != nil {
			log.Printf("[malgo] context uninit error: %v", err)
		}
		m.malgoCtx.Free()
		m.malgoCtx = nil
	}
	return nil
}

// closeDevice stops and uninitializes the device (must hold m.mu)
func (m *Malgo) closeDevice() {
	if m.device != nil {
		if err := m.device.Stop(); err != nil {
			log.Printf("[malgo] device stop error: %v", err)
		}
		m.device.Uninit()
		m.device = nil
		m.ready = false
	}
}

// SetVolume sets the volume (0-100)
func (m *Malgo) SetVolume(volume int) {
	m.mu.Lock()
	m.volume = clampVolume(volume)
	m.mu.Unlock()
}

// SetMuted sets mute state
func (m *Malgo) SetMuted(muted bool) {
	m.mu.Lock()
	m.muted = muted
	m.mu.Unlock()
}
