// ABOUTME: Virtual audio device owning one engine per configured cable
// ABOUTME: Creates, activates and tears down cables as a unit
package host

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/Resonate-Protocol/vac-go/internal/version"
	"github.com/Resonate-Protocol/vac-go/pkg/cable"
)

// DefaultCableNames are created when no names are configured
var DefaultCableNames = []string{"SDR-RX", "SDR-TX"}

// Config describes the device and the cables it owns
type Config struct {
	Cables         []string
	ChunkSize      int
	ChunkCount     int
	SampleRate     int
	SupportedRates []int
	IOFrames       int
	Debug          bool

	// Optional overrides for every cable's engine
	Clock    cable.Clock
	NewTimer cable.TimerFactory
}

// Device is the virtual sound card
type Device struct {
	cables []*Cable
	byName map[string]*Cable

	mu     sync.Mutex
	active bool
}

// NewDevice creates every configured cable. If any fails, the ones
// already created are released and the error is returned.
func NewDevice(cfg Config) (*Device, error) {
	names := cfg.Cables
	if len(names) == 0 {
		names = DefaultCableNames
	}

	d := &Device{byName: make(map[string]*Cable, len(names))}
	for _, name := range names {
		if _, dup := d.byName[name]; dup {
			d.release()
			return nil, fmt.Errorf("duplicate cable name %q: %w", name, cable.ErrInvalidConfig)
		}

		c, err := newCable(cable.Config{
			Name:           name,
			ChunkSize:      cfg.ChunkSize,
			ChunkCount:     cfg.ChunkCount,
			SampleRate:     cfg.SampleRate,
			SupportedRates: cfg.SupportedRates,
			Clock:          cfg.Clock,
			NewTimer:       cfg.NewTimer,
			Debug:          cfg.Debug,
		}, cfg.IOFrames)
		if err != nil {
			d.release()
			return nil, fmt.Errorf("failed to create cable: %w", err)
		}
		d.cables = append(d.cables, c)
		d.byName[name] = c
	}

	log.Printf("[device] %s (%s) by %s: %d cables", version.Product, version.ShortName, version.Manufacturer, len(d.cables))
	return d, nil
}

// Cables returns the cables in configuration order
func (d *Device) Cables() []*Cable {
	out := make([]*Cable, len(d.cables))
	copy(out, d.cables)
	return out
}

// Cable looks up a cable by name
func (d *Device) Cable(name string) (*Cable, bool) {
	c, ok := d.byName[name]
	return c, ok
}

// Activate starts every engine and its mixer. On failure the engines
// already started are stopped again.
func (d *Device) Activate(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.active {
		return nil
	}
	for i, c := range d.cables {
		if err := c.start(ctx); err != nil {
			errs := []error{fmt.Errorf("cable %s: %w", c.Name(), err)}
			for _, started := range d.cables[:i] {
				if serr := started.stop(); serr != nil {
					errs = append(errs, serr)
				}
			}
			return fmt.Errorf("failed to activate device: %w", errors.Join(errs...))
		}
	}
	d.active = true
	log.Printf("[device] active")
	return nil
}

// Close stops every cable
func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.active {
		return nil
	}
	var errs []error
	for _, c := range d.cables {
		if err := c.stop(); err != nil {
			errs = append(errs, err)
		}
	}
	d.active = false
	log.Printf("[device] stopped")
	return errors.Join(errs...)
}

// Run activates the device and keeps it running until ctx is done
func (d *Device) Run(ctx context.Context) error {
	if err := d.Activate(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	return d.Close()
}

// CycleRate moves the named cable to its next supported rate
func (d *Device) CycleRate(name string) error {
	c, ok := d.Cable(name)
	if !ok {
		return fmt.Errorf("unknown cable %q", name)
	}
	return c.NextRate()
}

// Status returns a snapshot of every cable
func (d *Device) Status() []Status {
	out := make([]Status, len(d.cables))
	for i, c := range d.cables {
		out[i] = c.Status()
	}
	return out
}

func (d *Device) release() {
	for _, c := range d.cables {
		c.stop()
	}
	d.cables = nil
	d.byName = map[string]*Cable{}
}
