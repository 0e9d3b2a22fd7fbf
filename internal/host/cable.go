// ABOUTME: Host-side view of one cable: engine, streams and mixer
// ABOUTME: Attaching producers and consumers goes through here
package host

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/Resonate-Protocol/vac-go/pkg/cable"
)

// Cable bundles an engine with its two streams and the mixer that drives it
type Cable struct {
	engine *cable.Cable
	output *Stream
	input  *Stream
	mixer  *Mixer

	mu      sync.Mutex
	cancel  context.CancelFunc
	mixDone chan struct{}
}

func newCable(cfg cable.Config, ioFrames int) (*Cable, error) {
	out := NewStream(DirectionOutput)
	cfg.Clients = out

	engine, err := cable.New(cfg)
	if err != nil {
		return nil, err
	}
	mixer, err := NewMixer(engine, ioFrames)
	if err != nil {
		return nil, fmt.Errorf("cable %s: %w", cfg.Name, err)
	}

	return &Cable{
		engine: engine,
		output: out,
		input:  NewStream(DirectionInput),
		mixer:  mixer,
	}, nil
}

// Name returns the cable name
func (c *Cable) Name() string { return c.engine.Name() }

// Engine returns the underlying engine
func (c *Cable) Engine() *cable.Cable { return c.engine }

// Mixer returns the cable's IO mixer
func (c *Cable) Mixer() *Mixer { return c.mixer }

// OutputStream returns the producer side
func (c *Cable) OutputStream() *Stream { return c.output }

// InputStream returns the consumer side
func (c *Cable) InputStream() *Stream { return c.input }

// AttachProducer connects p to the output side and returns its client id
func (c *Cable) AttachProducer(p Producer) string {
	id := c.output.Attach(p.Name())
	c.mixer.addProducer(id, p)
	log.Printf("[cable %s] producer attached: %s (%d Hz, %d ch)", c.Name(), p.Name(), p.SampleRate(), p.Channels())
	return id
}

// DetachProducer disconnects a producer
func (c *Cable) DetachProducer(id string) bool {
	c.mixer.removeProducer(id)
	ok := c.output.Detach(id)
	if ok {
		log.Printf("[cable %s] producer detached", c.Name())
	}
	return ok
}

// AttachConsumer connects k to the input side and returns its client id
func (c *Cable) AttachConsumer(k Consumer) string {
	id := c.input.Attach(k.Name())
	c.mixer.addConsumer(id, k)
	log.Printf("[cable %s] consumer attached: %s", c.Name(), k.Name())
	return id
}

// DetachConsumer disconnects a consumer
func (c *Cable) DetachConsumer(id string) bool {
	c.mixer.removeConsumer(id)
	ok := c.input.Detach(id)
	if ok {
		log.Printf("[cable %s] consumer detached", c.Name())
	}
	return ok
}

// SetRate asks the engine to switch sample rate
func (c *Cable) SetRate(rate int) error {
	return c.engine.ChangeFormat(rate)
}

// NextRate switches to the next declared rate, wrapping around
func (c *Cable) NextRate() error {
	rates := c.engine.SupportedRates()
	cur := c.engine.SampleRate()
	for i, r := range rates {
		if r == cur {
			return c.SetRate(rates[(i+1)%len(rates)])
		}
	}
	return c.SetRate(rates[0])
}

func (c *Cable) start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cancel != nil {
		return nil
	}
	if err := c.engine.Start(); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.mixDone = make(chan struct{})
	go func() {
		defer close(c.mixDone)
		c.mixer.Run(ctx)
	}()
	return nil
}

func (c *Cable) stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cancel != nil {
		c.cancel()
		<-c.mixDone
		c.cancel = nil
	}
	return c.engine.Stop()
}

// Status is a display snapshot of a cable
type Status struct {
	cable.Stats
	Producers     int
	Consumers     int
	ProducerNames []string
	ConsumerNames []string
	IOCycles      uint64
	IOErrors      uint64
}

// Status returns the current snapshot
func (c *Cable) Status() Status {
	return Status{
		Stats:         c.engine.Stats(),
		Producers:     c.output.Clients(),
		Consumers:     c.input.Clients(),
		ProducerNames: c.output.ClientNames(),
		ConsumerNames: c.input.ClientNames(),
		IOCycles:      c.mixer.Cycles(),
		IOErrors:      c.mixer.Errors(),
	}
}
