// ABOUTME: Entry point for the cable tap listener
// ABOUTME: Finds a tap over mDNS or dials one, decodes the stream and plays it
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Resonate-Protocol/vac-go/internal/client"
	"github.com/Resonate-Protocol/vac-go/internal/discovery"
	"github.com/Resonate-Protocol/vac-go/internal/logging"
	"github.com/Resonate-Protocol/vac-go/internal/protocol"
	"github.com/Resonate-Protocol/vac-go/pkg/audio"
	"github.com/Resonate-Protocol/vac-go/pkg/audio/decode"
	"github.com/Resonate-Protocol/vac-go/pkg/audio/output"
	"github.com/google/uuid"
)

var (
	serverAddr = flag.String("server", "", "Tap address host:port (skip mDNS)")
	cableName  = flag.String("cable", "", "Only accept taps for this cable when discovering")
	name       = flag.String("name", "", "Listener name (default: hostname-vac-listen)")
	backend    = flag.String("output", output.BackendOto, "Playback backend: oto, malgo, portaudio")
	timeout    = flag.Duration("discover-timeout", 10*time.Second, "How long to browse for a tap")
	logFile    = flag.String("log-file", "vac-listen.log", "Log file path")
)

func main() {
	flag.Parse()

	logs := logging.Setup(logging.Options{File: *logFile, Console: true})
	defer logs.Close()

	listenerName := *name
	if listenerName == "" {
		hostname, err := os.Hostname()
		if err != nil {
			hostname = "unknown"
		}
		listenerName = fmt.Sprintf("%s-vac-listen", hostname)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	addr := *serverAddr
	if addr == "" {
		found, err := discover(ctx, *cableName, *timeout)
		if err != nil {
			log.Fatalf("Discovery failed: %v", err)
		}
		addr = found
	}

	out, err := output.New(*backend)
	if err != nil {
		log.Fatalf("Output: %v", err)
	}
	defer out.Close()

	c := client.NewClient(client.Config{
		ServerAddr: addr,
		ClientID:   uuid.New().String(),
		Name:       listenerName,
		Codecs:     []string{audio.CodecOpus, audio.CodecPCM},
	})
	if err := c.Connect(); err != nil {
		log.Fatalf("Connect to %s: %v", addr, err)
	}
	defer c.Close()

	log.Printf("Listening to cable %s on %s", c.ServerHello().Cable, addr)
	play(ctx, c, out)
	log.Printf("Listener stopped")
}

func discover(ctx context.Context, cable string, wait time.Duration) (string, error) {
	log.Printf("Browsing for taps...")
	disc := discovery.NewManager(discovery.Config{Cable: cable})
	defer disc.Stop()
	disc.Browse()

	select {
	case tap := <-disc.Taps():
		log.Printf("Discovered tap %s (cable %s) at %s", tap.Name, tap.Cable, tap.Addr())
		return tap.Addr(), nil
	case <-time.After(wait):
		return "", fmt.Errorf("no tap found after %s", wait)
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// play decodes frames into out until the connection or ctx ends. A
// stream/start is only applied once a frame of that stream shows up, so
// frames still queued from the previous stream keep their own decoder.
func play(ctx context.Context, c *client.Client, out output.Output) {
	var dec decode.Decoder
	defer func() {
		if dec != nil {
			dec.Close()
		}
	}()

	var (
		current uint64
		pending []client.Stream
	)
	advance := func(id uint64) bool {
		for current < id {
			if len(pending) == 0 {
				select {
				case s := <-c.StreamStart:
					pending = append(pending, s)
				case <-ctx.Done():
					return false
				case <-c.Done():
					return false
				}
			}
			s := pending[0]
			pending = pending[1:]
			current = s.ID
			if s.ID != id {
				continue
			}
			if dec != nil {
				dec.Close()
				dec = nil
			}
			d, err := openStream(s.StreamStart, out)
			if err != nil {
				log.Printf("Cannot play stream: %v", err)
				continue
			}
			dec = d
		}
		return true
	}

	var frames, errs uint64
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.Done():
			return

		case s := <-c.StreamStart:
			pending = append(pending, s)

		case f := <-c.Frames:
			if !advance(f.Stream) {
				return
			}
			if dec == nil {
				continue
			}
			samples, err := dec.Decode(f.Data)
			if err == nil {
				err = out.Write(samples)
			}
			if err != nil {
				errs++
				if errs == 1 {
					log.Printf("Playback error: %v", err)
				}
				continue
			}
			frames++
			if frames%500 == 0 {
				log.Printf("Played %d frames (%d errors)", frames, errs)
			}
		}
	}
}

func openStream(start protocol.StreamStart, out output.Output) (decode.Decoder, error) {
	format := audio.Format{
		Codec:      start.Codec,
		SampleRate: start.SampleRate,
		Channels:   start.Channels,
		BitDepth:   start.BitDepth,
	}
	dec, err := decode.New(format)
	if err != nil {
		return nil, err
	}
	if err := out.Open(format.SampleRate, format.Channels); err != nil {
		dec.Close()
		return nil, err
	}
	log.Printf("Stream: %s", format)
	return dec, nil
}
