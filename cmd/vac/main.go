// ABOUTME: Entry point for the virtual audio cable host
// ABOUTME: Builds the device, attaches sources and sinks, and runs tap and TUI
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/Resonate-Protocol/vac-go/internal/config"
	"github.com/Resonate-Protocol/vac-go/internal/host"
	"github.com/Resonate-Protocol/vac-go/internal/logging"
	"github.com/Resonate-Protocol/vac-go/internal/tap"
	"github.com/Resonate-Protocol/vac-go/internal/ui"
	"github.com/Resonate-Protocol/vac-go/internal/version"
	"github.com/Resonate-Protocol/vac-go/pkg/audio/decode"
	"github.com/Resonate-Protocol/vac-go/pkg/audio/output"
	"golang.org/x/sync/errgroup"
)

func main() {
	envFile := os.Getenv(config.EnvPrefix + "ENV_FILE")
	if envFile == "" {
		envFile = ".env"
	}

	cfg, err := config.Load(envFile, os.Args[1:])
	if errors.Is(err, flag.ErrHelp) {
		return
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "vac: %v\n", err)
		os.Exit(2)
	}

	logs := logging.Setup(logging.Options{File: cfg.LogFile, Console: !cfg.TUI})
	defer logs.Close()

	if err := run(cfg); err != nil {
		log.Printf("Error: %v", err)
		logs.Close()
		os.Exit(1)
	}
}

func run(cfg config.Config) error {
	log.Printf("Starting %s %s (%s)", version.Product, version.Version, version.Manufacturer)
	if cfg.Debug {
		log.Printf("Debug logging enabled")
	}

	device, err := host.NewDevice(cfg.Device())
	if err != nil {
		return fmt.Errorf("failed to create device: %w", err)
	}

	var closers []func() error
	defer func() {
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i](); err != nil {
				log.Printf("Cleanup error: %v", err)
			}
		}
	}()

	if cfg.Source != config.SourceNone {
		path := cfg.Source
		if path == config.SourceTone {
			path = ""
		}
		src, err := decode.Open(path, cfg.SampleRate)
		if err != nil {
			return fmt.Errorf("failed to open source: %w", err)
		}
		closers = append(closers, src.Close)
		mustCable(device, cfg.SourceCable).AttachProducer(src)
	}

	if cfg.MonitorEnabled() {
		out, err := output.New(cfg.Monitor)
		if err != nil {
			return err
		}
		sink := host.NewSinkConsumer("monitor:"+cfg.Monitor, out, 16)
		closers = append(closers, sink.Close)
		mustCable(device, cfg.MonitorCable).AttachConsumer(sink)
	}

	if cfg.Record != "" {
		sink := host.NewSinkConsumer("record:"+cfg.Record, output.NewWAVRecorder(cfg.Record), 64)
		closers = append(closers, sink.Close)
		mustCable(device, cfg.RecordCable).AttachConsumer(sink)
	}

	var tapServer *tap.Server
	if cfg.TapEnabled {
		tapServer, err = tap.New(tap.Config{
			Port:       cfg.TapPort,
			Cable:      cfg.TapCable,
			Codec:      cfg.TapCodec,
			EnableMDNS: cfg.MDNS,
			Debug:      cfg.Debug,
		})
		if err != nil {
			return fmt.Errorf("failed to create tap: %w", err)
		}
		closers = append(closers, tapServer.Close)
		mustCable(device, cfg.TapCable).AttachConsumer(tapServer)
	}

	root, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	g, ctx := errgroup.WithContext(root)

	g.Go(func() error {
		return device.Run(ctx)
	})

	if tapServer != nil {
		g.Go(func() error {
			return tapServer.Run(ctx)
		})
	}

	if cfg.TUI {
		g.Go(func() error {
			defer stop()
			return ui.Run(ctx, device, tapStatus(cfg, tapServer))
		})
	} else {
		log.Printf("Press Ctrl-C to stop")
	}

	err = g.Wait()
	log.Printf("Device stopped")
	return err
}

func mustCable(d *host.Device, name string) *host.Cable {
	c, ok := d.Cable(name)
	if !ok {
		// config.Validate only accepts configured cable names
		panic("unknown cable " + name)
	}
	return c
}

func tapStatus(cfg config.Config, s *tap.Server) func() *ui.TapStatus {
	if s == nil {
		return nil
	}
	return func() *ui.TapStatus {
		return &ui.TapStatus{
			Cable:   cfg.TapCable,
			Addr:    fmt.Sprintf(":%d", cfg.TapPort),
			Codec:   cfg.TapCodec,
			Clients: s.Clients(),
			Frames:  s.FramesSent(),
			Dropped: s.BlocksDropped(),
		}
	}
}
