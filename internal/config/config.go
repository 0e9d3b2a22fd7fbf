// ABOUTME: Runtime configuration for the vac host process
// ABOUTME: Layers defaults, a .env file, VAC_* environment variables and flags
package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/Resonate-Protocol/vac-go/internal/host"
	"github.com/Resonate-Protocol/vac-go/pkg/audio"
	"github.com/Resonate-Protocol/vac-go/pkg/audio/output"
	"github.com/Resonate-Protocol/vac-go/pkg/cable"
	"github.com/joho/godotenv"
)

// ErrInvalid wraps every validation failure
var ErrInvalid = errors.New("invalid configuration")

// EnvPrefix prefixes every environment variable read by Load
const EnvPrefix = "VAC_"

// Special values for Source and Monitor
const (
	SourceTone  = "tone"
	SourceNone  = "none"
	MonitorNone = "none"
)

// Config is the whole runtime configuration
type Config struct {
	Cables         []string
	ChunkSize      int
	ChunkCount     int
	SampleRate     int
	SupportedRates []int
	IOFrames       int

	// Source is "tone", "none" or an audio file path
	Source      string
	SourceCable string

	// Monitor is a playback backend name or "none"
	Monitor      string
	MonitorCable string

	// Record is a WAV path; empty disables recording
	Record      string
	RecordCable string

	TapEnabled bool
	TapPort    int
	TapCable   string
	TapCodec   string
	MDNS       bool

	TUI     bool
	LogFile string
	Debug   bool
}

// Default returns the configuration used when nothing is overridden
func Default() Config {
	return Config{
		Cables:         append([]string(nil), host.DefaultCableNames...),
		ChunkSize:      cable.DefaultChunkSize,
		ChunkCount:     cable.DefaultChunkCount,
		SampleRate:     cable.DefaultSampleRate,
		SupportedRates: append([]int(nil), cable.DefaultRates...),
		IOFrames:       host.DefaultIOFrames,
		Source:         SourceTone,
		Monitor:        MonitorNone,
		TapEnabled:     true,
		TapPort:        8927,
		TapCodec:       audio.CodecOpus,
		MDNS:           true,
		TUI:            true,
		LogFile:        "vac.log",
	}
}

// Load builds the configuration from envFile (skipped when missing), the
// process environment and args. The process environment wins over the file.
func Load(envFile string, args []string) (Config, error) {
	fileEnv := map[string]string{}
	if envFile != "" {
		m, err := godotenv.Read(envFile)
		switch {
		case err == nil:
			fileEnv = m
		case errors.Is(err, os.ErrNotExist):
		default:
			return Config{}, fmt.Errorf("reading %s: %w", envFile, err)
		}
	}

	lookup := func(key string) (string, bool) {
		if v, ok := os.LookupEnv(key); ok {
			return v, true
		}
		v, ok := fileEnv[key]
		return v, ok
	}
	return load(args, lookup)
}

func load(args []string, lookup func(string) (string, bool)) (Config, error) {
	cfg := Default()
	if err := cfg.applyEnv(lookup); err != nil {
		return Config{}, err
	}
	if err := cfg.applyFlags(args); err != nil {
		return Config{}, err
	}
	cfg.resolve()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(name string, dst *string) {
		if v, ok := lookup(EnvPrefix + name); ok {
			*dst = v
		}
	}
	var firstErr error
	num := func(name string, dst *int) {
		if v, ok := lookup(EnvPrefix + name); ok {
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil && firstErr == nil {
				firstErr = fmt.Errorf("%s%s=%q: %w", EnvPrefix, name, v, ErrInvalid)
			}
			if err == nil {
				*dst = n
			}
		}
	}
	boolean := func(name string, dst *bool) {
		if v, ok := lookup(EnvPrefix + name); ok {
			b, err := strconv.ParseBool(strings.TrimSpace(v))
			if err != nil && firstErr == nil {
				firstErr = fmt.Errorf("%s%s=%q: %w", EnvPrefix, name, v, ErrInvalid)
			}
			if err == nil {
				*dst = b
			}
		}
	}

	if v, ok := lookup(EnvPrefix + "CABLES"); ok {
		c.Cables = splitList(v)
	}
	if v, ok := lookup(EnvPrefix + "RATES"); ok {
		rates, err := parseRates(v)
		if err != nil {
			return err
		}
		c.SupportedRates = rates
	}

	num("CHUNK_SIZE", &c.ChunkSize)
	num("CHUNK_COUNT", &c.ChunkCount)
	num("RATE", &c.SampleRate)
	num("IO_FRAMES", &c.IOFrames)
	str("SOURCE", &c.Source)
	str("SOURCE_CABLE", &c.SourceCable)
	str("MONITOR", &c.Monitor)
	str("MONITOR_CABLE", &c.MonitorCable)
	str("RECORD", &c.Record)
	str("RECORD_CABLE", &c.RecordCable)
	boolean("TAP", &c.TapEnabled)
	num("TAP_PORT", &c.TapPort)
	str("TAP_CABLE", &c.TapCable)
	str("TAP_CODEC", &c.TapCodec)
	boolean("MDNS", &c.MDNS)
	boolean("TUI", &c.TUI)
	str("LOG_FILE", &c.LogFile)
	boolean("DEBUG", &c.Debug)

	return firstErr
}

func (c *Config) applyFlags(args []string) error {
	fs := flag.NewFlagSet("vac", flag.ContinueOnError)

	cables := fs.String("cables", strings.Join(c.Cables, ","), "Comma-separated cable names")
	rates := fs.String("rates", joinRates(c.SupportedRates), "Comma-separated supported sample rates")
	fs.IntVar(&c.ChunkSize, "chunk-size", c.ChunkSize, "Frames per chunk")
	fs.IntVar(&c.ChunkCount, "chunk-count", c.ChunkCount, "Chunks in the transfer buffer")
	fs.IntVar(&c.SampleRate, "rate", c.SampleRate, "Initial sample rate")
	fs.IntVar(&c.IOFrames, "io-frames", c.IOFrames, "Frames per host IO cycle")
	fs.StringVar(&c.Source, "source", c.Source, "Producer: tone, none, or an audio file (MP3, FLAC, WAV, OGG)")
	fs.StringVar(&c.SourceCable, "source-cable", c.SourceCable, "Cable fed by the producer (default: first cable)")
	fs.StringVar(&c.Monitor, "monitor", c.Monitor, "Playback backend for monitoring: none, oto, malgo, portaudio")
	fs.StringVar(&c.MonitorCable, "monitor-cable", c.MonitorCable, "Cable to monitor (default: first cable)")
	fs.StringVar(&c.Record, "record", c.Record, "Record a cable to this WAV file")
	fs.StringVar(&c.RecordCable, "record-cable", c.RecordCable, "Cable to record (default: first cable)")
	noTap := fs.Bool("no-tap", !c.TapEnabled, "Disable the network tap")
	fs.IntVar(&c.TapPort, "port", c.TapPort, "Tap WebSocket port")
	fs.StringVar(&c.TapCable, "tap-cable", c.TapCable, "Cable exposed on the tap (default: first cable)")
	fs.StringVar(&c.TapCodec, "codec", c.TapCodec, "Tap codec: opus or pcm")
	noMDNS := fs.Bool("no-mdns", !c.MDNS, "Disable mDNS advertisement")
	noTUI := fs.Bool("no-tui", !c.TUI, "Disable TUI, use streaming logs instead")
	fs.StringVar(&c.LogFile, "log-file", c.LogFile, "Log file path")
	fs.BoolVar(&c.Debug, "debug", c.Debug, "Enable debug logging")

	if err := fs.Parse(args); err != nil {
		return err
	}

	c.Cables = splitList(*cables)
	parsed, err := parseRates(*rates)
	if err != nil {
		return err
	}
	c.SupportedRates = parsed
	c.TapEnabled = !*noTap
	c.MDNS = !*noMDNS
	c.TUI = !*noTUI
	return nil
}

// resolve fills cable selections left empty with the first cable
func (c *Config) resolve() {
	if len(c.Cables) == 0 {
		return
	}
	for _, sel := range []*string{&c.SourceCable, &c.MonitorCable, &c.RecordCable, &c.TapCable} {
		if *sel == "" {
			*sel = c.Cables[0]
		}
	}
}

// Validate rejects inconsistent values
func (c Config) Validate() error {
	if len(c.Cables) == 0 {
		return fmt.Errorf("no cables configured: %w", ErrInvalid)
	}
	seen := make(map[string]bool, len(c.Cables))
	for _, name := range c.Cables {
		if name == "" {
			return fmt.Errorf("empty cable name: %w", ErrInvalid)
		}
		if seen[name] {
			return fmt.Errorf("duplicate cable %q: %w", name, ErrInvalid)
		}
		seen[name] = true
	}

	if c.ChunkSize <= 0 || c.ChunkCount <= 0 {
		return fmt.Errorf("chunk geometry %dx%d: %w", c.ChunkSize, c.ChunkCount, ErrInvalid)
	}
	if c.IOFrames <= 0 || c.IOFrames > c.ChunkSize*c.ChunkCount {
		return fmt.Errorf("io frames %d outside 1..%d: %w", c.IOFrames, c.ChunkSize*c.ChunkCount, ErrInvalid)
	}

	rateOK := false
	for _, r := range c.SupportedRates {
		if r <= 0 {
			return fmt.Errorf("rate %d: %w", r, ErrInvalid)
		}
		if r == c.SampleRate {
			rateOK = true
		}
	}
	if !rateOK {
		return fmt.Errorf("rate %d not in %v: %w", c.SampleRate, c.SupportedRates, ErrInvalid)
	}

	for field, name := range map[string]string{
		"source-cable":  c.SourceCable,
		"monitor-cable": c.MonitorCable,
		"record-cable":  c.RecordCable,
		"tap-cable":     c.TapCable,
	} {
		if name != "" && !seen[name] {
			return fmt.Errorf("%s %q is not a configured cable: %w", field, name, ErrInvalid)
		}
	}

	switch c.Monitor {
	case MonitorNone, "", output.BackendOto, output.BackendMalgo, output.BackendPortAudio:
	default:
		return fmt.Errorf("monitor backend %q: %w", c.Monitor, ErrInvalid)
	}

	if c.TapEnabled {
		if c.TapCodec != audio.CodecOpus && c.TapCodec != audio.CodecPCM {
			return fmt.Errorf("tap codec %q: %w", c.TapCodec, ErrInvalid)
		}
		if c.TapPort < 0 || c.TapPort > 65535 {
			return fmt.Errorf("tap port %d: %w", c.TapPort, ErrInvalid)
		}
	}
	return nil
}

// MonitorEnabled reports whether a playback backend was chosen
func (c Config) MonitorEnabled() bool {
	return c.Monitor != "" && c.Monitor != MonitorNone
}

// Device returns the host device configuration
func (c Config) Device() host.Config {
	return host.Config{
		Cables:         c.Cables,
		ChunkSize:      c.ChunkSize,
		ChunkCount:     c.ChunkCount,
		SampleRate:     c.SampleRate,
		SupportedRates: c.SupportedRates,
		IOFrames:       c.IOFrames,
		Debug:          c.Debug,
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func parseRates(s string) ([]int, error) {
	var rates []int
	for _, part := range splitList(s) {
		r, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("rate %q: %w", part, ErrInvalid)
		}
		rates = append(rates, r)
	}
	return rates, nil
}

func joinRates(rates []int) string {
	parts := make([]string, len(rates))
	for i, r := range rates {
		parts[i] = strconv.Itoa(r)
	}
	return strings.Join(parts, ",")
}
