// ABOUTME: Tests for configuration layering and validation
// ABOUTME: Environment lookups are injected so tests never touch the process env
package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func env(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func TestDefaults(t *testing.T) {
	cfg, err := load(nil, env(nil))
	require.NoError(t, err)

	assert.Equal(t, []string{"SDR-RX", "SDR-TX"}, cfg.Cables)
	assert.Equal(t, 2048, cfg.ChunkSize)
	assert.Equal(t, 32, cfg.ChunkCount)
	assert.Equal(t, 48000, cfg.SampleRate)
	assert.Equal(t, []int{16000, 44100, 48000}, cfg.SupportedRates)
	assert.Equal(t, "SDR-RX", cfg.SourceCable)
	assert.Equal(t, "SDR-RX", cfg.TapCable)
	assert.True(t, cfg.TapEnabled)
	assert.False(t, cfg.MonitorEnabled())
}

func TestEnvironmentOverridesDefaults(t *testing.T) {
	cfg, err := load(nil, env(map[string]string{
		"VAC_CABLES":      "A, B ,C",
		"VAC_RATE":        "44100",
		"VAC_CHUNK_COUNT": "12",
		"VAC_TAP_CABLE":   "B",
		"VAC_TAP_CODEC":   "pcm",
		"VAC_MONITOR":     "malgo",
		"VAC_TUI":         "false",
	}))
	require.NoError(t, err)

	assert.Equal(t, []string{"A", "B", "C"}, cfg.Cables)
	assert.Equal(t, 44100, cfg.SampleRate)
	assert.Equal(t, 12, cfg.ChunkCount)
	assert.Equal(t, "B", cfg.TapCable)
	assert.Equal(t, "A", cfg.SourceCable)
	assert.Equal(t, "pcm", cfg.TapCodec)
	assert.True(t, cfg.MonitorEnabled())
	assert.False(t, cfg.TUI)
}

func TestFlagsOverrideEnvironment(t *testing.T) {
	cfg, err := load(
		[]string{"-rate", "16000", "-no-tap", "-source", "none", "-cables", "X"},
		env(map[string]string{"VAC_RATE": "44100", "VAC_CABLES": "A,B"}),
	)
	require.NoError(t, err)

	assert.Equal(t, 16000, cfg.SampleRate)
	assert.False(t, cfg.TapEnabled)
	assert.Equal(t, SourceNone, cfg.Source)
	assert.Equal(t, []string{"X"}, cfg.Cables)
	assert.Equal(t, "X", cfg.MonitorCable)
}

func TestInvalidValues(t *testing.T) {
	cases := map[string]struct {
		args []string
		env  map[string]string
	}{
		"bad env number":   {env: map[string]string{"VAC_CHUNK_SIZE": "lots"}},
		"bad env bool":     {env: map[string]string{"VAC_DEBUG": "sometimes"}},
		"unsupported rate": {args: []string{"-rate", "22050"}},
		"bad rate list":    {args: []string{"-rates", "48000,fast"}},
		"duplicate cable":  {args: []string{"-cables", "A,A"}},
		"unknown cable":    {args: []string{"-tap-cable", "nope"}},
		"io too large":     {args: []string{"-chunk-size", "16", "-chunk-count", "2", "-io-frames", "64"}},
		"zero chunk":       {args: []string{"-chunk-size", "0"}},
		"bad monitor":      {args: []string{"-monitor", "alsa"}},
		"bad codec":        {args: []string{"-codec", "mp3"}},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := load(tc.args, env(tc.env))
			assert.ErrorIs(t, err, ErrInvalid)
		})
	}
}

func TestLoadReadsEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("VAC_CHUNK_SIZE=1024\nVAC_TAP_PORT=9000\n"), 0o644))

	cfg, err := Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, 1024, cfg.ChunkSize)
	assert.Equal(t, 9000, cfg.TapPort)
}

func TestLoadMissingEnvFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.env"), []string{"-port", "9100"})
	require.NoError(t, err)
	assert.Equal(t, 9100, cfg.TapPort)
}
