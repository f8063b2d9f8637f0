package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 48000, cfg.SampleRate)
	assert.Equal(t, 2, cfg.OutChannels)
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero sample rate", func(c *Config) { c.SampleRate = 0 }},
		{"negative block size", func(c *Config) { c.MaxBlockFrames = -1 }},
		{"negative inputs", func(c *Config) { c.InChannels = -1 }},
		{"zero outputs", func(c *Config) { c.OutChannels = 0 }},
		{"zero channel capacity", func(c *Config) { c.ChannelCapacity = 0 }},
		{"zero fault threshold", func(c *Config) { c.FaultThreshold = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("", nil)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadMissingFileFallsThrough(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.toml"), nil)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "engine.toml")
	require.NoError(t, os.WriteFile(path, []byte(
		"sample_rate = 44100\nmax_block_frames = 256\n"), 0o644))

	cfg, err := Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, 44100, cfg.SampleRate)
	assert.Equal(t, 256, cfg.MaxBlockFrames)
	assert.Equal(t, Default().OutChannels, cfg.OutChannels, "untouched keys keep defaults")
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "engine.toml")
	require.NoError(t, os.WriteFile(path, []byte("sample_rate = 44100\n"), 0o644))
	t.Setenv("AUDIOGRAPH_SAMPLE_RATE", "96000")
	t.Setenv("AUDIOGRAPH_FAULT_THRESHOLD", "5")

	cfg, err := Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, 96000, cfg.SampleRate)
	assert.Equal(t, 5, cfg.FaultThreshold)
}

func TestLoadFlagsOverrideEnv(t *testing.T) {
	t.Setenv("AUDIOGRAPH_SAMPLE_RATE", "96000")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.Int("sample_rate", 0, "")
	require.NoError(t, flags.Parse([]string{"--sample_rate=22050"}))

	cfg, err := Load("", flags)
	require.NoError(t, err)
	assert.Equal(t, 22050, cfg.SampleRate)
}

func TestLoadRejectsInvalidResult(t *testing.T) {
	t.Setenv("AUDIOGRAPH_OUT_CHANNELS", "0")
	_, err := Load("", nil)
	require.Error(t, err)
}
