// Package config loads engine configuration with layered sources:
// defaults, an optional TOML file, environment variables, and command
// line flags, in ascending priority.
package config

import (
	"fmt"
	"strings"

	"github.com/knadh/koanf/parsers/toml/v2"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// EnvPrefix is the prefix for environment overrides, e.g.
// AUDIOGRAPH_SAMPLE_RATE=44100.
const EnvPrefix = "AUDIOGRAPH_"

// Config holds the engine's tunable parameters.
type Config struct {
	// SampleRate is the stream sample rate in Hz.
	SampleRate int `koanf:"sample_rate"`
	// MaxBlockFrames caps the frames processed per dispatch block.
	MaxBlockFrames int `koanf:"max_block_frames"`
	// InChannels and OutChannels are the stream channel counts; they
	// also size the graph's terminal nodes.
	InChannels  int `koanf:"in_channels"`
	OutChannels int `koanf:"out_channels"`
	// ChannelCapacity bounds the control-to-audio command channel.
	ChannelCapacity int `koanf:"channel_capacity"`
	// FaultThreshold is the consecutive-fault count after which a node
	// is marked degraded.
	FaultThreshold int `koanf:"fault_threshold"`
}

// Default returns the configuration used when nothing overrides it:
// 48 kHz stereo output, 1024-frame blocks, a 16-slot command channel,
// and a fault threshold of 3.
func Default() Config {
	return Config{
		SampleRate:      48000,
		MaxBlockFrames:  1024,
		InChannels:      0,
		OutChannels:     2,
		ChannelCapacity: 16,
		FaultThreshold:  3,
	}
}

// Validate checks the configuration for values the engine cannot run
// with.
func (c Config) Validate() error {
	if c.SampleRate <= 0 {
		return fmt.Errorf("sample_rate must be positive, got %d", c.SampleRate)
	}
	if c.MaxBlockFrames <= 0 {
		return fmt.Errorf("max_block_frames must be positive, got %d", c.MaxBlockFrames)
	}
	if c.InChannels < 0 || c.OutChannels <= 0 {
		return fmt.Errorf("need non-negative in_channels and positive out_channels, got %d/%d",
			c.InChannels, c.OutChannels)
	}
	if c.ChannelCapacity <= 0 {
		return fmt.Errorf("channel_capacity must be positive, got %d", c.ChannelCapacity)
	}
	if c.FaultThreshold <= 0 {
		return fmt.Errorf("fault_threshold must be positive, got %d", c.FaultThreshold)
	}
	return nil
}

// Load layers configuration from defaults, the given TOML file (ignored
// when path is empty or missing), AUDIOGRAPH_* environment variables,
// and an optional flag set. Priority: flags > env > file > defaults.
func Load(path string, flags *pflag.FlagSet) (Config, error) {
	k := koanf.New(".")

	def := Default()
	defaults := map[string]interface{}{
		"sample_rate":      def.SampleRate,
		"max_block_frames": def.MaxBlockFrames,
		"in_channels":      def.InChannels,
		"out_channels":     def.OutChannels,
		"channel_capacity": def.ChannelCapacity,
		"fault_threshold":  def.FaultThreshold,
	}
	if err := k.Load(mapProvider(defaults), nil); err != nil {
		return Config{}, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path != "" {
		// The file is optional; a missing file falls through to the
		// other layers.
		_ = k.Load(file.Provider(path), toml.Parser())
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	}), nil); err != nil {
		return Config{}, fmt.Errorf("failed to load env vars: %w", err)
	}

	if flags != nil {
		if err := k.Load(posflag.Provider(flags, ".", k), nil); err != nil {
			return Config{}, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

type rawMap map[string]interface{}

func mapProvider(m map[string]interface{}) rawMap { return rawMap(m) }

func (m rawMap) Read() (map[string]interface{}, error) { return m, nil }

func (m rawMap) ReadBytes() ([]byte, error) {
	return nil, fmt.Errorf("not implemented")
}
