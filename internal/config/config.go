// Package config loads the CLI driver's tunables: page size, buffer
// pool frame count, data directory, and checkpoint interval. Grounded
// on the host engine's use of gopkg.in/yaml.v3 for structured output
// (cmd/repl's printYAML) — the same library, turned around to parse a
// small settings file instead of render rows.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds every knob the CLI driver exposes beyond its own
// flags.
type Config struct {
	PageSize           int           `yaml:"page_size"`
	BufferFrames       int           `yaml:"buffer_frames"`
	DataDir            string        `yaml:"data_dir"`
	CheckpointInterval time.Duration `yaml:"checkpoint_interval"`
}

// DefaultConfig returns the settings used when no config file is
// given.
func DefaultConfig() Config {
	return Config{
		PageSize:           4096,
		BufferFrames:       64,
		DataDir:            ".",
		CheckpointInterval: 30 * time.Second,
	}
}

// Load reads and parses a YAML config file at path, falling back to
// DefaultConfig's values for any key the file does not set.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	var raw rawConfig
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
	}
	raw.applyTo(&cfg)
	return cfg, nil
}

// rawConfig mirrors Config but with pointer fields, so an absent key
// in the YAML file is distinguishable from an explicit zero value and
// DefaultConfig's value survives.
type rawConfig struct {
	PageSize           *int    `yaml:"page_size"`
	BufferFrames       *int    `yaml:"buffer_frames"`
	DataDir            *string `yaml:"data_dir"`
	CheckpointInterval *string `yaml:"checkpoint_interval"`
}

func (r rawConfig) applyTo(cfg *Config) {
	if r.PageSize != nil {
		cfg.PageSize = *r.PageSize
	}
	if r.BufferFrames != nil {
		cfg.BufferFrames = *r.BufferFrames
	}
	if r.DataDir != nil {
		cfg.DataDir = *r.DataDir
	}
	if r.CheckpointInterval != nil {
		if d, err := time.ParseDuration(*r.CheckpointInterval); err == nil {
			cfg.CheckpointInterval = d
		}
	}
}
