// File: config/config.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Package config loads the runtime's YAML configuration (listen
// address, reactor tuning, bus queue sizes, workflow registry path).
// Config loading itself is explicitly out of scope for the core runtime
// (spec §1 non-goals: "CLI/config loading"), but a complete repo still
// needs somewhere for these knobs to live — this package is that
// ambient-stack component.

package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// ReactorConfig tunes the reactor/netsrv layer.
type ReactorConfig struct {
	ListenAddr     string `yaml:"listenAddr"`
	Backlog        int    `yaml:"backlog"`
	MaxPayloadSize uint32 `yaml:"maxPayloadSize"`
}

// BusConfig tunes the event bus/workflow layer.
type BusConfig struct {
	QueueSize        int    `yaml:"queueSize"`
	WorkflowRegistry string `yaml:"workflowRegistry"`
}

// Config is the unified runtime configuration sourced from YAML.
type Config struct {
	Reactor ReactorConfig `yaml:"reactor"`
	Bus     BusConfig     `yaml:"bus"`
}

// defaults mirrors the zero-value-safe fallbacks a caller gets from
// Default(), applied to any field left unset after Load.
func defaults() Config {
	return Config{
		Reactor: ReactorConfig{
			ListenAddr:     "0.0.0.0:9000",
			Backlog:        128,
			MaxPayloadSize: 1 << 20,
		},
		Bus: BusConfig{
			QueueSize:        4096,
			WorkflowRegistry: "",
		},
	}
}

// Default returns a Config populated entirely with built-in defaults.
func Default() Config { return defaults() }

// Load reads and validates a Config from path, filling any field left
// zero in the YAML document with the built-in default.
func Load(path string) (Config, error) {
	f, err := os.Open(filepath.Clean(strings.TrimSpace(path)))
	if err != nil {
		return Config{}, fmt.Errorf("config: open %s: %w", path, err)
	}
	defer f.Close()

	raw, err := io.ReadAll(f)
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}

	cfg := defaults()
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: unmarshal %s: %w", path, err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	d := defaults()
	if c.Reactor.ListenAddr == "" {
		c.Reactor.ListenAddr = d.Reactor.ListenAddr
	}
	if c.Reactor.Backlog <= 0 {
		c.Reactor.Backlog = d.Reactor.Backlog
	}
	if c.Reactor.MaxPayloadSize == 0 {
		c.Reactor.MaxPayloadSize = d.Reactor.MaxPayloadSize
	}
	if c.Bus.QueueSize <= 0 {
		c.Bus.QueueSize = d.Bus.QueueSize
	}
}

// Validate performs semantic validation beyond simple zero-value
// defaulting.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Reactor.ListenAddr) == "" {
		return fmt.Errorf("config: reactor.listenAddr required")
	}
	if c.Reactor.Backlog <= 0 {
		return fmt.Errorf("config: reactor.backlog must be > 0")
	}
	if c.Reactor.MaxPayloadSize == 0 {
		return fmt.Errorf("config: reactor.maxPayloadSize must be > 0")
	}
	if c.Bus.QueueSize <= 0 {
		return fmt.Errorf("config: bus.queueSize must be > 0")
	}
	return nil
}
