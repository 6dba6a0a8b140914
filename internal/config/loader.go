package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Config holds runtime parameters for the daemon.
// Zero values mean "unspecified" and are replaced by defaults in main.
type Config struct {
	Addr         string `json:"addr" yaml:"addr" toml:"addr"`
	ModelsDir    string `json:"models_dir" yaml:"models_dir" toml:"models_dir"`
	DefaultModel string `json:"default_model" yaml:"default_model" toml:"default_model"`
	// DrainTimeoutSec bounds how long unload waits for an in-flight
	// generation after aborting it.
	DrainTimeoutSec int `json:"drain_timeout_sec" yaml:"drain_timeout_sec" toml:"drain_timeout_sec"`

	Engine     Engine     `json:"engine" yaml:"engine" toml:"engine"`
	Supervisor Supervisor `json:"supervisor" yaml:"supervisor" toml:"supervisor"`
}

// Engine tunes the inference runtime binding.
type Engine struct {
	CtxSize   int `json:"ctx_size" yaml:"ctx_size" toml:"ctx_size"`
	Threads   int `json:"threads" yaml:"threads" toml:"threads"`
	GPULayers int `json:"gpu_layers" yaml:"gpu_layers" toml:"gpu_layers"`
}

// Supervisor tunes generation liveness guards.
type Supervisor struct {
	// InactivityTimeoutSec is the watchdog window; 0 means the package
	// default (45 seconds).
	InactivityTimeoutSec int `json:"inactivity_timeout_sec" yaml:"inactivity_timeout_sec" toml:"inactivity_timeout_sec"`
	// MaxAttempts bounds total attempts per request including the first.
	MaxAttempts int `json:"max_attempts" yaml:"max_attempts" toml:"max_attempts"`
	// Repetition guard bounds; zeros mean package defaults.
	RepetitionTailWindow int `json:"repetition_tail_window" yaml:"repetition_tail_window" toml:"repetition_tail_window"`
	RepetitionMaxPattern int `json:"repetition_max_pattern" yaml:"repetition_max_pattern" toml:"repetition_max_pattern"`
}

// Load reads a configuration file based on its extension.
// Supports: .yaml/.yml, .json, .toml
func Load(path string) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, fmt.Errorf("empty config path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".json":
		if err := json.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".toml":
		if err := toml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	default:
		return cfg, fmt.Errorf("unsupported config extension: %s", ext)
	}
	return cfg, nil
}
