// Package config holds formpilot configuration, loaded from YAML with
// environment overrides.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config is the full runtime configuration.
type Config struct {
	// Vision provider settings.
	Vision VisionConfig `yaml:"vision"`

	// Manual cache settings.
	Store StoreConfig `yaml:"store"`

	// Browser settings.
	Browser BrowserConfig `yaml:"browser"`

	// Execution settings.
	Execution ExecutionConfig `yaml:"execution"`

	// Logging.
	Logging LoggingConfig `yaml:"logging"`
}

// VisionConfig configures the AI-vision layer.
type VisionConfig struct {
	Provider string `yaml:"provider"` // claude, openai
	Model    string `yaml:"model"`
}

// StoreConfig configures the manual cache backend.
type StoreConfig struct {
	Kind string `yaml:"kind"` // memory, file, sqlite
	Path string `yaml:"path"`
}

// BrowserConfig configures the rod-driven browser.
type BrowserConfig struct {
	Headless   bool   `yaml:"headless"`
	Width      int    `yaml:"width"`
	Height     int    `yaml:"height"`
	ProfileDir string `yaml:"profile_dir"`
}

// ExecutionConfig bounds a single task.
type ExecutionConfig struct {
	Budget   float64 `yaml:"budget"`
	MaxPages int     `yaml:"max_pages"`
}

// LoggingConfig configures zap.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
}

// Default returns the baseline configuration.
func Default() *Config {
	return &Config{
		Vision: VisionConfig{Provider: "claude"},
		Store:  StoreConfig{Kind: "sqlite", Path: defaultStorePath()},
		Browser: BrowserConfig{
			Headless: true,
			Width:    1280,
			Height:   720,
		},
		Execution: ExecutionConfig{Budget: 0.50, MaxPages: 20},
		Logging:   LoggingConfig{Level: "info"},
	}
}

func defaultStorePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "formpilot.db"
	}
	return home + "/.formpilot/manuals.db"
}

// Load reads YAML from path onto the defaults. A missing file is not an
// error; env overrides apply either way.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}
	cfg.applyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("FORMPILOT_PROVIDER"); v != "" {
		c.Vision.Provider = v
	} else if c.Vision.Provider == "" {
		switch {
		case os.Getenv("ANTHROPIC_API_KEY") != "":
			c.Vision.Provider = "claude"
		case os.Getenv("OPENAI_API_KEY") != "":
			c.Vision.Provider = "openai"
		}
	}
	if v := os.Getenv("FORMPILOT_MODEL"); v != "" {
		c.Vision.Model = v
	}
	if v := os.Getenv("FORMPILOT_STORE"); v != "" {
		c.Store.Path = v
	}
	if v := os.Getenv("FORMPILOT_BUDGET"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.Execution.Budget = f
		}
	}
	if v := os.Getenv("FORMPILOT_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}

// Validate rejects configurations the engine cannot run with.
func (c *Config) Validate() error {
	if c.Execution.Budget <= 0 {
		return fmt.Errorf("execution budget must be positive, got %v", c.Execution.Budget)
	}
	if c.Execution.MaxPages <= 0 {
		return fmt.Errorf("max_pages must be positive, got %d", c.Execution.MaxPages)
	}
	switch c.Store.Kind {
	case "memory", "file", "sqlite":
	default:
		return fmt.Errorf("unknown store kind %q", c.Store.Kind)
	}
	return nil
}
