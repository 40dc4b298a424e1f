// Package config provides configuration loading and validation.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// DefaultFile is the configuration file looked up when none is given.
const DefaultFile = "usrgen.yaml"

// EmptyVariantPolicy decides what a variant resolving to no fields means.
type EmptyVariantPolicy string

const (
	// EmptyWarn logs the variant and emits it anyway.
	EmptyWarn EmptyVariantPolicy = "warn"
	// EmptyError fails the emission.
	EmptyError EmptyVariantPolicy = "error"
	// EmptyAllow emits it silently.
	EmptyAllow EmptyVariantPolicy = "allow"
)

// Config is the root configuration structure.
type Config struct {
	InputDir     string             `yaml:"input_dir"`
	OutputDir    string             `yaml:"output_dir"`
	Targets      []string           `yaml:"targets"`
	EmptyVariant EmptyVariantPolicy `yaml:"empty_variant"`

	// Concurrency bounds parallel parsing and rendering.
	Concurrency int `yaml:"concurrency"`

	// LineEndings is "lf" or "crlf".
	LineEndings string `yaml:"line_endings"`

	Logging LoggingConfig `yaml:"logging"`
	Watch   WatchConfig   `yaml:"watch"`

	// TargetOptions holds every other top-level key. Each is the opaque
	// configuration of the target it is named after.
	TargetOptions map[string]any `yaml:",inline"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json or console
}

// WatchConfig configures watch mode.
type WatchConfig struct {
	Debounce time.Duration `yaml:"debounce"`
}

// Target returns the opaque configuration of target, or nil.
func (c *Config) Target(target string) map[string]any {
	m, _ := c.TargetOptions[target].(map[string]any)
	return m
}

// Load reads configuration from a YAML file. A missing file yields the
// defaults with environment overrides applied.
func Load(path string) (*Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		// defaults only
	case err != nil:
		return nil, fmt.Errorf("read config: %w", err)
	default:
		// Expand environment variables
		data = []byte(os.ExpandEnv(string(data)))
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := applyEnvOverrides(&cfg); err != nil {
		return nil, err
	}

	setDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

// Default returns the configuration used when no file is present,
// ignoring the environment.
func Default() *Config {
	var cfg Config
	setDefaults(&cfg)
	return &cfg
}

// applyEnvOverrides applies USRGEN_* environment variables to the config.
// Environment variables always override file-based configuration.
func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv("USRGEN_INPUT_DIR"); v != "" {
		cfg.InputDir = v
	}
	if v := os.Getenv("USRGEN_OUTPUT_DIR"); v != "" {
		cfg.OutputDir = v
	}
	if v := os.Getenv("USRGEN_TARGETS"); v != "" {
		cfg.Targets = nil
		for _, t := range strings.Split(v, ",") {
			if t = strings.TrimSpace(t); t != "" {
				cfg.Targets = append(cfg.Targets, t)
			}
		}
	}
	if v := os.Getenv("USRGEN_EMPTY_VARIANT"); v != "" {
		cfg.EmptyVariant = EmptyVariantPolicy(v)
	}
	if v := os.Getenv("USRGEN_CONCURRENCY"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("USRGEN_CONCURRENCY: %w", err)
		}
		cfg.Concurrency = n
	}
	if v := os.Getenv("USRGEN_LINE_ENDINGS"); v != "" {
		cfg.LineEndings = v
	}
	if v := os.Getenv("USRGEN_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("USRGEN_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	if v := os.Getenv("USRGEN_WATCH_DEBOUNCE"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("USRGEN_WATCH_DEBOUNCE: %w", err)
		}
		cfg.Watch.Debounce = d
	}
	return nil
}

func setDefaults(cfg *Config) {
	if cfg.InputDir == "" {
		cfg.InputDir = "schemas"
	}
	if cfg.OutputDir == "" {
		cfg.OutputDir = "generated"
	}
	if len(cfg.Targets) == 0 {
		cfg.Targets = []string{"pydantic"}
	}
	if cfg.EmptyVariant == "" {
		cfg.EmptyVariant = EmptyWarn
	}
	if cfg.Concurrency == 0 {
		cfg.Concurrency = 8
	}
	if cfg.LineEndings == "" {
		cfg.LineEndings = "lf"
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "console"
	}

	if cfg.Watch.Debounce == 0 {
		cfg.Watch.Debounce = 500 * time.Millisecond
	}
}

func validate(cfg *Config) error {
	seen := make(map[string]bool, len(cfg.Targets))
	for _, t := range cfg.Targets {
		if t == "" {
			return fmt.Errorf("targets must not contain empty names")
		}
		if seen[t] {
			return fmt.Errorf("target %q is listed twice", t)
		}
		seen[t] = true
	}

	switch cfg.EmptyVariant {
	case EmptyWarn, EmptyError, EmptyAllow:
	default:
		return fmt.Errorf("empty_variant must be 'warn', 'error' or 'allow', got %q", cfg.EmptyVariant)
	}

	if cfg.Concurrency < 1 {
		return fmt.Errorf("concurrency must be at least 1, got %d", cfg.Concurrency)
	}

	if cfg.LineEndings != "lf" && cfg.LineEndings != "crlf" {
		return fmt.Errorf("line_endings must be 'lf' or 'crlf', got %q", cfg.LineEndings)
	}

	if _, err := zerolog.ParseLevel(cfg.Logging.Level); err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}
	validFormats := map[string]bool{"json": true, "console": true}
	if !validFormats[cfg.Logging.Format] {
		return fmt.Errorf("logging.format must be 'json' or 'console', got %q", cfg.Logging.Format)
	}

	if cfg.Watch.Debounce < 0 {
		return fmt.Errorf("watch.debounce must not be negative")
	}

	keys := make([]string, 0, len(cfg.TargetOptions))
	for k := range cfg.TargetOptions {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		switch cfg.TargetOptions[k].(type) {
		case map[string]any, nil:
		default:
			return fmt.Errorf("%s: target configuration must be a mapping", k)
		}
	}
	return nil
}
