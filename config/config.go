// Package config loads compile settings from YAML with environment
// overrides.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config holds every tunable of a compile.
type Config struct {
	// Builder contains lowering settings.
	Builder BuilderConfig `yaml:"builder"`

	// Diff contains differentiation settings.
	Diff DiffConfig `yaml:"diff"`

	// Engine contains evaluation settings.
	Engine EngineConfig `yaml:"engine"`

	// Observability contains logging, tracing and metrics switches.
	Observability ObservabilityConfig `yaml:"observability"`
}

type BuilderConfig struct {
	FoldConstants bool `yaml:"fold_constants"`
	MaxNodes      int  `yaml:"max_nodes" validate:"gte=0"`
}

type DiffConfig struct {
	Strategy string `yaml:"strategy" validate:"oneof=forward reverse auto"`
}

type EngineConfig struct {
	GradientCache string `yaml:"gradient_cache" validate:"oneof=shared none"`
}

type ObservabilityConfig struct {
	LogLevel       string `yaml:"log_level" validate:"oneof=debug info warn error"`
	TracingEnabled bool   `yaml:"tracing_enabled"`
	MetricsEnabled bool   `yaml:"metrics_enabled"`
}

// Default returns the settings used when nothing is configured.
func Default() Config {
	return Config{
		Builder: BuilderConfig{
			FoldConstants: true,
			MaxNodes:      0, // unlimited
		},
		Diff: DiffConfig{
			Strategy: "auto",
		},
		Engine: EngineConfig{
			GradientCache: "shared",
		},
		Observability: ObservabilityConfig{
			LogLevel:       "info",
			TracingEnabled: true,
			MetricsEnabled: true,
		},
	}
}

// Load reads path over the defaults, applies GOSYMOPT_* environment
// overrides and validates the result. A missing file yields the defaults.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return cfg, fmt.Errorf("load config file: %w", err)
		}
	}

	loadFromEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Parse decodes YAML over the defaults and validates it. Environment
// variables are not consulted.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

func loadFromEnv(cfg *Config) {
	// Builder
	if v := os.Getenv("GOSYMOPT_FOLD_CONSTANTS"); v != "" {
		cfg.Builder.FoldConstants = v == "true" || v == "1"
	}
	if v := os.Getenv("GOSYMOPT_MAX_NODES"); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			cfg.Builder.MaxNodes = i
		}
	}

	// Diff and engine
	if v := os.Getenv("GOSYMOPT_DIFF_STRATEGY"); v != "" {
		cfg.Diff.Strategy = strings.ToLower(v)
	}
	if v := os.Getenv("GOSYMOPT_GRADIENT_CACHE"); v != "" {
		cfg.Engine.GradientCache = strings.ToLower(v)
	}

	// Observability
	if v := os.Getenv("GOSYMOPT_LOG_LEVEL"); v != "" {
		cfg.Observability.LogLevel = strings.ToLower(v)
	}
	if v := os.Getenv("GOSYMOPT_TRACING_ENABLED"); v != "" {
		cfg.Observability.TracingEnabled = v == "true" || v == "1"
	}
	if v := os.Getenv("GOSYMOPT_METRICS_ENABLED"); v != "" {
		cfg.Observability.MetricsEnabled = v == "true" || v == "1"
	}
}

var validate = validator.New()

// Validate checks field constraints.
func (c Config) Validate() error {
	return validate.Struct(c)
}

// Level maps the configured log level to a slog level.
func (c ObservabilityConfig) Level() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}
