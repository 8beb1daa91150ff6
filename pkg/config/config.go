package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/flowcanvas/flowcanvas/pkg/poller"
	"github.com/flowcanvas/flowcanvas/pkg/telemetry"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "CANVAS_"

// DefaultStorePath is the draft database used when none is configured.
const DefaultStorePath = "flowcanvas.db"

// Config is the application configuration of canvasctl.
type Config struct {
	Telemetry telemetry.Config `yaml:"telemetry"`
	Canvas    CanvasConfig     `yaml:"canvas"`
	Poller    PollerConfig     `yaml:"poller"`
	Store     StoreConfig      `yaml:"store"`
}

// CanvasConfig configures editing sessions.
type CanvasConfig struct {
	// HistoryDepth caps the undo stack. Zero keeps every snapshot.
	HistoryDepth int `yaml:"history_depth" validate:"gte=0"`

	// CatalogPath is an optional node type catalog replacing the embedded one.
	CatalogPath string `yaml:"catalog_path"`
}

// PollerConfig configures run status polling.
type PollerConfig struct {
	Interval time.Duration `yaml:"interval" validate:"gt=0"`

	// StatusFile is the file polled for status updates. Empty disables
	// polling.
	StatusFile string `yaml:"status_file"`
}

// StoreConfig configures the local draft and audit database.
type StoreConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path" validate:"required_if=Enabled true"`

	// KeepDrafts is how many drafts per workflow survive pruning.
	KeepDrafts int `yaml:"keep_drafts" validate:"gte=1"`

	// Actor is recorded on audit entries.
	Actor string `yaml:"actor"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Telemetry: *telemetry.DefaultConfig(),
		Canvas: CanvasConfig{
			HistoryDepth: 100,
		},
		Poller: PollerConfig{
			Interval: poller.DefaultInterval,
		},
		Store: StoreConfig{
			Enabled:    true,
			Path:       DefaultStorePath,
			KeepDrafts: 20,
			Actor:      "canvasctl",
		},
	}
}

var validate = validator.New()

// Validate checks field constraints and the telemetry section.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if err := c.Telemetry.Validate(); err != nil {
		return fmt.Errorf("invalid telemetry configuration: %w", err)
	}
	return nil
}

// Load builds the configuration from defaults, the YAML file at path (if
// any), the given .env files and CANVAS_* environment variables, in that
// order of precedence. Missing .env files are ignored.
func Load(path string, envFiles ...string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := cfg.decode(data); err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", path, err)
		}
	}

	if err := LoadEnvFiles(envFiles...); err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse decodes YAML over the defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := cfg.decode(data); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) decode(data []byte) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("failed to parse config: %w", err)
	}
	return nil
}

// LoadEnvFiles loads .env files into the process environment without
// overriding variables that are already set.
func LoadEnvFiles(files ...string) error {
	for _, f := range files {
		if f == "" {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("failed to load env file %s: %w", f, err)
		}
	}
	return nil
}

type envBinding struct {
	name string
	set  func(c *Config, v string) error
}

var envBindings = []envBinding{
	{"LOG_LEVEL", func(c *Config, v string) error { c.Telemetry.Logging.Level = v; return nil }},
	{"LOG_FORMAT", func(c *Config, v string) error { c.Telemetry.Logging.Format = v; return nil }},
	{"ENVIRONMENT", func(c *Config, v string) error { c.Telemetry.Environment = v; return nil }},
	{"METRICS_ADDR", func(c *Config, v string) error { c.Telemetry.Metrics.ListenAddress = v; return nil }},
	{"TRACING_EXPORTER", func(c *Config, v string) error {
		c.Telemetry.Tracing.Exporter = v
		c.Telemetry.Tracing.Enabled = v != "none"
		return nil
	}},
	{"OTLP_ENDPOINT", func(c *Config, v string) error { c.Telemetry.Tracing.Endpoint = v; return nil }},
	{"HISTORY_DEPTH", func(c *Config, v string) error {
		n, err := strconv.Atoi(v)
		c.Canvas.HistoryDepth = n
		return err
	}},
	{"CATALOG", func(c *Config, v string) error { c.Canvas.CatalogPath = v; return nil }},
	{"POLL_INTERVAL", func(c *Config, v string) error {
		d, err := time.ParseDuration(v)
		c.Poller.Interval = d
		return err
	}},
	{"STATUS_FILE", func(c *Config, v string) error { c.Poller.StatusFile = v; return nil }},
	{"STORE_PATH", func(c *Config, v string) error { c.Store.Path = v; return nil }},
	{"STORE_ENABLED", func(c *Config, v string) error {
		b, err := strconv.ParseBool(v)
		c.Store.Enabled = b
		return err
	}},
	{"ACTOR", func(c *Config, v string) error { c.Store.Actor = v; return nil }},
}

// ApplyEnv overrides fields from CANVAS_* environment variables.
func (c *Config) ApplyEnv() error {
	var errs []error
	for _, b := range envBindings {
		v, ok := os.LookupEnv(EnvPrefix + b.name)
		if !ok || v == "" {
			continue
		}
		if err := b.set(c, v); err != nil {
			errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, b.name, err))
		}
	}
	return errors.Join(errs...)
}
