package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/openfroyo/pakit/pkg/telemetry"
)

// Config is the pakit run configuration.
type Config struct {
	Logging  LoggingConfig  `yaml:"logging"`
	Tracing  TracingConfig  `yaml:"tracing"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Pack     PackConfig     `yaml:"pack"`
	Validate ValidateConfig `yaml:"validate"`
}

// LoggingConfig selects the log level and format.
type LoggingConfig struct {
	Level  string `yaml:"level" validate:"oneof=trace debug info warn error disabled"`
	Format string `yaml:"format" validate:"oneof=console json"`
}

// TracingConfig configures span export.
type TracingConfig struct {
	Enabled      bool              `yaml:"enabled"`
	Exporter     string            `yaml:"exporter" validate:"oneof=otlp stdout none"`
	Endpoint     string            `yaml:"endpoint" validate:"required_if=Exporter otlp"`
	SamplingRate float64           `yaml:"sampling_rate" validate:"gte=0,lte=1"`
	Insecure     bool              `yaml:"insecure"`
	Headers      map[string]string `yaml:"headers"`

	// ResourceAttributes are added to every exported span's resource.
	ResourceAttributes map[string]string `yaml:"resource_attributes"`
}

// MetricsConfig configures where metrics go.
type MetricsConfig struct {
	// Textfile receives the registry in text format after each command.
	Textfile string `yaml:"textfile"`
	// ListenAddress serves /metrics while validate --watch runs.
	ListenAddress string `yaml:"listen_address" validate:"omitempty,hostname_port"`
}

// PackConfig holds normalize options.
type PackConfig struct {
	IgnoreMissingDataSources bool `yaml:"ignore_missing_data_sources"`
}

// ValidateConfig holds validate options.
type ValidateConfig struct {
	// SchemaPath replaces the embedded pa.yaml schema.
	SchemaPath string `yaml:"schema_path" validate:"omitempty,file"`
	// Strict makes validation issues fail the command.
	Strict bool `yaml:"strict"`
	// Debounce delays re-validation in watch mode.
	Debounce time.Duration `yaml:"debounce" validate:"gte=0"`
}

var validate = validator.New()

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		Tracing: TracingConfig{
			Exporter:     "stdout",
			SamplingRate: 1.0,
			Insecure:     true,
		},
		Validate: ValidateConfig{
			Debounce: 500 * time.Millisecond,
		},
	}
}

// Load reads a YAML configuration file over the defaults. An empty path
// returns the defaults. Unknown keys are rejected.
func Load(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML configuration over the defaults and validates it.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode: %w", err)
	}
	if err := cfg.Check(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Check validates the struct tags.
func (c *Config) Check() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// Telemetry converts the configuration into a telemetry configuration.
func (c *Config) Telemetry(version string) *telemetry.Config {
	tc := telemetry.DefaultConfig()
	if version != "" {
		tc.ServiceVersion = version
	}
	tc.Logging.Level = c.Logging.Level
	tc.Logging.Format = c.Logging.Format
	tc.Tracing.Enabled = c.Tracing.Enabled
	tc.Tracing.Exporter = c.Tracing.Exporter
	tc.Tracing.Endpoint = c.Tracing.Endpoint
	tc.Tracing.SamplingRate = c.Tracing.SamplingRate
	tc.Tracing.Insecure = c.Tracing.Insecure
	for k, v := range c.Tracing.Headers {
		tc.Tracing.Headers[k] = v
	}
	for k, v := range c.Tracing.ResourceAttributes {
		tc.ResourceAttributes[k] = v
	}
	tc.Metrics.Textfile = c.Metrics.Textfile
	tc.Metrics.ListenAddress = c.Metrics.ListenAddress
	return tc
}
