package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Check())
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "console", cfg.Logging.Format)
	assert.False(t, cfg.Tracing.Enabled)
	assert.Equal(t, 500*time.Millisecond, cfg.Validate.Debounce)
}

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
		check   func(t *testing.T, cfg *Config)
	}{
		{
			name:  "empty document keeps defaults",
			input: "",
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, Default(), cfg)
			},
		},
		{
			name: "overrides",
			input: `
logging:
  level: debug
  format: json
pack:
  ignore_missing_data_sources: true
validate:
  strict: true
  debounce: 250ms
metrics:
  listen_address: localhost:9090
`,
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "debug", cfg.Logging.Level)
				assert.Equal(t, "json", cfg.Logging.Format)
				assert.True(t, cfg.Pack.IgnoreMissingDataSources)
				assert.True(t, cfg.Validate.Strict)
				assert.Equal(t, 250*time.Millisecond, cfg.Validate.Debounce)
				assert.Equal(t, "localhost:9090", cfg.Metrics.ListenAddress)
				assert.Equal(t, 1.0, cfg.Tracing.SamplingRate)
			},
		},
		{
			name:    "unknown key",
			input:   "loging:\n  level: debug\n",
			wantErr: true,
		},
		{
			name:    "invalid level",
			input:   "logging:\n  level: loud\n",
			wantErr: true,
		},
		{
			name:    "otlp without endpoint",
			input:   "tracing:\n  enabled: true\n  exporter: otlp\n",
			wantErr: true,
		},
		{
			name:    "sampling rate out of range",
			input:   "tracing:\n  sampling_rate: 2\n",
			wantErr: true,
		},
		{
			name:    "bad listen address",
			input:   "metrics:\n  listen_address: nope\n",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Parse([]byte(tt.input))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			tt.check(t, cfg)
		})
	}
}

func TestLoad(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)

	path := filepath.Join(t.TempDir(), "pakit.yaml")
	require.NoError(t, os.WriteFile(path, []byte("logging:\n  level: warn\n"), 0o644))
	cfg, err = Load(path)
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.Logging.Level)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestTelemetry(t *testing.T) {
	cfg := Default()
	cfg.Logging.Level = "debug"
	cfg.Tracing.Enabled = true
	cfg.Tracing.Exporter = "none"
	cfg.Tracing.Headers = map[string]string{"x-team": "apps"}
	cfg.Tracing.ResourceAttributes = map[string]string{"deployment.environment": "ci"}
	cfg.Metrics.Textfile = "/tmp/pakit.prom"

	tc := cfg.Telemetry("1.2.3")
	require.NoError(t, tc.Validate())
	assert.Equal(t, "pakit", tc.ServiceName)
	assert.Equal(t, "1.2.3", tc.ServiceVersion)
	assert.Equal(t, "debug", tc.Logging.Level)
	assert.True(t, tc.Tracing.Enabled)
	assert.Equal(t, "none", tc.Tracing.Exporter)
	assert.Equal(t, "apps", tc.Tracing.Headers["x-team"])
	assert.Equal(t, "ci", tc.ResourceAttributes["deployment.environment"])
	assert.Equal(t, "/tmp/pakit.prom", tc.Metrics.Textfile)
	assert.True(t, tc.Metrics.Enabled)
}
