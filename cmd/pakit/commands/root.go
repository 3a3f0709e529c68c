package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/openfroyo/pakit/pkg/config"
	"github.com/openfroyo/pakit/pkg/telemetry"
)

var (
	// Global flags
	configPath  string
	verbose     bool
	jsonOutput  bool
	metricsFile string
	traceRuns   bool

	buildVersion = "dev"
)

// Execute runs the root command
func Execute(ctx context.Context, version, commit, buildDate string) error {
	rootCmd := newRootCommand(version, commit, buildDate)
	return rootCmd.ExecuteContext(ctx)
}

func newRootCommand(version, commit, buildDate string) *cobra.Command {
	buildVersion = version

	rootCmd := &cobra.Command{
		Use:   "pakit",
		Short: "pakit - Power Apps package normalizer",
		Long: `pakit rewrites the control documents and metadata of a Power Apps
package (.msapp) into the canonical shape the packager emits.

Features:
  - Gallery template children and group flattening
  - Dynamic property promotion
  - Template catalog resolution (References/Templates.json)
  - Metadata documents with defaults
  - Editor state ordering of screens and components
  - Src/*.pa.yaml validation against the pa.yaml schema`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Persistent flags available to all commands
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output in JSON format")
	rootCmd.PersistentFlags().StringVar(&metricsFile, "metrics-file", "", "write Prometheus metrics to this textfile on exit")
	rootCmd.PersistentFlags().BoolVar(&traceRuns, "trace", false, "export spans for each run")

	rootCmd.AddCommand(newNormalizeCommand())
	rootCmd.AddCommand(newValidateCommand())
	rootCmd.AddCommand(newTemplatesCommand())

	return rootCmd
}

// session is the configuration and telemetry shared by a command.
type session struct {
	cfg *config.Config
	tel *telemetry.Telemetry
}

// loadSession loads the config file, applies global flags and then the
// command's own overrides, and builds telemetry from the result.
func loadSession(overrides ...func(*config.Config)) (*session, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if verbose {
		cfg.Logging.Level = "debug"
	}
	if metricsFile != "" {
		cfg.Metrics.Textfile = metricsFile
	}
	if traceRuns {
		cfg.Tracing.Enabled = true
	}
	for _, o := range overrides {
		o(cfg)
	}
	if err := cfg.Check(); err != nil {
		return nil, err
	}

	tel, err := telemetry.NewTelemetry(cfg.Telemetry(buildVersion))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	return &session{cfg: cfg, tel: tel}, nil
}

// close flushes spans and metrics. The command context may already be
// cancelled, so a fresh deadline is used.
func (s *session) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.tel.Shutdown(ctx); err != nil {
		log.Warn().Err(err).Msg("Failed to flush telemetry")
	}
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
