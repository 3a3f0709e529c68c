package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/openfroyo/pakit/pkg/archive"
	"github.com/openfroyo/pakit/pkg/config"
	"github.com/openfroyo/pakit/pkg/schema"
	"github.com/openfroyo/pakit/pkg/telemetry"
	"github.com/openfroyo/pakit/pkg/watch"
)

func newValidateCommand() *cobra.Command {
	var (
		strict        bool
		watchMode     bool
		schemaPath    string
		metricsListen string
	)

	cmd := &cobra.Command{
		Use:   "validate <dir|in.msapp>",
		Short: "Validate Src/*.pa.yaml source documents",
		Long: `Validate every Src/**/*.pa.yaml document of an unpacked directory or an
.msapp against the pa.yaml schema.

Issues are printed one per line. With --strict the command fails when any
issue is found. With --watch the directory is re-validated whenever a
.pa.yaml file changes.`,
		Example: `  # Validate an unpacked app
  pakit validate ./app

  # Fail on issues, with a custom schema
  pakit validate --strict --schema ./pa.schema.yaml ./app

  # Re-validate on change and serve metrics
  pakit validate --watch --metrics-listen localhost:9464 ./app`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadSession(func(cfg *config.Config) {
				if strict {
					cfg.Validate.Strict = true
				}
				if schemaPath != "" {
					cfg.Validate.SchemaPath = schemaPath
				}
				if metricsListen != "" {
					cfg.Metrics.ListenAddress = metricsListen
				}
			})
			if err != nil {
				return err
			}
			defer s.close()

			validator, err := s.validator()
			if err != nil {
				return err
			}

			path := args[0]
			if !watchMode {
				n, err := s.validate(cmd.Context(), validator, path, cmd.OutOrStdout())
				if err != nil {
					return err
				}
				if s.cfg.Validate.Strict && n > 0 {
					return fmt.Errorf("%d validation issues", n)
				}
				return nil
			}
			return s.watch(cmd.Context(), validator, path, cmd.OutOrStdout())
		},
	}

	cmd.Flags().BoolVar(&strict, "strict", false, "fail when any issue is found")
	cmd.Flags().BoolVar(&watchMode, "watch", false, "re-validate when .pa.yaml files change")
	cmd.Flags().StringVar(&schemaPath, "schema", "", "custom pa.yaml schema file path")
	cmd.Flags().StringVar(&metricsListen, "metrics-listen", "", "serve /metrics on this address in watch mode")

	return cmd
}

func (s *session) validator() (*schema.Validator, error) {
	if s.cfg.Validate.SchemaPath == "" {
		return schema.NewValidator(nil), nil
	}
	source, err := os.ReadFile(s.cfg.Validate.SchemaPath)
	if err != nil {
		return nil, fmt.Errorf("read schema: %w", err)
	}
	return schema.NewValidator(schema.NewCache(source)), nil
}

// validate checks path once and returns the number of issues.
func (s *session) validate(ctx context.Context, v *schema.Validator, path string, w io.Writer) (int, error) {
	run := s.tel.StartRun(ctx, "validate", uuid.NewString())
	issues, err := validateEntries(v, path)
	if err != nil {
		run.End(err)
		return 0, err
	}
	s.tel.Metrics.AddValidationIssues(len(issues))
	telemetry.Annotate(run.Ctx, telemetry.AttrIssues.Int(len(issues)))
	telemetry.FromContext(run.Ctx).Debugf("validated %s: %d issues", path, len(issues))
	run.End(nil)
	return len(issues), writeIssues(w, path, issues)
}

func validateEntries(v *schema.Validator, path string) ([]string, error) {
	entries, err := archive.Read(path)
	if err != nil {
		return nil, err
	}
	return v.ValidateDocuments(entries.Files())
}

func (s *session) watch(ctx context.Context, v *schema.Validator, dir string, w io.Writer) error {
	info, err := os.Stat(dir)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("--watch needs a directory, got %s", dir)
	}
	if err := s.tel.StartMetricsServer(ctx); err != nil {
		return err
	}

	revalidate := func(ctx context.Context) {
		if _, err := s.validate(ctx, v, dir, w); err != nil {
			s.tel.Logger.WithError(err).Error("validation failed")
		}
		if err := s.tel.Metrics.WriteTextfile(); err != nil {
			s.tel.Logger.WithError(err).Warn("failed to write metrics textfile")
		}
	}
	revalidate(ctx)

	watcher := watch.New(isSourceFile, s.tel.Logger.Zerolog())
	watcher.Debounce = s.cfg.Validate.Debounce
	return watcher.Run(ctx, dir, revalidate)
}

func isSourceFile(path string) bool {
	return strings.HasSuffix(strings.ToLower(path), ".pa.yaml")
}

type validationReport struct {
	Path   string   `json:"path"`
	Valid  bool     `json:"valid"`
	Issues []string `json:"issues"`
}

func writeIssues(w io.Writer, path string, issues []string) error {
	if jsonOutput {
		return printJSON(w, validationReport{Path: path, Valid: len(issues) == 0, Issues: nonNil(issues)})
	}
	if len(issues) == 0 {
		fmt.Fprintf(w, "%s: valid\n", path)
		return nil
	}
	for _, issue := range issues {
		fmt.Fprintln(w, issue)
	}
	fmt.Fprintf(w, "%s: %d issues\n", path, len(issues))
	return nil
}
