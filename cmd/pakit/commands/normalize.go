package commands

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/openfroyo/pakit/pkg/archive"
	"github.com/openfroyo/pakit/pkg/config"
	"github.com/openfroyo/pakit/pkg/msapp"
	"github.com/openfroyo/pakit/pkg/normalize"
	"github.com/openfroyo/pakit/pkg/telemetry"
	"github.com/openfroyo/pakit/pkg/templates"
)

func newNormalizeCommand() *cobra.Command {
	var (
		output        string
		ignoreMissing bool
	)

	cmd := &cobra.Command{
		Use:   "normalize <in.msapp|dir>",
		Short: "Normalize a Power Apps package",
		Long: `Normalize the control documents, template catalog, metadata documents
and editor state of a package and write the result as an .msapp.

The input may be an .msapp file or an unpacked directory. Without --output
an .msapp input is rewritten in place.`,
		Example: `  # Normalize in place
  pakit normalize app.msapp

  # Normalize an unpacked directory into a new package
  pakit normalize ./app -o app.msapp`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadSession(func(cfg *config.Config) {
				if ignoreMissing {
					cfg.Pack.IgnoreMissingDataSources = true
				}
			})
			if err != nil {
				return err
			}
			defer s.close()

			input := args[0]
			if output == "" {
				info, err := os.Stat(input)
				if err != nil {
					return err
				}
				if info.IsDir() {
					return fmt.Errorf("--output is required for directory input")
				}
				output = input
			}

			run := s.tel.StartRun(cmd.Context(), "normalize", uuid.NewString())
			res, err := s.normalize(run.Ctx, run.RunID, input, output)
			run.End(err)
			if err != nil {
				return err
			}
			return writeNormalizeSummary(cmd.OutOrStdout(), newNormalizeSummary(input, output, res))
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output .msapp path (default: rewrite input)")
	cmd.Flags().BoolVar(&ignoreMissing, "ignore-missing-data-sources", false, "pass the ignore-missing-data-sources flag through to the result")

	return cmd
}

// process reads input and runs the pipeline over it in memory.
func (s *session) process(ctx context.Context, runID, input string) (*msapp.EntrySet, *msapp.Result, error) {
	op := telemetry.StartOperation(ctx, "archive.read")
	entries, err := archive.Read(input)
	op.End(err)
	if err != nil {
		return nil, nil, err
	}
	op.Logger.Debugf("read %d entries from %s", entries.Len(), input)
	p := msapp.New(msapp.Options{
		RunID:                    runID,
		IgnoreMissingDataSources: s.cfg.Pack.IgnoreMissingDataSources,
		Telemetry:                s.tel,
	})
	res, err := p.Run(ctx, entries)
	if err != nil {
		return nil, nil, err
	}
	return entries, res, nil
}

func (s *session) normalize(ctx context.Context, runID, input, output string) (*msapp.Result, error) {
	entries, res, err := s.process(ctx, runID, input)
	if err != nil {
		return nil, err
	}
	op := telemetry.StartOperation(ctx, "archive.write")
	err = archive.WriteZip(output, entries)
	op.End(err)
	if err != nil {
		return nil, err
	}
	return res, nil
}

type normalizeSummary struct {
	RunID                    string          `json:"run_id"`
	Input                    string          `json:"input"`
	Output                   string          `json:"output"`
	Controls                 []string        `json:"controls"`
	Components               []string        `json:"components"`
	UsedTemplates            []string        `json:"used_templates"`
	PcfTemplates             []string        `json:"pcf_templates"`
	Dropped                  []string        `json:"dropped_templates"`
	Documents                []string        `json:"documents"`
	EditorStateChanged       bool            `json:"editor_state_changed"`
	IgnoreMissingDataSources bool            `json:"ignore_missing_data_sources"`
	Stats                    normalize.Stats `json:"stats"`
}

func newNormalizeSummary(input, output string, res *msapp.Result) normalizeSummary {
	return normalizeSummary{
		RunID:                    res.RunID,
		Input:                    input,
		Output:                   output,
		Controls:                 nonNil(res.Controls),
		Components:               nonNil(res.Components),
		UsedTemplates:            templateLabels(res.UsedTemplates),
		PcfTemplates:             templateLabels(res.PcfTemplates),
		Dropped:                  referenceLabels(droppedReferences(res)),
		Documents:                nonNil(res.Documents),
		EditorStateChanged:       res.EditorStateChanged,
		IgnoreMissingDataSources: res.IgnoreMissingDataSources,
		Stats:                    res.Stats,
	}
}

func writeNormalizeSummary(w io.Writer, sum normalizeSummary) error {
	if jsonOutput {
		return printJSON(w, sum)
	}
	fmt.Fprintf(w, "Normalized %s -> %s\n", sum.Input, sum.Output)
	fmt.Fprintf(w, "  controls:            %d documents, %d controls\n", len(sum.Controls), sum.Stats.Controls)
	fmt.Fprintf(w, "  components:          %d documents\n", len(sum.Components))
	fmt.Fprintf(w, "  gallery templates:   %d synthesized\n", sum.Stats.Synthesized)
	fmt.Fprintf(w, "  groups flattened:    %d\n", sum.Stats.Lifted)
	fmt.Fprintf(w, "  templates:           %d used, %d pcf, %d dropped\n",
		len(sum.UsedTemplates), len(sum.PcfTemplates), len(sum.Dropped))
	fmt.Fprintf(w, "  metadata rewritten:  %d\n", len(sum.Documents))
	fmt.Fprintf(w, "  editor state:        %s\n", changedLabel(sum.EditorStateChanged))
	for _, d := range sum.Dropped {
		fmt.Fprintf(w, "  dropped: %s\n", d)
	}
	return nil
}

func changedLabel(changed bool) string {
	if changed {
		return "updated"
	}
	return "unchanged"
}

func templateLabels(ts []templates.Template) []string {
	out := make([]string, 0, len(ts))
	for _, t := range ts {
		out = append(out, t.Name()+"@"+t.Version())
	}
	return out
}

func referenceLabels(refs []templates.Reference) []string {
	out := make([]string, 0, len(refs))
	for _, r := range refs {
		out = append(out, r.Name+"@"+r.Version)
	}
	return out
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
