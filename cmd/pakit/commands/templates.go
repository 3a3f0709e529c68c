package commands

import (
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/openfroyo/pakit/pkg/msapp"
	"github.com/openfroyo/pakit/pkg/templates"
)

func newTemplatesCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "templates <in.msapp|dir>",
		Short: "Show how a package's control templates resolve",
		Long: `Run the normalization pipeline in memory and print the resulting
template catalog: used templates, PCF templates, and the template
references that matched nothing and were dropped. Nothing is written.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadSession()
			if err != nil {
				return err
			}
			defer s.close()

			run := s.tel.StartRun(cmd.Context(), "templates", uuid.NewString())
			_, res, err := s.process(run.Ctx, run.RunID, args[0])
			run.End(err)
			if err != nil {
				return err
			}
			return writeTemplateReport(cmd.OutOrStdout(), newTemplateReport(res))
		},
	}
	return cmd
}

type templateReport struct {
	Used    []string            `json:"used"`
	Pcf     []string            `json:"pcf"`
	Dropped []string            `json:"dropped"`
	Sources map[string][]string `json:"sources"`
}

func newTemplateReport(res *msapp.Result) templateReport {
	report := templateReport{
		Used:    templateLabels(res.UsedTemplates),
		Pcf:     templateLabels(res.PcfTemplates),
		Dropped: referenceLabels(droppedReferences(res)),
		Sources: make(map[string][]string),
	}
	for _, ref := range res.References {
		kind := string(ref.Source)
		report.Sources[kind] = append(report.Sources[kind], ref.Name+"@"+ref.Version)
	}
	return report
}

func writeTemplateReport(w io.Writer, report templateReport) error {
	if jsonOutput {
		return printJSON(w, report)
	}
	section := func(title string, items []string) {
		fmt.Fprintf(w, "%s (%d):\n", title, len(items))
		for _, item := range items {
			fmt.Fprintf(w, "  %s\n", item)
		}
	}
	section("Used templates", report.Used)
	section("PCF templates", report.Pcf)
	section("Dropped references", report.Dropped)
	return nil
}

// droppedReferences lists the referenced templates whose name appears in
// neither output catalog. Names compare case-insensitively.
func droppedReferences(res *msapp.Result) []templates.Reference {
	output := make(map[string]bool, len(res.UsedTemplates)+len(res.PcfTemplates))
	for _, t := range res.UsedTemplates {
		output[strings.ToLower(t.Name())] = true
	}
	for _, t := range res.PcfTemplates {
		output[strings.ToLower(t.Name())] = true
	}
	var out []templates.Reference
	for _, ref := range res.References {
		if !output[strings.ToLower(ref.Name)] {
			out = append(out, ref)
		}
	}
	return out
}
