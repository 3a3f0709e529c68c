package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openfroyo/pakit/pkg/archive"
	"github.com/openfroyo/pakit/pkg/msapp"
	"github.com/openfroyo/pakit/pkg/templates"
)

const appDocument = `{"TopParent":{"Type":"ControlInfo","Name":"App",
"Template":{"Id":"http://microsoft.com/appmagic/appinfo","Name":"appinfo","Version":"1.0"},
"ControlUniqueId":"1","Rules":[],"ControlPropertyState":[],"Children":[]}}`

const validScreen = `Screens:
  Screen1:
    Properties:
      Fill: =RGBA(255, 255, 255, 1)
`

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cfgPath := filepath.Join(t.TempDir(), "pakit.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("logging:\n  level: disabled\n"), 0o644))

	cmd := newRootCommand("test", "none", "now")
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(append([]string{"--config", cfgPath}, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func writeTree(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, body := range files {
		path := filepath.Join(dir, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	}
	return dir
}

func TestNormalizeCommand(t *testing.T) {
	dir := writeTree(t, map[string]string{"Controls/1.json": appDocument})
	out := filepath.Join(t.TempDir(), "app.msapp")
	metrics := filepath.Join(t.TempDir(), "pakit.prom")

	stdout, err := execute(t, "normalize", dir, "-o", out, "--json", "--ignore-missing-data-sources", "--metrics-file", metrics)
	require.NoError(t, err)

	var sum normalizeSummary
	require.NoError(t, json.Unmarshal([]byte(stdout), &sum))
	assert.Equal(t, []string{"Controls/1.json"}, sum.Controls)
	assert.True(t, sum.IgnoreMissingDataSources)
	assert.Equal(t, out, sum.Output)

	entries, err := archive.ReadZip(out)
	require.NoError(t, err)
	assert.True(t, entries.Has("Controls/1.json"))
	assert.True(t, entries.Has(templates.Path))

	prom, err := os.ReadFile(metrics)
	require.NoError(t, err)
	assert.Contains(t, string(prom), `pakit_runs_total{command="normalize",status="success"} 1`)
}

func TestNormalizeCommand_DirectoryNeedsOutput(t *testing.T) {
	dir := writeTree(t, map[string]string{"Controls/1.json": appDocument})
	_, err := execute(t, "normalize", dir)
	assert.ErrorContains(t, err, "--output")
}

func TestNormalizeCommand_Malformed(t *testing.T) {
	dir := writeTree(t, map[string]string{"Controls/1.json": "{"})
	_, err := execute(t, "normalize", dir, "-o", filepath.Join(t.TempDir(), "out.msapp"))
	assert.ErrorContains(t, err, "Controls/1.json")
}

func TestTemplatesCommand(t *testing.T) {
	dir := writeTree(t, map[string]string{"Controls/1.json": appDocument})
	stdout, err := execute(t, "templates", dir, "--json")
	require.NoError(t, err)

	var report templateReport
	require.NoError(t, json.Unmarshal([]byte(stdout), &report))
	assert.Empty(t, report.Pcf)
}

func TestDroppedReferences_DiffsAgainstOutput(t *testing.T) {
	res := &msapp.Result{
		UsedTemplates: []templates.Template{templates.NewTemplate("gallery", "2.0", "<x/>")},
		PcfTemplates:  []templates.Template{templates.NewTemplate("Rating", "1.0", "")},
		References: []templates.Reference{
			{Name: "Gallery", Version: "1.0", Source: templates.SourceName},
			{Name: "rating", Version: "1.0", Source: templates.SourcePcf},
			{Name: "Missing", Version: "3.1", Source: templates.SourceDropped},
		},
	}

	report := newTemplateReport(res)
	assert.Equal(t, []string{"Missing@3.1"}, report.Dropped)
	assert.Equal(t, []string{"gallery@2.0"}, report.Used)
}

func TestValidateCommand(t *testing.T) {
	tests := []struct {
		name    string
		files   map[string]string
		args    []string
		wantErr bool
		want    string
	}{
		{
			name:  "valid",
			files: map[string]string{"Src/Screen1.pa.yaml": validScreen},
			want:  ": valid",
		},
		{
			name:  "issues without strict",
			files: map[string]string{"Src/Screen1.pa.yaml": "Bogus: 1\n"},
			want:  "[Src/Screen1.pa.yaml] at ",
		},
		{
			name:    "issues with strict",
			files:   map[string]string{"Src/Screen1.pa.yaml": "Bogus: 1\n"},
			args:    []string{"--strict"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := writeTree(t, tt.files)
			stdout, err := execute(t, append([]string{"validate", dir}, tt.args...)...)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Contains(t, stdout, tt.want)
		})
	}
}

func TestValidateCommand_WatchNeedsDirectory(t *testing.T) {
	dir := writeTree(t, map[string]string{"Controls/1.json": appDocument})
	out := filepath.Join(t.TempDir(), "app.msapp")
	_, err := execute(t, "normalize", dir, "-o", out)
	require.NoError(t, err)

	_, err = execute(t, "validate", "--watch", out)
	assert.ErrorContains(t, err, "needs a directory")
}
