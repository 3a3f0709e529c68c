package archive

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openfroyo/pakit/pkg/msapp"
)

func sampleEntries() *msapp.EntrySet {
	return msapp.EntrySetOf(map[string][]byte{
		"Header.json":         []byte(`{"DocVersion":"1.346"}`),
		`Controls\1.json`:     []byte(`{"TopParent":{}}`),
		"Src/Screen1.pa.yaml": []byte("Screens: {}\n"),
	})
}

func TestZipRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteZipTo(&buf, sampleEntries()))

	entries, err := ReadZipBytes(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, sampleEntries().Files(), entries.Files())
	assert.Equal(t, []string{"Controls/1.json", "Header.json", "Src/Screen1.pa.yaml"}, entries.Paths())
}

func TestWriteZip_Deterministic(t *testing.T) {
	var a, b bytes.Buffer
	require.NoError(t, WriteZipTo(&a, sampleEntries()))
	require.NoError(t, WriteZipTo(&b, sampleEntries()))
	assert.Equal(t, a.Bytes(), b.Bytes())
}

func TestWriteZip_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.msapp")
	require.NoError(t, WriteZip(path, sampleEntries()))

	entries, err := ReadZip(path)
	require.NoError(t, err)
	assert.Equal(t, 3, entries.Len())

	read, err := Read(path)
	require.NoError(t, err)
	assert.Equal(t, entries.Files(), read.Files())
}

func TestReadZipBytes_Invalid(t *testing.T) {
	_, err := ReadZipBytes([]byte("not a zip"))
	assert.Error(t, err)
}

func TestReadDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "Src", "Components"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, ".git"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Src", "App.pa.yaml"), []byte("App: {}\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Src", "Components", "Header.pa.yaml"), []byte("{}\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".git", "HEAD"), []byte("ref"), 0o644))

	entries, err := Read(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"Src/App.pa.yaml", "Src/Components/Header.pa.yaml"}, entries.Paths())

	_, err = Read(filepath.Join(dir, "missing"))
	assert.Error(t, err)
}

func TestWriteZip_FileMode(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.msapp")
	require.NoError(t, WriteZip(path, sampleEntries()))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o644), info.Mode().Perm())
}
