// Package archive moves package entries between msapp zip files, source
// directories and an msapp.EntrySet.
package archive

import (
	"bytes"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/klauspost/compress/zip"

	"github.com/openfroyo/pakit/pkg/msapp"
)

// maxEntryBytes bounds a single decompressed entry.
const maxEntryBytes = 256 << 20

// deterministicTimestamp is written on every entry so equal entry sets
// produce byte-identical archives.
var deterministicTimestamp = time.Date(1980, time.January, 1, 0, 0, 0, 0, time.UTC)

// ReadZip reads every file entry of the zip at path.
func ReadZip(path string) (*msapp.EntrySet, error) {
	reader, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("open zip: %w", err)
	}
	defer func() {
		_ = reader.Close()
	}()
	return readFiles(reader.File)
}

// ReadZipBytes reads every file entry of an in-memory zip.
func ReadZipBytes(data []byte) (*msapp.EntrySet, error) {
	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open zip: %w", err)
	}
	return readFiles(reader.File)
}

func readFiles(files []*zip.File) (*msapp.EntrySet, error) {
	entries := msapp.NewEntrySet()
	for _, file := range files {
		if file.FileInfo().IsDir() {
			continue
		}
		data, err := readZipFile(file)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", file.Name, err)
		}
		entries.Put(file.Name, data)
	}
	return entries, nil
}

func readZipFile(file *zip.File) ([]byte, error) {
	reader, err := file.Open()
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = reader.Close()
	}()
	payload, err := io.ReadAll(io.LimitReader(reader, maxEntryBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(payload)) > maxEntryBytes {
		return nil, fmt.Errorf("zip entry too large")
	}
	return payload, nil
}

// WriteZipTo writes entries to w in path order with deflate compression.
func WriteZipTo(w io.Writer, entries *msapp.EntrySet) error {
	zw := zip.NewWriter(w)
	for _, path := range entries.Paths() {
		data, _ := entries.Get(path)
		header := &zip.FileHeader{
			Name:     path,
			Method:   zip.Deflate,
			Modified: deterministicTimestamp,
		}
		header.SetMode(0o644)
		fw, err := zw.CreateHeader(header)
		if err != nil {
			return fmt.Errorf("create %s: %w", path, err)
		}
		if _, err := fw.Write(data); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
	}
	return zw.Close()
}

// WriteZip writes entries to a zip file at path. The file is written next to
// its destination and renamed into place.
func WriteZip(path string, entries *msapp.EntrySet) error {
	var buf bytes.Buffer
	if err := WriteZipTo(&buf, entries); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".pakit-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(buf.Bytes()); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Chmod(0o644); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("chmod %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close %s: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("rename into %s: %w", path, err)
	}
	return nil
}

// ReadDir reads every regular file under dir. Entry paths are relative to
// dir with forward slashes. Hidden directories such as .git are skipped.
func ReadDir(dir string) (*msapp.EntrySet, error) {
	entries := msapp.NewEntrySet()
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != dir && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		entries.Put(filepath.ToSlash(rel), data)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", dir, err)
	}
	return entries, nil
}

// Read reads a zip file or a directory, whichever path names.
func Read(path string) (*msapp.EntrySet, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return ReadDir(path)
	}
	return ReadZip(path)
}
