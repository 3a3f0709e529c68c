// Package msapp runs the pack normalization pipeline over the entries of a
// packaged app.
//
// An EntrySet is filled by an archive reader, handed to Pipeline.Run which
// rewrites control documents, the template catalog, metadata documents and
// the editor state in place, and is then written back by an archive writer.
package msapp

import (
	"sort"
	"strings"
)

// EntrySet maps package entry paths to their contents. Lookups are
// case-insensitive; the first spelling of a path is kept.
type EntrySet struct {
	entries map[string]entry
}

type entry struct {
	path string
	data []byte
}

// NewEntrySet creates an empty entry set.
func NewEntrySet() *EntrySet {
	return &EntrySet{entries: make(map[string]entry)}
}

// EntrySetOf creates an entry set from a path to contents map.
func EntrySetOf(files map[string][]byte) *EntrySet {
	s := NewEntrySet()
	for p, data := range files {
		s.Put(p, data)
	}
	return s
}

// NormalizePath converts backslashes to slashes and drops a leading slash.
func NormalizePath(p string) string {
	return strings.TrimPrefix(strings.ReplaceAll(p, "\\", "/"), "/")
}

func foldPath(p string) string {
	return strings.ToLower(NormalizePath(p))
}

// Len returns the number of entries.
func (s *EntrySet) Len() int {
	return len(s.entries)
}

// Get returns the contents of path.
func (s *EntrySet) Get(path string) ([]byte, bool) {
	e, ok := s.entries[foldPath(path)]
	return e.data, ok
}

// Has reports whether path exists.
func (s *EntrySet) Has(path string) bool {
	_, ok := s.entries[foldPath(path)]
	return ok
}

// Put stores data under path, replacing any existing contents.
func (s *EntrySet) Put(path string, data []byte) {
	key := foldPath(path)
	if e, ok := s.entries[key]; ok {
		e.data = data
		s.entries[key] = e
		return
	}
	s.entries[key] = entry{path: NormalizePath(path), data: data}
}

// Delete removes path.
func (s *EntrySet) Delete(path string) {
	delete(s.entries, foldPath(path))
}

// Paths returns every path in case-insensitive order.
func (s *EntrySet) Paths() []string {
	out := make([]string, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, e.path)
	}
	sortPaths(out)
	return out
}

// Match returns the paths that start with prefix and end with suffix,
// both compared case-insensitively, in Paths order.
func (s *EntrySet) Match(prefix, suffix string) []string {
	prefix, suffix = foldPath(prefix), strings.ToLower(suffix)
	var out []string
	for key, e := range s.entries {
		if strings.HasPrefix(key, prefix) && strings.HasSuffix(key, suffix) {
			out = append(out, e.path)
		}
	}
	sortPaths(out)
	return out
}

// Files returns a copy of the set as a plain map keyed by path.
func (s *EntrySet) Files() map[string][]byte {
	out := make(map[string][]byte, len(s.entries))
	for _, e := range s.entries {
		out[e.path] = e.data
	}
	return out
}

func sortPaths(paths []string) {
	sort.Slice(paths, func(i, j int) bool {
		li, lj := strings.ToLower(paths[i]), strings.ToLower(paths[j])
		if li != lj {
			return li < lj
		}
		return paths[i] < paths[j]
	})
}
