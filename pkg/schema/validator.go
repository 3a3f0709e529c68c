package schema

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/openfroyo/pakit/pkg/jsonvalue"
)

const (
	sourcePrefix = "src/"
	sourceSuffix = ".pa.yaml"
)

// Validator checks source documents. Invalid documents produce issues, not
// errors.
type Validator struct {
	cache *Cache
}

// NewValidator creates a validator. A nil cache uses DefaultCache.
func NewValidator(cache *Cache) *Validator {
	if cache == nil {
		cache = DefaultCache()
	}
	return &Validator{cache: cache}
}

// IsSourcePath reports whether an entry path is a Src/**/*.pa.yaml document.
func IsSourcePath(path string) bool {
	lower := strings.ToLower(strings.ReplaceAll(path, "\\", "/"))
	return strings.HasPrefix(lower, sourcePrefix) && strings.HasSuffix(lower, sourceSuffix)
}

// ValidateDocuments validates every source document in docs and returns
// the issues in case-insensitive path order. Each issue reads
// "[path] at <location>: <keyword> - <message>". The error is only set
// when the schema itself cannot be compiled.
func (v *Validator) ValidateDocuments(docs map[string][]byte) ([]string, error) {
	compiled, err := v.cache.Get()
	if err != nil {
		return nil, err
	}

	paths := make([]string, 0, len(docs))
	for p := range docs {
		if IsSourcePath(p) {
			paths = append(paths, p)
		}
	}
	sort.Slice(paths, func(i, j int) bool {
		li, lj := strings.ToLower(paths[i]), strings.ToLower(paths[j])
		if li != lj {
			return li < lj
		}
		return paths[i] < paths[j]
	})

	var issues []string
	for _, p := range paths {
		issues = append(issues, validateDocument(compiled, p, docs[p])...)
	}
	return issues, nil
}

// Validate returns all issues joined by newlines. An empty string means
// every document is valid.
func (v *Validator) Validate(docs map[string][]byte) (string, error) {
	issues, err := v.ValidateDocuments(docs)
	if err != nil {
		return "", err
	}
	return strings.Join(issues, "\n"), nil
}

func validateDocument(compiled *jsonschema.Schema, path string, data []byte) []string {
	doc, err := jsonvalue.FromYAML(data)
	if err != nil {
		return []string{formatIssue(path, "", "yaml", err.Error())}
	}

	err = compiled.Validate(jsonvalue.ToAny(doc))
	if err == nil {
		return nil
	}
	var verr *jsonschema.ValidationError
	if !errors.As(err, &verr) {
		return []string{formatIssue(path, "", "schema", err.Error())}
	}

	leaves := collectLeaves(verr, nil)
	sort.SliceStable(leaves, func(i, j int) bool {
		if leaves[i].InstanceLocation != leaves[j].InstanceLocation {
			return leaves[i].InstanceLocation < leaves[j].InstanceLocation
		}
		return leaves[i].KeywordLocation < leaves[j].KeywordLocation
	})
	issues := make([]string, 0, len(leaves))
	for _, leaf := range leaves {
		issues = append(issues, formatIssue(path, leaf.InstanceLocation, keyword(leaf.KeywordLocation), leaf.Message))
	}
	return issues
}

func collectLeaves(e *jsonschema.ValidationError, out []*jsonschema.ValidationError) []*jsonschema.ValidationError {
	if len(e.Causes) == 0 {
		return append(out, e)
	}
	for _, cause := range e.Causes {
		out = collectLeaves(cause, out)
	}
	return out
}

func keyword(location string) string {
	if i := strings.LastIndex(location, "/"); i >= 0 {
		return location[i+1:]
	}
	return location
}

func formatIssue(path, location, keyword, message string) string {
	if location == "" {
		location = "/"
	}
	return fmt.Sprintf("[%s] at %s: %s - %s", path, location, keyword, message)
}
