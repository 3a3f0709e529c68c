// Package schema validates Src/**/*.pa.yaml documents against the embedded
// pa.yaml JSON schema.
//
// YAML documents are converted with the same YAML 1.1 typing rules the
// packager uses, so a quoted "true" stays a string and an unquoted 42 is a
// number. The compiled schema is built once per Cache and shared.
package schema

import (
	"bytes"
	_ "embed"
	"fmt"
	"strings"
	"sync"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/openfroyo/pakit/pkg/jsonvalue"
)

//go:embed schemas/pa.schema.yaml
var embeddedSchema []byte

const schemaResource = "inmemory://pa.schema.json"

// The shipped schema carries a formula pattern with an unbalanced group.
const (
	malformedFormulaPattern = `^=([\s\S]*$`
	fixedFormulaPattern     = `^=([\s\S]*)$`
)

// PatchSchemaText repairs known defects in the schema source.
func PatchSchemaText(text string) string {
	return strings.ReplaceAll(text, malformedFormulaPattern, fixedFormulaPattern)
}

// EmbeddedSchema returns the schema source shipped with the binary.
func EmbeddedSchema() []byte {
	return append([]byte(nil), embeddedSchema...)
}

// Cache compiles a YAML schema source on first use.
type Cache struct {
	source []byte
	schema *jsonschema.Schema
	mu     sync.RWMutex
}

// NewCache creates a cache for a YAML schema source.
func NewCache(source []byte) *Cache {
	return &Cache{source: source}
}

var defaultCache = NewCache(embeddedSchema)

// DefaultCache returns the process-wide cache of the embedded schema.
func DefaultCache() *Cache {
	return defaultCache
}

// Get returns the compiled schema, compiling it on the first call.
// Compilation errors are returned and not cached.
func (c *Cache) Get() (*jsonschema.Schema, error) {
	c.mu.RLock()
	s := c.schema
	c.mu.RUnlock()
	if s != nil {
		return s, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.schema != nil {
		return c.schema, nil
	}
	s, err := Compile(c.source)
	if err != nil {
		return nil, err
	}
	c.schema = s
	return s, nil
}

// Reset drops the compiled schema so the next Get recompiles it.
func (c *Cache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.schema = nil
}

// Compile patches, converts and compiles a YAML schema source.
func Compile(source []byte) (*jsonschema.Schema, error) {
	if len(source) == 0 {
		return nil, fmt.Errorf("schema is empty")
	}
	doc, err := jsonvalue.FromYAML([]byte(PatchSchemaText(string(source))))
	if err != nil {
		return nil, fmt.Errorf("parse schema: %w", err)
	}
	data, err := jsonvalue.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode schema: %w", err)
	}

	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft7
	if err := compiler.AddResource(schemaResource, bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("add schema resource: %w", err)
	}
	compiled, err := compiler.Compile(schemaResource)
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return compiled, nil
}
