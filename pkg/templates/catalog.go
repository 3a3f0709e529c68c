package templates

import (
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/openfroyo/pakit/pkg/jsonvalue"
)

//go:embed catalog/*.json
var catalogFS embed.FS

// Catalog indexes known templates by exact name and version, by name alone
// keeping the highest version, and PCF templates by name.
type Catalog struct {
	exact  map[string]Template
	latest map[string]Template
	pcf    map[string]Template
	mu     sync.RWMutex
}

// NewCatalog creates an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{
		exact:  make(map[string]Template),
		latest: make(map[string]Template),
		pcf:    make(map[string]Template),
	}
}

// Register adds a template. The exact entry is only inserted when absent, so
// earlier registrations win. The by-name entry is replaced only when t has a
// strictly greater version.
func (c *Catalog) Register(t Template) {
	if t.Name() == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	key := exactKey(t.Name(), t.Version())
	if _, ok := c.exact[key]; !ok {
		c.exact[key] = t
	}
	name := foldName(t.Name())
	if cur, ok := c.latest[name]; !ok || CompareVersions(t.Version(), cur.Version()) > 0 {
		c.latest[name] = t
	}
}

// RegisterPcf adds a PCF template, keeping the highest version per name.
func (c *Catalog) RegisterPcf(t Template) {
	if t.Name() == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	name := foldName(t.Name())
	if cur, ok := c.pcf[name]; !ok || CompareVersions(t.Version(), cur.Version()) > 0 {
		c.pcf[name] = t
	}
}

// Exact looks up a template by name and version.
func (c *Catalog) Exact(name, version string) (Template, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	t, ok := c.exact[exactKey(name, version)]
	return t, ok
}

// Latest returns the highest registered version of name.
func (c *Catalog) Latest(name string) (Template, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	t, ok := c.latest[foldName(name)]
	return t, ok
}

// Pcf returns the PCF template registered under name.
func (c *Catalog) Pcf(name string) (Template, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	t, ok := c.pcf[foldName(name)]
	return t, ok
}

// Names returns every registered template name in sorted order.
func (c *Catalog) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.latest))
	for _, t := range c.latest {
		names = append(names, t.Name())
	}
	sort.Slice(names, func(i, j int) bool { return foldName(names[i]) < foldName(names[j]) })
	return names
}

// LoadCatalog registers the templates of an existing References/Templates.json
// document followed by the embedded fallback catalog. existing may be empty.
func LoadCatalog(existing []byte) (*Catalog, error) {
	c := NewCatalog()
	if len(existing) > 0 {
		used, pcf, err := decodeTemplatesDocument(existing)
		if err != nil {
			return nil, fmt.Errorf("load existing templates: %w", err)
		}
		for _, t := range used {
			c.Register(t)
		}
		for _, t := range pcf {
			c.RegisterPcf(t)
		}
	}

	fallback, err := EmbeddedTemplates()
	if err != nil {
		return nil, err
	}
	for _, t := range fallback {
		c.Register(t)
	}
	return c, nil
}

var (
	embeddedOnce sync.Once
	embedded     []Template
	embeddedErr  error
)

// EmbeddedTemplates returns the fallback catalog shipped with the binary, in
// file then entry order.
func EmbeddedTemplates() ([]Template, error) {
	embeddedOnce.Do(func() {
		embedded, embeddedErr = readEmbedded(catalogFS)
	})
	return embedded, embeddedErr
}

// EmbeddedTemplate returns the fallback template named name.
func EmbeddedTemplate(name string) (Template, bool) {
	all, err := EmbeddedTemplates()
	if err != nil {
		return Template{}, false
	}
	for _, t := range all {
		if strings.EqualFold(t.Name(), name) {
			return t, true
		}
	}
	return Template{}, false
}

func readEmbedded(fsys fs.FS) ([]Template, error) {
	files, err := fs.Glob(fsys, path.Join("catalog", "*.json"))
	if err != nil {
		return nil, err
	}
	sort.Strings(files)

	var out []Template
	for _, name := range files {
		data, err := fs.ReadFile(fsys, name)
		if err != nil {
			return nil, fmt.Errorf("read embedded catalog %s: %w", name, err)
		}
		used, _, err := decodeTemplatesDocument(data)
		if err != nil {
			return nil, fmt.Errorf("embedded catalog %s: %w", name, err)
		}
		out = append(out, used...)
	}
	return out, nil
}

func decodeTemplatesDocument(data []byte) (used, pcf []Template, err error) {
	obj, err := jsonvalue.ParseObject(data)
	if err != nil {
		return nil, nil, err
	}
	if used, err = decodeList(obj, KeyUsedTemplates); err != nil {
		return nil, nil, err
	}
	if pcf, err = decodeList(obj, KeyPcfTemplates); err != nil {
		return nil, nil, err
	}
	return used, pcf, nil
}

func decodeList(obj *jsonvalue.Object, key string) ([]Template, error) {
	v, ok := obj.Get(key)
	if !ok || v.IsNull() {
		return nil, nil
	}
	if v.Kind() != jsonvalue.KindArray {
		return nil, fmt.Errorf("%s must be an array, got %s", key, v.Kind())
	}
	out := make([]Template, 0, len(v.Items()))
	for i, item := range v.Items() {
		t, err := FromValue(item)
		if err != nil {
			return nil, fmt.Errorf("%s[%d]: %w", key, i, err)
		}
		out = append(out, t)
	}
	return out, nil
}

func foldName(name string) string {
	return strings.ToLower(name)
}
