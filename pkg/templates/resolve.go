package templates

import (
	"sort"
	"strings"

	"github.com/openfroyo/pakit/pkg/control"
	"github.com/openfroyo/pakit/pkg/jsonvalue"
)

// excluded templates are owned by the authoring tool and never listed in
// UsedTemplates.
var excluded = map[string]bool{
	"appinfo":         true,
	"hostcontrol":     true,
	"screen":          true,
	"gallerytemplate": true,
}

// Source says how a reference was resolved.
type Source string

const (
	SourceExact   Source = "exact"
	SourcePcf     Source = "pcf"
	SourceName    Source = "name"
	SourceDropped Source = "dropped"
)

// Reference is one distinct template reference found in the control trees.
type Reference struct {
	Name    string
	Version string
	Source  Source
}

// Resolution is the outcome of resolving every tree against a catalog.
type Resolution struct {
	Used       []Template
	Pcf        []Template
	References []Reference
}

// Dropped returns the references that matched nothing in the catalog.
func (r Resolution) Dropped() []Reference {
	var out []Reference
	for _, ref := range r.References {
		if ref.Source == SourceDropped {
			out = append(out, ref)
		}
	}
	return out
}

// Resolve walks roots in order and resolves each distinct Name|Version
// reference. The first occurrence across all trees decides. References with
// no catalog entry are dropped from the result without error.
func Resolve(c *Catalog, roots []*control.Control) Resolution {
	var res Resolution
	seen := make(map[string]bool)
	pcfUsed := make(map[string]bool)

	for _, root := range roots {
		control.Walk(root, func(n *control.Control) bool {
			name, version := n.Template.Name, n.Template.Version
			if name == "" || excluded[foldName(name)] {
				return true
			}
			key := exactKey(name, version)
			if seen[key] {
				return true
			}
			seen[key] = true

			ref := Reference{Name: name, Version: version}
			if t, ok := c.Exact(name, version); ok {
				ref.Source = SourceExact
				res.Used = append(res.Used, t)
			} else if t, ok := c.Pcf(name); ok {
				ref.Source = SourcePcf
				if version != "" {
					t = t.WithVersion(version)
				}
				if !pcfUsed[foldName(t.Name())] {
					pcfUsed[foldName(t.Name())] = true
					res.Pcf = append(res.Pcf, t)
				}
			} else if t, ok := c.Latest(name); ok {
				ref.Source = SourceName
				if version != "" && version != t.Version() {
					t = t.WithVersion(version)
				}
				res.Used = append(res.Used, t)
			} else {
				ref.Source = SourceDropped
			}
			res.References = append(res.References, ref)
			return true
		})
	}
	return res
}

// ApplyResolution rebuilds a References/Templates.json document. Members
// other than UsedTemplates and PcfTemplates are kept. existing may be empty.
func ApplyResolution(existing []byte, res Resolution) ([]byte, error) {
	doc := jsonvalue.NewObject()
	if len(existing) > 0 {
		obj, err := jsonvalue.ParseObject(existing)
		if err != nil {
			return nil, err
		}
		doc = obj
	}

	used := make([]jsonvalue.Value, 0, len(res.Used))
	for _, t := range res.Used {
		if t.XML() == "" {
			continue
		}
		used = append(used, t.ToValue())
	}
	doc.Set(KeyUsedTemplates, jsonvalue.Array(used...))

	if len(res.Pcf) == 0 {
		doc.Delete(KeyPcfTemplates)
	} else {
		pcf := append([]Template(nil), res.Pcf...)
		sort.SliceStable(pcf, func(i, j int) bool {
			return strings.ToLower(pcf[i].Name()) < strings.ToLower(pcf[j].Name())
		})
		items := make([]jsonvalue.Value, len(pcf))
		for i, t := range pcf {
			items[i] = t.ToValue()
		}
		doc.Set(KeyPcfTemplates, jsonvalue.Array(items...))
	}

	return jsonvalue.MarshalObject(doc)
}
