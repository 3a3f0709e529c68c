// Package editorstate keeps the persisted screen and component order in
// Src/_EditorState.pa.yaml in step with the controls of a package.
package editorstate

import (
	"bytes"
	"fmt"
	"path"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Layout of the editor state document.
const (
	Path                 = "Src/_EditorState.pa.yaml"
	KeyEditorState       = "EditorState"
	KeyScreensOrder      = "ScreensOrder"
	KeyComponentsOrder   = "ComponentDefinitionsOrder"
	sourceSuffix         = ".pa.yaml"
	componentsSourcePath = "Src/Components/"
)

// Inputs are the names known for one category in this run.
type Inputs struct {
	// FileOrder is the order implied by source files.
	FileOrder []string
	// Discovered is every name present in the package.
	Discovered []string
}

// MergeOrder merges the persisted order, the file order and the discovered
// order. Each discovered name appears once, compared case-insensitively;
// names no longer discovered are dropped.
func MergeOrder(persisted, fileOrder, discovered []string) []string {
	known := make(map[string]bool, len(discovered))
	for _, name := range discovered {
		known[strings.ToLower(name)] = true
	}

	out := make([]string, 0, len(discovered))
	added := make(map[string]bool, len(discovered))
	for _, list := range [][]string{persisted, fileOrder, discovered} {
		for _, name := range list {
			key := strings.ToLower(name)
			if !known[key] || added[key] {
				continue
			}
			added[key] = true
			out = append(out, name)
		}
	}
	return out
}

// Orders reads the persisted screen and component orders.
func Orders(persisted []byte) (screens, components []string, err error) {
	doc, err := parse(persisted)
	if err != nil {
		return nil, nil, err
	}
	state := lookup(doc.Content[0], KeyEditorState)
	return sequence(state, KeyScreensOrder), sequence(state, KeyComponentsOrder), nil
}

// Update merges both orders into the persisted document. When neither order
// changes the persisted bytes are returned untouched and changed is false.
// Otherwise only the two order sequences are rewritten.
func Update(persisted []byte, screens, components Inputs) ([]byte, bool, error) {
	doc, err := parse(persisted)
	if err != nil {
		return nil, false, err
	}
	root := doc.Content[0]
	state := lookup(root, KeyEditorState)

	oldScreens := sequence(state, KeyScreensOrder)
	oldComponents := sequence(state, KeyComponentsOrder)
	newScreens := MergeOrder(oldScreens, screens.FileOrder, screens.Discovered)
	newComponents := MergeOrder(oldComponents, components.FileOrder, components.Discovered)

	if sameOrder(oldScreens, newScreens) && sameOrder(oldComponents, newComponents) {
		return persisted, false, nil
	}

	if state == nil || state.Kind != yaml.MappingNode {
		state = &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
		setValue(root, KeyEditorState, state)
	}
	setValue(state, KeyScreensOrder, sequenceNode(newScreens))
	setValue(state, KeyComponentsOrder, sequenceNode(newComponents))

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return nil, false, fmt.Errorf("editorstate: encode: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, false, fmt.Errorf("editorstate: encode: %w", err)
	}
	return buf.Bytes(), true, nil
}

// ScreenFileOrder returns the screen names implied by Src/<Name>.pa.yaml
// paths, in path order. The App object and files starting with '_' are
// skipped.
func ScreenFileOrder(paths []string) []string {
	var names []string
	for _, p := range sortedPaths(paths) {
		dir, file := path.Split(p)
		if !strings.EqualFold(dir, "Src/") {
			continue
		}
		name, ok := sourceName(file)
		if !ok || strings.HasPrefix(name, "_") || strings.EqualFold(name, "App") {
			continue
		}
		names = append(names, name)
	}
	return names
}

// ComponentFileOrder returns the component names implied by
// Src/Components/<Name>.pa.yaml paths, in path order.
func ComponentFileOrder(paths []string) []string {
	var names []string
	for _, p := range sortedPaths(paths) {
		dir, file := path.Split(p)
		if !strings.EqualFold(dir, componentsSourcePath) {
			continue
		}
		if name, ok := sourceName(file); ok {
			names = append(names, name)
		}
	}
	return names
}

func sourceName(file string) (string, bool) {
	if len(file) <= len(sourceSuffix) || !strings.EqualFold(file[len(file)-len(sourceSuffix):], sourceSuffix) {
		return "", false
	}
	return file[:len(file)-len(sourceSuffix)], true
}

func sortedPaths(paths []string) []string {
	out := append([]string(nil), paths...)
	sort.Slice(out, func(i, j int) bool { return strings.ToLower(out[i]) < strings.ToLower(out[j]) })
	return out
}

func parse(data []byte) (*yaml.Node, error) {
	doc := &yaml.Node{
		Kind:    yaml.DocumentNode,
		Content: []*yaml.Node{{Kind: yaml.MappingNode, Tag: "!!map"}},
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return doc, nil
	}
	var tmp yaml.Node
	if err := yaml.Unmarshal(data, &tmp); err != nil {
		return nil, fmt.Errorf("editorstate: parse: %w", err)
	}
	if tmp.Kind != yaml.DocumentNode || len(tmp.Content) == 0 || tmp.Content[0].Kind != yaml.MappingNode {
		return nil, fmt.Errorf("editorstate: top-level YAML is not a mapping")
	}
	return &tmp, nil
}

func lookup(mapping *yaml.Node, key string) *yaml.Node {
	if mapping == nil || mapping.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(mapping.Content); i += 2 {
		if mapping.Content[i].Value == key {
			return mapping.Content[i+1]
		}
	}
	return nil
}

func setValue(mapping *yaml.Node, key string, value *yaml.Node) {
	for i := 0; i+1 < len(mapping.Content); i += 2 {
		if mapping.Content[i].Value == key {
			mapping.Content[i+1] = value
			return
		}
	}
	mapping.Content = append(mapping.Content,
		&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: key},
		value,
	)
}

func sequence(mapping *yaml.Node, key string) []string {
	node := lookup(mapping, key)
	if node == nil || node.Kind != yaml.SequenceNode {
		return nil
	}
	out := make([]string, 0, len(node.Content))
	for _, item := range node.Content {
		if item.Kind == yaml.ScalarNode {
			out = append(out, item.Value)
		}
	}
	return out
}

func sequenceNode(items []string) *yaml.Node {
	seq := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
	for _, item := range items {
		seq.Content = append(seq.Content, &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: item})
	}
	return seq
}

func sameOrder(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !strings.EqualFold(a[i], b[i]) {
			return false
		}
	}
	return true
}
