package jsonvalue

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// The authoring tool reads source documents with YAML 1.1 implicit typing,
// not the YAML 1.2 core schema that yaml.v3 resolves by default, so plain
// scalars are typed here from the raw node text.
var (
	yamlNulls  = map[string]struct{}{"": {}, "~": {}, "null": {}, "Null": {}, "NULL": {}}
	yamlTrues  = map[string]struct{}{"true": {}, "True": {}, "TRUE": {}, "yes": {}, "Yes": {}, "YES": {}, "on": {}, "On": {}, "ON": {}}
	yamlFalses = map[string]struct{}{"false": {}, "False": {}, "FALSE": {}, "no": {}, "No": {}, "NO": {}, "off": {}, "Off": {}, "OFF": {}}
)

// FromYAML converts the first document in data into a Value.
//
// Quoted, literal and folded scalars are always strings. Plain scalars are
// null, boolean, integer, float or string, tried in that order. Mapping keys
// are taken as written. An empty input yields null.
func FromYAML(data []byte) (Value, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	var doc yaml.Node
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return Null(), nil
		}
		return Value{}, err
	}
	return FromYAMLNode(&doc)
}

// FromYAMLNode converts an already parsed node.
func FromYAMLNode(node *yaml.Node) (Value, error) {
	return convertNode(node, 0)
}

// Guards against alias cycles such as `a: &x [*x]`.
const maxYAMLDepth = 512

func convertNode(node *yaml.Node, depth int) (Value, error) {
	if node == nil {
		return Null(), nil
	}
	if depth > maxYAMLDepth {
		return Value{}, fmt.Errorf("yaml: nesting deeper than %d at line %d", maxYAMLDepth, node.Line)
	}
	switch node.Kind {
	case yaml.DocumentNode:
		if len(node.Content) == 0 {
			return Null(), nil
		}
		return convertNode(node.Content[0], depth+1)
	case yaml.AliasNode:
		return convertNode(node.Alias, depth+1)
	case yaml.SequenceNode:
		items := make([]Value, 0, len(node.Content))
		for _, child := range node.Content {
			item, err := convertNode(child, depth+1)
			if err != nil {
				return Value{}, err
			}
			items = append(items, item)
		}
		return Array(items...), nil
	case yaml.MappingNode:
		obj := NewObject()
		for i := 0; i+1 < len(node.Content); i += 2 {
			keyNode := node.Content[i]
			if keyNode.Kind == yaml.AliasNode && keyNode.Alias != nil {
				keyNode = keyNode.Alias
			}
			if keyNode.Kind != yaml.ScalarNode {
				return Value{}, fmt.Errorf("yaml: unsupported non-scalar mapping key at line %d", keyNode.Line)
			}
			val, err := convertNode(node.Content[i+1], depth+1)
			if err != nil {
				return Value{}, err
			}
			obj.Set(keyNode.Value, val)
		}
		return ObjectValue(obj), nil
	case yaml.ScalarNode:
		return convertScalar(node), nil
	}
	return Value{}, fmt.Errorf("yaml: unsupported node kind %d at line %d", node.Kind, node.Line)
}

func convertScalar(node *yaml.Node) Value {
	if node.Style&(yaml.DoubleQuotedStyle|yaml.SingleQuotedStyle|yaml.LiteralStyle|yaml.FoldedStyle) != 0 {
		return String(node.Value)
	}
	if node.Style&yaml.TaggedStyle != 0 && node.Tag == "!!str" {
		return String(node.Value)
	}
	return TypePlainScalar(node.Value)
}

// TypePlainScalar applies the YAML 1.1 implicit typing rules to the text of
// an unquoted scalar.
func TypePlainScalar(s string) Value {
	if _, ok := yamlNulls[s]; ok {
		return Null()
	}
	if _, ok := yamlTrues[s]; ok {
		return Bool(true)
	}
	if _, ok := yamlFalses[s]; ok {
		return Bool(false)
	}
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return Int(i)
	}
	if isDecimalFloat(s) {
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return Float(f)
		}
	}
	return String(s)
}

// isDecimalFloat rejects the spellings strconv accepts that an invariant
// decimal parser does not: hex mantissas, underscores, inf and nan.
func isDecimalFloat(s string) bool {
	if s == "" {
		return false
	}
	body := strings.TrimLeft(s, "+-")
	if body == "" {
		return false
	}
	digits := 0
	for _, r := range body {
		switch {
		case r >= '0' && r <= '9':
			digits++
		case r == '.', r == 'e', r == 'E', r == '+', r == '-':
		default:
			return false
		}
	}
	return digits > 0
}
