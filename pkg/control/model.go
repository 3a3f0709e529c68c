// Package control provides the typed view over control-tree documents.
//
// A Control decodes the well-known members of a control node into Go fields
// with always-present collections and remembers the original member layout,
// so that encoding writes known members back in place and carries unknown
// members through untouched.
package control

import (
	"strings"

	"github.com/openfroyo/pakit/pkg/jsonvalue"
)

// Member names used by the authoring tool.
const (
	KeyType                 = "Type"
	KeyName                 = "Name"
	KeyTemplate             = "Template"
	KeyIndex                = "Index"
	KeyPublishOrderIndex    = "PublishOrderIndex"
	KeyVariantName          = "VariantName"
	KeyParent               = "Parent"
	KeyIsDataControl        = "IsDataControl"
	KeyIsGroupControl       = "IsGroupControl"
	KeyGroupedControlsKey   = "GroupedControlsKey"
	KeyRules                = "Rules"
	KeyControlPropertyState = "ControlPropertyState"
	KeyHasDynamicProperties = "HasDynamicProperties"
	KeyDynamicProperties    = "DynamicProperties"
	KeyControlUniqueID      = "ControlUniqueId"
	KeyChildren             = "Children"

	KeyID                    = "Id"
	KeyVersion               = "Version"
	KeyProperty              = "Property"
	KeyCategory              = "Category"
	KeyInvariantScript       = "InvariantScript"
	KeyRuleProviderType      = "RuleProviderType"
	KeyInvariantPropertyName = "InvariantPropertyName"
	KeyPropertyName          = "PropertyName"
	KeyRule                  = "Rule"
)

// Control is one node of a control tree.
type Control struct {
	Name                 string
	Parent               string
	Template             Template
	Index                *int
	PublishOrderIndex    *int
	VariantName          string
	ControlUniqueID      string
	IsGroupControl       bool
	HasDynamicProperties bool
	IsDataControl        bool
	Rules                []Rule
	PropertyState        []PropertyState
	DynamicProperties    []DynamicProperty
	GroupedControlsKey   []string
	Children             []*Control

	// layout holds every member of the source object. Known members are
	// overwritten from the typed fields on encode.
	layout *jsonvalue.Object
	// dropDynamic removes DynamicProperties from the encoded output.
	dropDynamic bool
}

// Template references the control template a node was created from.
type Template struct {
	ID      string
	Name    string
	Version string

	layout *jsonvalue.Object
}

// Rule binds a formula to a property.
type Rule struct {
	Property         string
	Category         string
	InvariantScript  string
	RuleProviderType string

	layout *jsonvalue.Object
}

// PropertyState is one ControlPropertyState entry: either a bare property
// name or a structured object.
type PropertyState struct {
	name  string
	entry *jsonvalue.Object
}

// DynamicProperty is a property whose rule is owned by a layout container.
type DynamicProperty struct {
	PropertyName string
	Rule         *Rule

	layout *jsonvalue.Object
}

// Extra returns an unknown member of the control.
func (c *Control) Extra(key string) (jsonvalue.Value, bool) {
	return c.layoutObject().Get(key)
}

// SetExtra stores an unknown member. Known member names are rejected
// silently so typed fields stay authoritative.
func (c *Control) SetExtra(key string, v jsonvalue.Value) {
	if isKnownControlKey(key) {
		return
	}
	c.layoutObject().Set(key, v)
}

// TakeExtra returns and removes an unknown member.
func (c *Control) TakeExtra(key string) (jsonvalue.Value, bool) {
	if isKnownControlKey(key) {
		return jsonvalue.Value{}, false
	}
	obj := c.layoutObject()
	v, ok := obj.Get(key)
	if ok {
		obj.Delete(key)
	}
	return v, ok
}

// ClearDynamicProperties empties DynamicProperties and drops the member from
// the encoded output.
func (c *Control) ClearDynamicProperties() {
	c.DynamicProperties = []DynamicProperty{}
	c.dropDynamic = true
}

// TemplateIs reports whether the template name equals name, ignoring case.
func (c *Control) TemplateIs(name string) bool {
	return strings.EqualFold(c.Template.Name, name)
}

// IsAppInfo reports whether the control is the app object.
func (c *Control) IsAppInfo() bool {
	return c.TemplateIs("appinfo") || strings.HasSuffix(strings.ToLower(c.Template.ID), "/appinfo")
}

// FindRule returns the index of the rule for property, ignoring case.
func (c *Control) FindRule(property string) int {
	for i, r := range c.Rules {
		if strings.EqualFold(r.Property, property) {
			return i
		}
	}
	return -1
}

// DedupeRules keeps the first rule per property, compared
// case-insensitively, and reports whether any rule was dropped.
func (c *Control) DedupeRules() bool {
	seen := make(map[string]bool, len(c.Rules))
	kept := c.Rules[:0]
	for _, r := range c.Rules {
		key := strings.ToLower(r.Property)
		if seen[key] {
			continue
		}
		seen[key] = true
		kept = append(kept, r)
	}
	dropped := len(kept) != len(c.Rules)
	c.Rules = kept
	return dropped
}

func (c *Control) layoutObject() *jsonvalue.Object {
	if c.layout == nil {
		c.layout = jsonvalue.NewObject()
	}
	return c.layout
}

// Extra returns an unknown member of the template reference.
func (t Template) Extra(key string) (jsonvalue.Value, bool) {
	return t.layout.Get(key)
}

// Clone returns a deep copy of the rule.
func (r Rule) Clone() Rule {
	out := r
	if r.layout != nil {
		out.layout = r.layout.Clone()
	}
	return out
}

// NewBareState returns a state entry that is just the property name.
func NewBareState(name string) PropertyState {
	return PropertyState{name: name}
}

// NewStructuredState wraps a structured state entry.
func NewStructuredState(entry *jsonvalue.Object) PropertyState {
	return PropertyState{entry: entry}
}

// IsStructured reports whether the entry is an object.
func (s PropertyState) IsStructured() bool { return s.entry != nil }

// Entry returns the structured object, or nil for a bare entry.
func (s PropertyState) Entry() *jsonvalue.Object { return s.entry }

// ResolvedName returns the property the entry refers to. Structured entries
// resolve through InvariantPropertyName, falling back to Property.
func (s PropertyState) ResolvedName() string {
	if s.entry == nil {
		return s.name
	}
	if v, ok := s.entry.Get(KeyInvariantPropertyName); ok {
		if name := v.Str(); name != "" {
			return name
		}
	}
	if v, ok := s.entry.Get(KeyProperty); ok {
		return v.Str()
	}
	return ""
}

// Clone returns a deep copy of the entry.
func (s PropertyState) Clone() PropertyState {
	if s.entry == nil {
		return s
	}
	return PropertyState{entry: s.entry.Clone()}
}

// Clone returns a deep copy of the dynamic property.
func (d DynamicProperty) Clone() DynamicProperty {
	out := d
	if d.Rule != nil {
		r := d.Rule.Clone()
		out.Rule = &r
	}
	if d.layout != nil {
		out.layout = d.layout.Clone()
	}
	return out
}

func isKnownControlKey(key string) bool {
	switch key {
	case KeyName, KeyTemplate, KeyIndex, KeyPublishOrderIndex, KeyVariantName, KeyParent,
		KeyIsDataControl, KeyIsGroupControl, KeyGroupedControlsKey, KeyRules,
		KeyControlPropertyState, KeyHasDynamicProperties, KeyDynamicProperties,
		KeyControlUniqueID, KeyChildren:
		return true
	}
	return false
}
