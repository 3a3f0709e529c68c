package control

import (
	"fmt"
	"strings"

	"github.com/openfroyo/pakit/pkg/jsonvalue"
)

// KeyTopParent is the single member of a control document.
const KeyTopParent = "TopParent"

// Document is one Controls/*.json or Components/*.json entry.
type Document struct {
	TopParent *Control

	layout *jsonvalue.Object
}

// ParseDocument decodes a control document.
func ParseDocument(data []byte) (*Document, error) {
	obj, err := jsonvalue.ParseObject(data)
	if err != nil {
		return nil, fmt.Errorf("parse control document: %w", err)
	}
	top, ok := obj.Get(KeyTopParent)
	if !ok {
		return nil, fmt.Errorf("control document has no %s", KeyTopParent)
	}
	root, err := FromValue(top)
	if err != nil {
		return nil, err
	}
	return &Document{TopParent: root, layout: obj}, nil
}

// Marshal encodes the document.
func (d *Document) Marshal() ([]byte, error) {
	out := jsonvalue.NewObject()
	if d.layout != nil {
		out = d.layout.Clone()
	}
	out.Set(KeyTopParent, ToValue(d.TopParent))
	return jsonvalue.MarshalObject(out)
}

// Walk visits root and every descendant in pre-order. Returning false from
// fn skips the node's children.
func Walk(root *Control, fn func(c *Control) bool) {
	if root == nil {
		return
	}
	if !fn(root) {
		return
	}
	for _, child := range root.Children {
		Walk(child, fn)
	}
}

// NameSet is a case-insensitive set of control names.
type NameSet map[string]struct{}

// Names collects every control name in the given trees.
func Names(roots ...*Control) NameSet {
	set := NameSet{}
	for _, root := range roots {
		Walk(root, func(c *Control) bool {
			set.Add(c.Name)
			return true
		})
	}
	return set
}

// Add inserts name.
func (s NameSet) Add(name string) {
	s[strings.ToLower(name)] = struct{}{}
}

// Has reports whether name is present.
func (s NameSet) Has(name string) bool {
	_, ok := s[strings.ToLower(name)]
	return ok
}

// NewRule returns a rule with no extra members.
func NewRule(property, category, script, providerType string) Rule {
	return Rule{
		Property:         property,
		Category:         category,
		InvariantScript:  script,
		RuleProviderType: providerType,
	}
}

// NewControl builds a control with the member layout the authoring tool
// writes for a freshly inserted control.
func NewControl(name, parent string, tmpl Template) *Control {
	layout := jsonvalue.ObjectOf(
		jsonvalue.Member{Key: KeyType, Value: jsonvalue.String("ControlInfo")},
		jsonvalue.Member{Key: KeyName, Value: jsonvalue.String(name)},
		jsonvalue.Member{Key: KeyTemplate, Value: jsonvalue.ObjectValue(nil)},
		jsonvalue.Member{Key: KeyIndex, Value: jsonvalue.Int(0)},
		jsonvalue.Member{Key: KeyPublishOrderIndex, Value: jsonvalue.Int(0)},
		jsonvalue.Member{Key: KeyVariantName, Value: jsonvalue.String("")},
		jsonvalue.Member{Key: "LayoutName", Value: jsonvalue.String("")},
		jsonvalue.Member{Key: "MetaDataIDKey", Value: jsonvalue.String("")},
		jsonvalue.Member{Key: "PersistMetaDataIDKey", Value: jsonvalue.Bool(false)},
		jsonvalue.Member{Key: "IsFromScreenLayout", Value: jsonvalue.Bool(false)},
		jsonvalue.Member{Key: "StyleName", Value: jsonvalue.String("")},
		jsonvalue.Member{Key: KeyParent, Value: jsonvalue.String(parent)},
		jsonvalue.Member{Key: KeyIsDataControl, Value: jsonvalue.Bool(false)},
		jsonvalue.Member{Key: "AllowAccessToGlobals", Value: jsonvalue.Bool(true)},
		jsonvalue.Member{Key: "OptimizeForDevices", Value: jsonvalue.String("Off")},
		jsonvalue.Member{Key: KeyIsGroupControl, Value: jsonvalue.Bool(false)},
		jsonvalue.Member{Key: "IsAutoGenerated", Value: jsonvalue.Bool(false)},
		jsonvalue.Member{Key: KeyRules, Value: jsonvalue.Array()},
		jsonvalue.Member{Key: KeyControlPropertyState, Value: jsonvalue.Array()},
		jsonvalue.Member{Key: KeyHasDynamicProperties, Value: jsonvalue.Bool(false)},
		jsonvalue.Member{Key: KeyControlUniqueID, Value: jsonvalue.String("")},
		jsonvalue.Member{Key: KeyChildren, Value: jsonvalue.Array()},
	)
	if tmpl.layout == nil {
		tmpl.layout = jsonvalue.ObjectOf(
			jsonvalue.Member{Key: KeyID, Value: jsonvalue.String(tmpl.ID)},
			jsonvalue.Member{Key: KeyVersion, Value: jsonvalue.String(tmpl.Version)},
			jsonvalue.Member{Key: "LastModifiedTimestamp", Value: jsonvalue.String("0")},
			jsonvalue.Member{Key: KeyName, Value: jsonvalue.String(tmpl.Name)},
			jsonvalue.Member{Key: "FirstParty", Value: jsonvalue.Bool(true)},
			jsonvalue.Member{Key: "IsPremiumPcfControl", Value: jsonvalue.Bool(false)},
			jsonvalue.Member{Key: "IsCustomGroupControlTemplate", Value: jsonvalue.Bool(false)},
			jsonvalue.Member{Key: "CustomGroupControlTemplateName", Value: jsonvalue.String("")},
			jsonvalue.Member{Key: "IsComponentDefinition", Value: jsonvalue.Bool(false)},
			jsonvalue.Member{Key: "OverridableProperties", Value: jsonvalue.ObjectValue(nil)},
		)
	}
	// Index and PublishOrderIndex are left for the reindexing pass.
	return &Control{
		Name:              name,
		Parent:            parent,
		Template:          tmpl,
		Rules:             []Rule{},
		PropertyState:     []PropertyState{},
		DynamicProperties: []DynamicProperty{},
		Children:          []*Control{},
		layout:            layout,
	}
}

// NewDynamicProperty returns a dynamic property entry bound to rule.
func NewDynamicProperty(property string, rule Rule) DynamicProperty {
	r := rule.Clone()
	return DynamicProperty{
		PropertyName: property,
		Rule:         &r,
		layout: jsonvalue.ObjectOf(
			jsonvalue.Member{Key: KeyPropertyName, Value: jsonvalue.String(property)},
			jsonvalue.Member{Key: KeyRule, Value: jsonvalue.Null()},
			jsonvalue.Member{Key: KeyControlPropertyState, Value: jsonvalue.String(property)},
		),
	}
}
