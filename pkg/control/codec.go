package control

import (
	"fmt"

	"github.com/openfroyo/pakit/pkg/jsonvalue"
)

// FromValue decodes a control node and its subtree.
func FromValue(v jsonvalue.Value) (*Control, error) {
	obj := v.Object()
	if obj == nil {
		return nil, fmt.Errorf("control: expected object, got %s", v.Kind())
	}
	c := &Control{layout: obj.Clone()}
	d := decoder{obj: obj}

	c.Name = d.str(KeyName)
	c.Parent = d.str(KeyParent)
	c.VariantName = d.str(KeyVariantName)
	c.ControlUniqueID = d.scalarText(KeyControlUniqueID)
	c.IsGroupControl = d.boolean(KeyIsGroupControl)
	c.HasDynamicProperties = d.boolean(KeyHasDynamicProperties)
	c.IsDataControl = d.boolean(KeyIsDataControl)
	c.Index = d.optInt(KeyIndex)
	c.PublishOrderIndex = d.optInt(KeyPublishOrderIndex)
	c.GroupedControlsKey = d.strings(KeyGroupedControlsKey)

	if tv, ok := obj.Get(KeyTemplate); ok && !tv.IsNull() {
		tobj := tv.Object()
		if tobj == nil {
			return nil, fmt.Errorf("control %q: Template must be an object", c.Name)
		}
		c.Template = decodeTemplate(tobj)
	}

	rules, err := d.objects(KeyRules)
	if err != nil {
		return nil, fmt.Errorf("control %q: %w", c.Name, err)
	}
	c.Rules = make([]Rule, 0, len(rules))
	for _, r := range rules {
		c.Rules = append(c.Rules, decodeRule(r))
	}
	c.DedupeRules()

	states, err := d.array(KeyControlPropertyState)
	if err != nil {
		return nil, fmt.Errorf("control %q: %w", c.Name, err)
	}
	c.PropertyState = make([]PropertyState, 0, len(states))
	for _, s := range states {
		switch s.Kind() {
		case jsonvalue.KindString:
			c.PropertyState = append(c.PropertyState, NewBareState(s.Str()))
		case jsonvalue.KindObject:
			c.PropertyState = append(c.PropertyState, NewStructuredState(s.Object().Clone()))
		default:
			return nil, fmt.Errorf("control %q: invalid ControlPropertyState entry of kind %s", c.Name, s.Kind())
		}
	}

	dynamic, err := d.objects(KeyDynamicProperties)
	if err != nil {
		return nil, fmt.Errorf("control %q: %w", c.Name, err)
	}
	c.DynamicProperties = make([]DynamicProperty, 0, len(dynamic))
	for _, dp := range dynamic {
		c.DynamicProperties = append(c.DynamicProperties, decodeDynamicProperty(dp))
	}

	children, err := d.array(KeyChildren)
	if err != nil {
		return nil, fmt.Errorf("control %q: %w", c.Name, err)
	}
	c.Children = make([]*Control, 0, len(children))
	for i, child := range children {
		cc, err := FromValue(child)
		if err != nil {
			return nil, fmt.Errorf("control %q child %d: %w", c.Name, i, err)
		}
		c.Children = append(c.Children, cc)
	}

	return c, nil
}

// ToValue encodes the control and its subtree.
func ToValue(c *Control) jsonvalue.Value {
	out := c.layoutObject().Clone()
	e := encoder{obj: out}

	e.always(KeyName, jsonvalue.String(c.Name))
	e.always(KeyTemplate, jsonvalue.ObjectValue(encodeTemplate(c.Template)))
	e.optInt(KeyIndex, c.Index)
	e.optInt(KeyPublishOrderIndex, c.PublishOrderIndex)
	e.str(KeyVariantName, c.VariantName)
	e.str(KeyParent, c.Parent)
	e.boolean(KeyIsDataControl, c.IsDataControl)
	e.boolean(KeyIsGroupControl, c.IsGroupControl)
	e.strings(KeyGroupedControlsKey, c.GroupedControlsKey)

	rules := make([]jsonvalue.Value, len(c.Rules))
	for i, r := range c.Rules {
		rules[i] = jsonvalue.ObjectValue(encodeRule(r))
	}
	e.array(KeyRules, rules)

	states := make([]jsonvalue.Value, len(c.PropertyState))
	for i, s := range c.PropertyState {
		if s.entry != nil {
			states[i] = jsonvalue.ObjectValue(s.entry.Clone())
		} else {
			states[i] = jsonvalue.String(s.name)
		}
	}
	e.array(KeyControlPropertyState, states)

	e.boolean(KeyHasDynamicProperties, c.HasDynamicProperties)
	if c.dropDynamic && len(c.DynamicProperties) == 0 {
		out.Delete(KeyDynamicProperties)
	} else {
		dynamic := make([]jsonvalue.Value, len(c.DynamicProperties))
		for i, dp := range c.DynamicProperties {
			dynamic[i] = jsonvalue.ObjectValue(encodeDynamicProperty(dp))
		}
		e.array(KeyDynamicProperties, dynamic)
	}

	e.scalarText(KeyControlUniqueID, c.ControlUniqueID)

	children := make([]jsonvalue.Value, len(c.Children))
	for i, child := range c.Children {
		children[i] = ToValue(child)
	}
	e.array(KeyChildren, children)

	return jsonvalue.ObjectValue(out)
}

func decodeTemplate(obj *jsonvalue.Object) Template {
	d := decoder{obj: obj}
	return Template{
		ID:      d.str(KeyID),
		Name:    d.str(KeyName),
		Version: d.scalarText(KeyVersion),
		layout:  obj.Clone(),
	}
}

func encodeTemplate(t Template) *jsonvalue.Object {
	out := jsonvalue.NewObject()
	if t.layout != nil {
		out = t.layout.Clone()
	}
	e := encoder{obj: out}
	e.always(KeyID, jsonvalue.String(t.ID))
	e.scalarText(KeyVersion, t.Version)
	e.always(KeyName, jsonvalue.String(t.Name))
	return out
}

func decodeRule(obj *jsonvalue.Object) Rule {
	d := decoder{obj: obj}
	return Rule{
		Property:         d.str(KeyProperty),
		Category:         d.str(KeyCategory),
		InvariantScript:  d.str(KeyInvariantScript),
		RuleProviderType: d.str(KeyRuleProviderType),
		layout:           obj.Clone(),
	}
}

func encodeRule(r Rule) *jsonvalue.Object {
	out := jsonvalue.NewObject()
	if r.layout != nil {
		out = r.layout.Clone()
	}
	e := encoder{obj: out}
	e.always(KeyProperty, jsonvalue.String(r.Property))
	e.str(KeyCategory, r.Category)
	e.always(KeyInvariantScript, jsonvalue.String(r.InvariantScript))
	e.str(KeyRuleProviderType, r.RuleProviderType)
	return out
}

func decodeDynamicProperty(obj *jsonvalue.Object) DynamicProperty {
	d := decoder{obj: obj}
	dp := DynamicProperty{
		PropertyName: d.str(KeyPropertyName),
		layout:       obj.Clone(),
	}
	if rv, ok := obj.Get(KeyRule); ok && rv.Object() != nil {
		r := decodeRule(rv.Object())
		dp.Rule = &r
	}
	return dp
}

func encodeDynamicProperty(dp DynamicProperty) *jsonvalue.Object {
	out := jsonvalue.NewObject()
	if dp.layout != nil {
		out = dp.layout.Clone()
	}
	e := encoder{obj: out}
	e.always(KeyPropertyName, jsonvalue.String(dp.PropertyName))
	if dp.Rule != nil {
		e.always(KeyRule, jsonvalue.ObjectValue(encodeRule(*dp.Rule)))
	} else if out.Has(KeyRule) {
		out.Set(KeyRule, jsonvalue.Null())
	}
	return out
}

type decoder struct {
	obj *jsonvalue.Object
}

func (d decoder) str(key string) string {
	v, _ := d.obj.Get(key)
	return v.Str()
}

// scalarText reads members the authoring tool writes either as strings or
// as numbers.
func (d decoder) scalarText(key string) string {
	v, _ := d.obj.Get(key)
	if v.Kind() == jsonvalue.KindNumber {
		return v.Literal()
	}
	return v.Str()
}

func (d decoder) boolean(key string) bool {
	v, _ := d.obj.Get(key)
	b, _ := v.AsBool()
	return b
}

func (d decoder) optInt(key string) *int {
	v, ok := d.obj.Get(key)
	if !ok {
		return nil
	}
	i, ok := v.AsInt()
	if !ok {
		return nil
	}
	n := int(i)
	return &n
}

func (d decoder) strings(key string) []string {
	v, _ := d.obj.Get(key)
	out := []string{}
	for _, item := range v.Items() {
		if s, ok := item.AsString(); ok {
			out = append(out, s)
		}
	}
	return out
}

func (d decoder) array(key string) ([]jsonvalue.Value, error) {
	v, ok := d.obj.Get(key)
	if !ok || v.IsNull() {
		return nil, nil
	}
	if v.Kind() != jsonvalue.KindArray {
		return nil, fmt.Errorf("%s must be an array, got %s", key, v.Kind())
	}
	return v.Items(), nil
}

func (d decoder) objects(key string) ([]*jsonvalue.Object, error) {
	items, err := d.array(key)
	if err != nil {
		return nil, err
	}
	out := make([]*jsonvalue.Object, 0, len(items))
	for i, item := range items {
		if item.Object() == nil {
			return nil, fmt.Errorf("%s[%d] must be an object, got %s", key, i, item.Kind())
		}
		out = append(out, item.Object())
	}
	return out, nil
}

// encoder writes known members back into a layout. Present members are
// replaced in place; absent members are only added when they carry a
// non-default value, and go before Children so the subtree stays last.
type encoder struct {
	obj *jsonvalue.Object
}

func (e encoder) put(key string, v jsonvalue.Value) {
	if e.obj.Has(key) {
		e.obj.Set(key, v)
		return
	}
	keys := e.obj.Keys()
	if n := len(keys); n > 0 && keys[n-1] == KeyChildren && key != KeyChildren {
		e.obj.Insert(n-1, key, v)
		return
	}
	e.obj.Set(key, v)
}

func (e encoder) always(key string, v jsonvalue.Value) {
	e.put(key, v)
}

func (e encoder) str(key, s string) {
	if s != "" || e.obj.Has(key) {
		e.put(key, jsonvalue.String(s))
	}
}

// scalarText keeps a member numeric when the source wrote it as a number.
func (e encoder) scalarText(key, s string) {
	if prev, ok := e.obj.Get(key); ok && prev.Kind() == jsonvalue.KindNumber {
		if v, err := jsonvalue.Parse([]byte(s)); err == nil && v.Kind() == jsonvalue.KindNumber {
			e.put(key, v)
			return
		}
	}
	e.str(key, s)
}

func (e encoder) boolean(key string, b bool) {
	if b || e.obj.Has(key) {
		e.put(key, jsonvalue.Bool(b))
	}
}

func (e encoder) optInt(key string, i *int) {
	if i == nil {
		e.obj.Delete(key)
		return
	}
	e.put(key, jsonvalue.Int(int64(*i)))
}

func (e encoder) strings(key string, items []string) {
	if len(items) == 0 && !e.obj.Has(key) {
		return
	}
	values := make([]jsonvalue.Value, len(items))
	for i, s := range items {
		values[i] = jsonvalue.String(s)
	}
	e.put(key, jsonvalue.Array(values...))
}

func (e encoder) array(key string, items []jsonvalue.Value) {
	if len(items) == 0 && !e.obj.Has(key) {
		return
	}
	e.put(key, jsonvalue.Array(items...))
}
