// Package jsonvalue provides the ordered JSON value model shared by every
// document transformation in pakit.
//
// Objects keep the insertion order of their keys and numbers keep their
// original literal text, so a document that is parsed and marshalled without
// modification comes back byte-for-byte identical (modulo insignificant
// whitespace). Values may share substructure; Clone always returns a full deep
// copy.
package jsonvalue

import (
	"math"
	"strconv"
)

// Kind identifies the variant held by a Value.
type Kind int

const (
	// KindNull is the JSON null literal. The zero Value is null.
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindArray
	KindObject
)

// String returns the lower-case JSON name of the kind.
func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "boolean"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindArray:
		return "array"
	case KindObject:
		return "object"
	default:
		return "unknown"
	}
}

// Value is a tagged union over the JSON data model.
type Value struct {
	kind    Kind
	boolean bool
	// text holds the string contents for KindString and the number literal
	// for KindNumber.
	text   string
	items  []Value
	object *Object
}

// Null returns the null value.
func Null() Value { return Value{} }

// Bool returns a boolean value.
func Bool(b bool) Value { return Value{kind: KindBool, boolean: b} }

// String returns a string value.
func String(s string) Value { return Value{kind: KindString, text: s} }

// Int returns an integer number value.
func Int(i int64) Value {
	return Value{kind: KindNumber, text: strconv.FormatInt(i, 10)}
}

// Float returns a floating-point number value. NaN and infinities have no
// JSON representation and become null.
func Float(f float64) Value {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return Null()
	}
	return Value{kind: KindNumber, text: formatFloat(f)}
}

// NumberLiteral returns a number value carrying text verbatim. The caller is
// responsible for text being a valid JSON number.
func NumberLiteral(text string) Value {
	return Value{kind: KindNumber, text: text}
}

// Array returns an array value holding items.
func Array(items ...Value) Value {
	if items == nil {
		items = []Value{}
	}
	return Value{kind: KindArray, items: items}
}

// ObjectValue wraps obj. A nil obj produces an empty object.
func ObjectValue(obj *Object) Value {
	if obj == nil {
		obj = NewObject()
	}
	return Value{kind: KindObject, object: obj}
}

// Kind reports the variant held by v.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether v is null.
func (v Value) IsNull() bool { return v.kind == KindNull }

// AsBool returns the boolean payload.
func (v Value) AsBool() (bool, bool) {
	if v.kind != KindBool {
		return false, false
	}
	return v.boolean, true
}

// AsString returns the string payload.
func (v Value) AsString() (string, bool) {
	if v.kind != KindString {
		return "", false
	}
	return v.text, true
}

// Str returns the string payload or "" for any other kind.
func (v Value) Str() string {
	s, _ := v.AsString()
	return s
}

// Literal returns the number literal for numbers and "" otherwise.
func (v Value) Literal() string {
	if v.kind != KindNumber {
		return ""
	}
	return v.text
}

// AsInt returns the number as an int64 when it is integral.
func (v Value) AsInt() (int64, bool) {
	if v.kind != KindNumber {
		return 0, false
	}
	if i, err := strconv.ParseInt(v.text, 10, 64); err == nil {
		return i, true
	}
	f, err := strconv.ParseFloat(v.text, 64)
	if err != nil || f != math.Trunc(f) || math.Abs(f) > 1<<53 {
		return 0, false
	}
	return int64(f), true
}

// AsFloat returns the number as a float64.
func (v Value) AsFloat() (float64, bool) {
	if v.kind != KindNumber {
		return 0, false
	}
	f, err := strconv.ParseFloat(v.text, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// IsInteger reports whether v is a number written without fraction or
// exponent.
func (v Value) IsInteger() bool {
	if v.kind != KindNumber {
		return false
	}
	_, err := strconv.ParseInt(v.text, 10, 64)
	return err == nil
}

// Items returns the elements of an array, or nil for any other kind. The
// returned slice aliases v.
func (v Value) Items() []Value {
	if v.kind != KindArray {
		return nil
	}
	return v.items
}

// Object returns the object payload, or nil for any other kind. The returned
// object aliases v.
func (v Value) Object() *Object {
	if v.kind != KindObject {
		return nil
	}
	return v.object
}

// Clone returns a deep copy of v.
func (v Value) Clone() Value {
	switch v.kind {
	case KindArray:
		items := make([]Value, len(v.items))
		for i, item := range v.items {
			items[i] = item.Clone()
		}
		return Value{kind: KindArray, items: items}
	case KindObject:
		return Value{kind: KindObject, object: v.object.Clone()}
	default:
		return v
	}
}

// Equal reports structural equality. Object members are compared by key
// regardless of order; numbers are compared by value.
func Equal(a, b Value) bool {
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case KindNull:
		return true
	case KindBool:
		return a.boolean == b.boolean
	case KindString:
		return a.text == b.text
	case KindNumber:
		if a.text == b.text {
			return true
		}
		fa, okA := a.AsFloat()
		fb, okB := b.AsFloat()
		return okA && okB && fa == fb
	case KindArray:
		if len(a.items) != len(b.items) {
			return false
		}
		for i := range a.items {
			if !Equal(a.items[i], b.items[i]) {
				return false
			}
		}
		return true
	case KindObject:
		if a.object.Len() != b.object.Len() {
			return false
		}
		for _, m := range a.object.members {
			other, ok := b.object.Get(m.Key)
			if !ok || !Equal(m.Value, other) {
				return false
			}
		}
		return true
	}
	return false
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}
