package metadata

import (
	"github.com/google/uuid"

	"github.com/openfroyo/pakit/pkg/jsonvalue"
)

// EnsureString sets key to def unless it already holds a non-empty string.
// It reports whether obj changed.
func EnsureString(obj *jsonvalue.Object, key, def string) bool {
	if v, ok := obj.Get(key); ok && v.Kind() == jsonvalue.KindString {
		if v.Str() != "" || def == "" {
			return false
		}
	}
	obj.Set(key, jsonvalue.String(def))
	return true
}

// EnsureNumber sets key to def unless it already holds a number.
func EnsureNumber(obj *jsonvalue.Object, key string, def int64) bool {
	if v, ok := obj.Get(key); ok && v.Kind() == jsonvalue.KindNumber {
		return false
	}
	obj.Set(key, jsonvalue.Int(def))
	return true
}

// EnsureBool sets key to def unless it already holds a boolean.
func EnsureBool(obj *jsonvalue.Object, key string, def bool) bool {
	if v, ok := obj.Get(key); ok && v.Kind() == jsonvalue.KindBool {
		return false
	}
	obj.Set(key, jsonvalue.Bool(def))
	return true
}

// EnsureObject makes key hold an object and returns it.
func EnsureObject(obj *jsonvalue.Object, key string) (*jsonvalue.Object, bool) {
	if v, ok := obj.Get(key); ok && v.Kind() == jsonvalue.KindObject {
		return v.Object(), false
	}
	child := jsonvalue.NewObject()
	obj.Set(key, jsonvalue.ObjectValue(child))
	return child, true
}

// EnsureArray makes key hold an array.
func EnsureArray(obj *jsonvalue.Object, key string) bool {
	if v, ok := obj.Get(key); ok && v.Kind() == jsonvalue.KindArray {
		return false
	}
	obj.Set(key, jsonvalue.Array())
	return true
}

// MergeObject inserts a copy of defaults under key when absent. Otherwise
// only the default members missing from the existing object are added;
// present members are never touched.
func MergeObject(obj *jsonvalue.Object, key string, defaults *jsonvalue.Object) bool {
	v, ok := obj.Get(key)
	if !ok || v.Kind() != jsonvalue.KindObject {
		obj.Set(key, jsonvalue.ObjectValue(defaults.Clone()))
		return true
	}
	existing := v.Object()
	changed := false
	for _, m := range defaults.Members() {
		if !existing.Has(m.Key) {
			existing.Set(m.Key, m.Value.Clone())
			changed = true
		}
	}
	return changed
}

// EnsureGUID regenerates key whenever it does not parse as a GUID.
func EnsureGUID(obj *jsonvalue.Object, key string, newGUID func() string) bool {
	if v, ok := obj.Get(key); ok {
		if s, isStr := v.AsString(); isStr {
			if _, err := uuid.Parse(s); err == nil {
				return false
			}
		}
	}
	obj.Set(key, jsonvalue.String(newGUID()))
	return true
}
