package jsonvalue

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMarshal_RoundTripKeepsOrderAndLiterals(t *testing.T) {
	input := `{"Zeta":1,"Alpha":[true,false,null],"Num":1.50,"Big":12345678901234567890,"Html":"<a&b>","Nested":{"b":"x","a":{}}}`

	v, err := Parse([]byte(input))
	require.NoError(t, err)
	require.Equal(t, KindObject, v.Kind())
	assert.Equal(t, []string{"Zeta", "Alpha", "Num", "Big", "Html", "Nested"}, v.Object().Keys())

	out, err := Marshal(v)
	require.NoError(t, err)
	assert.Equal(t, input, string(out))
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"truncated", `{"a":`},
		{"trailing data", `{} {}`},
		{"bad literal", `{"a":tru}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.input))
			assert.Error(t, err)
		})
	}
}

func TestParse_ByteOrderMark(t *testing.T) {
	v, err := Parse([]byte("\xef\xbb\xbf{\"a\":1}"))
	require.NoError(t, err)
	i, ok := v.Object().Get("a")
	require.True(t, ok)
	n, ok := i.AsInt()
	require.True(t, ok)
	assert.Equal(t, int64(1), n)
}

func TestParseObject_RejectsNonObject(t *testing.T) {
	_, err := ParseObject([]byte(`[1]`))
	assert.Error(t, err)
}

func TestClone_IsDeep(t *testing.T) {
	v, err := Parse([]byte(`{"a":{"b":[1,{"c":"d"}]}}`))
	require.NoError(t, err)

	clone := v.Clone()
	inner, _ := clone.Object().Get("a")
	inner.Object().Set("b", String("changed"))
	inner.Object().Set("new", Bool(true))

	orig, _ := v.Object().Get("a")
	b, _ := orig.Object().Get("b")
	assert.Equal(t, KindArray, b.Kind())
	assert.False(t, orig.Object().Has("new"))
}

func TestEqual(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want bool
	}{
		{"key order ignored", `{"a":1,"b":2}`, `{"b":2,"a":1}`, true},
		{"numbers by value", `[1.0]`, `[1]`, true},
		{"array order matters", `[1,2]`, `[2,1]`, false},
		{"kind mismatch", `"1"`, `1`, false},
		{"missing key", `{"a":1}`, `{"a":1,"b":2}`, false},
		{"nested difference", `{"a":{"b":true}}`, `{"a":{"b":false}}`, false},
		{"nulls", `null`, `null`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := Parse([]byte(tt.a))
			require.NoError(t, err)
			b, err := Parse([]byte(tt.b))
			require.NoError(t, err)
			assert.Equal(t, tt.want, Equal(a, b))
		})
	}
}

func TestObject_SetInsertDelete(t *testing.T) {
	obj := NewObject()
	obj.Set("a", Int(1))
	obj.Set("b", Int(2))
	obj.Set("a", Int(3))
	assert.Equal(t, []string{"a", "b"}, obj.Keys())

	obj.Insert(0, "c", Null())
	assert.Equal(t, []string{"c", "a", "b"}, obj.Keys())

	obj.Insert(5, "a", Int(4))
	assert.Equal(t, []string{"c", "b", "a"}, obj.Keys())

	assert.True(t, obj.Delete("b"))
	assert.False(t, obj.Delete("b"))
	assert.Equal(t, []string{"c", "a"}, obj.Keys())

	a, ok := obj.Get("a")
	require.True(t, ok)
	assert.Equal(t, "4", a.Literal())
}

func TestToAny(t *testing.T) {
	v, err := Parse([]byte(`{"n":2.5,"s":"x","l":[null,true]}`))
	require.NoError(t, err)

	got := ToAny(v).(map[string]any)
	assert.Equal(t, json.Number("2.5"), got["n"])
	assert.Equal(t, "x", got["s"])
	assert.Equal(t, []any{nil, true}, got["l"])
}

func TestValue_JSONInterfaces(t *testing.T) {
	type wrapper struct {
		Payload Value `json:"payload"`
	}
	var w wrapper
	require.NoError(t, json.Unmarshal([]byte(`{"payload":{"k":[1,2]}}`), &w))
	assert.Equal(t, KindObject, w.Payload.Kind())

	out, err := json.Marshal(w)
	require.NoError(t, err)
	assert.JSONEq(t, `{"payload":{"k":[1,2]}}`, string(out))
}

func TestFloat_NonFinite(t *testing.T) {
	assert.True(t, Float(1.0/zero()).IsNull())
}

func zero() float64 { return 0 }
