package metadata

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openfroyo/pakit/pkg/jsonvalue"
)

func testNormalizer() *Normalizer {
	return &Normalizer{
		Now:     func() time.Time { return time.Date(2024, 3, 5, 14, 30, 0, 0, time.UTC) },
		NewGUID: func() string { return "11111111-2222-3333-4444-555555555555" },
	}
}

func parse(t *testing.T, s string) *jsonvalue.Object {
	t.Helper()
	obj, err := jsonvalue.ParseObject([]byte(s))
	require.NoError(t, err)
	return obj
}

func TestEnsureHelpers(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		ensure  func(*jsonvalue.Object) bool
		want    string
		changed bool
	}{
		{"string absent", `{}`, func(o *jsonvalue.Object) bool { return EnsureString(o, "k", "d") }, `{"k":"d"}`, true},
		{"string empty", `{"k":""}`, func(o *jsonvalue.Object) bool { return EnsureString(o, "k", "d") }, `{"k":"d"}`, true},
		{"string wrong kind", `{"k":1}`, func(o *jsonvalue.Object) bool { return EnsureString(o, "k", "d") }, `{"k":"d"}`, true},
		{"string present", `{"k":"v"}`, func(o *jsonvalue.Object) bool { return EnsureString(o, "k", "d") }, `{"k":"v"}`, false},
		{"empty default keeps empty", `{"k":""}`, func(o *jsonvalue.Object) bool { return EnsureString(o, "k", "") }, `{"k":""}`, false},
		{"number absent", `{}`, func(o *jsonvalue.Object) bool { return EnsureNumber(o, "k", 5) }, `{"k":5}`, true},
		{"number as string", `{"k":"5"}`, func(o *jsonvalue.Object) bool { return EnsureNumber(o, "k", 5) }, `{"k":5}`, true},
		{"number present", `{"k":1.5}`, func(o *jsonvalue.Object) bool { return EnsureNumber(o, "k", 5) }, `{"k":1.5}`, false},
		{"bool absent", `{}`, func(o *jsonvalue.Object) bool { return EnsureBool(o, "k", true) }, `{"k":true}`, true},
		{"bool present false", `{"k":false}`, func(o *jsonvalue.Object) bool { return EnsureBool(o, "k", true) }, `{"k":false}`, false},
		{"array null", `{"k":null}`, func(o *jsonvalue.Object) bool { return EnsureArray(o, "k") }, `{"k":[]}`, true},
		{"array present", `{"k":[1]}`, func(o *jsonvalue.Object) bool { return EnsureArray(o, "k") }, `{"k":[1]}`, false},
		{"object absent", `{}`, func(o *jsonvalue.Object) bool { _, c := EnsureObject(o, "k"); return c }, `{"k":{}}`, true},
		{"object present", `{"k":{"a":1}}`, func(o *jsonvalue.Object) bool { _, c := EnsureObject(o, "k"); return c }, `{"k":{"a":1}}`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := parse(t, tt.doc)
			assert.Equal(t, tt.changed, tt.ensure(doc))
			out, err := jsonvalue.MarshalObject(doc)
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(out))
		})
	}
}

func TestMergeObject(t *testing.T) {
	defaults := parse(t, `{"a":true,"b":false,"c":true}`)

	doc := parse(t, `{"flags":{"b":true,"x":1}}`)
	assert.True(t, MergeObject(doc, "flags", defaults))
	out, _ := jsonvalue.MarshalObject(doc)
	assert.Equal(t, `{"flags":{"b":true,"x":1,"a":true,"c":true}}`, string(out))
	assert.False(t, MergeObject(doc, "flags", defaults))

	empty := jsonvalue.NewObject()
	assert.True(t, MergeObject(empty, "flags", defaults))
	flags, _ := empty.Get("flags")
	flags.Object().Set("a", jsonvalue.Bool(false))
	v, _ := defaults.Get("a")
	assert.Equal(t, jsonvalue.Bool(true), v, "defaults are copied, not shared")
}

func TestEnsureGUID(t *testing.T) {
	gen := func() string { return "fresh" }
	tests := []struct {
		name    string
		doc     string
		changed bool
	}{
		{"valid", `{"Id":"6f2d2c4e-5b7a-4b1e-9c3d-8f0a1b2c3d4e"}`, false},
		{"invalid", `{"Id":"not-a-guid"}`, true},
		{"absent", `{}`, true},
		{"wrong kind", `{"Id":7}`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := parse(t, tt.doc)
			assert.Equal(t, tt.changed, EnsureGUID(doc, "Id", gen))
			if tt.changed {
				v, _ := doc.Get("Id")
				assert.Equal(t, "fresh", v.Str())
			}
		})
	}
}

func TestPreviewFlags(t *testing.T) {
	flags := PreviewFlags()
	assert.GreaterOrEqual(t, flags.Len(), 90)
	for _, m := range flags.Members() {
		assert.Equal(t, jsonvalue.KindBool, m.Value.Kind(), m.Key)
	}
	assert.Equal(t, "adaptivepaging", flags.Keys()[0])
}

func TestNormalizeDocument_CreatesFromDefaults(t *testing.T) {
	n := testNormalizer()

	for _, path := range Paths() {
		t.Run(path, func(t *testing.T) {
			out, changed, err := n.NormalizeDocument(path, nil)
			require.NoError(t, err)
			assert.True(t, changed)

			again, changed, err := n.NormalizeDocument(path, out)
			require.NoError(t, err)
			assert.False(t, changed, "normalizing twice is a no-op")
			assert.Equal(t, out, again)
		})
	}
}

func TestNormalizeDocument_Header(t *testing.T) {
	out, _, err := testNormalizer().NormalizeDocument(PathHeader, nil)
	require.NoError(t, err)
	assert.Equal(t,
		`{"DocVersion":"1.346","MinVersionToLoad":"1.331","MSAppStructureVersion":"2.0","LastSavedDateTimeUTC":"03/05/2024 14:30:00"}`,
		string(out))
}

func TestNormalizeDocument_PropertiesKeepsExisting(t *testing.T) {
	in := `{"Name":"Expenses","Id":"bad","AppPreviewFlagsMap":{"powerfxv1":true},"DocumentLayoutWidth":1024}`

	out, changed, err := testNormalizer().NormalizeDocument("properties.json", []byte(in))
	require.NoError(t, err)
	assert.True(t, changed)

	doc := parse(t, string(out))
	name, _ := doc.Get("Name")
	assert.Equal(t, "Expenses", name.Str())
	id, _ := doc.Get("Id")
	assert.Equal(t, "11111111-2222-3333-4444-555555555555", id.Str())
	width, _ := doc.Get("DocumentLayoutWidth")
	assert.Equal(t, "1024", width.Literal())

	flags, _ := doc.Get(KeyPreviewFlags)
	pfx, _ := flags.Object().Get("powerfxv1")
	assert.Equal(t, jsonvalue.Bool(true), pfx)
	assert.Equal(t, PreviewFlags().Len(), flags.Object().Len())
	assert.Equal(t, "powerfxv1", flags.Object().Keys()[0])
}

func TestNormalizeDocument_UnchangedBytesReused(t *testing.T) {
	in := []byte("{\n  \"DataSources\": []\n}")

	out, changed, err := testNormalizer().NormalizeDocument(PathDataSources, in)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, in, out)
}

func TestNormalizeDocument_Errors(t *testing.T) {
	n := testNormalizer()

	_, _, err := n.NormalizeDocument("Unknown.json", nil)
	assert.Error(t, err)

	_, _, err = n.NormalizeDocument(PathThemes, []byte(`[]`))
	assert.Error(t, err)
}

func TestOptional(t *testing.T) {
	assert.True(t, Optional(PathModernThemes))
	assert.True(t, Optional("componentsmetadata.json"))
	assert.False(t, Optional(PathHeader))
}
