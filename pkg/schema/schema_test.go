package schema

import (
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validScreen = `Screens:
  Screen1:
    Properties:
      Fill: =RGBA(255, 255, 255, 1)
      OnVisible: |-
        =Set(count, 0);
        Notify("ready")
    Children:
      - Label1:
          Control: Label@2.5.1
          Properties:
            Text: ="Hello"
            Visible: =true
      - Gallery1:
          Control: Gallery
          Variant: vertical
          Children:
            - Title1:
                Control: Label
`

func TestPatchSchemaText(t *testing.T) {
	patched := PatchSchemaText(`pattern: '^=([\s\S]*$'`)
	assert.Equal(t, `pattern: '^=([\s\S]*)$'`, patched)
	assert.Equal(t, patched, PatchSchemaText(patched))
	assert.Contains(t, string(EmbeddedSchema()), malformedFormulaPattern)
}

func TestCompile_EmbeddedSchema(t *testing.T) {
	s, err := Compile(EmbeddedSchema())
	require.NoError(t, err)
	assert.NotNil(t, s)

	_, err = Compile(nil)
	assert.Error(t, err)
}

func TestCache(t *testing.T) {
	c := NewCache(EmbeddedSchema())

	var wg sync.WaitGroup
	results := make([]any, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s, err := c.Get()
			assert.NoError(t, err)
			results[i] = s
		}(i)
	}
	wg.Wait()
	for _, r := range results {
		assert.Same(t, results[0], r)
	}

	first, _ := c.Get()
	c.Reset()
	second, err := c.Get()
	require.NoError(t, err)
	assert.NotSame(t, first, second)
}

func TestCache_CompileErrorIsNotCached(t *testing.T) {
	c := NewCache([]byte("type: [\n"))
	_, err := c.Get()
	assert.Error(t, err)
	_, err = c.Get()
	assert.Error(t, err)
}

func TestValidateDocuments(t *testing.T) {
	tests := []struct {
		name     string
		doc      string
		keywords []string
	}{
		{
			name: "valid screen",
			doc:  validScreen,
		},
		{
			name:     "formula without equals",
			doc:      "Screens:\n  Screen1:\n    Properties:\n      Fill: RGBA(0, 0, 0, 1)\n",
			keywords: []string{"pattern"},
		},
		{
			name:     "unquoted number is not a formula",
			doc:      "Screens:\n  Screen1:\n    Properties:\n      Width: 100\n",
			keywords: []string{"type"},
		},
		{
			name:     "quoted true stays a string",
			doc:      "Screens:\n  Screen1:\n    Properties:\n      Visible: \"true\"\n",
			keywords: []string{"pattern"},
		},
		{
			name:     "unknown top-level key",
			doc:      "Widgets: {}\n",
			keywords: []string{"additionalProperties"},
		},
		{
			name:     "control without type",
			doc:      "Screens:\n  Screen1:\n    Children:\n      - Label1:\n          Properties: {}\n",
			keywords: []string{"required"},
		},
		{
			name:     "yaml syntax error",
			doc:      "Screens: [\n",
			keywords: []string{"yaml"},
		},
	}

	v := NewValidator(NewCache(EmbeddedSchema()))
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			issues, err := v.ValidateDocuments(map[string][]byte{"Src/Screen1.pa.yaml": []byte(tt.doc)})
			require.NoError(t, err)
			require.Len(t, issues, len(tt.keywords), strings.Join(issues, "\n"))
			for i, kw := range tt.keywords {
				assert.True(t, strings.HasPrefix(issues[i], "[Src/Screen1.pa.yaml] at "), issues[i])
				assert.Contains(t, issues[i], ": "+kw+" - ")
			}
		})
	}
}

func TestValidateDocuments_SelectsAndOrdersSources(t *testing.T) {
	bad := []byte("Bogus: 1\n")
	docs := map[string][]byte{
		"Src/b.pa.yaml":            bad,
		"src/A.pa.yaml":            bad,
		"Src/Components/C.pa.yaml": bad,
		"Controls/1.json":          []byte("{"),
		"Src/notes.yaml":           bad,
	}

	issues, err := NewValidator(nil).ValidateDocuments(docs)
	require.NoError(t, err)
	require.Len(t, issues, 3)
	assert.True(t, strings.HasPrefix(issues[0], "[src/A.pa.yaml]"))
	assert.True(t, strings.HasPrefix(issues[1], "[Src/b.pa.yaml]"))
	assert.True(t, strings.HasPrefix(issues[2], "[Src/Components/C.pa.yaml]"))
}

func TestValidate_JoinsIssues(t *testing.T) {
	v := NewValidator(nil)

	out, err := v.Validate(map[string][]byte{"Src/Screen1.pa.yaml": []byte(validScreen)})
	require.NoError(t, err)
	assert.Empty(t, out)

	out, err = v.Validate(map[string][]byte{
		"Src/A.pa.yaml": []byte("Bogus: 1\n"),
		"Src/B.pa.yaml": []byte("Bogus: 1\n"),
	})
	require.NoError(t, err)
	assert.Len(t, strings.Split(out, "\n"), 2)
}

func TestIsSourcePath(t *testing.T) {
	assert.True(t, IsSourcePath("Src/App.pa.yaml"))
	assert.True(t, IsSourcePath(`Src\Components\X.PA.YAML`))
	assert.False(t, IsSourcePath("Other/App.pa.yaml"))
	assert.False(t, IsSourcePath("Src/App.yaml"))
}
