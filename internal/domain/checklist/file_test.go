package checklist

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xcro3dile/reqcheck/internal/domain/entities"
)

func TestSaveLoad(t *testing.T) {
	c := entities.Checklist{
		{Aspect: "Security", Questions: []string{"Is data encrypted?", "a | b"}},
		{Aspect: "Интеграция", Questions: []string{}},
	}

	for _, name := range []string{"checklist.json", "checklist.yaml", "nested/dir/checklist.yml"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), name)
			require.NoError(t, Save(path, c))

			got, err := Load(path)
			require.NoError(t, err)
			assert.True(t, c.Equal(got), "got %#v", got)
		})
	}
}

func TestSaveLoad_JSONControlCharacters(t *testing.T) {
	c := entities.Checklist{{Aspect: "nel\u0085x", Questions: []string{"\x7f del", "c1 \u0080"}}}

	path := filepath.Join(t.TempDir(), "checklist.json")
	require.NoError(t, Save(path, c))

	got, err := Load(path)
	require.NoError(t, err)
	assert.True(t, c.Equal(got), "got %#v", got)

	got, err = Decode([]byte("\n[{\"aspect\": \"a\u0085b\", \"questions\": [\"\u007f\"]}]\n"))
	require.NoError(t, err)
	assert.Equal(t, "a\u0085b", got[0].Aspect)
	assert.Equal(t, []string{"\x7f"}, got[0].Questions)
}

func TestSave_JSONIsIndentedAndUnescaped(t *testing.T) {
	path := filepath.Join(t.TempDir(), "c.json")
	require.NoError(t, Save(path, entities.Checklist{{Aspect: "A", Questions: []string{"<b>?"}}}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "    {\n")
	assert.Contains(t, string(data), `"<b>?"`)
}

func TestSave_NilQuestionsWrittenAsEmptyList(t *testing.T) {
	path := filepath.Join(t.TempDir(), "c.json")
	require.NoError(t, Save(path, entities.Checklist{{Aspect: "A"}}))

	got, err := Load(path)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Empty(t, got[0].Questions)
}

func TestLoad_RejectsBadDefinitions(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"mapping.json": `{"aspect": "A", "questions": []}`,
		"shape.yaml":   "- aspect: A\n  questions: nope\n",
		"syntax.json":  `[{"aspect": "A",`,
	}
	for name, content := range files {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name)
			require.NoError(t, os.WriteFile(path, []byte(content), 0644))

			_, err := Load(path)
			assert.ErrorIs(t, err, ErrMalformed)
		})
	}

	_, err := Load(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)
}

func TestLoad_BlockYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "c.yaml")
	content := "- aspect: Security\n  questions:\n    - Is data encrypted?\n    - Who holds the keys?\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	got, err := Load(path)
	require.NoError(t, err)
	assert.True(t, entities.Checklist{{
		Aspect:    "Security",
		Questions: []string{"Is data encrypted?", "Who holds the keys?"},
	}}.Equal(got))
}

func TestFormatForPath(t *testing.T) {
	assert.Equal(t, FormatYAML, FormatForPath("a.YAML"))
	assert.Equal(t, FormatYAML, FormatForPath("a.yml"))
	assert.Equal(t, FormatJSON, FormatForPath("a.json"))
	assert.Equal(t, FormatJSON, FormatForPath("a"))
}
