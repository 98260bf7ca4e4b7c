package corpus

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itsmevijay17/LexiVoice/internal/errkind"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestSource_Documents(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "usa.json", `[
		{"title": "Minimum Wage", "body": "The minimum wage is $15. Employers must comply.", "jurisdiction": "usa", "category": "labor"},
		{"title": "Overtime", "content": "Overtime is paid at 1.5x.", "country": "USA", "section": "FLSA 7"}
	]`)
	writeFile(t, dir, "india.yaml", `
- title: Right to Information
  body: Citizens may request information from public authorities.
  section: RTI Act 2005
`)

	src := NewSource(dir)

	t.Run("json with legacy keys", func(t *testing.T) {
		docs, err := src.Documents(context.Background(), "usa")
		require.NoError(t, err)
		require.Len(t, docs, 2)
		assert.Equal(t, "Minimum Wage", docs[0].Title)
		assert.Equal(t, "Overtime is paid at 1.5x.", docs[1].Body)
		assert.Equal(t, "usa", docs[1].Jurisdiction)
		assert.Equal(t, "FLSA 7", docs[1].Section)
	})

	t.Run("yaml inherits jurisdiction", func(t *testing.T) {
		docs, err := src.Documents(context.Background(), "india")
		require.NoError(t, err)
		require.Len(t, docs, 1)
		assert.Equal(t, "india", docs[0].Jurisdiction)
	})

	t.Run("missing corpus", func(t *testing.T) {
		_, err := src.Documents(context.Background(), "canada")
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrCorpusNotFound)
		assert.Equal(t, errkind.IndexNotFound, errkind.Of(err))
	})

	t.Run("jurisdictions", func(t *testing.T) {
		js, err := src.Jurisdictions()
		require.NoError(t, err)
		assert.Equal(t, []string{"india", "usa"}, js)
	})
}

func TestLoadFile_Malformed(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name    string
		content string
	}{
		{"not json", `{"title": `},
		{"object not list", `{"title": "x", "body": "y"}`},
		{"missing body", `[{"title": "No Body"}]`},
		{"blank body", `[{"title": "Blank", "body": "   "}]`},
		{"missing title", `[{"body": "text"}]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, dir, "bad.json", tt.content)
			_, err := LoadFile(path, "usa")
			require.Error(t, err)
			assert.ErrorIs(t, err, errkind.ErrMalformedDocument)
		})
	}
}

func TestLoadFile_EmptyList(t *testing.T) {
	path := writeFile(t, t.TempDir(), "empty.json", `[]`)
	docs, err := LoadFile(path, "usa")
	require.NoError(t, err)
	assert.Empty(t, docs)
}
