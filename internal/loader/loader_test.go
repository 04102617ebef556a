package loader

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func TestLoadJSONArray(t *testing.T) {
	dir := t.TempDir()
	p := writeFile(t, dir, "papers.json", `[
		{"title": "FastSplat", "text": "body", "year": "2023", "authors": [{"name": "Ada"}, "Alan"], "key_results": ["2x faster"]},
		{"title": "Only Abstract", "abstract": "We study things.", "body": "More.", "citation_count": 12, "keywords": "a, b"},
		{"title": "Empty"}
	]`)

	docs, err := Load(p)
	require.NoError(t, err)
	require.Len(t, docs, 2)

	assert.Equal(t, "FastSplat", docs[0].Title)
	assert.Equal(t, "body", docs[0].Text)
	assert.Equal(t, 2023, docs[0].Year)
	assert.Equal(t, []string{"Ada", "Alan"}, docs[0].Authors)
	assert.Equal(t, "2x faster", docs[0].Extra["key_results"].Text())
	assert.Equal(t, p+"#0", docs[0].Source)

	assert.Equal(t, "Title: Only Abstract\n\nAbstract: We study things.\n\nMore.", docs[1].Text)
	assert.Equal(t, 12, docs[1].CitationCount)
	assert.Equal(t, []string{"a", "b"}, docs[1].Keywords)
	assert.Nil(t, docs[1].Extra)
}

func TestLoadJSONFilePathRecord(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "paper.txt", "Text from disk.")
	p := writeFile(t, dir, "paper.json", `{"title": "On Disk", "file_path": "paper.txt"}`)

	docs, err := LoadFile(p)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "Text from disk.", docs[0].Text)
	assert.Equal(t, filepath.Join(dir, "paper.txt"), docs[0].Source)
}

func TestLoadDirectory(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "b.md", "# Markdown paper")
	writeFile(t, dir, "a.txt", "Plain paper")
	writeFile(t, dir, "c.json", `{"title": "J", "content": "json paper"}`)
	writeFile(t, dir, "notes.docx", "ignored")
	writeFile(t, dir, "broken.json", `{`)
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested"), 0o755))

	docs, err := Load(dir)
	require.NoError(t, err)
	require.Len(t, docs, 3)
	assert.Equal(t, "Plain paper", docs[0].Text)
	assert.Equal(t, "# Markdown paper", docs[1].Text)
	assert.Equal(t, "json paper", docs[2].Text)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)

	p := writeFile(t, t.TempDir(), "paper.docx", "x")
	_, err = LoadFile(p)
	assert.ErrorIs(t, err, ErrUnsupported)
}
