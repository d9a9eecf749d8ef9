package loader

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Text(t *testing.T) {
	text := "First paragraph\nstill first.\r\n\r\n\n  Second paragraph.  \n\n\n"

	entries, err := Load("notes.txt", strings.NewReader(text))
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "First paragraph\nstill first.", entries[0].Content)
	assert.Equal(t, "Second paragraph.", entries[1].Content)
	assert.Equal(t, "notes.txt", entries[0].Source)
	assert.Nil(t, entries[0].ValidTime)
}

func TestLoad_EmptyText(t *testing.T) {
	entries, err := Load("empty.txt", strings.NewReader("\n\n  \n"))
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestLoad_MarkdownFrontMatter(t *testing.T) {
	md := `---
tags: [faq, billing]
categories:
  - support
valid_time: 3600
---
# Refunds

Refunds take five days.
`
	entries, err := Load("faq.MD", strings.NewReader(md))
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, "# Refunds", entries[0].Content)
	assert.Equal(t, "Refunds take five days.", entries[1].Content)
	for _, e := range entries {
		assert.Equal(t, []string{"faq", "billing"}, e.Tags)
		assert.Equal(t, []string{"support"}, e.Categories)
		require.NotNil(t, e.ValidTime)
		assert.Equal(t, int64(3600), *e.ValidTime)
	}
}

func TestLoad_MarkdownWithoutFrontMatter(t *testing.T) {
	entries, err := Load("plain.md", strings.NewReader("just text\n\n---\n\nafter rule"))
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "just text", entries[0].Content)
	assert.Empty(t, entries[0].Tags)
}

func TestLoad_MarkdownBadFrontMatter(t *testing.T) {
	_, err := Load("bad.md", strings.NewReader("---\ntags: [unclosed\n---\nbody"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "front matter")
}

func TestLoad_Unsupported(t *testing.T) {
	_, err := Load("sheet.xlsx", strings.NewReader("x"))
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
	assert.False(t, Supported("archive.zip"))
	assert.True(t, Supported("paper.PDF"))
}

func TestLoad_CorruptPDF(t *testing.T) {
	_, err := Load("broken.pdf", strings.NewReader("not a pdf at all"))
	assert.Error(t, err)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doc.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello world"), 0o600))

	entries, err := LoadFile(path)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "hello world", entries[0].Content)
	assert.Equal(t, "doc.txt", entries[0].Source)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.txt"))
	assert.Error(t, err)
}

func TestSplitBlock_Short(t *testing.T) {
	assert.Equal(t, []string{"short text"}, splitBlock("short text", 100, 10))
}

func TestSplitBlock_Words(t *testing.T) {
	text := strings.TrimSpace(strings.Repeat("alpha beta gamma delta ", 10))

	pieces := splitBlock(text, 40, 12)
	require.Greater(t, len(pieces), 1)
	for _, p := range pieces {
		assert.LessOrEqual(t, len([]rune(p)), 40)
		assert.NotEmpty(t, p)
		assert.False(t, strings.HasPrefix(p, " "))
	}
	assert.Equal(t, "alpha beta gamma delta alpha beta gamma", pieces[0])
	// The next piece repeats the trailing words that fit in the overlap.
	assert.True(t, strings.HasPrefix(pieces[1], "beta gamma delta"))
	assert.True(t, strings.HasSuffix(text, pieces[len(pieces)-1]))
}

func TestSplitBlock_LongToken(t *testing.T) {
	word := strings.Repeat("x", 25)

	pieces := splitBlock("lead "+word+" tail", 10, 3)
	require.NotEmpty(t, pieces)
	assert.Equal(t, "lead", pieces[0])
	assert.Equal(t, []string{"xxxxxxxxxx", "xxxxxxxxxx", "xxxxx"}, pieces[1:4])
	assert.Equal(t, "tail", pieces[len(pieces)-1])
}

func TestLoad_SplitsLongParagraph(t *testing.T) {
	text := strings.TrimSpace(strings.Repeat("the quarterly report covers revenue and costs ", 60))

	entries, err := Load("report.txt", strings.NewReader(text))
	require.NoError(t, err)
	require.Greater(t, len(entries), 1)
	for _, e := range entries {
		assert.LessOrEqual(t, len([]rune(e.Content)), maxEntryRunes)
	}
}
