// Package loader turns text, markdown and PDF files into document inputs.
package loader

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// ErrUnsupportedFormat indicates a file extension with no loader.
var ErrUnsupportedFormat = errors.New("unsupported file format")

// maxFileSize caps how much of one file is read.
const maxFileSize = 64 << 20

// Entry is one document worth of content extracted from a file.
type Entry struct {
	Content    string
	Tags       []string
	Categories []string
	// ValidTime is nil when the file does not set one.
	ValidTime *int64
	Source    string
}

// Supported reports whether name has an extension a loader exists for.
func Supported(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".txt", ".text", ".md", ".markdown", ".pdf":
		return true
	}
	return false
}

// LoadFile reads the file at path.
func LoadFile(path string) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()
	return Load(filepath.Base(path), f)
}

// Load extracts entries from r, choosing the format by the extension of name.
func Load(name string, r io.Reader) ([]Entry, error) {
	if !Supported(name) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, name)
	}

	data, err := io.ReadAll(io.LimitReader(r, maxFileSize+1))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	if len(data) > maxFileSize {
		return nil, fmt.Errorf("read %s: file exceeds %d bytes", name, maxFileSize)
	}

	var entries []Entry
	switch strings.ToLower(filepath.Ext(name)) {
	case ".md", ".markdown":
		entries, err = loadMarkdown(data)
	case ".pdf":
		entries, err = loadPDF(bytes.NewReader(data), int64(len(data)))
	default:
		entries = paragraphs(string(data), Entry{})
	}
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", name, err)
	}

	for i := range entries {
		entries[i].Source = name
	}
	return entries, nil
}

// paragraphs splits text on blank lines, copying metadata from tmpl. Long
// paragraphs are split further.
func paragraphs(text string, tmpl Entry) []Entry {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	var entries []Entry
	for _, block := range strings.Split(text, "\n\n") {
		block = strings.TrimSpace(block)
		if block == "" {
			continue
		}
		for _, piece := range splitBlock(block, maxEntryRunes, entryOverlapRunes) {
			e := tmpl
			e.Content = piece
			entries = append(entries, e)
		}
	}
	return entries
}
