package loader

import (
	"fmt"
	"io"
	"strings"

	"github.com/ledongthuc/pdf"
)

// loadPDF returns one entry per page with extractable text, splitting
// long pages.
func loadPDF(r io.ReaderAt, size int64) ([]Entry, error) {
	reader, err := pdf.NewReader(r, size)
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}

	var entries []Entry
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		for _, piece := range splitBlock(text, maxEntryRunes, entryOverlapRunes) {
			entries = append(entries, Entry{Content: piece})
		}
	}
	return entries, nil
}
