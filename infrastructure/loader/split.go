package loader

import (
	"strings"
	"unicode/utf8"
)

// Blocks longer than maxEntryRunes are split into windows that share
// entryOverlapRunes of trailing context with the previous window.
const (
	maxEntryRunes     = 1500
	entryOverlapRunes = 200
)

// splitBlock breaks text into pieces of at most size runes. Lines are kept
// whole where they fit, then words, then runes. Consecutive pieces overlap
// by up to overlap runes of whole words.
func splitBlock(text string, size, overlap int) []string {
	if utf8.RuneCountInString(text) <= size {
		return []string{text}
	}

	var (
		pieces []string
		cur    []string
		runes  int
		fresh  bool
	)
	emit := func() {
		if piece := strings.TrimSpace(strings.Join(cur, "")); fresh && piece != "" {
			pieces = append(pieces, piece)
		}
		cur, runes = carry(cur, overlap)
		fresh = false
	}

	for _, word := range tokens(text) {
		n := utf8.RuneCountInString(word)
		if n > size {
			emit()
			cur, runes = nil, 0
			pieces = append(pieces, splitRunes(strings.TrimSpace(word), size)...)
			continue
		}
		if runes+n > size {
			emit()
			if runes+n > size {
				cur, runes = nil, 0
			}
		}
		cur = append(cur, word)
		runes += n
		fresh = true
	}
	emit()
	return pieces
}

// tokens splits text after each run of whitespace so joining the tokens
// restores the input.
func tokens(text string) []string {
	var out []string
	start := 0
	inSpace := false
	for i, r := range text {
		space := r == ' ' || r == '\n' || r == '\t'
		if inSpace && !space {
			out = append(out, text[start:i])
			start = i
		}
		inSpace = space
	}
	return append(out, text[start:])
}

// carry returns the trailing tokens of cur that fit within overlap runes.
func carry(cur []string, overlap int) ([]string, int) {
	total := 0
	start := len(cur)
	for i := len(cur) - 1; i >= 0; i-- {
		n := utf8.RuneCountInString(cur[i])
		if total+n > overlap {
			break
		}
		total += n
		start = i
	}
	return append([]string(nil), cur[start:]...), total
}

func splitRunes(word string, size int) []string {
	r := []rune(word)
	var out []string
	for len(r) > size {
		out = append(out, string(r[:size]))
		r = r[size:]
	}
	if len(r) > 0 {
		out = append(out, string(r))
	}
	return out
}
