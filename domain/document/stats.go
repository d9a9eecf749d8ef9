package document

import (
	"maps"
	"slices"
)

// Stats summarizes a set of documents by tag and category.
type Stats struct {
	total                int
	documentsPerTag      map[string]int
	documentsPerCategory map[string]int
}

// ComputeStats counts documents per tag and per category. A document listing
// the same tag twice counts once for it.
func ComputeStats(docs []Document) Stats {
	s := Stats{
		total:                len(docs),
		documentsPerTag:      map[string]int{},
		documentsPerCategory: map[string]int{},
	}
	for _, d := range docs {
		for _, tag := range unique(d.metadata.tags) {
			s.documentsPerTag[tag]++
		}
		for _, cat := range unique(d.metadata.categories) {
			s.documentsPerCategory[cat]++
		}
	}
	return s
}

func unique(values []string) []string {
	out := slices.Clone(values)
	slices.Sort(out)
	return slices.Compact(out)
}

// Total returns the number of documents.
func (s Stats) Total() int { return s.total }

// UniqueTags returns the sorted distinct tags.
func (s Stats) UniqueTags() []string {
	return slices.Sorted(maps.Keys(s.documentsPerTag))
}

// UniqueCategories returns the sorted distinct categories.
func (s Stats) UniqueCategories() []string {
	return slices.Sorted(maps.Keys(s.documentsPerCategory))
}

// DocumentsPerTag returns the document count for each tag.
func (s Stats) DocumentsPerTag() map[string]int { return maps.Clone(s.documentsPerTag) }

// DocumentsPerCategory returns the document count for each category.
func (s Stats) DocumentsPerCategory() map[string]int { return maps.Clone(s.documentsPerCategory) }
