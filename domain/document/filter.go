package document

import "slices"

// Filter selects documents by metadata. Present criteria are ANDed; within
// Tags and within Categories a single overlap is enough.
type Filter struct {
	ids        []string
	tags       []string
	categories []string
	custom     func(Metadata) bool
}

// FilterOption is a functional option for Filter.
type FilterOption func(*Filter)

// WithIDIn keeps documents whose id is one of ids.
func WithIDIn(ids ...string) FilterOption {
	return func(f *Filter) { f.ids = slices.Clone(ids) }
}

// WithAnyTag keeps documents carrying at least one of tags.
func WithAnyTag(tags ...string) FilterOption {
	return func(f *Filter) { f.tags = slices.Clone(tags) }
}

// WithAnyCategory keeps documents carrying at least one of categories.
func WithAnyCategory(categories ...string) FilterOption {
	return func(f *Filter) { f.categories = slices.Clone(categories) }
}

// WithPredicate keeps documents for which fn returns true.
func WithPredicate(fn func(Metadata) bool) FilterOption {
	return func(f *Filter) { f.custom = fn }
}

// NewFilter creates a Filter.
func NewFilter(opts ...FilterOption) Filter {
	var f Filter
	for _, opt := range opts {
		opt(&f)
	}
	return f
}

// IDs returns the id criterion.
func (f Filter) IDs() []string { return slices.Clone(f.ids) }

// Tags returns the tag criterion.
func (f Filter) Tags() []string { return slices.Clone(f.tags) }

// Categories returns the category criterion.
func (f Filter) Categories() []string { return slices.Clone(f.categories) }

// IsEmpty reports whether the filter has no criteria.
func (f Filter) IsEmpty() bool {
	return f.ids == nil && len(f.tags) == 0 && len(f.categories) == 0 && f.custom == nil
}

// Match reports whether m satisfies every present criterion.
func (f Filter) Match(m Metadata) bool {
	if f.ids != nil && !slices.Contains(f.ids, m.id) {
		return false
	}
	if len(f.tags) > 0 && !slices.ContainsFunc(f.tags, m.HasTag) {
		return false
	}
	if len(f.categories) > 0 && !slices.ContainsFunc(f.categories, m.HasCategory) {
		return false
	}
	if f.custom != nil && !f.custom(m) {
		return false
	}
	return true
}
