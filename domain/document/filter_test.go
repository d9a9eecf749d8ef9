package document

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFilter_Match(t *testing.T) {
	a := NewMetadata(WithID("1"), WithTags("a"))
	b := NewMetadata(WithID("2"), WithTags("b"))
	ab := NewMetadata(WithID("3"), WithTags("a", "b"), WithCategories("x"))

	tests := []struct {
		name   string
		filter Filter
		want   []bool
	}{
		{"empty filter matches all", NewFilter(), []bool{true, true, true}},
		{"tags are ORed", NewFilter(WithAnyTag("a", "b")), []bool{true, true, true}},
		{"single tag", NewFilter(WithAnyTag("b")), []bool{false, true, true}},
		{"tags and categories are ANDed", NewFilter(WithAnyTag("a"), WithAnyCategory("missing")), []bool{false, false, false}},
		{"category present", NewFilter(WithAnyTag("a"), WithAnyCategory("x")), []bool{false, false, true}},
		{"ids", NewFilter(WithIDIn("1", "2")), []bool{true, true, false}},
		{"predicate", NewFilter(WithPredicate(func(m Metadata) bool { return m.ID() != "2" })), []bool{true, false, true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := []bool{tt.filter.Match(a), tt.filter.Match(b), tt.filter.Match(ab)}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFilter_IsEmpty(t *testing.T) {
	assert.True(t, NewFilter().IsEmpty())
	assert.True(t, NewFilter(WithAnyTag()).IsEmpty())
	assert.False(t, NewFilter(WithAnyCategory("x")).IsEmpty())
}
