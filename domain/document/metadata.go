package document

import (
	"math"
	"slices"
	"time"

	"github.com/google/uuid"
)

// ValidForever is the validity duration of documents that never expire.
const ValidForever int64 = -1

// Metadata describes a document: its identity, labels, and validity window.
type Metadata struct {
	id         string
	tags       []string
	categories []string
	startTime  time.Time
	validTime  int64
}

// MetadataOption is a functional option for Metadata.
type MetadataOption func(*Metadata)

// WithID sets an explicit identifier instead of a generated one.
func WithID(id string) MetadataOption {
	return func(m *Metadata) { m.id = id }
}

// WithTags sets the tags.
func WithTags(tags ...string) MetadataOption {
	return func(m *Metadata) { m.tags = slices.Clone(tags) }
}

// WithCategories sets the categories.
func WithCategories(categories ...string) MetadataOption {
	return func(m *Metadata) { m.categories = slices.Clone(categories) }
}

// WithStartTime sets the start of the validity window.
func WithStartTime(t time.Time) MetadataOption {
	return func(m *Metadata) { m.startTime = t }
}

// WithValidTime sets the validity duration in seconds, or ValidForever.
func WithValidTime(seconds int64) MetadataOption {
	return func(m *Metadata) { m.validTime = seconds }
}

// NewMetadata creates Metadata. Without WithID a random UUID is assigned.
// The validity window starts now and never ends unless overridden.
func NewMetadata(opts ...MetadataOption) Metadata {
	m := Metadata{
		tags:       []string{},
		categories: []string{},
		startTime:  time.Now(),
		validTime:  ValidForever,
	}
	for _, opt := range opts {
		opt(&m)
	}
	if m.id == "" {
		m.id = NewID()
	}
	return m
}

// NewID returns a fresh document identifier.
func NewID() string {
	return uuid.NewString()
}

// ID returns the stable document identifier.
func (m Metadata) ID() string { return m.id }

// Tags returns a copy of the tags.
func (m Metadata) Tags() []string { return slices.Clone(m.tags) }

// Categories returns a copy of the categories.
func (m Metadata) Categories() []string { return slices.Clone(m.categories) }

// StartTime returns the start of the validity window.
func (m Metadata) StartTime() time.Time { return m.startTime }

// ValidTime returns the validity duration in seconds, or ValidForever.
func (m Metadata) ValidTime() int64 { return m.validTime }

// maxValidTime is the longest validity duration a time.Duration can hold.
// Longer windows never expire.
const maxValidTime = math.MaxInt64 / int64(time.Second)

// ExpiresAt returns when the document stops being valid. The second value is
// false for documents that never expire.
func (m Metadata) ExpiresAt() (time.Time, bool) {
	if m.validTime == ValidForever || m.validTime > maxValidTime {
		return time.Time{}, false
	}
	return m.startTime.Add(time.Duration(m.validTime) * time.Second), true
}

// IsValid reports whether the document is inside its validity window at now.
func (m Metadata) IsValid(now time.Time) bool {
	expires, ok := m.ExpiresAt()
	if !ok {
		return true
	}
	return !now.After(expires)
}

// HasTag reports whether the metadata carries the tag.
func (m Metadata) HasTag(tag string) bool {
	return slices.Contains(m.tags, tag)
}

// HasCategory reports whether the metadata carries the category.
func (m Metadata) HasCategory(category string) bool {
	return slices.Contains(m.categories, category)
}

// WithID returns a copy of the metadata carrying id.
func (m Metadata) WithID(id string) Metadata {
	m.tags = slices.Clone(m.tags)
	m.categories = slices.Clone(m.categories)
	m.id = id
	return m
}
