// Package document provides the document domain types of the semantic store:
// documents, their metadata, and metadata filters.
package document

import (
	"strings"
)

// Document is a piece of text with its metadata. Documents are immutable;
// updates replace the whole document.
type Document struct {
	content  string
	metadata Metadata
}

// NewDocument creates a Document. Content must contain non-whitespace text.
func NewDocument(content string, metadata Metadata) (Document, error) {
	if strings.TrimSpace(content) == "" {
		return Document{}, ErrEmptyContent
	}
	return Document{content: content, metadata: metadata}, nil
}

// Content returns the document text.
func (d Document) Content() string { return d.content }

// Metadata returns the document metadata.
func (d Document) Metadata() Metadata { return d.metadata }

// ID returns the document identifier.
func (d Document) ID() string { return d.metadata.id }

// WithID returns a copy of the document carrying id.
func (d Document) WithID(id string) Document {
	d.metadata = d.metadata.WithID(id)
	return d
}

// WithMetadata returns a copy of the document with new metadata.
func (d Document) WithMetadata(m Metadata) Document {
	d.metadata = m
	return d
}

// Contents returns the text of each document in order.
func Contents(docs []Document) []string {
	texts := make([]string, len(docs))
	for i, d := range docs {
		texts[i] = d.content
	}
	return texts
}

// IDs returns the identifier of each document in order.
func IDs(docs []Document) []string {
	ids := make([]string, len(docs))
	for i, d := range docs {
		ids[i] = d.ID()
	}
	return ids
}
