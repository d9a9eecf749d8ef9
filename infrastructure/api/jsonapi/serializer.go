package jsonapi

import (
	"strconv"

	"github.com/helixml/semandoc/domain/audit"
	"github.com/helixml/semandoc/domain/document"
	"github.com/helixml/semandoc/infrastructure/vectorstore"
)

// Resource types.
const (
	TypeDocument    = "document"
	TypeAuditRecord = "audit_record"
	TypeStats       = "stats"
	TypeAnswer      = "answer"
)

// DocumentAttributes is the wire form of a document.
type DocumentAttributes struct {
	Content    string    `json:"content"`
	Tags       []string  `json:"tags"`
	Categories []string  `json:"categories"`
	StartTime  DateTime  `json:"start_time"`
	ValidTime  int64     `json:"valid_time"`
	ExpiresAt  *DateTime `json:"expires_at,omitempty"`
}

// AuditRecordAttributes is the wire form of an audit record.
type AuditRecordAttributes struct {
	Action     string   `json:"action"`
	DocumentID string   `json:"document_id,omitempty"`
	Detail     string   `json:"detail,omitempty"`
	CreatedAt  DateTime `json:"created_at"`
}

// StatsAttributes is the wire form of document.Stats.
type StatsAttributes struct {
	Total                int            `json:"total"`
	Tags                 []string       `json:"tags"`
	Categories           []string       `json:"categories"`
	DocumentsPerTag      map[string]int `json:"documents_per_tag"`
	DocumentsPerCategory map[string]int `json:"documents_per_category"`
}

// AnswerAttributes is the wire form of a chat answer.
type AnswerAttributes struct {
	Content string      `json:"content"`
	Found   bool        `json:"found"`
	Sources []*Resource `json:"sources"`
}

// Serializer converts domain values to resources.
type Serializer struct{}

// NewSerializer creates a Serializer.
func NewSerializer() Serializer {
	return Serializer{}
}

// DocumentResource serializes a document.
func (Serializer) DocumentResource(d document.Document) *Resource {
	m := d.Metadata()
	attrs := DocumentAttributes{
		Content:    d.Content(),
		Tags:       nonNil(m.Tags()),
		Categories: nonNil(m.Categories()),
		StartTime:  DateTime(m.StartTime()),
		ValidTime:  m.ValidTime(),
	}
	if expires, ok := m.ExpiresAt(); ok {
		dt := DateTime(expires)
		attrs.ExpiresAt = &dt
	}
	return NewResource(TypeDocument, d.ID(), attrs)
}

// DocumentResources serializes documents.
func (s Serializer) DocumentResources(docs []document.Document) []*Resource {
	out := make([]*Resource, len(docs))
	for i, d := range docs {
		out[i] = s.DocumentResource(d)
	}
	return out
}

// SearchResources serializes search results, with the distance as
// resource meta.
func (s Serializer) SearchResources(results []vectorstore.Result) []*Resource {
	out := make([]*Resource, len(results))
	for i, r := range results {
		out[i] = s.DocumentResource(r.Document()).WithMeta("distance", r.Distance())
	}
	return out
}

// AuditRecordResources serializes audit records.
func (Serializer) AuditRecordResources(records []audit.Record) []*Resource {
	out := make([]*Resource, len(records))
	for i, r := range records {
		out[i] = NewResource(TypeAuditRecord, strconv.FormatInt(r.ID(), 10), AuditRecordAttributes{
			Action:     string(r.Action()),
			DocumentID: r.DocumentID(),
			Detail:     r.Detail(),
			CreatedAt:  DateTime(r.CreatedAt()),
		})
	}
	return out
}

// StatsResource serializes store statistics.
func (Serializer) StatsResource(s document.Stats) *Resource {
	return NewResource(TypeStats, "documents", StatsAttributes{
		Total:                s.Total(),
		Tags:                 nonNil(s.UniqueTags()),
		Categories:           nonNil(s.UniqueCategories()),
		DocumentsPerTag:      s.DocumentsPerTag(),
		DocumentsPerCategory: s.DocumentsPerCategory(),
	})
}

// AnswerResource serializes a chat answer.
func (s Serializer) AnswerResource(content string, found bool, sources []document.Document) *Resource {
	return NewResource(TypeAnswer, "", AnswerAttributes{
		Content: content,
		Found:   found,
		Sources: s.DocumentResources(sources),
	})
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
