// Package jsonapi provides the JSON:API envelope used by API responses.
// See https://jsonapi.org/format/.
package jsonapi

import (
	"encoding/json"
	"time"
)

// Document is a top-level response document.
type Document struct {
	Data   any     `json:"data,omitempty"`
	Meta   Meta    `json:"meta,omitempty"`
	Links  *Links  `json:"links,omitempty"`
	Errors []Error `json:"errors,omitempty"`
}

// Meta holds non-standard information about a document or resource.
type Meta map[string]any

// Links holds pagination links.
type Links struct {
	Self string `json:"self,omitempty"`
	Prev string `json:"prev,omitempty"`
	Next string `json:"next,omitempty"`
}

// Resource is a resource object.
type Resource struct {
	Type       string `json:"type"`
	ID         string `json:"id"`
	Attributes any    `json:"attributes"`
	Meta       Meta   `json:"meta,omitempty"`
}

// Error is an error object.
type Error struct {
	ID     string `json:"id,omitempty"`
	Status string `json:"status,omitempty"`
	Title  string `json:"title,omitempty"`
	Detail string `json:"detail,omitempty"`
}

// NewResource creates a resource.
func NewResource(resourceType, id string, attrs any) *Resource {
	return &Resource{Type: resourceType, ID: id, Attributes: attrs}
}

// WithMeta returns the resource with a meta entry added.
func (r *Resource) WithMeta(key string, value any) *Resource {
	if r.Meta == nil {
		r.Meta = Meta{}
	}
	r.Meta[key] = value
	return r
}

// NewSingleResponse wraps one resource.
func NewSingleResponse(resource *Resource) *Document {
	return &Document{Data: resource}
}

// NewListResponse wraps a list of resources. A nil list encodes as [].
func NewListResponse(resources []*Resource) *Document {
	if resources == nil {
		resources = []*Resource{}
	}
	return &Document{Data: resources}
}

// WithMeta returns the document with a meta entry added.
func (d *Document) WithMeta(key string, value any) *Document {
	if d.Meta == nil {
		d.Meta = Meta{}
	}
	d.Meta[key] = value
	return d
}

// NewErrorResponse wraps errors.
func NewErrorResponse(errors ...Error) *Document {
	return &Document{Errors: errors}
}

// NewError creates an error with status, title and detail.
func NewError(status, title, detail string) Error {
	return Error{Status: status, Title: title, Detail: detail}
}

// DateTime encodes a time as RFC 3339 and the zero time as null.
type DateTime time.Time

// MarshalJSON implements json.Marshaler.
func (dt DateTime) MarshalJSON() ([]byte, error) {
	t := time.Time(dt)
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.UTC().Format(time.RFC3339Nano))
}

// UnmarshalJSON implements json.Unmarshaler.
func (dt *DateTime) UnmarshalJSON(data []byte) error {
	var s *string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == nil {
		*dt = DateTime{}
		return nil
	}
	t, err := time.Parse(time.RFC3339Nano, *s)
	if err != nil {
		return err
	}
	*dt = DateTime(t)
	return nil
}

// Time returns the underlying time.
func (dt DateTime) Time() time.Time { return time.Time(dt) }
