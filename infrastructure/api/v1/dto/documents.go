// Package dto holds the request bodies accepted by the v1 API.
package dto

import (
	"time"

	"github.com/helixml/semandoc/application/service"
)

// DocumentRequest is the body of create and update requests.
type DocumentRequest struct {
	Content    string   `json:"content"`
	Tags       []string `json:"tags,omitempty"`
	Categories []string `json:"categories,omitempty"`
	// ValidTime is the validity window in seconds; null or -1 is forever.
	ValidTime *int64 `json:"valid_time,omitempty"`
}

// Input converts the request to a service input.
func (r DocumentRequest) Input() service.DocumentInput {
	return service.DocumentInput{
		Content:    r.Content,
		Tags:       r.Tags,
		Categories: r.Categories,
		ValidTime:  r.ValidTime,
	}
}

// BatchRequest is the body of a batch create.
type BatchRequest struct {
	Documents []DocumentRequest `json:"documents"`
}

// Inputs converts the batch to service inputs.
func (r BatchRequest) Inputs() []service.DocumentInput {
	out := make([]service.DocumentInput, len(r.Documents))
	for i, d := range r.Documents {
		out[i] = d.Input()
	}
	return out
}

// DeleteRequest is the body of a bulk delete.
type DeleteRequest struct {
	IDs []string `json:"ids"`
}

// SearchRequest is the body of a similarity search.
type SearchRequest struct {
	Query          string   `json:"query"`
	K              int      `json:"k,omitempty"`
	Tags           []string `json:"tags,omitempty"`
	Categories     []string `json:"categories,omitempty"`
	IDs            []string `json:"ids,omitempty"`
	ScoreThreshold *float64 `json:"score_threshold,omitempty"`
}

// Params converts the request to search parameters.
func (r SearchRequest) Params() service.SearchParams {
	return service.SearchParams{
		Query:          r.Query,
		K:              r.K,
		Tags:           r.Tags,
		Categories:     r.Categories,
		IDs:            r.IDs,
		ScoreThreshold: r.ScoreThreshold,
	}
}

// ImportAttributes mirrors the exported document attributes.
type ImportAttributes struct {
	Content    string     `json:"content"`
	Tags       []string   `json:"tags,omitempty"`
	Categories []string   `json:"categories,omitempty"`
	StartTime  *time.Time `json:"start_time,omitempty"`
	ValidTime  *int64     `json:"valid_time,omitempty"`
}

// ImportResource is one exported document.
type ImportResource struct {
	ID         string           `json:"id"`
	Attributes ImportAttributes `json:"attributes"`
}

// ImportRequest accepts the body returned by the export endpoint.
type ImportRequest struct {
	Data []ImportResource `json:"data"`
}

// Inputs converts the import to service inputs, keeping ids and start times.
func (r ImportRequest) Inputs() []service.DocumentInput {
	out := make([]service.DocumentInput, len(r.Data))
	for i, d := range r.Data {
		out[i] = service.DocumentInput{
			ID:         d.ID,
			Content:    d.Attributes.Content,
			Tags:       d.Attributes.Tags,
			Categories: d.Attributes.Categories,
			StartTime:  d.Attributes.StartTime,
			ValidTime:  d.Attributes.ValidTime,
		}
	}
	return out
}

// ChatRequest is the body of a chat request.
type ChatRequest struct {
	Query string   `json:"query"`
	Tags  []string `json:"tags,omitempty"`
}
