package v1

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/helixml/semandoc/application/service"
	"github.com/helixml/semandoc/domain/document"
	"github.com/helixml/semandoc/infrastructure/api/jsonapi"
)

// MaxPageSize is the largest accepted limit.
const MaxPageSize = 1000

// ParseListParams reads skip, limit, tag and category from the query
// string. Defaults: skip=0, limit=100.
func ParseListParams(r *http.Request) (service.ListParams, error) {
	q := r.URL.Query()
	params := service.ListParams{
		Limit:    service.DefaultListLimit,
		Tag:      q.Get("tag"),
		Category: q.Get("category"),
	}

	if s := q.Get("skip"); s != "" {
		skip, err := strconv.Atoi(s)
		if err != nil || skip < 0 {
			return service.ListParams{}, fmt.Errorf("%w: skip must be a non-negative integer", document.ErrValidation)
		}
		params.Skip = skip
	}
	if s := q.Get("limit"); s != "" {
		limit, err := strconv.Atoi(s)
		if err != nil || limit < 1 {
			return service.ListParams{}, fmt.Errorf("%w: limit must be a positive integer", document.ErrValidation)
		}
		params.Limit = min(limit, MaxPageSize)
	}
	return params, nil
}

// PaginationMeta describes the page within the total.
func PaginationMeta(params service.ListParams, total int) jsonapi.Meta {
	return jsonapi.Meta{
		"skip":  params.Skip,
		"limit": params.Limit,
		"total": total,
	}
}

// PaginationLinks builds self, prev and next links keeping other query
// parameters.
func PaginationLinks(r *http.Request, params service.ListParams, total int) *jsonapi.Links {
	build := func(skip int) string {
		q := r.URL.Query()
		q.Set("skip", strconv.Itoa(skip))
		q.Set("limit", strconv.Itoa(params.Limit))
		return fmt.Sprintf("%s?%s", r.URL.Path, q.Encode())
	}

	links := jsonapi.Links{Self: build(params.Skip)}
	if params.Skip > 0 {
		links.Prev = build(max(0, params.Skip-params.Limit))
	}
	if params.Skip+params.Limit < total {
		links.Next = build(params.Skip + params.Limit)
	}
	return &links
}
