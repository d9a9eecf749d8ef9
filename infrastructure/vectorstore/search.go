package vectorstore

import (
	"context"
	"fmt"

	"github.com/helixml/semandoc/domain/document"
	"github.com/helixml/semandoc/infrastructure/index"
)

// Result is a search hit: a document and its squared L2 distance to the
// query. Smaller distances are more similar.
type Result struct {
	document document.Document
	distance float32
}

// Document returns the matched document.
func (r Result) Document() document.Document { return r.document }

// Distance returns the squared L2 distance to the query.
func (r Result) Distance() float32 { return r.distance }

// SearchOption configures Search.
type SearchOption func(*searchConfig)

type searchConfig struct {
	k            int
	filter       document.Filter
	hasThreshold bool
	threshold    float64
}

// WithK sets the maximum number of results.
func WithK(k int) SearchOption {
	return func(c *searchConfig) { c.k = k }
}

// WithFilter keeps only documents whose metadata matches f.
func WithFilter(f document.Filter) SearchOption {
	return func(c *searchConfig) { c.filter = f }
}

// WithScoreThreshold keeps only results at most threshold away from the
// query. It is a maximum distance, not a minimum similarity.
func WithScoreThreshold(threshold float64) SearchOption {
	return func(c *searchConfig) {
		c.threshold = threshold
		c.hasThreshold = true
	}
}

// Search returns up to k valid documents nearest to query in ascending
// distance order. The candidate pool is min(k, count), widened to
// min(4k, count, 100) when a filter is set. No results is not an error.
func (s *Store) Search(ctx context.Context, query string, opts ...SearchOption) ([]Result, error) {
	cfg := searchConfig{k: DefaultK}
	for _, opt := range opts {
		opt(&cfg)
	}

	snap := s.state.Load()
	count := snap.count()
	if count == 0 {
		return []Result{}, nil
	}

	filtered := !cfg.filter.IsEmpty()
	fetchK := min(cfg.k, count)
	if filtered {
		fetchK = min(cfg.k*filterWidening, count, maxFetchK)
	}
	if fetchK <= 0 {
		return []Result{}, nil
	}

	vectors, err := s.embed(ctx, []string{s.queryPrefix + query})
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}

	hits, err := snap.index.Search(vectors[0], fetchK)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}

	now := s.now()
	results := make([]Result, 0, min(cfg.k, len(hits)))
	for _, h := range hits {
		if h.Position == index.Absent {
			continue
		}
		if h.Position >= len(snap.positions) {
			return nil, fmt.Errorf("%w: position %d beyond position map", document.ErrInvariant, h.Position)
		}
		id := snap.positions[h.Position]
		doc, ok := snap.docs[id]
		if !ok {
			return nil, fmt.Errorf("%w: position %d maps to unknown document %s", document.ErrInvariant, h.Position, id)
		}
		if cfg.hasThreshold && float64(h.Distance) > cfg.threshold {
			continue
		}
		if !doc.Metadata().IsValid(now) {
			continue
		}
		if filtered && !cfg.filter.Match(doc.Metadata()) {
			continue
		}
		results = append(results, Result{document: doc, distance: h.Distance})
		if len(results) == cfg.k {
			break
		}
	}
	return results, nil
}

// SearchDocuments is Search returning only the documents.
func (s *Store) SearchDocuments(ctx context.Context, query string, opts ...SearchOption) ([]document.Document, error) {
	results, err := s.Search(ctx, query, opts...)
	if err != nil {
		return nil, err
	}
	docs := make([]document.Document, len(results))
	for i, r := range results {
		docs[i] = r.document
	}
	return docs, nil
}
