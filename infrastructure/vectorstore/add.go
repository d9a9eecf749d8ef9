package vectorstore

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/helixml/semandoc/domain/document"
)

// AddOption configures AddDocuments.
type AddOption func(*addConfig)

type addConfig struct {
	ids          []string
	threshold    float64
	hasThreshold bool
}

// WithIDs assigns explicit identifiers, one per document.
func WithIDs(ids ...string) AddOption {
	return func(c *addConfig) {
		if ids == nil {
			ids = []string{}
		}
		c.ids = ids
	}
}

// WithThreshold overrides the duplicate cosine threshold for one call.
func WithThreshold(threshold float64) AddOption {
	return func(c *addConfig) {
		c.threshold = threshold
		c.hasThreshold = true
	}
}

// AddDocuments embeds docs in one pass and inserts every document that is
// not a near duplicate of a stored one. A document is a duplicate when its
// cosine similarity to either of its two nearest neighbors exceeds the
// threshold; documents inserted earlier in the same call count as stored.
//
// It returns the inserted documents in input order with their ids assigned.
// An empty result means every document was a duplicate. Validation errors
// leave the store untouched.
func (s *Store) AddDocuments(ctx context.Context, docs []document.Document, opts ...AddOption) ([]document.Document, error) {
	cfg := addConfig{threshold: s.threshold}
	for _, opt := range opts {
		opt(&cfg)
	}

	if cfg.ids != nil && len(cfg.ids) != len(docs) {
		return nil, fmt.Errorf("%w: %d ids for %d documents", document.ErrLengthMismatch, len(cfg.ids), len(docs))
	}
	if len(docs) == 0 {
		return []document.Document{}, nil
	}

	prepared := make([]document.Document, len(docs))
	seen := make(map[string]struct{}, len(docs))
	for i, doc := range docs {
		id := doc.ID()
		if cfg.ids != nil && cfg.ids[i] != "" {
			id = cfg.ids[i]
		}
		if id == "" {
			id = document.NewID()
		}
		if _, dup := seen[id]; dup {
			return nil, fmt.Errorf("%w: %s", document.ErrDuplicateID, id)
		}
		seen[id] = struct{}{}
		prepared[i] = doc.WithID(id)
	}
	if err := s.checkNew(s.state.Load(), prepared); err != nil {
		return nil, err
	}

	vectors, err := s.embed(ctx, document.Contents(prepared))
	if err != nil {
		return nil, fmt.Errorf("add documents: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cur := s.state.Load()
	if err := s.checkNew(cur, prepared); err != nil {
		return nil, err
	}

	next := cur.fork()
	inserted := make([]document.Document, 0, len(prepared))
	for i, doc := range prepared {
		dup, err := next.isDuplicate(vectors[i], cfg.threshold)
		if err != nil {
			return nil, fmt.Errorf("duplicate check: %w", err)
		}
		if dup {
			s.logger.Debug("skipping duplicate document", slog.String("document_id", doc.ID()))
			continue
		}
		if err := next.insert(doc, vectors[i]); err != nil {
			return nil, fmt.Errorf("insert document: %w", err)
		}
		inserted = append(inserted, doc)
	}

	if len(inserted) > 0 {
		if err := s.publish(next); err != nil {
			return nil, err
		}
	}

	s.logger.Info("documents added",
		slog.Int("inserted", len(inserted)),
		slog.Int("skipped", len(prepared)-len(inserted)),
		slog.Int("count", next.count()),
	)
	return inserted, nil
}

func (s *Store) checkNew(snap *snapshot, docs []document.Document) error {
	for _, doc := range docs {
		if _, ok := snap.docs[doc.ID()]; ok {
			return fmt.Errorf("%w: %s", document.ErrIDExists, doc.ID())
		}
	}
	return nil
}

// ReplaceDocument swaps the document stored under id for doc, keeping id.
// The replacement is checked for duplicates against every other document;
// when it is a duplicate the stored document is left in place and
// document.ErrDuplicate is returned.
func (s *Store) ReplaceDocument(ctx context.Context, id string, doc document.Document) (document.Document, error) {
	if _, err := s.Get(id); err != nil {
		return document.Document{}, err
	}
	doc = doc.WithID(id)

	vectors, err := s.embed(ctx, []string{doc.Content()})
	if err != nil {
		return document.Document{}, fmt.Errorf("replace document: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cur := s.state.Load()
	if _, ok := cur.docs[id]; !ok {
		return document.Document{}, fmt.Errorf("%w: %s", document.ErrNotFound, id)
	}

	next, _, err := cur.without(map[string]struct{}{id: {}})
	if err != nil {
		return document.Document{}, err
	}
	dup, err := next.isDuplicate(vectors[0], s.threshold)
	if err != nil {
		return document.Document{}, fmt.Errorf("duplicate check: %w", err)
	}
	if dup {
		return document.Document{}, fmt.Errorf("%w: %s", document.ErrDuplicate, id)
	}
	if err := next.insert(doc, vectors[0]); err != nil {
		return document.Document{}, fmt.Errorf("insert document: %w", err)
	}
	if err := s.publish(next); err != nil {
		return document.Document{}, err
	}

	s.logger.Info("document replaced", slog.String("document_id", id))
	return doc, nil
}
