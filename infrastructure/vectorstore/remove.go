package vectorstore

import (
	"context"
	"fmt"
	"log/slog"
	"maps"

	"github.com/helixml/semandoc/domain/document"
)

// RemoveResult describes a removal. For a reset, Reset is true, Documents is
// empty and Removed equals Total.
type RemoveResult struct {
	Documents []document.Document
	Removed   int
	Total     int
	Reset     bool
}

// RemoveDocumentsByID removes the documents stored under ids. A nil slice
// removes everything. Ids repeated in the request are rejected; ids that are
// not stored are skipped. Surviving documents are renumbered densely in
// their original order.
func (s *Store) RemoveDocumentsByID(ctx context.Context, ids []string) (RemoveResult, error) {
	if ids == nil {
		return s.Reset(ctx)
	}
	if err := ctx.Err(); err != nil {
		return RemoveResult{}, err
	}

	targets := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := targets[id]; dup {
			return RemoveResult{}, fmt.Errorf("%w: %s", document.ErrDuplicateID, id)
		}
		targets[id] = struct{}{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cur := s.state.Load()
	next, removed, err := cur.without(targets)
	if err != nil {
		return RemoveResult{}, err
	}
	if len(removed) > 0 {
		if err := s.publish(next); err != nil {
			return RemoveResult{}, err
		}
		s.logger.Info("documents removed",
			slog.Int("removed", len(removed)),
			slog.Int("count", next.count()),
		)
	}

	return RemoveResult{
		Documents: removed,
		Removed:   len(removed),
		Total:     cur.count(),
	}, nil
}

// DeleteDocumentsByIDs removes the documents with the given ids. Unlike
// RemoveDocumentsByID, an empty or nil request is an error.
func (s *Store) DeleteDocumentsByIDs(ctx context.Context, ids []string) (RemoveResult, error) {
	if len(ids) == 0 {
		return RemoveResult{}, document.ErrEmptyTargets
	}
	return s.RemoveDocumentsByID(ctx, ids)
}

// Reset removes every document.
func (s *Store) Reset(ctx context.Context) (RemoveResult, error) {
	if err := ctx.Err(); err != nil {
		return RemoveResult{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	total := s.state.Load().count()
	if err := s.publish(emptySnapshot(s.dim)); err != nil {
		return RemoveResult{}, err
	}

	s.logger.Info("vector store reset", slog.Int("removed", total))
	return RemoveResult{
		Documents: []document.Document{},
		Removed:   total,
		Total:     total,
		Reset:     true,
	}, nil
}

// without returns a new snapshot lacking the target ids, and the removed
// documents in position order.
func (sn *snapshot) without(targets map[string]struct{}) (*snapshot, []document.Document, error) {
	var drop []int
	removed := []document.Document{}
	for pos, id := range sn.positions {
		if _, ok := targets[id]; !ok {
			continue
		}
		doc, ok := sn.docs[id]
		if !ok {
			return nil, nil, fmt.Errorf("%w: position %d maps to unknown document %s", document.ErrInvariant, pos, id)
		}
		drop = append(drop, pos)
		removed = append(removed, doc)
	}
	if len(drop) == 0 {
		return sn, removed, nil
	}

	idx := sn.index.Fork()
	if _, err := idx.Remove(drop); err != nil {
		return nil, nil, fmt.Errorf("remove from index: %w", err)
	}

	positions := make([]string, 0, len(sn.positions)-len(drop))
	docs := maps.Clone(sn.docs)
	for _, id := range sn.positions {
		if _, ok := targets[id]; ok {
			delete(docs, id)
			continue
		}
		positions = append(positions, id)
	}

	return &snapshot{index: idx, positions: positions, docs: docs}, removed, nil
}
