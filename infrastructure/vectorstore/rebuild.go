package vectorstore

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/helixml/semandoc/infrastructure/index"
)

// RebuildIndex re-embeds every stored document and swaps in a fresh index
// built from the new vectors. Documents keep their positions. Embedding runs
// without the store lock, so writers proceed meanwhile; the lock is taken
// only to fold in their changes and swap the snapshot. Searches keep reading
// the previous snapshot until then.
func (s *Store) RebuildIndex(ctx context.Context) error {
	_, err := s.rebuild(ctx)
	return err
}

type span struct{ start, end int }

// partition splits n items into at most parts contiguous spans of near
// equal size.
func partition(n, parts int) []span {
	if n == 0 {
		return nil
	}
	parts = max(1, min(parts, n))
	size := n / parts
	extra := n % parts
	spans := make([]span, 0, parts)
	start := 0
	for i := range parts {
		end := start + size
		if i < extra {
			end++
		}
		spans = append(spans, span{start: start, end: end})
		start = end
	}
	return spans
}

// rebuild re-embeds the current snapshot outside the lock, then publishes
// an index for whatever state is current by the time the lock is held.
// Documents added or replaced during the fan-out are embedded under the lock;
// only that delta is. It returns the published snapshot.
func (s *Store) rebuild(ctx context.Context) (*snapshot, error) {
	start := time.Now()
	base := s.state.Load()

	fresh, workers, err := s.reembed(ctx, base)
	if err != nil {
		return nil, fmt.Errorf("rebuild index: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cur := s.state.Load()
	vectors := make([][]float32, cur.count())
	var missing []int
	for pos, id := range cur.positions {
		v, ok := fresh[id]
		if ok && base.docs[id].Content() == cur.docs[id].Content() {
			vectors[pos] = v
			continue
		}
		missing = append(missing, pos)
	}
	if len(missing) > 0 {
		texts := make([]string, len(missing))
		for i, pos := range missing {
			texts[i] = cur.docs[cur.positions[pos]].Content()
		}
		vecs, err := s.embed(ctx, texts)
		if err != nil {
			return nil, fmt.Errorf("rebuild index: %w", err)
		}
		for i, pos := range missing {
			vectors[pos] = vecs[i]
		}
	}

	idx := index.NewFlatL2(s.dim)
	if err := idx.Add(vectors...); err != nil {
		return nil, fmt.Errorf("rebuild index: %w", err)
	}

	next := &snapshot{
		index:     idx,
		positions: slices.Clone(cur.positions),
		docs:      cur.docs,
	}
	if err := s.publish(next); err != nil {
		return nil, err
	}

	s.logger.Info("index rebuilt",
		slog.Int("count", next.count()),
		slog.Int("workers", workers),
		slog.Int("changed_during_rebuild", len(missing)),
		slog.Duration("duration", time.Since(start)),
	)
	return next, nil
}

// reembed embeds every document of snap across parallel spans and returns
// the vectors keyed by document id.
func (s *Store) reembed(ctx context.Context, snap *snapshot) (map[string][]float32, int, error) {
	n := snap.count()
	texts := make([]string, n)
	for i, id := range snap.positions {
		texts[i] = snap.docs[id].Content()
	}

	spans := partition(n, s.parallelism)
	results := make([][][]float32, len(spans))

	g, gctx := errgroup.WithContext(ctx)
	for i, sp := range spans {
		g.Go(func() error {
			vecs, err := s.embed(gctx, texts[sp.start:sp.end])
			if err != nil {
				return fmt.Errorf("embed span [%d:%d]: %w", sp.start, sp.end, err)
			}
			results[i] = vecs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, 0, err
	}

	fresh := make(map[string][]float32, n)
	for i, sp := range spans {
		for j, v := range results[i] {
			fresh[snap.positions[sp.start+j]] = v
		}
	}
	return fresh, len(spans), nil
}
