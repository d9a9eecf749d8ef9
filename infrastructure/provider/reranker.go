package provider

import (
	"context"
	"fmt"
	"slices"

	"github.com/helixml/semandoc/domain/document"
	"github.com/helixml/semandoc/infrastructure/index"
)

// EmbeddingReranker orders candidates by cosine similarity between their
// embeddings and the query embedding. Equal scores keep input order.
type EmbeddingReranker struct {
	embedder document.Embedder
}

// NewEmbeddingReranker creates an EmbeddingReranker.
func NewEmbeddingReranker(embedder document.Embedder) *EmbeddingReranker {
	return &EmbeddingReranker{embedder: embedder}
}

// Rerank implements document.Reranker.
func (r *EmbeddingReranker) Rerank(ctx context.Context, query string, docs []document.Document) ([]document.Document, error) {
	if len(docs) <= 1 {
		return docs, nil
	}

	texts := make([]string, 0, len(docs)+1)
	texts = append(texts, query)
	texts = append(texts, document.Contents(docs)...)
	vecs, err := r.embedder.Embed(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("rerank: %w", err)
	}
	if len(vecs) != len(texts) {
		return nil, fmt.Errorf("rerank: got %d vectors for %d texts", len(vecs), len(texts))
	}

	q := index.ToFloat32(vecs[0])
	type scored struct {
		doc   document.Document
		score float64
	}
	ranked := make([]scored, len(docs))
	for i, d := range docs {
		ranked[i] = scored{doc: d, score: index.CosineSimilarity(q, index.ToFloat32(vecs[i+1]))}
	}
	slices.SortStableFunc(ranked, func(a, b scored) int {
		switch {
		case a.score > b.score:
			return -1
		case a.score < b.score:
			return 1
		}
		return 0
	})

	out := make([]document.Document, len(ranked))
	for i, s := range ranked {
		out[i] = s.doc
	}
	return out, nil
}

// NoopReranker keeps the retrieval order.
type NoopReranker struct{}

// Rerank implements document.Reranker.
func (NoopReranker) Rerank(_ context.Context, _ string, docs []document.Document) ([]document.Document, error) {
	return docs, nil
}

var (
	_ document.Reranker = (*EmbeddingReranker)(nil)
	_ document.Reranker = NoopReranker{}
)
