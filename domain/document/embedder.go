package document

import "context"

// Embedder converts text into embedding vectors.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float64, error)
}

// Reranker reorders candidate documents by relevance to a query. It returns
// the same documents; zero or one candidates come back unchanged.
type Reranker interface {
	Rerank(ctx context.Context, query string, docs []Document) ([]Document, error)
}
