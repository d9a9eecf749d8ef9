package provider

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixml/semandoc/domain/document"
)

// axisEmbedder maps known texts to fixed vectors.
type axisEmbedder struct {
	vectors map[string][]float64
	calls   int
	err     error
}

func (e *axisEmbedder) Embed(_ context.Context, texts []string) ([][]float64, error) {
	e.calls++
	if e.err != nil {
		return nil, e.err
	}
	out := make([][]float64, len(texts))
	for i, t := range texts {
		out[i] = e.vectors[t]
	}
	return out, nil
}

func mkDoc(t *testing.T, content string) document.Document {
	t.Helper()
	d, err := document.NewDocument(content, document.NewMetadata())
	require.NoError(t, err)
	return d
}

func TestEmbeddingReranker_OrdersByCosine(t *testing.T) {
	emb := &axisEmbedder{vectors: map[string][]float64{
		"query": {1, 0},
		"far":   {0, 1},
		"near":  {1, 0.1},
		"mid":   {1, 1},
		"twin":  {0, 1},
	}}
	r := NewEmbeddingReranker(emb)

	docs := []document.Document{mkDoc(t, "far"), mkDoc(t, "near"), mkDoc(t, "mid"), mkDoc(t, "twin")}
	out, err := r.Rerank(context.Background(), "query", docs)
	require.NoError(t, err)
	assert.Equal(t, []string{"near", "mid", "far", "twin"}, document.Contents(out))
	assert.Len(t, out, len(docs))
}

func TestEmbeddingReranker_PassThrough(t *testing.T) {
	emb := &axisEmbedder{}
	r := NewEmbeddingReranker(emb)

	out, err := r.Rerank(context.Background(), "q", nil)
	require.NoError(t, err)
	assert.Empty(t, out)

	one := []document.Document{mkDoc(t, "only")}
	out, err = r.Rerank(context.Background(), "q", one)
	require.NoError(t, err)
	assert.Equal(t, one, out)
	assert.Equal(t, 0, emb.calls)
}

func TestEmbeddingReranker_Error(t *testing.T) {
	r := NewEmbeddingReranker(&axisEmbedder{err: errors.New("down")})
	_, err := r.Rerank(context.Background(), "q", []document.Document{mkDoc(t, "a"), mkDoc(t, "b")})
	assert.Error(t, err)
}

func TestNoopReranker(t *testing.T) {
	docs := []document.Document{mkDoc(t, "b"), mkDoc(t, "a")}
	out, err := NoopReranker{}.Rerank(context.Background(), "q", docs)
	require.NoError(t, err)
	assert.Equal(t, docs, out)
}
