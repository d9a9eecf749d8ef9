package provider

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingEmbedder struct {
	mu    sync.Mutex
	texts []string
	fail  bool
}

func (e *countingEmbedder) Embed(_ context.Context, req EmbeddingRequest) (EmbeddingResponse, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.fail {
		return EmbeddingResponse{}, errors.New("down")
	}
	texts := req.Texts()
	e.texts = append(e.texts, texts...)
	out := make([][]float64, len(texts))
	for i, t := range texts {
		out[i] = []float64{float64(len(t)), 0.5}
	}
	return NewEmbeddingResponse(out, NewUsage(len(texts), 0, len(texts))), nil
}

func (e *countingEmbedder) Capacity() int { return 7 }

func (e *countingEmbedder) seen() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.texts...)
}

func newTestCache(t *testing.T, inner Embedder, model string) *CachingEmbedder {
	t.Helper()
	c, err := NewCachingEmbedder(inner, CacheOptions{InMemory: true, Model: model})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestCachingEmbedder_ServesRepeatsFromCache(t *testing.T) {
	inner := &countingEmbedder{}
	c := newTestCache(t, inner, "m1")
	ctx := context.Background()

	resp, err := c.Embed(ctx, NewEmbeddingRequest([]string{"a", "bbb"}))
	require.NoError(t, err)
	assert.Equal(t, [][]float64{{1, 0.5}, {3, 0.5}}, resp.Embeddings())

	resp, err = c.Embed(ctx, NewEmbeddingRequest([]string{"bbb", "cc", "a"}))
	require.NoError(t, err)
	assert.Equal(t, [][]float64{{3, 0.5}, {2, 0.5}, {1, 0.5}}, resp.Embeddings())

	assert.Equal(t, []string{"a", "bbb", "cc"}, inner.seen())
	assert.Equal(t, 7, c.Capacity())
}

func TestCachingEmbedder_AllCachedSkipsInner(t *testing.T) {
	inner := &countingEmbedder{}
	c := newTestCache(t, inner, "m1")
	ctx := context.Background()

	_, err := c.Embed(ctx, NewEmbeddingRequest([]string{"x"}))
	require.NoError(t, err)

	inner.fail = true
	resp, err := c.Embed(ctx, NewEmbeddingRequest([]string{"x"}))
	require.NoError(t, err)
	assert.Equal(t, [][]float64{{1, 0.5}}, resp.Embeddings())
}

func TestCachingEmbedder_PropagatesInnerErrors(t *testing.T) {
	c := newTestCache(t, &countingEmbedder{fail: true}, "m1")
	_, err := c.Embed(context.Background(), NewEmbeddingRequest([]string{"x"}))
	assert.Error(t, err)
}

func TestCachingEmbedder_KeysIncludeModel(t *testing.T) {
	a := newTestCache(t, &countingEmbedder{}, "m1")
	b := &CachingEmbedder{model: "m2"}
	assert.NotEqual(t, a.key("text"), b.key("text"))
	assert.Equal(t, a.key("text"), a.key("text"))
}

func TestVectorCodec(t *testing.T) {
	v, ok := decodeVector(encodeVector([]float64{0.25, -1, 3}))
	require.True(t, ok)
	assert.Equal(t, []float64{0.25, -1, 3}, v)

	_, ok = decodeVector([]byte{1, 2, 3})
	assert.False(t, ok)
}

func TestNewCachingEmbedder_RequiresDir(t *testing.T) {
	_, err := NewCachingEmbedder(&countingEmbedder{}, CacheOptions{})
	assert.Error(t, err)

	c, err := NewCachingEmbedder(&countingEmbedder{}, CacheOptions{Dir: t.TempDir()})
	require.NoError(t, err)
	require.NoError(t, c.Close())
}
