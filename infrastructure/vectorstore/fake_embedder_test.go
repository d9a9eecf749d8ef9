package vectorstore

import (
	"context"
	"errors"
	"math"
	"slices"
	"strings"
	"sync"
	"unicode"
)

// vocabEmbedder gives every distinct lowercase word its own axis, so texts
// with the same words embed identically and texts without shared words are
// orthogonal. Vectors are unit length.
type vocabEmbedder struct {
	mu    sync.Mutex
	dim   int
	vocab map[string]int
	calls int
	texts int
	fail  error
}

func newVocabEmbedder(dim int) *vocabEmbedder {
	return &vocabEmbedder{dim: dim, vocab: map[string]int{}}
}

func (e *vocabEmbedder) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.fail != nil {
		return nil, e.fail
	}
	e.calls++
	e.texts += len(texts)

	out := make([][]float64, len(texts))
	for i, text := range texts {
		v := make([]float64, e.dim)
		words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r)
		})
		for _, w := range words {
			axis, ok := e.vocab[w]
			if !ok {
				axis = len(e.vocab) % e.dim
				e.vocab[w] = axis
			}
			v[axis]++
		}
		var sum float64
		for _, x := range v {
			sum += x * x
		}
		if sum > 0 {
			norm := math.Sqrt(sum)
			for j := range v {
				v[j] /= norm
			}
		}
		out[i] = v
	}
	return out, nil
}

func (e *vocabEmbedder) setFail(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.fail = err
}

func (e *vocabEmbedder) setDim(dim int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.dim = dim
}

func (e *vocabEmbedder) callCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}

var errEmbedderDown = errors.New("embedder unavailable")

// gatedEmbedder parks any batch containing marker until release is closed.
// Other batches pass straight through.
type gatedEmbedder struct {
	*vocabEmbedder
	marker  string
	entered chan struct{}
	release chan struct{}
	once    sync.Once
	armed   bool
	armMu   sync.Mutex
}

func newGatedEmbedder(dim int, marker string) *gatedEmbedder {
	return &gatedEmbedder{
		vocabEmbedder: newVocabEmbedder(dim),
		marker:        marker,
		entered:       make(chan struct{}),
		release:       make(chan struct{}),
	}
}

func (e *gatedEmbedder) arm() {
	e.armMu.Lock()
	defer e.armMu.Unlock()
	e.armed = true
}

func (e *gatedEmbedder) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	e.armMu.Lock()
	armed := e.armed
	e.armMu.Unlock()
	if armed && slices.ContainsFunc(texts, func(s string) bool { return strings.Contains(s, e.marker) }) {
		e.once.Do(func() { close(e.entered) })
		select {
		case <-e.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return e.vocabEmbedder.Embed(ctx, texts)
}
