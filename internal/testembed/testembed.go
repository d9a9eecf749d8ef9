// Package testembed provides deterministic embedding and chat providers
// for tests.
package testembed

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"sync"
	"unicode"

	"github.com/helixml/semandoc/infrastructure/provider"
)

// Dimension is the vector size produced by Embedder.
const Dimension = 64

// Embedder hashes each lower-cased word onto one axis and normalizes the
// result, so cosine similarity tracks word overlap.
type Embedder struct {
	capacity int

	mu      sync.Mutex
	batches []int
}

// New creates an Embedder accepting at most capacity texts per call.
// Zero means unbounded.
func New(capacity int) *Embedder {
	return &Embedder{capacity: capacity}
}

// Capacity returns the batch limit.
func (e *Embedder) Capacity() int { return e.capacity }

// Embed implements provider.Embedder.
func (e *Embedder) Embed(ctx context.Context, req provider.EmbeddingRequest) (provider.EmbeddingResponse, error) {
	if err := ctx.Err(); err != nil {
		return provider.EmbeddingResponse{}, err
	}
	texts := req.Texts()
	e.mu.Lock()
	e.batches = append(e.batches, len(texts))
	e.mu.Unlock()

	out := make([][]float64, len(texts))
	for i, text := range texts {
		out[i] = Vector(text)
	}
	return provider.NewEmbeddingResponse(out, provider.NewUsage(0, 0, 0)), nil
}

// LargestBatch returns the most texts seen in one call.
func (e *Embedder) LargestBatch() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	largest := 0
	for _, n := range e.batches {
		largest = max(largest, n)
	}
	return largest
}

// Vector returns the embedding of text.
func Vector(text string) []float64 {
	v := make([]float64, Dimension)
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, w := range words {
		h := fnv.New32a()
		_, _ = h.Write([]byte(w))
		v[h.Sum32()%Dimension]++
	}
	var sum float64
	for _, x := range v {
		sum += x * x
	}
	if sum > 0 {
		norm := math.Sqrt(sum)
		for i := range v {
			v[i] /= norm
		}
	}
	return v
}

// Chat is a chat model that echoes the last message.
type Chat struct {
	mu       sync.Mutex
	requests []provider.ChatCompletionRequest
}

// ChatCompletion implements provider.TextGenerator.
func (c *Chat) ChatCompletion(_ context.Context, req provider.ChatCompletionRequest) (provider.ChatCompletionResponse, error) {
	c.mu.Lock()
	c.requests = append(c.requests, req)
	c.mu.Unlock()

	msgs := req.Messages()
	reply := "answer to: " + msgs[len(msgs)-1].Content()
	return provider.NewChatCompletionResponse(reply, "stop", provider.NewUsage(0, 0, 0)), nil
}

// Requests returns the requests received so far.
func (c *Chat) Requests() []provider.ChatCompletionRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]provider.ChatCompletionRequest(nil), c.requests...)
}
