package service

import (
	"context"
	"errors"
	"math"
	"strings"
	"sync"
	"testing"
	"unicode"

	"github.com/helixml/semandoc/domain/audit"
	"github.com/helixml/semandoc/infrastructure/provider"
	"github.com/helixml/semandoc/infrastructure/vectorstore"
	"github.com/stretchr/testify/require"
)

// wordEmbedder puts every distinct word on its own axis and normalizes,
// so cosine similarity is the overlap of word sets.
type wordEmbedder struct {
	mu    sync.Mutex
	vocab map[string]int
}

const wordDim = 128

func newWordEmbedder() *wordEmbedder {
	return &wordEmbedder{vocab: map[string]int{}}
}

func (e *wordEmbedder) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([][]float64, len(texts))
	for i, text := range texts {
		v := make([]float64, wordDim)
		for _, w := range strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r)
		}) {
			axis, ok := e.vocab[w]
			if !ok {
				axis = len(e.vocab) % wordDim
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

type fakeChatModel struct {
	mu       sync.Mutex
	requests []provider.ChatCompletionRequest
	reply    string
	err      error
}

func (f *fakeChatModel) ChatCompletion(_ context.Context, req provider.ChatCompletionRequest) (provider.ChatCompletionResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if f.err != nil {
		return provider.ChatCompletionResponse{}, f.err
	}
	return provider.NewChatCompletionResponse(f.reply, "stop", provider.NewUsage(10, 5, 15)), nil
}

func (f *fakeChatModel) calls() []provider.ChatCompletionRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]provider.ChatCompletionRequest(nil), f.requests...)
}

type failingRecords struct{}

var errAuditDown = errors.New("audit database unavailable")

func (failingRecords) Save(context.Context, ...audit.Record) error { return errAuditDown }
func (failingRecords) Recent(context.Context, int) ([]audit.Record, error) {
	return nil, errAuditDown
}
func (failingRecords) ForDocument(context.Context, string) ([]audit.Record, error) {
	return nil, errAuditDown
}
func (failingRecords) CountByAction(context.Context, audit.Action) (int64, error) {
	return 0, errAuditDown
}

func newTestStore(t *testing.T) *vectorstore.Store {
	t.Helper()
	store, err := vectorstore.Open(context.Background(), t.TempDir(), newWordEmbedder(),
		vectorstore.WithLogger(testLogger()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}
