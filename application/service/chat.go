package service

import (
	"bytes"
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"strings"
	"text/template"

	"github.com/helixml/semandoc/domain/document"
	"github.com/helixml/semandoc/infrastructure/provider"
	"github.com/helixml/semandoc/infrastructure/vectorstore"
	"gopkg.in/yaml.v3"
)

// Adaptive retrieval parameters.
const (
	retrievalK            = 10
	initialScoreThreshold = 0.6
	scoreThresholdStep    = 0.05
	maxRetrievalAttempts  = 10
	minDocumentsForAnswer = 1
)

//go:embed prompts.yaml
var defaultPrompts []byte

// Prompts holds the chat prompt templates.
type Prompts struct {
	System   string `yaml:"system"`
	FillNone string `yaml:"fill_none"`
	NotFound string `yaml:"not_found"`

	system *template.Template
}

// DefaultPrompts returns the built-in templates.
func DefaultPrompts() (Prompts, error) {
	return parsePrompts(defaultPrompts, Prompts{})
}

// LoadPrompts reads templates from a YAML file. Keys the file omits keep
// their built-in value.
func LoadPrompts(path string) (Prompts, error) {
	base, err := DefaultPrompts()
	if err != nil {
		return Prompts{}, err
	}
	if path == "" {
		return base, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Prompts{}, fmt.Errorf("read prompts: %w", err)
	}
	return parsePrompts(data, base)
}

func parsePrompts(data []byte, base Prompts) (Prompts, error) {
	p := base
	if err := yaml.Unmarshal(data, &p); err != nil {
		return Prompts{}, fmt.Errorf("parse prompts: %w", err)
	}
	tmpl, err := template.New("system").Parse(p.System)
	if err != nil {
		return Prompts{}, fmt.Errorf("parse system prompt: %w", err)
	}
	p.system = tmpl
	return p, nil
}

func (p Prompts) render(docs []document.Document) (string, error) {
	knowledge := p.FillNone
	if len(docs) > 0 {
		parts := make([]string, len(docs))
		for i, d := range docs {
			parts[i] = d.Content()
		}
		knowledge = strings.Join(parts, "\n\n")
	}
	var buf bytes.Buffer
	if err := p.system.Execute(&buf, struct{ Knowledge string }{knowledge}); err != nil {
		return "", fmt.Errorf("render system prompt: %w", err)
	}
	return buf.String(), nil
}

// Answer is a chat reply and the documents it was grounded on.
type Answer struct {
	Content string
	Sources []document.Document
	// Found is false when no document matched and Content is the
	// configured not-found reply.
	Found bool
}

// ChatOption configures a Chat service.
type ChatOption func(*Chat)

// WithChatModel sets the LLM used to answer.
func WithChatModel(model provider.TextGenerator) ChatOption {
	return func(c *Chat) { c.model = model }
}

// WithReranker sets the reranker applied to retrieved documents.
func WithReranker(r document.Reranker) ChatOption {
	return func(c *Chat) {
		if r != nil {
			c.reranker = r
		}
	}
}

// WithPrompts overrides the prompt templates.
func WithPrompts(p Prompts) ChatOption {
	return func(c *Chat) {
		if p.system != nil {
			c.prompts = p
		}
	}
}

// WithDefaultTags adds tags to every retrieval filter.
func WithDefaultTags(tags ...string) ChatOption {
	return func(c *Chat) { c.defaultTags = slices.Clone(tags) }
}

// Chat answers questions from stored documents with an LLM.
type Chat struct {
	store       *vectorstore.Store
	model       provider.TextGenerator
	reranker    document.Reranker
	prompts     Prompts
	defaultTags []string
	logger      *slog.Logger
}

// NewChat creates a new Chat service.
func NewChat(store *vectorstore.Store, logger *slog.Logger, opts ...ChatOption) (*Chat, error) {
	if logger == nil {
		logger = slog.Default()
	}
	prompts, err := DefaultPrompts()
	if err != nil {
		return nil, err
	}
	c := &Chat{
		store:    store,
		reranker: provider.NoopReranker{},
		prompts:  prompts,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Available reports whether a chat model is configured.
func (c *Chat) Available() bool {
	return c.model != nil
}

// Retrieve finds documents for query, loosening the distance threshold
// step by step until at least one document matches, then reranks them.
func (c *Chat) Retrieve(ctx context.Context, query string, tags []string) ([]document.Document, error) {
	filterTags := mergeTags(c.defaultTags, tags)
	opts := []vectorstore.SearchOption{vectorstore.WithK(retrievalK)}
	if len(filterTags) > 0 {
		opts = append(opts, vectorstore.WithFilter(document.NewFilter(document.WithAnyTag(filterTags...))))
	}

	var docs []document.Document
	threshold := initialScoreThreshold
	for attempt := 0; attempt < maxRetrievalAttempts && len(docs) < minDocumentsForAnswer; attempt++ {
		found, err := c.store.SearchDocuments(ctx, query, append(opts, vectorstore.WithScoreThreshold(threshold))...)
		if err != nil {
			return nil, err
		}
		docs = found
		threshold += scoreThresholdStep
	}
	if len(docs) == 0 {
		return []document.Document{}, nil
	}

	ranked, err := c.reranker.Rerank(ctx, query, docs)
	if err != nil {
		return nil, fmt.Errorf("rerank: %w", err)
	}
	return ranked, nil
}

// Chat answers query. When nothing relevant is stored it returns the
// not-found reply without calling the model.
func (c *Chat) Chat(ctx context.Context, query string, tags []string) (Answer, error) {
	if c.model == nil {
		return Answer{}, ErrChatUnavailable
	}
	if strings.TrimSpace(query) == "" {
		return Answer{}, fmt.Errorf("%w: query must not be empty", document.ErrValidation)
	}

	docs, err := c.Retrieve(ctx, query, tags)
	if err != nil {
		return Answer{}, err
	}
	if len(docs) == 0 {
		return Answer{Content: c.prompts.NotFound, Sources: docs}, nil
	}

	system, err := c.prompts.render(docs)
	if err != nil {
		return Answer{}, err
	}
	resp, err := c.model.ChatCompletion(ctx, provider.NewChatCompletionRequest([]provider.Message{
		provider.SystemMessage(system),
		provider.UserMessage(query),
	}))
	if err != nil {
		return Answer{}, fmt.Errorf("chat completion: %w", err)
	}

	c.logger.Debug("chat answered",
		slog.Int("sources", len(docs)),
		slog.Int("tokens", resp.Usage().TotalTokens()),
	)
	return Answer{Content: resp.Content(), Sources: docs, Found: true}, nil
}

func mergeTags(base, extra []string) []string {
	out := slices.Clone(base)
	for _, t := range extra {
		if t != "" && !slices.Contains(out, t) {
			out = append(out, t)
		}
	}
	return out
}
