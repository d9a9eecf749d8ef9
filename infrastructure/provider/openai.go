package provider

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// DefaultBatchSize is the number of texts sent per embedding API call.
const DefaultBatchSize = 10

// errEmbeddingCountMismatch indicates a partial embedding response. Upstream
// gateways sometimes return 200 with fewer vectors under load, so it is
// retried.
var errEmbeddingCountMismatch = errors.New("embedding response count mismatch")

// errUpstreamFailure indicates a 200 response with no data, no model and no
// usage: a routing gateway whose upstreams all failed. Retrying does not help.
var errUpstreamFailure = errors.New("upstream provider failure")

// OpenAIConfig configures an OpenAIProvider. A provider embeds when
// EmbeddingModel is set and chats when ChatModel is set.
type OpenAIConfig struct {
	APIKey            string
	BaseURL           string
	ChatModel         string
	EmbeddingModel    string
	Timeout           time.Duration
	MaxRetries        int
	InitialDelay      time.Duration
	BackoffFactor     float64
	RequestsPerSecond float64
	BatchSize         int
}

// OpenAIProvider talks to any OpenAI-compatible endpoint for embeddings and
// chat completions, with exponential backoff and optional rate limiting.
type OpenAIProvider struct {
	client         *openai.Client
	chatModel      string
	embeddingModel string
	batchSize      int
	retry          backoff
}

// NewOpenAIProvider creates a provider from cfg, filling zero values with
// defaults: 5 retries, 2s initial delay, factor 2.
func NewOpenAIProvider(cfg OpenAIConfig) *OpenAIProvider {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	if cfg.Timeout > 0 {
		clientCfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}

	p := &OpenAIProvider{
		client:         openai.NewClientWithConfig(clientCfg),
		chatModel:      cfg.ChatModel,
		embeddingModel: cfg.EmbeddingModel,
		batchSize:      cfg.BatchSize,
		retry:          newBackoff(cfg.MaxRetries, cfg.InitialDelay, cfg.BackoffFactor, cfg.RequestsPerSecond),
	}
	if p.batchSize <= 0 {
		p.batchSize = DefaultBatchSize
	}
	return p
}

// SupportsTextGeneration reports whether a chat model is configured.
func (p *OpenAIProvider) SupportsTextGeneration() bool { return p.chatModel != "" }

// SupportsEmbedding reports whether an embedding model is configured.
func (p *OpenAIProvider) SupportsEmbedding() bool { return p.embeddingModel != "" }

// EmbeddingModel returns the configured embedding model.
func (p *OpenAIProvider) EmbeddingModel() string { return p.embeddingModel }

// Capacity returns the maximum number of texts per Embed call.
func (p *OpenAIProvider) Capacity() int { return p.batchSize }

// Close is a no-op.
func (p *OpenAIProvider) Close() error { return nil }

// ChatCompletion generates a chat completion.
func (p *OpenAIProvider) ChatCompletion(ctx context.Context, req ChatCompletionRequest) (ChatCompletionResponse, error) {
	if !p.SupportsTextGeneration() {
		return ChatCompletionResponse{}, ErrUnsupportedOperation
	}

	msgs := req.Messages()
	chatReq := openai.ChatCompletionRequest{
		Model:    p.chatModel,
		Messages: make([]openai.ChatCompletionMessage, len(msgs)),
	}
	for i, m := range msgs {
		chatReq.Messages[i] = openai.ChatCompletionMessage{Role: m.Role(), Content: m.Content()}
	}
	if req.MaxTokens() > 0 {
		chatReq.MaxTokens = req.MaxTokens()
	}
	if req.Temperature() > 0 {
		chatReq.Temperature = float32(req.Temperature())
	}

	var resp openai.ChatCompletionResponse
	err := p.retry.do(ctx, isRetryable, func() error {
		var err error
		resp, err = p.client.CreateChatCompletion(ctx, chatReq)
		return err
	})
	if err != nil {
		return ChatCompletionResponse{}, wrapError("chat_completion", err)
	}
	if len(resp.Choices) == 0 {
		return ChatCompletionResponse{}, NewProviderError("chat_completion", 0, "no choices in response", nil)
	}

	choice := resp.Choices[0]
	return NewChatCompletionResponse(
		choice.Message.Content,
		string(choice.FinishReason),
		NewUsage(resp.Usage.PromptTokens, resp.Usage.CompletionTokens, resp.Usage.TotalTokens),
	), nil
}

// Embed embeds the texts in a single API call. Callers split larger batches
// by Capacity.
func (p *OpenAIProvider) Embed(ctx context.Context, req EmbeddingRequest) (EmbeddingResponse, error) {
	if !p.SupportsEmbedding() {
		return EmbeddingResponse{}, ErrUnsupportedOperation
	}

	texts := req.Texts()
	if len(texts) == 0 {
		return NewEmbeddingResponse([][]float64{}, NewUsage(0, 0, 0)), nil
	}

	embedReq := openai.EmbeddingRequest{
		Model: openai.EmbeddingModel(p.embeddingModel),
		Input: texts,
	}

	var resp openai.EmbeddingResponse
	err := p.retry.do(ctx, isRetryable, func() error {
		var err error
		resp, err = p.client.CreateEmbeddings(ctx, embedReq)
		if err != nil {
			return err
		}
		if len(resp.Data) == 0 && string(resp.Model) == "" && resp.Usage.TotalTokens == 0 {
			return fmt.Errorf("%w: empty 200 response without model or usage", errUpstreamFailure)
		}
		if len(resp.Data) != len(texts) {
			return fmt.Errorf("%w: got %d vectors for %d texts", errEmbeddingCountMismatch, len(resp.Data), len(texts))
		}
		return nil
	})
	if err != nil {
		return EmbeddingResponse{}, wrapError("embedding", err)
	}

	embeddings := make([][]float64, len(resp.Data))
	for i, d := range resp.Data {
		embeddings[i] = make([]float64, len(d.Embedding))
		for j, v := range d.Embedding {
			embeddings[i][j] = float64(v)
		}
	}

	return NewEmbeddingResponse(embeddings, NewUsage(resp.Usage.PromptTokens, 0, resp.Usage.TotalTokens)), nil
}

func isRetryable(err error) bool {
	if errors.Is(err, errEmbeddingCountMismatch) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return retryableStatus(apiErr.HTTPStatusCode)
	}

	var reqErr *openai.RequestError
	return errors.As(err, &reqErr)
}

func wrapError(operation string, err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return NewProviderError(operation, apiErr.HTTPStatusCode, apiErr.Message, err)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return NewProviderError(operation, reqErr.HTTPStatusCode, reqErr.Error(), err)
	}
	return NewProviderError(operation, 0, err.Error(), err)
}

var (
	_ TextGenerator = (*OpenAIProvider)(nil)
	_ Embedder      = (*OpenAIProvider)(nil)
	_ Capacity      = (*OpenAIProvider)(nil)
)
