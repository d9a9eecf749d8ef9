// Package provider adapts embedding and chat models to the document store:
// an OpenAI-compatible HTTP provider, a local ONNX embedder, an on-disk
// embedding cache, and rerankers.
package provider

import (
	"context"
	"errors"
	"net/http"
	"slices"
)

// Provider errors.
var (
	// ErrUnsupportedOperation indicates the provider was not configured for
	// the requested capability.
	ErrUnsupportedOperation = errors.New("operation not supported by this provider")

	// ErrModelUnavailable indicates no local model could be found.
	ErrModelUnavailable = errors.New("embedding model unavailable")
)

// Chat roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one chat message.
type Message struct {
	role    string
	content string
}

// NewMessage creates a Message.
func NewMessage(role, content string) Message {
	return Message{role: role, content: content}
}

// SystemMessage creates a system message.
func SystemMessage(content string) Message { return NewMessage(RoleSystem, content) }

// UserMessage creates a user message.
func UserMessage(content string) Message { return NewMessage(RoleUser, content) }

// Role returns the message role.
func (m Message) Role() string { return m.role }

// Content returns the message text.
func (m Message) Content() string { return m.content }

// ChatCompletionRequest is a request for a chat completion.
type ChatCompletionRequest struct {
	messages    []Message
	maxTokens   int
	temperature float64
}

// NewChatCompletionRequest creates a request. Zero max tokens and
// temperature leave the provider defaults in place.
func NewChatCompletionRequest(messages []Message) ChatCompletionRequest {
	return ChatCompletionRequest{messages: slices.Clone(messages)}
}

// WithMaxTokens returns a copy with a completion token limit.
func (r ChatCompletionRequest) WithMaxTokens(n int) ChatCompletionRequest {
	r.maxTokens = n
	return r
}

// WithTemperature returns a copy with a sampling temperature.
func (r ChatCompletionRequest) WithTemperature(t float64) ChatCompletionRequest {
	r.temperature = t
	return r
}

// Messages returns the messages.
func (r ChatCompletionRequest) Messages() []Message { return slices.Clone(r.messages) }

// MaxTokens returns the completion token limit.
func (r ChatCompletionRequest) MaxTokens() int { return r.maxTokens }

// Temperature returns the sampling temperature.
func (r ChatCompletionRequest) Temperature() float64 { return r.temperature }

// ChatCompletionResponse is a chat completion.
type ChatCompletionResponse struct {
	content      string
	finishReason string
	usage        Usage
}

// NewChatCompletionResponse creates a ChatCompletionResponse.
func NewChatCompletionResponse(content, finishReason string, usage Usage) ChatCompletionResponse {
	return ChatCompletionResponse{content: content, finishReason: finishReason, usage: usage}
}

// Content returns the generated text.
func (r ChatCompletionResponse) Content() string { return r.content }

// FinishReason returns why generation stopped.
func (r ChatCompletionResponse) FinishReason() string { return r.finishReason }

// Usage returns token usage.
func (r ChatCompletionResponse) Usage() Usage { return r.usage }

// Usage is token accounting reported by a provider.
type Usage struct {
	promptTokens     int
	completionTokens int
	totalTokens      int
}

// NewUsage creates a Usage.
func NewUsage(prompt, completion, total int) Usage {
	return Usage{promptTokens: prompt, completionTokens: completion, totalTokens: total}
}

// PromptTokens returns the prompt token count.
func (u Usage) PromptTokens() int { return u.promptTokens }

// CompletionTokens returns the completion token count.
func (u Usage) CompletionTokens() int { return u.completionTokens }

// TotalTokens returns the total token count.
func (u Usage) TotalTokens() int { return u.totalTokens }

// EmbeddingRequest is a batch of texts to embed.
type EmbeddingRequest struct {
	texts []string
}

// NewEmbeddingRequest creates an EmbeddingRequest.
func NewEmbeddingRequest(texts []string) EmbeddingRequest {
	return EmbeddingRequest{texts: slices.Clone(texts)}
}

// Texts returns the texts.
func (r EmbeddingRequest) Texts() []string { return slices.Clone(r.texts) }

// EmbeddingResponse holds one vector per requested text, in request order.
type EmbeddingResponse struct {
	embeddings [][]float64
	usage      Usage
}

// NewEmbeddingResponse creates an EmbeddingResponse.
func NewEmbeddingResponse(embeddings [][]float64, usage Usage) EmbeddingResponse {
	return EmbeddingResponse{embeddings: cloneVectors(embeddings), usage: usage}
}

// Embeddings returns the vectors.
func (r EmbeddingResponse) Embeddings() [][]float64 { return cloneVectors(r.embeddings) }

// Usage returns token usage.
func (r EmbeddingResponse) Usage() Usage { return r.usage }

func cloneVectors(vs [][]float64) [][]float64 {
	out := make([][]float64, len(vs))
	for i, v := range vs {
		out[i] = slices.Clone(v)
	}
	return out
}

// TextGenerator produces chat completions.
type TextGenerator interface {
	ChatCompletion(ctx context.Context, req ChatCompletionRequest) (ChatCompletionResponse, error)
}

// Embedder produces embeddings.
type Embedder interface {
	Embed(ctx context.Context, req EmbeddingRequest) (EmbeddingResponse, error)
}

// Capacity is implemented by embedders that accept a bounded number of texts
// per call.
type Capacity interface {
	Capacity() int
}

// ProviderError is a failed provider call.
type ProviderError struct {
	operation  string
	statusCode int
	message    string
	cause      error
}

// NewProviderError creates a ProviderError.
func NewProviderError(operation string, statusCode int, message string, cause error) *ProviderError {
	return &ProviderError{operation: operation, statusCode: statusCode, message: message, cause: cause}
}

// Error implements error.
func (e *ProviderError) Error() string {
	msg := e.operation + ": " + e.message
	if e.cause != nil && e.cause.Error() != e.message {
		msg += ": " + e.cause.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *ProviderError) Unwrap() error { return e.cause }

// Operation returns the failed operation.
func (e *ProviderError) Operation() string { return e.operation }

// StatusCode returns the HTTP status, or 0 when there was no response.
func (e *ProviderError) StatusCode() int { return e.statusCode }

// IsRateLimited reports whether the provider rejected the call for rate.
func (e *ProviderError) IsRateLimited() bool { return e.statusCode == http.StatusTooManyRequests }
