package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"
	"time"
)

// Anthropic defaults.
const (
	DefaultAnthropicBaseURL = "https://api.anthropic.com"
	DefaultAnthropicModel   = "claude-sonnet-4-20250514"

	anthropicVersion   = "2023-06-01"
	anthropicMaxTokens = 4096
)

// AnthropicConfig configures an AnthropicProvider. Zero values take the
// defaults above and the same retry defaults as OpenAIConfig.
type AnthropicConfig struct {
	APIKey            string
	BaseURL           string
	Model             string
	Timeout           time.Duration
	MaxRetries        int
	InitialDelay      time.Duration
	BackoffFactor     float64
	RequestsPerSecond float64
	MaxTokens         int
}

// AnthropicProvider answers chat completions with the Anthropic Messages
// API. It cannot embed.
type AnthropicProvider struct {
	apiKey    string
	baseURL   string
	model     string
	maxTokens int
	http      *http.Client
	retry     backoff
}

// NewAnthropicProvider creates a provider from cfg.
func NewAnthropicProvider(cfg AnthropicConfig) *AnthropicProvider {
	p := &AnthropicProvider{
		apiKey:    cfg.APIKey,
		baseURL:   strings.TrimSuffix(cfg.BaseURL, "/"),
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
		http:      &http.Client{Timeout: cfg.Timeout},
		retry:     newBackoff(cfg.MaxRetries, cfg.InitialDelay, cfg.BackoffFactor, cfg.RequestsPerSecond),
	}
	if p.baseURL == "" {
		p.baseURL = DefaultAnthropicBaseURL
	}
	if p.model == "" {
		p.model = DefaultAnthropicModel
	}
	if p.maxTokens <= 0 {
		p.maxTokens = anthropicMaxTokens
	}
	if p.http.Timeout <= 0 {
		p.http.Timeout = 60 * time.Second
	}
	return p
}

// Model returns the configured model.
func (p *AnthropicProvider) Model() string { return p.model }

type messagesRequest struct {
	Model       string             `json:"model"`
	MaxTokens   int                `json:"max_tokens"`
	System      string             `json:"system,omitempty"`
	Messages    []anthropicMessage `json:"messages"`
	Temperature *float64           `json:"temperature,omitempty"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messagesResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
	Usage      struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

type anthropicErrorBody struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// ChatCompletion sends the conversation to the Messages API. System
// messages are joined into the top-level system prompt.
func (p *AnthropicProvider) ChatCompletion(ctx context.Context, req ChatCompletionRequest) (ChatCompletionResponse, error) {
	body := messagesRequest{Model: p.model, MaxTokens: p.maxTokens}
	if req.MaxTokens() > 0 {
		body.MaxTokens = req.MaxTokens()
	}
	if t := req.Temperature(); t > 0 {
		body.Temperature = &t
	}
	var system []string
	for _, m := range req.Messages() {
		if m.Role() == RoleSystem {
			system = append(system, m.Content())
			continue
		}
		body.Messages = append(body.Messages, anthropicMessage{Role: m.Role(), Content: m.Content()})
	}
	body.System = strings.Join(system, "\n\n")
	if len(body.Messages) == 0 {
		return ChatCompletionResponse{}, NewProviderError("chat_completion", 0, "no user messages", nil)
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return ChatCompletionResponse{}, NewProviderError("chat_completion", 0, "encode request", err)
	}

	var resp messagesResponse
	err = p.retry.do(ctx, anthropicRetryable, func() error {
		var err error
		resp, err = p.post(ctx, payload)
		return err
	})
	if err != nil {
		return ChatCompletionResponse{}, err
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	in, out := resp.Usage.InputTokens, resp.Usage.OutputTokens
	return NewChatCompletionResponse(text.String(), resp.StopReason, NewUsage(in, out, in+out)), nil
}

func (p *AnthropicProvider) post(ctx context.Context, payload []byte) (messagesResponse, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/v1/messages", bytes.NewReader(payload))
	if err != nil {
		return messagesResponse{}, NewProviderError("chat_completion", 0, "build request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", p.apiKey)
	httpReq.Header.Set("anthropic-version", anthropicVersion)

	httpResp, err := p.http.Do(httpReq)
	if err != nil {
		return messagesResponse{}, NewProviderError("chat_completion", 0, "request failed", err)
	}
	defer func() { _ = httpResp.Body.Close() }()

	raw, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return messagesResponse{}, NewProviderError("chat_completion", httpResp.StatusCode, "read response", err)
	}
	if httpResp.StatusCode != http.StatusOK {
		msg := strings.TrimSpace(string(raw))
		var apiErr anthropicErrorBody
		if json.Unmarshal(raw, &apiErr) == nil && apiErr.Error.Message != "" {
			msg = apiErr.Error.Message
		}
		return messagesResponse{}, NewProviderError("chat_completion", httpResp.StatusCode, msg, nil)
	}

	var resp messagesResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return messagesResponse{}, NewProviderError("chat_completion", httpResp.StatusCode, "decode response", err)
	}
	return resp, nil
}

func anthropicRetryable(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var perr *ProviderError
	if errors.As(err, &perr) {
		return retryableStatus(perr.StatusCode())
	}
	return false
}

var _ TextGenerator = (*AnthropicProvider)(nil)
