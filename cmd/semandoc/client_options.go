package main

import (
	"log/slog"

	"github.com/helixml/semandoc"
	"github.com/helixml/semandoc/infrastructure/provider"
	"github.com/helixml/semandoc/internal/config"
)

// clientOptions returns the semandoc.Option slice derived from AppConfig.
// Callers append entrypoint-specific options before passing the slice to
// semandoc.New.
func clientOptions(cfg config.AppConfig, logger *slog.Logger) []semandoc.Option {
	opts := []semandoc.Option{
		semandoc.WithDataDir(cfg.DataDir()),
		semandoc.WithIndexName(cfg.IndexName()),
		semandoc.WithDatabaseURL(cfg.DBURL()),
		semandoc.WithLogger(logger),
		semandoc.WithModelDir(cfg.ModelDir()),
		semandoc.WithEmbeddingModel(cfg.EmbeddingModel()),
		semandoc.WithEmbeddingCache(cfg.EmbeddingCache()),
		semandoc.WithQueryInstruction(cfg.QueryInstruction()),
		semandoc.WithSimilarityThreshold(cfg.SimilarityThreshold()),
		semandoc.WithRebuildParallelism(cfg.RebuildParallelism()),
		semandoc.WithSaveInterval(cfg.SaveInterval()),
		semandoc.WithPromptsFile(cfg.ChatPromptsFile()),
		semandoc.WithChatDefaultTags(cfg.ChatDefaultTags()...),
	}

	if endpoint := cfg.EmbeddingEndpoint(); endpoint != nil && endpoint.IsConfigured() {
		c := openAIConfig(*endpoint)
		c.EmbeddingModel = endpoint.Model()
		opts = append(opts, semandoc.WithOpenAI(c))
	} else if cfg.EmbeddingDevice() != config.DefaultEmbeddingDevice {
		logger.Warn("embedding device is only honoured by the ONNX Runtime build",
			slog.String("device", cfg.EmbeddingDevice()))
	}

	if endpoint := cfg.ChatEndpoint(); endpoint != nil && endpoint.IsConfigured() {
		opts = append(opts, chatOption(*endpoint))
	}

	return opts
}

func chatOption(endpoint config.Endpoint) semandoc.Option {
	if endpoint.Provider() == config.ProviderAnthropic {
		return semandoc.WithAnthropic(provider.AnthropicConfig{
			APIKey:            endpoint.APIKey(),
			BaseURL:           endpoint.BaseURL(),
			Model:             endpoint.Model(),
			Timeout:           endpoint.Timeout(),
			MaxRetries:        endpoint.MaxRetries(),
			InitialDelay:      endpoint.InitialDelay(),
			BackoffFactor:     endpoint.BackoffFactor(),
			RequestsPerSecond: endpoint.RequestsPerSecond(),
		})
	}
	c := openAIConfig(endpoint)
	c.ChatModel = endpoint.Model()
	return semandoc.WithOpenAI(c)
}

// openAIConfig maps the shared endpoint settings; the caller picks which
// model field the endpoint serves.
func openAIConfig(endpoint config.Endpoint) provider.OpenAIConfig {
	return provider.OpenAIConfig{
		APIKey:            endpoint.APIKey(),
		BaseURL:           endpoint.BaseURL(),
		Timeout:           endpoint.Timeout(),
		MaxRetries:        endpoint.MaxRetries(),
		InitialDelay:      endpoint.InitialDelay(),
		BackoffFactor:     endpoint.BackoffFactor(),
		RequestsPerSecond: endpoint.RequestsPerSecond(),
		BatchSize:         endpoint.MaxBatchSize(),
	}
}
