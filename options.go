package semandoc

import (
	"io"
	"log/slog"
	"time"

	"github.com/helixml/semandoc/domain/document"
	"github.com/helixml/semandoc/infrastructure/provider"
	"github.com/helixml/semandoc/internal/config"
)

// clientConfig holds configuration for Client construction.
// Defaults come from internal/config.
type clientConfig struct {
	dataDir             string
	indexName           string
	databaseURL         string
	modelDir            string
	embeddingModel      string
	embeddingCache      bool
	queryInstruction    string
	similarityThreshold float64
	rebuildParallelism  int
	saveInterval        time.Duration
	embeddingProvider   provider.Embedder
	textProvider        provider.TextGenerator
	reranker            document.Reranker
	promptsFile         string
	chatDefaultTags     []string
	logger              *slog.Logger
	apiKeys             []string
	closers             []io.Closer
}

func newClientConfig() *clientConfig {
	return &clientConfig{
		dataDir:             config.DefaultDataDir,
		indexName:           config.DefaultIndexName,
		embeddingModel:      config.DefaultEmbeddingModel,
		embeddingCache:      true,
		similarityThreshold: config.DefaultSimilarityThreshold,
		rebuildParallelism:  config.DefaultRebuildParallelism,
		saveInterval:        config.DefaultSaveInterval,
	}
}

// Option configures the Client.
type Option func(*clientConfig)

// WithDataDir sets the directory holding the index files, the default
// SQLite audit database, the embedding cache and local models.
func WithDataDir(dir string) Option {
	return func(c *clientConfig) {
		c.dataDir = dir
	}
}

// WithIndexName sets the base name of the index files.
func WithIndexName(name string) Option {
	return func(c *clientConfig) {
		if name != "" {
			c.indexName = name
		}
	}
}

// WithSQLite stores the audit trail in a SQLite file.
func WithSQLite(path string) Option {
	return func(c *clientConfig) {
		c.databaseURL = "sqlite:///" + path
	}
}

// WithPostgres stores the audit trail in PostgreSQL.
func WithPostgres(dsn string) Option {
	return func(c *clientConfig) {
		c.databaseURL = dsn
	}
}

// WithDatabaseURL sets the audit database URL (sqlite:/// or postgres://).
func WithDatabaseURL(url string) Option {
	return func(c *clientConfig) {
		c.databaseURL = url
	}
}

// WithOpenAI uses an OpenAI-compatible endpoint for embeddings when
// cfg.EmbeddingModel is set and for chat when cfg.ChatModel is set.
func WithOpenAI(cfg provider.OpenAIConfig) Option {
	return func(c *clientConfig) {
		p := provider.NewOpenAIProvider(cfg)
		if p.SupportsEmbedding() {
			c.embeddingProvider = p
			c.embeddingModel = p.EmbeddingModel()
		}
		if p.SupportsTextGeneration() {
			c.textProvider = p
		}
	}
}

// WithAnthropic answers chat with the Anthropic Messages API.
func WithAnthropic(cfg provider.AnthropicConfig) Option {
	return func(c *clientConfig) {
		c.textProvider = provider.NewAnthropicProvider(cfg)
	}
}

// WithEmbeddingProvider sets a custom embedding provider, replacing the
// local model.
func WithEmbeddingProvider(p provider.Embedder) Option {
	return func(c *clientConfig) {
		c.embeddingProvider = p
	}
}

// WithTextProvider sets the chat model. Without one, chat is unavailable.
func WithTextProvider(p provider.TextGenerator) Option {
	return func(c *clientConfig) {
		c.textProvider = p
	}
}

// WithReranker sets the chat reranker. Defaults to an embedding reranker.
func WithReranker(r document.Reranker) Option {
	return func(c *clientConfig) {
		c.reranker = r
	}
}

// WithModelDir sets the directory of local embedding models.
// Defaults to {dataDir}/models.
func WithModelDir(dir string) Option {
	return func(c *clientConfig) {
		c.modelDir = dir
	}
}

// WithEmbeddingModel names the embedding model. It selects the local model
// directory and namespaces the embedding cache.
func WithEmbeddingModel(model string) Option {
	return func(c *clientConfig) {
		if model != "" {
			c.embeddingModel = model
		}
	}
}

// WithEmbeddingCache enables or disables the on-disk embedding cache.
func WithEmbeddingCache(enabled bool) Option {
	return func(c *clientConfig) {
		c.embeddingCache = enabled
	}
}

// WithQueryInstruction sets the prefix prepended to search queries.
func WithQueryInstruction(prefix string) Option {
	return func(c *clientConfig) {
		c.queryInstruction = prefix
	}
}

// WithSimilarityThreshold sets the cosine similarity above which a new
// document is rejected as a duplicate.
func WithSimilarityThreshold(t float64) Option {
	return func(c *clientConfig) {
		c.similarityThreshold = t
	}
}

// WithRebuildParallelism sets how many workers re-embed during a rebuild.
// Values <= 0 are ignored.
func WithRebuildParallelism(n int) Option {
	return func(c *clientConfig) {
		if n > 0 {
			c.rebuildParallelism = n
		}
	}
}

// WithSaveInterval sets the auto-save interval. Zero disables auto-save.
func WithSaveInterval(d time.Duration) Option {
	return func(c *clientConfig) {
		if d >= 0 {
			c.saveInterval = d
		}
	}
}

// WithPromptsFile overrides chat prompt templates from a YAML file.
func WithPromptsFile(path string) Option {
	return func(c *clientConfig) {
		c.promptsFile = path
	}
}

// WithChatDefaultTags adds tags to every chat retrieval filter.
func WithChatDefaultTags(tags ...string) Option {
	return func(c *clientConfig) {
		c.chatDefaultTags = tags
	}
}

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *clientConfig) {
		c.logger = l
	}
}

// WithAPIKeys sets the keys that protect mutating HTTP endpoints.
func WithAPIKeys(keys ...string) Option {
	return func(c *clientConfig) {
		c.apiKeys = keys
	}
}

// WithCloser registers a resource to be closed when the Client shuts down.
func WithCloser(c io.Closer) Option {
	return func(cfg *clientConfig) {
		cfg.closers = append(cfg.closers, c)
	}
}
