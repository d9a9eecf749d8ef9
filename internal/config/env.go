package config

import (
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// EnvConfig holds all environment-based configuration.
// Nested structs use underscore delimiter (e.g., EMBEDDING_ENDPOINT_BASE_URL).
type EnvConfig struct {
	// Env: HOST (default: 0.0.0.0)
	Host string `envconfig:"HOST" default:"0.0.0.0"`

	// Env: PORT (default: 8000)
	Port int `envconfig:"PORT" default:"8000"`

	// DataDir holds the index, backups, audit database and models.
	// Env: DATA_DIR (default: ./tmp)
	DataDir string `envconfig:"DATA_DIR" default:"./tmp"`

	// DBURL is the audit database connection URL.
	// Env: DB_URL
	// Default: sqlite:///{data_dir}/semandoc.db
	DBURL string `envconfig:"DB_URL"`

	// Env: LOG_LEVEL (default: INFO)
	LogLevel string `envconfig:"LOG_LEVEL" default:"INFO"`

	// LogFormat is the log output format (pretty or json).
	// Env: LOG_FORMAT (default: pretty)
	LogFormat string `envconfig:"LOG_FORMAT" default:"pretty"`

	// APIKeys is a comma-separated list of keys allowed to mutate documents.
	// Env: API_KEYS
	APIKeys string `envconfig:"API_KEYS"`

	// Env: CORS_ALLOWED_ORIGINS (default: *)
	CORSAllowedOrigins string `envconfig:"CORS_ALLOWED_ORIGINS" default:"*"`

	// IndexName is the base name of the durable index files.
	// Env: INDEX_NAME (default: index)
	IndexName string `envconfig:"INDEX_NAME" default:"index"`

	// SaveInterval is the auto-save interval in seconds; 0 disables auto-save.
	// Env: SAVE_INTERVAL (default: 300)
	SaveInterval float64 `envconfig:"SAVE_INTERVAL" default:"300"`

	// SimilarityThreshold is the cosine similarity above which a document is a duplicate.
	// Env: SIMILARITY_THRESHOLD (default: 0.9)
	SimilarityThreshold float64 `envconfig:"SIMILARITY_THRESHOLD" default:"0.9"`

	// Env: REBUILD_PARALLELISM (default: 12)
	RebuildParallelism int `envconfig:"REBUILD_PARALLELISM" default:"12"`

	// Embedding configures the local embedding model.
	Embedding EmbeddingEnv `envconfig:"EMBEDDING"`

	// ModelDir is where local models are stored.
	// Env: MODEL_DIR
	// Default: {data_dir}/models
	ModelDir string `envconfig:"MODEL_DIR"`

	// EmbeddingEndpoint configures a remote embedding service.
	// When set, it replaces the local model.
	EmbeddingEndpoint EndpointEnv `envconfig:"EMBEDDING_ENDPOINT"`

	// ChatEndpoint configures the chat completion service.
	ChatEndpoint EndpointEnv `envconfig:"CHAT_ENDPOINT"`

	// Chat configures retrieval-augmented chat.
	Chat ChatEnv `envconfig:"CHAT"`
}

// EmbeddingEnv holds local embedding model configuration.
type EmbeddingEnv struct {
	// Env: EMBEDDING_MODEL (default: m3e-base)
	Model string `envconfig:"MODEL" default:"m3e-base"`

	// Device selects cpu or gpu.
	// Env: EMBEDDING_DEVICE (default: cpu)
	Device string `envconfig:"DEVICE" default:"cpu"`

	// QueryInstruction is prepended to search queries before embedding.
	// Env: EMBEDDING_QUERY_INSTRUCTION
	QueryInstruction string `envconfig:"QUERY_INSTRUCTION"`

	// Env: EMBEDDING_CACHE (default: true)
	Cache bool `envconfig:"CACHE" default:"true"`
}

// EndpointEnv holds environment configuration for an OpenAI-compatible endpoint.
type EndpointEnv struct {
	// Provider is openai or anthropic; anthropic only serves chat.
	Provider string `envconfig:"PROVIDER" default:"openai"`

	BaseURL string `envconfig:"BASE_URL"`
	Model   string `envconfig:"MODEL"`
	APIKey  string `envconfig:"API_KEY"`

	// Timeout is the request timeout in seconds.
	Timeout float64 `envconfig:"TIMEOUT" default:"60"`

	MaxRetries int `envconfig:"MAX_RETRIES" default:"5"`

	// InitialDelay is the first retry delay in seconds.
	InitialDelay float64 `envconfig:"INITIAL_DELAY" default:"2.0"`

	BackoffFactor float64 `envconfig:"BACKOFF_FACTOR" default:"2.0"`

	// RequestsPerSecond limits outgoing requests; 0 is unlimited.
	RequestsPerSecond float64 `envconfig:"REQUESTS_PER_SECOND" default:"0"`

	MaxBatchSize int `envconfig:"MAX_BATCH_SIZE" default:"10"`
}

// ChatEnv holds chat configuration.
type ChatEnv struct {
	// Env: CHAT_PROMPTS_FILE
	PromptsFile string `envconfig:"PROMPTS_FILE"`

	// DefaultTags is a comma-separated list of tags added to every retrieval.
	// Env: CHAT_DEFAULT_TAGS
	DefaultTags string `envconfig:"DEFAULT_TAGS"`
}

// LoadFromEnv loads configuration from environment variables.
func LoadFromEnv() (EnvConfig, error) {
	return LoadFromEnvWithPrefix("")
}

// LoadFromEnvWithPrefix loads configuration with a custom prefix.
// For example, prefix "SEMANDOC" would require SEMANDOC_DATA_DIR instead of DATA_DIR.
func LoadFromEnvWithPrefix(prefix string) (EnvConfig, error) {
	var cfg EnvConfig
	if err := envconfig.Process(prefix, &cfg); err != nil {
		return EnvConfig{}, err
	}
	return cfg, nil
}

// ToAppConfig converts EnvConfig to AppConfig.
func (e EnvConfig) ToAppConfig() AppConfig {
	opts := []AppConfigOption{
		WithHost(e.Host),
		WithPort(e.Port),
		WithDataDir(e.DataDir),
		WithLogLevel(strings.ToUpper(e.LogLevel)),
		WithLogFormat(parseLogFormat(e.LogFormat)),
		WithAPIKeys(ParseList(e.APIKeys)),
		WithCORSOrigins(ParseList(e.CORSAllowedOrigins)),
		WithIndexName(e.IndexName),
		WithSaveInterval(seconds(e.SaveInterval)),
		WithSimilarityThreshold(e.SimilarityThreshold),
		WithRebuildParallelism(e.RebuildParallelism),
		WithEmbeddingModel(e.Embedding.Model),
		WithEmbeddingDevice(e.Embedding.Device),
		WithQueryInstruction(e.Embedding.QueryInstruction),
		WithEmbeddingCache(e.Embedding.Cache),
		WithChatPromptsFile(e.Chat.PromptsFile),
		WithChatDefaultTags(ParseList(e.Chat.DefaultTags)),
	}
	if e.DBURL != "" {
		opts = append(opts, WithDBURL(e.DBURL))
	}
	if e.ModelDir != "" {
		opts = append(opts, WithModelDir(e.ModelDir))
	}
	if e.EmbeddingEndpoint.IsConfigured() {
		opts = append(opts, WithEmbeddingEndpoint(e.EmbeddingEndpoint.ToEndpoint()))
	}
	if e.ChatEndpoint.IsConfigured() {
		opts = append(opts, WithChatEndpoint(e.ChatEndpoint.ToEndpoint()))
	}
	return NewAppConfigWithOptions(opts...)
}

// IsConfigured returns true if the endpoint has a model configured.
func (e EndpointEnv) IsConfigured() bool {
	return e.Model != ""
}

// ToEndpoint converts EndpointEnv to Endpoint.
func (e EndpointEnv) ToEndpoint() Endpoint {
	return NewEndpointWithOptions(
		WithProvider(e.Provider),
		WithBaseURL(e.BaseURL),
		WithModel(e.Model),
		WithAPIKey(e.APIKey),
		WithTimeout(seconds(e.Timeout)),
		WithMaxRetries(e.MaxRetries),
		WithInitialDelay(seconds(e.InitialDelay)),
		WithBackoffFactor(e.BackoffFactor),
		WithRequestsPerSecond(e.RequestsPerSecond),
		WithMaxBatchSize(e.MaxBatchSize),
	)
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

func parseLogFormat(s string) LogFormat {
	switch strings.ToLower(s) {
	case "json":
		return LogFormatJSON
	default:
		return LogFormatPretty
	}
}
