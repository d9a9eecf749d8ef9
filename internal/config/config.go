// Package config provides application configuration.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"
)

// Default configuration values.
const (
	DefaultHost                  = "0.0.0.0"
	DefaultPort                  = 8000
	DefaultDataDir               = "./tmp"
	DefaultLogLevel              = "INFO"
	DefaultIndexName             = "index"
	DefaultSaveInterval          = 300 * time.Second
	DefaultSimilarityThreshold   = 0.9
	DefaultRebuildParallelism    = 12
	DefaultEmbeddingModel        = "m3e-base"
	DefaultEmbeddingDevice       = "cpu"
	DefaultDBFile                = "semandoc.db"
	DefaultModelSubdir           = "models"
	DefaultEmbeddingCacheSubdir  = "embedcache"
	DefaultEndpointTimeout       = 60 * time.Second
	DefaultEndpointMaxRetries    = 5
	DefaultEndpointInitialDelay  = 2 * time.Second
	DefaultEndpointBackoffFactor = 2.0
	DefaultEndpointMaxBatchSize  = 10
	DefaultEndpointProvider      = ProviderOpenAI
)

// Endpoint providers.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

// LogFormat represents the log output format.
type LogFormat string

// LogFormat values.
const (
	LogFormatPretty LogFormat = "pretty"
	LogFormatJSON   LogFormat = "json"
)

// Endpoint configures a remote model API: OpenAI-compatible by default,
// or Anthropic for chat.
type Endpoint struct {
	provider          string
	baseURL           string
	model             string
	apiKey            string
	timeout           time.Duration
	maxRetries        int
	initialDelay      time.Duration
	backoffFactor     float64
	requestsPerSecond float64
	maxBatchSize      int
}

// NewEndpoint creates an Endpoint with defaults.
func NewEndpoint() Endpoint {
	return Endpoint{
		provider:      DefaultEndpointProvider,
		timeout:       DefaultEndpointTimeout,
		maxRetries:    DefaultEndpointMaxRetries,
		initialDelay:  DefaultEndpointInitialDelay,
		backoffFactor: DefaultEndpointBackoffFactor,
		maxBatchSize:  DefaultEndpointMaxBatchSize,
	}
}

// BaseURL returns the base URL; empty means the OpenAI default.
func (e Endpoint) BaseURL() string { return e.baseURL }

// Provider returns the API flavour, ProviderOpenAI or ProviderAnthropic.
func (e Endpoint) Provider() string { return e.provider }

// Model returns the model identifier.
func (e Endpoint) Model() string { return e.model }

// APIKey returns the API key.
func (e Endpoint) APIKey() string { return e.apiKey }

// Timeout returns the request timeout.
func (e Endpoint) Timeout() time.Duration { return e.timeout }

// MaxRetries returns the maximum number of retries.
func (e Endpoint) MaxRetries() int { return e.maxRetries }

// InitialDelay returns the first retry delay.
func (e Endpoint) InitialDelay() time.Duration { return e.initialDelay }

// BackoffFactor returns the retry delay multiplier.
func (e Endpoint) BackoffFactor() float64 { return e.backoffFactor }

// RequestsPerSecond returns the client-side rate limit; zero is unlimited.
func (e Endpoint) RequestsPerSecond() float64 { return e.requestsPerSecond }

// MaxBatchSize returns the maximum number of texts per embedding request.
func (e Endpoint) MaxBatchSize() int { return e.maxBatchSize }

// IsConfigured returns true if a model is set.
func (e Endpoint) IsConfigured() bool {
	return e.model != ""
}

// EndpointOption is a functional option for Endpoint.
type EndpointOption func(*Endpoint)

// WithProvider sets the API flavour. Unknown values fall back to OpenAI.
func WithProvider(provider string) EndpointOption {
	return func(e *Endpoint) {
		switch p := strings.ToLower(strings.TrimSpace(provider)); p {
		case ProviderAnthropic:
			e.provider = p
		default:
			e.provider = ProviderOpenAI
		}
	}
}

// WithBaseURL sets the base URL.
func WithBaseURL(url string) EndpointOption {
	return func(e *Endpoint) { e.baseURL = url }
}

// WithModel sets the model identifier.
func WithModel(model string) EndpointOption {
	return func(e *Endpoint) { e.model = model }
}

// WithAPIKey sets the API key.
func WithAPIKey(key string) EndpointOption {
	return func(e *Endpoint) { e.apiKey = key }
}

// WithTimeout sets the request timeout.
func WithTimeout(d time.Duration) EndpointOption {
	return func(e *Endpoint) { e.timeout = d }
}

// WithMaxRetries sets the maximum number of retries.
func WithMaxRetries(n int) EndpointOption {
	return func(e *Endpoint) { e.maxRetries = n }
}

// WithInitialDelay sets the first retry delay.
func WithInitialDelay(d time.Duration) EndpointOption {
	return func(e *Endpoint) { e.initialDelay = d }
}

// WithBackoffFactor sets the retry delay multiplier.
func WithBackoffFactor(f float64) EndpointOption {
	return func(e *Endpoint) { e.backoffFactor = f }
}

// WithRequestsPerSecond sets the client-side rate limit.
func WithRequestsPerSecond(r float64) EndpointOption {
	return func(e *Endpoint) { e.requestsPerSecond = r }
}

// WithMaxBatchSize sets the maximum texts per embedding request.
func WithMaxBatchSize(n int) EndpointOption {
	return func(e *Endpoint) {
		if n > 0 {
			e.maxBatchSize = n
		}
	}
}

// NewEndpointWithOptions creates an Endpoint with functional options.
func NewEndpointWithOptions(opts ...EndpointOption) Endpoint {
	e := NewEndpoint()
	for _, opt := range opts {
		opt(&e)
	}
	return e
}

// AppConfig holds the main application configuration.
type AppConfig struct {
	host                string
	port                int
	dataDir             string
	dbURL               string
	logLevel            string
	logFormat           LogFormat
	apiKeys             []string
	corsOrigins         []string
	indexName           string
	saveInterval        time.Duration
	similarityThreshold float64
	rebuildParallelism  int
	embeddingModel      string
	embeddingDevice     string
	queryInstruction    string
	embeddingCache      bool
	modelDir            string
	embeddingEndpoint   *Endpoint
	chatEndpoint        *Endpoint
	chatPromptsFile     string
	chatDefaultTags     []string
}

// NewAppConfig creates a new AppConfig with defaults.
func NewAppConfig() AppConfig {
	return AppConfig{
		host:                DefaultHost,
		port:                DefaultPort,
		dataDir:             DefaultDataDir,
		logLevel:            DefaultLogLevel,
		logFormat:           LogFormatPretty,
		apiKeys:             []string{},
		corsOrigins:         []string{"*"},
		indexName:           DefaultIndexName,
		saveInterval:        DefaultSaveInterval,
		similarityThreshold: DefaultSimilarityThreshold,
		rebuildParallelism:  DefaultRebuildParallelism,
		embeddingModel:      DefaultEmbeddingModel,
		embeddingDevice:     DefaultEmbeddingDevice,
		embeddingCache:      true,
		chatDefaultTags:     []string{},
	}
}

// Host returns the server host to bind to.
func (c AppConfig) Host() string { return c.host }

// Port returns the server port to listen on.
func (c AppConfig) Port() int { return c.port }

// Addr returns the combined host:port address.
func (c AppConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.host, c.port)
}

// DataDir returns the storage folder.
func (c AppConfig) DataDir() string { return c.dataDir }

// DBURL returns the audit database URL, defaulting to SQLite in the data directory.
func (c AppConfig) DBURL() string {
	if c.dbURL != "" {
		return c.dbURL
	}
	return "sqlite:///" + filepath.Join(c.dataDir, DefaultDBFile)
}

// LogLevel returns the log level.
func (c AppConfig) LogLevel() string { return c.logLevel }

// LogFormat returns the log format.
func (c AppConfig) LogFormat() LogFormat { return c.logFormat }

// APIKeys returns the keys allowed to mutate documents.
func (c AppConfig) APIKeys() []string { return slices.Clone(c.apiKeys) }

// CORSOrigins returns the allowed CORS origins.
func (c AppConfig) CORSOrigins() []string { return slices.Clone(c.corsOrigins) }

// IndexName returns the base name of the durable index files.
func (c AppConfig) IndexName() string { return c.indexName }

// SaveInterval returns the auto-save interval; zero disables auto-save.
func (c AppConfig) SaveInterval() time.Duration { return c.saveInterval }

// SimilarityThreshold returns the duplicate cosine threshold.
func (c AppConfig) SimilarityThreshold() float64 { return c.similarityThreshold }

// RebuildParallelism returns the number of rebuild workers.
func (c AppConfig) RebuildParallelism() int { return c.rebuildParallelism }

// EmbeddingModel returns the local embedding model name.
func (c AppConfig) EmbeddingModel() string { return c.embeddingModel }

// EmbeddingDevice returns the compute device selector.
func (c AppConfig) EmbeddingDevice() string { return c.embeddingDevice }

// QueryInstruction returns the prefix added to search queries.
func (c AppConfig) QueryInstruction() string { return c.queryInstruction }

// EmbeddingCache reports whether embeddings are cached on disk.
func (c AppConfig) EmbeddingCache() bool { return c.embeddingCache }

// EmbeddingCacheDir returns the embedding cache directory.
func (c AppConfig) EmbeddingCacheDir() string {
	return filepath.Join(c.dataDir, DefaultEmbeddingCacheSubdir)
}

// ModelDir returns the local model directory.
func (c AppConfig) ModelDir() string {
	if c.modelDir != "" {
		return c.modelDir
	}
	return filepath.Join(c.dataDir, DefaultModelSubdir)
}

// EmbeddingEndpoint returns the remote embedding endpoint, or nil for the local model.
func (c AppConfig) EmbeddingEndpoint() *Endpoint { return c.embeddingEndpoint }

// ChatEndpoint returns the chat endpoint, or nil when chat is disabled.
func (c AppConfig) ChatEndpoint() *Endpoint { return c.chatEndpoint }

// ChatPromptsFile returns the prompt override file.
func (c AppConfig) ChatPromptsFile() string { return c.chatPromptsFile }

// ChatDefaultTags returns tags added to every chat retrieval.
func (c AppConfig) ChatDefaultTags() []string { return slices.Clone(c.chatDefaultTags) }

// EnsureDataDir creates the data directory if it does not exist.
func (c AppConfig) EnsureDataDir() error {
	if err := os.MkdirAll(c.dataDir, 0o755); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}
	return nil
}

// AppConfigOption is a functional option for AppConfig.
type AppConfigOption func(*AppConfig)

// WithHost sets the server host.
func WithHost(host string) AppConfigOption {
	return func(c *AppConfig) { c.host = host }
}

// WithPort sets the server port.
func WithPort(port int) AppConfigOption {
	return func(c *AppConfig) { c.port = port }
}

// WithDataDir sets the data directory.
func WithDataDir(dir string) AppConfigOption {
	return func(c *AppConfig) { c.dataDir = dir }
}

// WithDBURL sets the database URL.
func WithDBURL(url string) AppConfigOption {
	return func(c *AppConfig) { c.dbURL = url }
}

// WithLogLevel sets the log level.
func WithLogLevel(level string) AppConfigOption {
	return func(c *AppConfig) { c.logLevel = level }
}

// WithLogFormat sets the log format.
func WithLogFormat(format LogFormat) AppConfigOption {
	return func(c *AppConfig) { c.logFormat = format }
}

// WithAPIKeys sets the API keys.
func WithAPIKeys(keys []string) AppConfigOption {
	return func(c *AppConfig) { c.apiKeys = slices.Clone(keys) }
}

// WithCORSOrigins sets the allowed CORS origins.
func WithCORSOrigins(origins []string) AppConfigOption {
	return func(c *AppConfig) {
		if len(origins) > 0 {
			c.corsOrigins = slices.Clone(origins)
		}
	}
}

// WithIndexName sets the base name of the durable index files.
func WithIndexName(name string) AppConfigOption {
	return func(c *AppConfig) { c.indexName = name }
}

// WithSaveInterval sets the auto-save interval.
func WithSaveInterval(d time.Duration) AppConfigOption {
	return func(c *AppConfig) {
		if d >= 0 {
			c.saveInterval = d
		}
	}
}

// WithSimilarityThreshold sets the duplicate cosine threshold.
func WithSimilarityThreshold(t float64) AppConfigOption {
	return func(c *AppConfig) { c.similarityThreshold = t }
}

// WithRebuildParallelism sets the number of rebuild workers.
func WithRebuildParallelism(n int) AppConfigOption {
	return func(c *AppConfig) {
		if n > 0 {
			c.rebuildParallelism = n
		}
	}
}

// WithEmbeddingModel sets the local embedding model name.
func WithEmbeddingModel(model string) AppConfigOption {
	return func(c *AppConfig) { c.embeddingModel = model }
}

// WithEmbeddingDevice sets the compute device selector.
func WithEmbeddingDevice(device string) AppConfigOption {
	return func(c *AppConfig) { c.embeddingDevice = strings.ToLower(device) }
}

// WithQueryInstruction sets the search query prefix.
func WithQueryInstruction(prefix string) AppConfigOption {
	return func(c *AppConfig) { c.queryInstruction = prefix }
}

// WithEmbeddingCache enables or disables the embedding cache.
func WithEmbeddingCache(enabled bool) AppConfigOption {
	return func(c *AppConfig) { c.embeddingCache = enabled }
}

// WithModelDir sets the local model directory.
func WithModelDir(dir string) AppConfigOption {
	return func(c *AppConfig) { c.modelDir = dir }
}

// WithEmbeddingEndpoint sets the remote embedding endpoint.
func WithEmbeddingEndpoint(e Endpoint) AppConfigOption {
	return func(c *AppConfig) { c.embeddingEndpoint = &e }
}

// WithChatEndpoint sets the chat endpoint.
func WithChatEndpoint(e Endpoint) AppConfigOption {
	return func(c *AppConfig) { c.chatEndpoint = &e }
}

// WithChatPromptsFile sets the prompt override file.
func WithChatPromptsFile(path string) AppConfigOption {
	return func(c *AppConfig) { c.chatPromptsFile = path }
}

// WithChatDefaultTags sets tags added to every chat retrieval.
func WithChatDefaultTags(tags []string) AppConfigOption {
	return func(c *AppConfig) { c.chatDefaultTags = slices.Clone(tags) }
}

// NewAppConfigWithOptions creates an AppConfig with functional options.
func NewAppConfigWithOptions(opts ...AppConfigOption) AppConfig {
	return NewAppConfig().Apply(opts...)
}

// Apply returns a new AppConfig with the given options applied.
func (c AppConfig) Apply(opts ...AppConfigOption) AppConfig {
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// LogAttrs returns slog attributes for logging the configuration.
// Secrets are masked or shown as counts.
func (c AppConfig) LogAttrs() []slog.Attr {
	return []slog.Attr{
		slog.String("data_dir", c.dataDir),
		slog.String("log_level", c.logLevel),
		slog.String("db_url", c.maskedDBURL()),
		slog.String("index_name", c.indexName),
		slog.Duration("save_interval", c.saveInterval),
		slog.Float64("similarity_threshold", c.similarityThreshold),
		slog.String("embedding", c.embeddingSource()),
		slog.String("chat_model", endpointModel(c.chatEndpoint)),
		slog.String("chat_provider", endpointProvider(c.chatEndpoint)),
		slog.Int("api_keys_count", len(c.apiKeys)),
	}
}

func (c AppConfig) maskedDBURL() string {
	url := c.DBURL()
	if strings.HasPrefix(url, "sqlite:") {
		return url
	}
	return "postgres://***@***"
}

func (c AppConfig) embeddingSource() string {
	if c.embeddingEndpoint != nil {
		return "remote:" + c.embeddingEndpoint.Model()
	}
	return "local:" + c.embeddingModel + "@" + c.embeddingDevice
}

func endpointProvider(e *Endpoint) string {
	if e == nil {
		return ""
	}
	return e.provider
}

func endpointModel(e *Endpoint) string {
	if e == nil {
		return "(not configured)"
	}
	return e.Model()
}

// ParseList parses a comma-separated string, dropping blanks.
func ParseList(s string) []string {
	if s == "" {
		return []string{}
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
