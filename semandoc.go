// Package semandoc provides a semantic document store: documents are
// embedded, de-duplicated by cosine similarity, searched by vector distance
// with metadata filters, persisted to disk and optionally used to ground
// LLM chat answers.
//
// Basic usage:
//
//	client, err := semandoc.New(
//	    semandoc.WithDataDir("./data"),
//	    semandoc.WithOpenAI(provider.OpenAIConfig{
//	        APIKey:         os.Getenv("OPENAI_API_KEY"),
//	        EmbeddingModel: "text-embedding-3-small",
//	        ChatModel:      "gpt-4o-mini",
//	    }),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	doc, err := client.Documents.Create(ctx, service.DocumentInput{
//	    Content: "The office is closed on public holidays.",
//	    Tags:    []string{"hr"},
//	})
//
//	results, err := client.Documents.Search(ctx, service.SearchParams{
//	    Query: "when is the office closed",
//	    K:     3,
//	})
//
//	answer, err := client.Chat.Chat(ctx, "Is the office open on holidays?", nil)
package semandoc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/helixml/semandoc/application/service"
	"github.com/helixml/semandoc/domain/document"
	"github.com/helixml/semandoc/infrastructure/persistence"
	"github.com/helixml/semandoc/infrastructure/provider"
	"github.com/helixml/semandoc/infrastructure/vectorstore"
	"github.com/helixml/semandoc/internal/config"
	"github.com/helixml/semandoc/internal/database"
)

// Client is the main entry point for the semandoc library. It owns the
// vector store, the audit database and the auto-save loop, which starts on
// creation.
//
// Access services via struct fields:
//
//	client.Documents.Create(ctx, in)
//	client.Documents.Search(ctx, params)
//	client.Chat.Chat(ctx, "question", nil)
type Client struct {
	Documents   *service.Document
	Chat        *service.Chat
	Persistence *service.Persistence
	Audit       persistence.AuditStore

	store   *vectorstore.Store
	db      database.Database
	closers []io.Closer

	logger  *slog.Logger
	dataDir string
	apiKeys []string
	closed  atomic.Bool
	mu      sync.Mutex
}

// New creates a new Client with the given options.
func New(opts ...Option) (*Client, error) {
	cfg := newClientConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	logger := cfg.logger
	if logger == nil {
		logger = slog.Default()
	}

	if cfg.dataDir == "" {
		return nil, ErrNoDataDir
	}
	if err := os.MkdirAll(cfg.dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}

	ctx := context.Background()
	closers := cfg.closers
	fail := func(err error) (*Client, error) {
		return nil, errors.Join(err, closeAll(closers, logger))
	}

	embedder := cfg.embeddingProvider
	if embedder == nil {
		modelDir := cfg.modelDir
		if modelDir == "" {
			modelDir = filepath.Join(cfg.dataDir, config.DefaultModelSubdir)
		}
		local := provider.NewHugotEmbedding(modelDir, cfg.embeddingModel)
		if !local.Available() {
			return fail(fmt.Errorf("%w in %s: download one or configure an embedding endpoint", ErrNoEmbeddingModel, modelDir))
		}
		closers = append(closers, local)
		embedder = local
		logger.Info("local embedding model enabled", slog.String("model_dir", modelDir), slog.String("model", cfg.embeddingModel))
	}

	if cfg.embeddingCache {
		cached, err := provider.NewCachingEmbedder(embedder, provider.CacheOptions{
			Dir:    filepath.Join(cfg.dataDir, config.DefaultEmbeddingCacheSubdir),
			Model:  cfg.embeddingModel,
			Logger: logger,
		})
		if err != nil {
			return fail(err)
		}
		closers = append(closers, cached)
		embedder = cached
	}

	batchSize := provider.DefaultBatchSize
	if c, ok := embedder.(provider.Capacity); ok && c.Capacity() > 0 {
		batchSize = c.Capacity()
	}
	adapter := &embeddingAdapter{inner: embedder, batchSize: batchSize}

	store, err := vectorstore.Open(ctx, cfg.dataDir, adapter,
		vectorstore.WithName(cfg.indexName),
		vectorstore.WithSimilarityThreshold(cfg.similarityThreshold),
		vectorstore.WithParallelism(cfg.rebuildParallelism),
		vectorstore.WithBatchSize(batchSize),
		vectorstore.WithQueryPrefix(cfg.queryInstruction),
		vectorstore.WithLogger(logger),
	)
	if err != nil {
		return fail(fmt.Errorf("open vector store: %w", err))
	}
	closers = append(closers, store)

	dbURL := cfg.databaseURL
	if dbURL == "" {
		dbURL = "sqlite:///" + filepath.Join(cfg.dataDir, config.DefaultDBFile)
	}
	db, err := database.Open(ctx, dbURL, logger)
	if err != nil {
		return fail(fmt.Errorf("open database: %w", err))
	}
	if err := persistence.Migrate(db); err != nil {
		return fail(errors.Join(err, db.Close()))
	}

	prompts, err := service.LoadPrompts(cfg.promptsFile)
	if err != nil {
		return fail(errors.Join(err, db.Close()))
	}

	reranker := cfg.reranker
	if reranker == nil {
		reranker = provider.NewEmbeddingReranker(adapter)
	}
	chatOpts := []service.ChatOption{
		service.WithReranker(reranker),
		service.WithPrompts(prompts),
		service.WithDefaultTags(cfg.chatDefaultTags...),
	}
	if cfg.textProvider != nil {
		chatOpts = append(chatOpts, service.WithChatModel(cfg.textProvider))
	}
	chat, err := service.NewChat(store, logger, chatOpts...)
	if err != nil {
		return fail(errors.Join(err, db.Close()))
	}

	auditStore := persistence.NewAuditStore(db)
	client := &Client{
		Documents:   service.NewDocument(store, auditStore, logger),
		Chat:        chat,
		Persistence: service.NewPersistence(store, cfg.saveInterval, logger),
		Audit:       auditStore,
		store:       store,
		db:          db,
		closers:     closers,
		logger:      logger,
		dataDir:     cfg.dataDir,
		apiKeys:     cfg.apiKeys,
	}

	client.Persistence.Start(ctx)

	logger.Info("semandoc client ready",
		slog.Int("count", store.Count()),
		slog.Int("dimension", store.Dimension()),
		slog.String("path", cfg.dataDir),
	)
	return client, nil
}

// Close saves the store, stops the auto-save loop and releases resources.
// A failed final save is returned but resources are still released.
func (c *Client) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return service.ErrClientClosed
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	var errs []error
	if err := c.Persistence.ForceSave(context.Background()); err != nil {
		c.logger.Error("final save failed", slog.Any("error", err))
		errs = append(errs, fmt.Errorf("final save: %w", err))
	}
	c.Persistence.Stop()

	if err := closeAll(c.closers, c.logger); err != nil {
		errs = append(errs, err)
	}
	if err := c.db.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close database: %w", err))
	}

	c.logger.Info("semandoc client closed")
	return errors.Join(errs...)
}

// Closed reports whether Close has been called.
func (c *Client) Closed() bool {
	return c.closed.Load()
}

// Logger returns the client's logger.
func (c *Client) Logger() *slog.Logger {
	return c.logger
}

// APIKeys returns the keys that protect mutating HTTP endpoints.
func (c *Client) APIKeys() []string {
	return append([]string(nil), c.apiKeys...)
}

// DataDir returns the directory holding the index files.
func (c *Client) DataDir() string {
	return c.dataDir
}

// closeAll closes resources in reverse order of acquisition.
func closeAll(closers []io.Closer, logger *slog.Logger) error {
	var errs []error
	for i := len(closers) - 1; i >= 0; i-- {
		if err := closers[i].Close(); err != nil {
			logger.Error("failed to close resource", slog.Any("error", err))
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// embeddingAdapter adapts a provider.Embedder to document.Embedder, splitting
// requests larger than the provider accepts.
type embeddingAdapter struct {
	inner     provider.Embedder
	batchSize int
}

var _ document.Embedder = (*embeddingAdapter)(nil)

func (a *embeddingAdapter) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	out := make([][]float64, 0, len(texts))
	for start := 0; start < len(texts); start += a.batchSize {
		end := min(start+a.batchSize, len(texts))
		resp, err := a.inner.Embed(ctx, provider.NewEmbeddingRequest(texts[start:end]))
		if err != nil {
			return nil, err
		}
		out = append(out, resp.Embeddings()...)
	}
	return out, nil
}
