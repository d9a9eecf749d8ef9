package main

import (
	"context"
	"errors"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/helixml/semandoc"
	"github.com/helixml/semandoc/infrastructure/api"
	"github.com/helixml/semandoc/internal/config"
	"github.com/spf13/cobra"
)

// shutdownTimeout bounds how long in-flight requests may finish.
const shutdownTimeout = 30 * time.Second

func (c *cli) serveCmd() *cobra.Command {
	var (
		host         string
		port         int
		saveInterval time.Duration
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		Long: `Start the HTTP API server, with the MCP endpoint mounted at /mcp.

Environment variables:
  HOST                         Server host to bind to (default: 0.0.0.0)
  PORT                         Server port to listen on (default: 8000)
  DATA_DIR                     Data directory (default: ./tmp)
  DB_URL                       Audit database URL (default: sqlite:///{data_dir}/semandoc.db)
  LOG_LEVEL                    Log level: DEBUG, INFO, WARN, ERROR (default: INFO)
  LOG_FORMAT                   Log format: pretty, json (default: pretty)
  API_KEYS                     Comma-separated keys required for mutating endpoints
  CORS_ALLOWED_ORIGINS         Comma-separated allowed origins (default: *)

  INDEX_NAME                   Base name of the index files (default: index)
  SAVE_INTERVAL                Auto-save interval in seconds, 0 disables (default: 300)
  SIMILARITY_THRESHOLD         Duplicate cosine similarity (default: 0.9)
  REBUILD_PARALLELISM          Re-embedding workers (default: 12)

  EMBEDDING_MODEL              Local model directory name (default: m3e-base)
  EMBEDDING_DEVICE             cpu or gpu (default: cpu)
  EMBEDDING_QUERY_INSTRUCTION  Prefix added to search queries
  EMBEDDING_CACHE              Cache embeddings on disk (default: true)
  MODEL_DIR                    Local models (default: {data_dir}/models)

  EMBEDDING_ENDPOINT_*         Remote embedding service, replaces the local model
    BASE_URL                   Base URL (e.g., https://api.openai.com/v1)
    MODEL                      Model identifier; setting it enables the endpoint
    API_KEY                    API key for authentication
    TIMEOUT                    Request timeout in seconds (default: 60)
    MAX_RETRIES                Retry attempts (default: 5)
    INITIAL_DELAY              First retry delay in seconds (default: 2)
    BACKOFF_FACTOR             Retry delay multiplier (default: 2)
    REQUESTS_PER_SECOND        Rate limit, 0 is unlimited (default: 0)
    MAX_BATCH_SIZE             Texts per request (default: 10)

  CHAT_ENDPOINT_*              Chat completion service (same fields, plus
    PROVIDER                   openai or anthropic (default: openai))
  CHAT_PROMPTS_FILE            YAML file overriding the chat prompts
  CHAT_DEFAULT_TAGS            Tags added to every chat retrieval`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := c.config()
			if err != nil {
				return err
			}
			cfg = applyServeOverrides(cfg, host, port, saveInterval, cmd.Flags().Changed("save-interval"))
			return runServe(cmd.Context(), cfg)
		},
	}

	cmd.Flags().StringVar(&host, "host", "", "Server host to bind to (default: 0.0.0.0)")
	cmd.Flags().IntVar(&port, "port", 0, "Server port to listen on (default: 8000)")
	cmd.Flags().DurationVar(&saveInterval, "save-interval", 0, "Auto-save interval, 0 disables (default: 5m)")

	return cmd
}

func runServe(ctx context.Context, cfg config.AppConfig) error {
	if ctx == nil {
		ctx = context.Background()
	}
	client, logger, release, err := open(cfg, semandoc.WithAPIKeys(cfg.APIKeys()...))
	if err != nil {
		return err
	}
	defer release()
	attrs := append([]slog.Attr{slog.String("version", version)}, cfg.LogAttrs()...)
	logger.LogAttrs(ctx, slog.LevelInfo, "starting semandoc", attrs...)

	apiServer := api.NewAPIServer(client,
		api.WithCORSOrigins(cfg.CORSOrigins()...),
		api.WithVersion(version),
	)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- apiServer.ListenAndServe(cfg.Addr())
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := apiServer.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		logger.Error("shutdown error", slog.Any("error", err))
	}
	return <-errCh
}

// applyServeOverrides applies command line flag overrides to the config.
func applyServeOverrides(cfg config.AppConfig, host string, port int, saveInterval time.Duration, saveIntervalSet bool) config.AppConfig {
	var opts []config.AppConfigOption

	if host != "" {
		opts = append(opts, config.WithHost(host))
	}
	if port != 0 {
		opts = append(opts, config.WithPort(port))
	}
	if saveIntervalSet {
		opts = append(opts, config.WithSaveInterval(saveInterval))
	}

	return cfg.Apply(opts...)
}
