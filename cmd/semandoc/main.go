// Command semandoc runs the semantic document store.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/helixml/semandoc"
	"github.com/helixml/semandoc/internal/config"
	"github.com/helixml/semandoc/internal/log"
	"github.com/spf13/cobra"
)

// Set with -ldflags at build time.
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// cli holds the persistent flags every subcommand reads.
type cli struct {
	envFile string
}

func rootCmd() *cobra.Command {
	c := &cli{}
	cmd := &cobra.Command{
		Use:   "semandoc",
		Short: "Semantic document store",
		Long: `SemanDoc stores short text documents with tags, categories and a validity
window, finds them by meaning, and answers questions from them.

Configuration comes from defaults, then the .env file (--env-file, or .env in
the working directory), then environment variables, then command flags.`,
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVar(&c.envFile, "env-file", "", "Path to .env file (default: .env in current directory)")

	cmd.AddCommand(
		c.serveCmd(),
		c.stdioCmd(),
		c.importCmd(),
		c.rebuildCmd(),
		c.downloadModelCmd(),
		versionCmd(),
	)
	return cmd
}

func (c *cli) config() (config.AppConfig, error) {
	cfg, err := config.LoadConfig(c.envFile)
	if err != nil {
		return config.AppConfig{}, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// open prepares the data directory and logging for cfg and builds a client.
// The returned release func closes the client and logs any failure.
func open(cfg config.AppConfig, extra ...semandoc.Option) (*semandoc.Client, *slog.Logger, func(), error) {
	if err := cfg.EnsureDataDir(); err != nil {
		return nil, nil, nil, fmt.Errorf("create data directory: %w", err)
	}
	logger := log.Configure(cfg)

	client, err := semandoc.New(append(clientOptions(cfg, logger), extra...)...)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("create semandoc client: %w", err)
	}
	release := func() {
		if err := client.Close(); err != nil {
			logger.Error("close semandoc client", slog.Any("error", err))
		}
	}
	return client, logger, release, nil
}
