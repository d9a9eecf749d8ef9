package main

import (
	"log/slog"

	"github.com/helixml/semandoc/internal/mcp"
	"github.com/spf13/cobra"
)

func (c *cli) stdioCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stdio",
		Short: "Serve the MCP tools over stdin and stdout",
		Long: `Serve the Model Context Protocol tools (search_documents, get_document,
get_stats, ask, get_version) over stdin and stdout for a local assistant.

Logs are written to stderr and never mix with the protocol stream.`,
		Args: cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := c.config()
			if err != nil {
				return err
			}
			client, logger, release, err := open(cfg)
			if err != nil {
				return err
			}
			defer release()

			logger.Info("mcp stdio server ready",
				slog.String("version", version),
				slog.Int("documents", client.Documents.Count()),
				slog.Bool("chat", client.Chat.Available()),
			)
			return mcp.NewServer(client.Documents, client.Chat, version, logger).ServeStdio()
		},
	}
}
