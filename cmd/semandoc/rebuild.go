package main

import (
	"fmt"

	"github.com/helixml/semandoc"
	"github.com/spf13/cobra"
)

func (c *cli) rebuildCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rebuild",
		Short: "Re-embed every document and save the index",
		Long: `Re-embed every stored document with the configured model and save.

Run this after changing EMBEDDING_MODEL or EMBEDDING_ENDPOINT_MODEL.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := c.config()
			if err != nil {
				return err
			}
			client, _, release, err := open(cfg, semandoc.WithSaveInterval(0))
			if err != nil {
				return err
			}
			defer release()

			ctx := cmd.Context()
			if err := client.Documents.Rebuild(ctx); err != nil {
				return fmt.Errorf("rebuild: %w", err)
			}
			if err := client.Documents.Save(ctx); err != nil {
				return fmt.Errorf("save: %w", err)
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "rebuilt %d documents\n", client.Documents.Count())
			return nil
		},
	}
}
