package main

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/helixml/semandoc"
	"github.com/helixml/semandoc/application/service"
	"github.com/helixml/semandoc/infrastructure/loader"
	"github.com/spf13/cobra"
)

func (c *cli) importCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import PATH...",
		Short: "Import text, markdown and PDF files",
		Long: `Import documents from files or directories and save the index.

Directories are walked recursively; files with an unsupported extension are
skipped. Near duplicates of stored documents are skipped.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			paths, err := collectFiles(args)
			if err != nil {
				return err
			}
			if len(paths) == 0 {
				return fmt.Errorf("no supported files under %v", args)
			}
			cfg, err := c.config()
			if err != nil {
				return err
			}
			client, _, release, err := open(cfg, semandoc.WithSaveInterval(0))
			if err != nil {
				return err
			}
			defer release()

			files := make([]service.File, 0, len(paths))
			for _, p := range paths {
				f, err := os.Open(p)
				if err != nil {
					return fmt.Errorf("open %s: %w", p, err)
				}
				defer func() { _ = f.Close() }()
				files = append(files, service.File{Name: p, Reader: f})
			}

			ctx := cmd.Context()
			result, err := client.Documents.ImportFiles(ctx, files)
			if err != nil {
				return fmt.Errorf("import: %w", err)
			}
			if err := client.Documents.Save(ctx); err != nil {
				return fmt.Errorf("save: %w", err)
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "imported %d of %d documents from %d files (%d stored)\n",
				len(result.Inserted), result.Submitted, len(files), client.Documents.Count())
			return nil
		},
	}
}

// collectFiles expands directories into the supported files they contain.
func collectFiles(args []string) ([]string, error) {
	var paths []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			paths = append(paths, arg)
			continue
		}
		err = filepath.WalkDir(arg, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && loader.Supported(path) {
				paths = append(paths, path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walk %s: %w", arg, err)
		}
	}
	return paths, nil
}
