package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/knights-analytics/hugot"
	"github.com/spf13/cobra"
)

// defaultModelRepo is a sentence-transformer published with an ONNX export.
const defaultModelRepo = "sentence-transformers/all-MiniLM-L6-v2"

func (c *cli) downloadModelCmd() *cobra.Command {
	var (
		repo     string
		onnxPath string
	)

	cmd := &cobra.Command{
		Use:   "download-model",
		Short: "Download a local embedding model from Hugging Face",
		Long: `Download a sentence-transformer with an ONNX export into MODEL_DIR.

The local embedder uses MODEL_DIR/EMBEDDING_MODEL when it exists, otherwise the
first model directory found under MODEL_DIR.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := c.config()
			if err != nil {
				return err
			}
			dest := cfg.ModelDir()
			if _, err := os.Stat(filepath.Join(dest, cfg.EmbeddingModel(), "tokenizer.json")); err == nil {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "model already present at %s\n", filepath.Join(dest, cfg.EmbeddingModel()))
				return nil
			}
			if err := os.MkdirAll(dest, 0o755); err != nil {
				return fmt.Errorf("create model directory: %w", err)
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "downloading %s to %s\n", repo, dest)
			opts := hugot.NewDownloadOptions()
			opts.OnnxFilePath = onnxPath
			path, err := hugot.DownloadModel(repo, dest, opts)
			if err != nil {
				return fmt.Errorf("download model: %w", err)
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "model downloaded to %s\n", path)
			return nil
		},
	}

	cmd.Flags().StringVar(&repo, "repo", defaultModelRepo, "Hugging Face model repository")
	cmd.Flags().StringVar(&onnxPath, "onnx-file", "onnx/model.onnx", "Path of the ONNX file inside the repository")

	return cmd
}
