package provider

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/knights-analytics/hugot"
	"github.com/knights-analytics/hugot/pipelines"
)

const localBatchMax = 10

// localModel is the process-wide hugot session. ONNX Runtime allows a single
// session per process and is not thread-safe, so initialization and
// inference both hold mu.
var localModel struct {
	mu       sync.Mutex
	session  *hugot.Session
	pipeline *pipelines.FeatureExtractionPipeline
	path     string
}

// HugotEmbedding embeds text with a local sentence-transformer model through
// hugot. Output vectors are L2-normalized.
//
// The model directory is resolved in order:
//  1. modelDir/model, when it contains tokenizer.json.
//  2. The first subdirectory of modelDir containing tokenizer.json.
//  3. The model compiled into the binary (build tag embed_model), extracted
//     into modelDir on first use.
type HugotEmbedding struct {
	modelDir string
	model    string
}

// NewHugotEmbedding creates a HugotEmbedding. Nothing is loaded until the
// first Embed call.
func NewHugotEmbedding(modelDir, model string) *HugotEmbedding {
	return &HugotEmbedding{modelDir: modelDir, model: model}
}

// Available reports whether a model can be loaded.
func (h *HugotEmbedding) Available() bool {
	if hasEmbeddedModel {
		return true
	}
	_, err := h.diskModelPath()
	return err == nil
}

// Capacity returns the maximum number of texts per Embed call.
func (h *HugotEmbedding) Capacity() int { return localBatchMax }

// Embed embeds at most Capacity texts.
func (h *HugotEmbedding) Embed(ctx context.Context, req EmbeddingRequest) (EmbeddingResponse, error) {
	texts := req.Texts()
	if len(texts) == 0 {
		return NewEmbeddingResponse([][]float64{}, NewUsage(0, 0, 0)), nil
	}
	if len(texts) > localBatchMax {
		return EmbeddingResponse{}, fmt.Errorf("embed: %d texts exceeds capacity %d", len(texts), localBatchMax)
	}
	if err := ctx.Err(); err != nil {
		return EmbeddingResponse{}, err
	}

	localModel.mu.Lock()
	defer localModel.mu.Unlock()

	if err := h.loadLocked(); err != nil {
		return EmbeddingResponse{}, err
	}

	result, err := localModel.pipeline.RunPipeline(texts)
	if err != nil {
		return EmbeddingResponse{}, fmt.Errorf("run embedding pipeline: %w", err)
	}

	embeddings := make([][]float64, len(result.Embeddings))
	for i, vec := range result.Embeddings {
		embeddings[i] = make([]float64, len(vec))
		for j, v := range vec {
			embeddings[i][j] = float64(v)
		}
	}
	return NewEmbeddingResponse(embeddings, NewUsage(0, 0, 0)), nil
}

// Close is a no-op; the shared session lives until the process exits.
func (h *HugotEmbedding) Close() error { return nil }

func (h *HugotEmbedding) loadLocked() error {
	if localModel.pipeline != nil {
		return nil
	}

	modelPath, err := h.resolveModelPath()
	if err != nil {
		return err
	}

	session, err := newHugotSession()
	if err != nil {
		return fmt.Errorf("create hugot session: %w", err)
	}

	pipeline, err := hugot.NewPipeline(session, hugot.FeatureExtractionConfig{
		ModelPath: modelPath,
		Name:      "semandoc-embeddings",
		Options: []hugot.FeatureExtractionOption{
			pipelines.WithNormalization(),
		},
	})
	if err != nil {
		_ = session.Destroy()
		return fmt.Errorf("create feature extraction pipeline: %w", err)
	}

	localModel.session = session
	localModel.pipeline = pipeline
	localModel.path = modelPath
	return nil
}

func (h *HugotEmbedding) resolveModelPath() (string, error) {
	if path, err := h.diskModelPath(); err == nil {
		return path, nil
	}
	if !hasEmbeddedModel {
		return "", fmt.Errorf("%w: no model with tokenizer.json under %s (download %q there or build with -tags embed_model)",
			ErrModelUnavailable, h.modelDir, h.model)
	}
	if err := os.MkdirAll(h.modelDir, 0o755); err != nil {
		return "", fmt.Errorf("create model directory: %w", err)
	}
	return extractEmbeddedModel(embeddedModelFS, h.modelDir)
}

func hasTokenizer(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, "tokenizer.json"))
	return err == nil
}

func (h *HugotEmbedding) diskModelPath() (string, error) {
	if h.model != "" {
		if named := filepath.Join(h.modelDir, h.model); hasTokenizer(named) {
			return named, nil
		}
	}
	entries, err := os.ReadDir(h.modelDir)
	if err != nil {
		return "", fmt.Errorf("read model directory %s: %w", h.modelDir, err)
	}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if candidate := filepath.Join(h.modelDir, e.Name()); hasTokenizer(candidate) {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("%w: no model directory under %s", ErrModelUnavailable, h.modelDir)
}

// extractEmbeddedModel copies the first model under models/ in embedded to
// targetDir and returns its path. Existing extractions are reused.
func extractEmbeddedModel(embedded fs.FS, targetDir string) (string, error) {
	models, err := fs.Sub(embedded, "models")
	if err != nil {
		return "", fmt.Errorf("access embedded models: %w", err)
	}
	entries, err := fs.ReadDir(models, ".")
	if err != nil {
		return "", fmt.Errorf("read embedded models: %w", err)
	}

	name := ""
	for _, e := range entries {
		if e.IsDir() {
			name = e.Name()
			break
		}
	}
	if name == "" {
		return "", fmt.Errorf("no model directory found in embedded models")
	}

	modelPath := filepath.Join(targetDir, name)
	if hasTokenizer(modelPath) {
		return modelPath, nil
	}

	model, err := fs.Sub(models, name)
	if err != nil {
		return "", fmt.Errorf("access embedded model %s: %w", name, err)
	}
	err = fs.WalkDir(model, ".", func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		target := filepath.Join(modelPath, path)
		if d.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		data, err := fs.ReadFile(model, path)
		if err != nil {
			return fmt.Errorf("read embedded file %s: %w", path, err)
		}
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return err
		}
		return os.WriteFile(target, data, 0o644)
	})
	if err != nil {
		return "", fmt.Errorf("extract embedded model: %w", err)
	}
	return modelPath, nil
}

var (
	_ Embedder = (*HugotEmbedding)(nil)
	_ Capacity = (*HugotEmbedding)(nil)
)
