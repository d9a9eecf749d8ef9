//go:build embed_model

package provider

import "embed"

// embeddedModelFS carries the sentence embedding model placed under models/
// by the download-model command, so the binary can embed documents without
// a separate MODEL_DIR.
//
//go:embed all:models
var embeddedModelFS embed.FS

// hasEmbeddedModel tells the local embedder to extract embeddedModelFS
// when MODEL_DIR has no model.
const hasEmbeddedModel = true
