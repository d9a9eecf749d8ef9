package semandoc

import "errors"

// Client construction errors.
var (
	// ErrNoDataDir indicates the client was configured without a data directory.
	ErrNoDataDir = errors.New("semandoc: data directory is required")

	// ErrNoEmbeddingModel indicates neither an embedding provider nor a local
	// model is available.
	ErrNoEmbeddingModel = errors.New("semandoc: no embedding model found")
)
