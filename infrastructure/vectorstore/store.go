// Package vectorstore is the core of the semantic document store. It keeps
// the similarity index, the document map and the position map consistent
// across inserts, searches, removals, rebuilds and durable saves.
//
// Writers serialize on a single store-wide mutex. Readers never lock: every
// mutation builds a new snapshot and publishes it with an atomic pointer
// swap, so a search observes either the state before or after a mutation.
package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/helixml/semandoc/domain/document"
	"github.com/helixml/semandoc/infrastructure/index"
)

// Store errors.
var (
	// ErrDimensionMismatch indicates the embedder produced vectors of a
	// different size than the store was opened with. It is a configuration
	// error.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrCorruptStore indicates the durable files could not be loaded.
	ErrCorruptStore = errors.New("corrupt vector store files")

	// ErrClosed indicates the store was used after Close.
	ErrClosed = errors.New("vector store closed")
)

// Defaults.
const (
	DefaultName                = "index"
	DefaultSimilarityThreshold = 0.9
	DefaultParallelism         = 12
	DefaultBatchSize           = 32
	DefaultK                   = 5

	maxFetchK      = 100
	filterWidening = 4
	dimensionProbe = "dimension probe"
)

// Store is the vector store. Create it with Open and release it with Close.
type Store struct {
	dir         string
	name        string
	embedder    document.Embedder
	threshold   float64
	parallelism int
	batchSize   int
	queryPrefix string
	logger      *slog.Logger
	now         func() time.Time

	dim   int
	state atomic.Pointer[snapshot]
	mu    sync.Mutex

	saves    chan saveRequest
	saveWG   sync.WaitGroup
	closeMu  sync.RWMutex
	closed   bool
	lastSave atomic.Pointer[time.Time]
}

// Option configures a Store.
type Option func(*Store)

// WithName sets the base name of the durable files.
func WithName(name string) Option {
	return func(s *Store) {
		if name != "" {
			s.name = name
		}
	}
}

// WithSimilarityThreshold sets the default duplicate cosine threshold.
func WithSimilarityThreshold(threshold float64) Option {
	return func(s *Store) { s.threshold = threshold }
}

// WithParallelism sets the number of worker units used by RebuildIndex.
func WithParallelism(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.parallelism = n
		}
	}
}

// WithBatchSize caps the number of texts sent to the embedder per call.
func WithBatchSize(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.batchSize = n
		}
	}
}

// WithQueryPrefix sets an instruction prepended to search queries before
// they are embedded. Document content is embedded as is.
func WithQueryPrefix(prefix string) Option {
	return func(s *Store) { s.queryPrefix = prefix }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock sets the time source used for validity windows.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// Open creates a Store persisted under dir. The embedder is probed once to
// learn the vector dimension. Existing files are loaded; a store saved with
// a different dimension, or files that cannot be decoded, are fatal.
func Open(ctx context.Context, dir string, embedder document.Embedder, opts ...Option) (*Store, error) {
	if embedder == nil {
		return nil, fmt.Errorf("open vector store: nil embedder")
	}

	s := &Store{
		dir:         dir,
		name:        DefaultName,
		embedder:    embedder,
		threshold:   DefaultSimilarityThreshold,
		parallelism: DefaultParallelism,
		batchSize:   DefaultBatchSize,
		logger:      slog.Default(),
		now:         time.Now,
		saves:       make(chan saveRequest, 8),
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create store directory: %w", err)
	}

	dim, err := s.probeDimension(ctx)
	if err != nil {
		return nil, err
	}
	s.dim = dim

	if err := s.recoverBackups(); err != nil {
		return nil, fmt.Errorf("recover backups: %w", err)
	}

	snap, err := s.load()
	if err != nil {
		return nil, err
	}
	s.state.Store(snap)

	s.saveWG.Go(s.runSaveWorker)

	s.logger.Info("vector store opened",
		slog.String("path", s.dir),
		slog.String("index", s.name),
		slog.Int("dimension", s.dim),
		slog.Int("count", snap.count()),
	)
	return s, nil
}

func (s *Store) probeDimension(ctx context.Context) (int, error) {
	vecs, err := s.embedder.Embed(ctx, []string{dimensionProbe})
	if err != nil {
		return 0, fmt.Errorf("probe embedding dimension: %w", err)
	}
	if len(vecs) != 1 || len(vecs[0]) == 0 {
		return 0, fmt.Errorf("probe embedding dimension: embedder returned no vector")
	}
	return len(vecs[0]), nil
}

// Close drains queued saves and stops the save worker. It does not save.
func (s *Store) Close() error {
	s.closeMu.Lock()
	if s.closed {
		s.closeMu.Unlock()
		return nil
	}
	s.closed = true
	close(s.saves)
	s.closeMu.Unlock()

	s.saveWG.Wait()
	return nil
}

// Dimension returns the embedding dimension.
func (s *Store) Dimension() int { return s.dim }

// Count returns the number of stored documents.
func (s *Store) Count() int { return s.state.Load().count() }

// Get returns the document stored under id.
func (s *Store) Get(id string) (document.Document, error) {
	doc, ok := s.state.Load().docs[id]
	if !ok {
		return document.Document{}, fmt.Errorf("%w: %s", document.ErrNotFound, id)
	}
	return doc, nil
}

// List returns every document in position order.
func (s *Store) List() []document.Document {
	snap := s.state.Load()
	docs := make([]document.Document, 0, len(snap.positions))
	for _, id := range snap.positions {
		docs = append(docs, snap.docs[id])
	}
	return docs
}

// IndexPath returns the path of the serialized similarity index.
func (s *Store) IndexPath() string { return filepath.Join(s.dir, s.name+".index") }

// DocsPath returns the path of the serialized document and position maps.
func (s *Store) DocsPath() string { return filepath.Join(s.dir, s.name+".docs") }

// LastSave returns when the store was last saved successfully, or the zero
// time when it has not been saved since Open.
func (s *Store) LastSave() time.Time {
	if t := s.lastSave.Load(); t != nil {
		return *t
	}
	return time.Time{}
}

// embed calls the embedder in batches of at most batchSize texts and checks
// every returned vector against the store dimension.
func (s *Store) embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += s.batchSize {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		end := min(start+s.batchSize, len(texts))
		vecs, err := s.embedder.Embed(ctx, texts[start:end])
		if err != nil {
			return nil, fmt.Errorf("embed: %w", err)
		}
		if len(vecs) != end-start {
			return nil, fmt.Errorf("embed: got %d vectors for %d texts", len(vecs), end-start)
		}
		for _, v := range vecs {
			if len(v) != s.dim {
				return nil, fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(v), s.dim)
			}
			out = append(out, index.ToFloat32(v))
		}
	}
	return out, nil
}

// snapshot is one immutable state of the store. A published snapshot is
// never mutated; writers fork it and publish the fork.
type snapshot struct {
	index     *index.FlatL2
	positions []string
	docs      map[string]document.Document
}

func emptySnapshot(dim int) *snapshot {
	return &snapshot{
		index:     index.NewFlatL2(dim),
		positions: []string{},
		docs:      map[string]document.Document{},
	}
}

func (sn *snapshot) count() int { return len(sn.positions) }

// fork returns a writable copy. The index and position slice share storage
// with sn but only ever append past sn's length.
func (sn *snapshot) fork() *snapshot {
	return &snapshot{
		index:     sn.index.Fork(),
		positions: sn.positions,
		docs:      maps.Clone(sn.docs),
	}
}

func (sn *snapshot) insert(doc document.Document, vector []float32) error {
	if err := sn.index.Add(vector); err != nil {
		return err
	}
	sn.positions = append(sn.positions, doc.ID())
	sn.docs[doc.ID()] = doc
	return nil
}

// isDuplicate reports whether vector is more similar than threshold to either
// of its two nearest stored neighbors.
func (sn *snapshot) isDuplicate(vector []float32, threshold float64) (bool, error) {
	hits, err := sn.index.Search(vector, 2)
	if err != nil {
		return false, err
	}
	for _, h := range hits {
		if h.Position == index.Absent {
			continue
		}
		stored, err := sn.index.Vector(h.Position)
		if err != nil {
			return false, err
		}
		if index.CosineSimilarity(vector, stored) > threshold {
			return true, nil
		}
	}
	return false, nil
}

// verify checks the bookkeeping invariants between the three structures.
func (sn *snapshot) verify() error {
	if len(sn.positions) != sn.index.Count() {
		return fmt.Errorf("%w: %d positions for %d vectors", document.ErrInvariant, len(sn.positions), sn.index.Count())
	}
	if len(sn.docs) != len(sn.positions) {
		return fmt.Errorf("%w: %d documents for %d positions", document.ErrInvariant, len(sn.docs), len(sn.positions))
	}
	seen := make(map[string]struct{}, len(sn.positions))
	for pos, id := range sn.positions {
		if _, ok := sn.docs[id]; !ok {
			return fmt.Errorf("%w: position %d maps to unknown document %s", document.ErrInvariant, pos, id)
		}
		if _, dup := seen[id]; dup {
			return fmt.Errorf("%w: document %s mapped twice", document.ErrInvariant, id)
		}
		seen[id] = struct{}{}
	}
	return nil
}

// publish verifies next and makes it the current state. Callers hold s.mu.
func (s *Store) publish(next *snapshot) error {
	if err := next.verify(); err != nil {
		return err
	}
	s.state.Store(next)
	return nil
}
