package provider

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"math"

	badger "github.com/dgraph-io/badger/v4"
)

// CachingEmbedder stores embeddings in badger keyed by model and text, so
// rebuilds and restarts only pay inference for new content.
type CachingEmbedder struct {
	inner  Embedder
	model  string
	db     *badger.DB
	logger *slog.Logger
}

// CacheOptions configures NewCachingEmbedder.
type CacheOptions struct {
	// Dir holds the badger files. Ignored when InMemory is set.
	Dir string
	// InMemory keeps the cache in memory only.
	InMemory bool
	// Model namespaces the cache so switching models never serves stale
	// vectors.
	Model  string
	Logger *slog.Logger
}

// NewCachingEmbedder opens the cache and wraps inner.
func NewCachingEmbedder(inner Embedder, opts CacheOptions) (*CachingEmbedder, error) {
	if inner == nil {
		return nil, errors.New("caching embedder: nil inner embedder")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if !opts.InMemory && opts.Dir == "" {
		return nil, errors.New("caching embedder: directory required")
	}

	dbOpts := badger.DefaultOptions(opts.Dir).WithLogger(badgerLogger{logger: logger})
	if opts.InMemory {
		dbOpts = badger.DefaultOptions("").WithInMemory(true).WithLogger(badgerLogger{logger: logger})
	}
	db, err := badger.Open(dbOpts)
	if err != nil {
		return nil, fmt.Errorf("open embedding cache: %w", err)
	}

	return &CachingEmbedder{inner: inner, model: opts.Model, db: db, logger: logger}, nil
}

// Capacity forwards the inner embedder's batch limit.
func (c *CachingEmbedder) Capacity() int {
	if cp, ok := c.inner.(Capacity); ok {
		return cp.Capacity()
	}
	return 0
}

// Embed serves cached vectors and embeds the rest with the inner embedder.
// Cache failures degrade to a pass-through.
func (c *CachingEmbedder) Embed(ctx context.Context, req EmbeddingRequest) (EmbeddingResponse, error) {
	texts := req.Texts()
	if len(texts) == 0 {
		return NewEmbeddingResponse([][]float64{}, NewUsage(0, 0, 0)), nil
	}

	keys := make([][]byte, len(texts))
	for i, t := range texts {
		keys[i] = c.key(t)
	}

	out := make([][]float64, len(texts))
	err := c.db.View(func(txn *badger.Txn) error {
		for i, k := range keys {
			item, err := txn.Get(k)
			if errors.Is(err, badger.ErrKeyNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			raw, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			if vec, ok := decodeVector(raw); ok {
				out[i] = vec
			}
		}
		return nil
	})
	if err != nil {
		c.logger.Warn("embedding cache read failed", slog.String("error", err.Error()))
	}

	var missing []int
	for i, v := range out {
		if v == nil {
			missing = append(missing, i)
		}
	}
	if len(missing) == 0 {
		return NewEmbeddingResponse(out, NewUsage(0, 0, 0)), nil
	}

	missTexts := make([]string, len(missing))
	for j, i := range missing {
		missTexts[j] = texts[i]
	}
	resp, err := c.inner.Embed(ctx, NewEmbeddingRequest(missTexts))
	if err != nil {
		return EmbeddingResponse{}, err
	}
	fresh := resp.Embeddings()
	if len(fresh) != len(missing) {
		return EmbeddingResponse{}, fmt.Errorf("embed: got %d vectors for %d texts", len(fresh), len(missing))
	}

	wb := c.db.NewWriteBatch()
	defer wb.Cancel()
	for j, i := range missing {
		out[i] = fresh[j]
		if err := wb.Set(keys[i], encodeVector(fresh[j])); err != nil {
			c.logger.Warn("embedding cache write failed", slog.String("error", err.Error()))
			break
		}
	}
	if err := wb.Flush(); err != nil {
		c.logger.Warn("embedding cache flush failed", slog.String("error", err.Error()))
	}

	return NewEmbeddingResponse(out, resp.Usage()), nil
}

// Close closes the cache.
func (c *CachingEmbedder) Close() error {
	return c.db.Close()
}

func (c *CachingEmbedder) key(text string) []byte {
	h := sha256.New()
	h.Write([]byte(c.model))
	h.Write([]byte{0})
	h.Write([]byte(text))
	return h.Sum([]byte("emb:"))
}

// encodeVector stores float32 little endian; float64 precision is not
// needed for similarity search.
func encodeVector(v []float64) []byte {
	buf := make([]byte, 4*len(v))
	for i, x := range v {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(float32(x)))
	}
	return buf
}

func decodeVector(raw []byte) ([]float64, bool) {
	if len(raw) == 0 || len(raw)%4 != 0 {
		return nil, false
	}
	v := make([]float64, len(raw)/4)
	for i := range v {
		v[i] = float64(math.Float32frombits(binary.LittleEndian.Uint32(raw[4*i:])))
	}
	return v, true
}

// badgerLogger routes badger warnings and errors to slog and drops the rest.
type badgerLogger struct {
	logger *slog.Logger
}

func (l badgerLogger) Errorf(f string, v ...any) {
	l.logger.Error(fmt.Sprintf("badger: "+f, v...))
}

func (l badgerLogger) Warningf(f string, v ...any) {
	l.logger.Warn(fmt.Sprintf("badger: "+f, v...))
}

func (badgerLogger) Infof(string, ...any)  {}
func (badgerLogger) Debugf(string, ...any) {}

var (
	_ Embedder = (*CachingEmbedder)(nil)
	_ Capacity = (*CachingEmbedder)(nil)
)
