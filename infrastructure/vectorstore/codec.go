package vectorstore

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/helixml/semandoc/domain/document"
	"github.com/helixml/semandoc/infrastructure/index"
)

const blobVersion = 1

// blob is the msgpack layout of the .docs file: the document map and the
// position map, stored as documents in position order.
type blob struct {
	Version   int              `msgpack:"version"`
	Dimension int              `msgpack:"dimension"`
	Positions []string         `msgpack:"positions"`
	Documents []storedDocument `msgpack:"documents"`
}

type storedDocument struct {
	ID         string    `msgpack:"id"`
	Content    string    `msgpack:"content"`
	Tags       []string  `msgpack:"tags"`
	Categories []string  `msgpack:"categories"`
	StartTime  time.Time `msgpack:"start_time"`
	ValidTime  int64     `msgpack:"valid_time"`
}

func encodeSnapshot(snap *snapshot) ([]byte, error) {
	b := blob{
		Version:   blobVersion,
		Dimension: snap.index.Dimension(),
		Positions: snap.positions,
		Documents: make([]storedDocument, 0, len(snap.positions)),
	}
	for _, id := range snap.positions {
		doc := snap.docs[id]
		m := doc.Metadata()
		b.Documents = append(b.Documents, storedDocument{
			ID:         doc.ID(),
			Content:    doc.Content(),
			Tags:       m.Tags(),
			Categories: m.Categories(),
			StartTime:  m.StartTime(),
			ValidTime:  m.ValidTime(),
		})
	}
	data, err := msgpack.Marshal(&b)
	if err != nil {
		return nil, fmt.Errorf("encode documents: %w", err)
	}
	return data, nil
}

func decodeBlob(data []byte) (blob, error) {
	var b blob
	if err := msgpack.Unmarshal(data, &b); err != nil {
		return blob{}, fmt.Errorf("%w: decode documents: %w", ErrCorruptStore, err)
	}
	if b.Version != blobVersion {
		return blob{}, fmt.Errorf("%w: unsupported documents version %d", ErrCorruptStore, b.Version)
	}
	if len(b.Positions) != len(b.Documents) {
		return blob{}, fmt.Errorf("%w: %d positions for %d documents", ErrCorruptStore, len(b.Positions), len(b.Documents))
	}
	return b, nil
}

// load reads the durable files. Missing files yield an empty snapshot; a
// lone file, undecodable contents, or a dimension other than the
// embedder's are errors.
func (s *Store) load() (*snapshot, error) {
	return s.loadPair(s.IndexPath(), s.DocsPath())
}

func (s *Store) loadPair(indexPath, docsPath string) (*snapshot, error) {
	indexExists, err := exists(indexPath)
	if err != nil {
		return nil, err
	}
	docsExists, err := exists(docsPath)
	if err != nil {
		return nil, err
	}

	switch {
	case !indexExists && !docsExists:
		return emptySnapshot(s.dim), nil
	case indexExists != docsExists:
		return nil, fmt.Errorf("%w: only one of %s and %s exists", ErrCorruptStore, indexPath, docsPath)
	}

	f, err := os.Open(indexPath)
	if err != nil {
		return nil, fmt.Errorf("open index: %w", err)
	}
	idx, err := index.ReadFlatL2(f)
	_ = f.Close()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorruptStore, err)
	}
	if idx.Dimension() != s.dim {
		return nil, fmt.Errorf("%w: stored index has dimension %d, embedder produces %d", ErrDimensionMismatch, idx.Dimension(), s.dim)
	}

	data, err := os.ReadFile(docsPath)
	if err != nil {
		return nil, fmt.Errorf("read documents: %w", err)
	}
	b, err := decodeBlob(data)
	if err != nil {
		return nil, err
	}
	if b.Dimension != s.dim {
		return nil, fmt.Errorf("%w: stored documents have dimension %d, embedder produces %d", ErrDimensionMismatch, b.Dimension, s.dim)
	}

	snap := &snapshot{
		index:     idx,
		positions: b.Positions,
		docs:      make(map[string]document.Document, len(b.Documents)),
	}
	for i, sd := range b.Documents {
		if sd.ID != b.Positions[i] {
			return nil, fmt.Errorf("%w: position %d holds %s, document is %s", ErrCorruptStore, i, b.Positions[i], sd.ID)
		}
		doc, err := document.NewDocument(sd.Content, document.NewMetadata(
			document.WithID(sd.ID),
			document.WithTags(sd.Tags...),
			document.WithCategories(sd.Categories...),
			document.WithStartTime(sd.StartTime),
			document.WithValidTime(sd.ValidTime),
		))
		if err != nil {
			return nil, fmt.Errorf("%w: document %s: %w", ErrCorruptStore, sd.ID, err)
		}
		snap.docs[sd.ID] = doc
	}
	if err := snap.verify(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorruptStore, err)
	}
	return snap, nil
}

func exists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, err
}
