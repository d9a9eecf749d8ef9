// Package service provides application layer services that orchestrate domain operations.
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/helixml/semandoc/domain/audit"
	"github.com/helixml/semandoc/domain/document"
	"github.com/helixml/semandoc/infrastructure/loader"
	"github.com/helixml/semandoc/infrastructure/vectorstore"
	"golang.org/x/sync/errgroup"
)

// DefaultListLimit is the page size of List when none is given.
const DefaultListLimit = 100

// DocumentInput is the caller-supplied content and metadata of a document.
type DocumentInput struct {
	// ID is honoured by Import only; other writes assign ids.
	ID         string
	Content    string
	Tags       []string
	Categories []string
	// ValidTime in seconds; nil means valid forever.
	ValidTime *int64
	// StartTime is honoured by Import only; other writes start now.
	StartTime *time.Time
}

// ListParams selects a page of documents.
type ListParams struct {
	Skip     int
	Limit    int
	Tag      string
	Category string
}

// SearchParams configures a similarity search.
type SearchParams struct {
	Query          string
	K              int
	Tags           []string
	Categories     []string
	IDs            []string
	ScoreThreshold *float64
}

// File is a named reader handed to ImportFiles.
type File struct {
	Name   string
	Reader io.Reader
}

// ImportResult summarises an import.
type ImportResult struct {
	Inserted []document.Document
	// Submitted counts the documents offered, including rejected duplicates.
	Submitted int
}

// Document provides document management on top of the vector store and
// records every mutation in the audit trail.
type Document struct {
	store   *vectorstore.Store
	records audit.RecordStore
	logger  *slog.Logger
}

// NewDocument creates a new Document service. records may be nil.
func NewDocument(store *vectorstore.Store, records audit.RecordStore, logger *slog.Logger) *Document {
	if logger == nil {
		logger = slog.Default()
	}
	return &Document{
		store:   store,
		records: records,
		logger:  logger,
	}
}

// Create stores one document. A near duplicate is rejected with
// document.ErrDuplicate.
func (s *Document) Create(ctx context.Context, in DocumentInput) (document.Document, error) {
	doc, err := in.build(false)
	if err != nil {
		return document.Document{}, err
	}

	inserted, err := s.store.AddDocuments(ctx, []document.Document{doc})
	if err != nil {
		return document.Document{}, err
	}
	if len(inserted) == 0 {
		return document.Document{}, document.ErrDuplicate
	}

	s.record(ctx, audit.NewRecord(audit.ActionCreate, inserted[0].ID(), ""))
	return inserted[0], nil
}

// CreateBatch stores many documents in one embedding pass and returns the
// ones that were not duplicates.
func (s *Document) CreateBatch(ctx context.Context, inputs []DocumentInput) ([]document.Document, error) {
	docs, err := buildAll(inputs, false)
	if err != nil {
		return nil, err
	}

	inserted, err := s.store.AddDocuments(ctx, docs)
	if err != nil {
		return nil, err
	}

	s.recordEach(ctx, audit.ActionCreate, inserted)
	return inserted, nil
}

// Get returns the document with id.
func (s *Document) Get(_ context.Context, id string) (document.Document, error) {
	return s.store.Get(id)
}

// Update replaces the content and metadata of the document with id while
// keeping the id. The validity window restarts now.
func (s *Document) Update(ctx context.Context, id string, in DocumentInput) (document.Document, error) {
	in.ID = ""
	in.StartTime = nil
	doc, err := in.build(false)
	if err != nil {
		return document.Document{}, err
	}

	updated, err := s.store.ReplaceDocument(ctx, id, doc)
	if err != nil {
		return document.Document{}, err
	}

	s.record(ctx, audit.NewRecord(audit.ActionUpdate, id, ""))
	return updated, nil
}

// Delete removes the document with id and returns it.
func (s *Document) Delete(ctx context.Context, id string) (document.Document, error) {
	result, err := s.store.DeleteDocumentsByIDs(ctx, []string{id})
	if err != nil {
		return document.Document{}, err
	}
	if result.Removed == 0 {
		return document.Document{}, fmt.Errorf("%w: %s", document.ErrNotFound, id)
	}

	s.record(ctx, audit.NewRecord(audit.ActionDelete, id, ""))
	return result.Documents[0], nil
}

// DeleteMany removes every listed document that exists. Unknown ids are
// skipped; repeated ids are rejected.
func (s *Document) DeleteMany(ctx context.Context, ids []string) (vectorstore.RemoveResult, error) {
	result, err := s.store.DeleteDocumentsByIDs(ctx, ids)
	if err != nil {
		return vectorstore.RemoveResult{}, err
	}
	s.recordEach(ctx, audit.ActionDelete, result.Documents)
	return result, nil
}

// List returns a page of documents in storage order and the number of
// documents matching the tag and category.
func (s *Document) List(_ context.Context, params ListParams) ([]document.Document, int) {
	limit := params.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}
	skip := max(params.Skip, 0)

	var matched []document.Document
	for _, doc := range s.store.List() {
		m := doc.Metadata()
		if params.Tag != "" && !m.HasTag(params.Tag) {
			continue
		}
		if params.Category != "" && !m.HasCategory(params.Category) {
			continue
		}
		matched = append(matched, doc)
	}

	total := len(matched)
	if skip >= total {
		return []document.Document{}, total
	}
	end := min(skip+limit, total)
	return matched[skip:end], total
}

// Search returns the nearest valid documents to the query. An empty result
// is not an error.
func (s *Document) Search(ctx context.Context, params SearchParams) ([]vectorstore.Result, error) {
	opts := []vectorstore.SearchOption{}
	if params.K != 0 {
		opts = append(opts, vectorstore.WithK(params.K))
	}
	if params.ScoreThreshold != nil {
		opts = append(opts, vectorstore.WithScoreThreshold(*params.ScoreThreshold))
	}
	filter := document.NewFilter(
		document.WithIDIn(params.IDs...),
		document.WithAnyTag(params.Tags...),
		document.WithAnyCategory(params.Categories...),
	)
	if !filter.IsEmpty() {
		opts = append(opts, vectorstore.WithFilter(filter))
	}
	return s.store.Search(ctx, params.Query, opts...)
}

// Stats summarises the stored documents.
func (s *Document) Stats(_ context.Context) document.Stats {
	return document.ComputeStats(s.store.List())
}

// Export returns every stored document in storage order.
func (s *Document) Export(_ context.Context) []document.Document {
	return s.store.List()
}

// Import stores previously exported documents, keeping their ids and
// validity windows. Documents whose id is already stored are skipped, as are
// near duplicates.
func (s *Document) Import(ctx context.Context, inputs []DocumentInput) (ImportResult, error) {
	docs, err := buildAll(inputs, true)
	if err != nil {
		return ImportResult{}, err
	}

	fresh := make([]document.Document, 0, len(docs))
	for _, doc := range docs {
		if _, err := s.store.Get(doc.ID()); err == nil {
			continue
		}
		fresh = append(fresh, doc)
	}

	inserted, err := s.store.AddDocuments(ctx, fresh)
	if err != nil {
		return ImportResult{}, err
	}

	s.recordEach(ctx, audit.ActionImport, inserted)
	return ImportResult{Inserted: inserted, Submitted: len(docs)}, nil
}

// ImportFiles extracts documents from text, markdown and PDF files and
// stores them. Files are parsed concurrently; documents keep file order.
func (s *Document) ImportFiles(ctx context.Context, files []File) (ImportResult, error) {
	parsed := make([][]loader.Entry, len(files))

	g, _ := errgroup.WithContext(ctx)
	for i, f := range files {
		g.Go(func() error {
			entries, err := loader.Load(f.Name, f.Reader)
			if err != nil {
				return err
			}
			parsed[i] = entries
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		if errors.Is(err, loader.ErrUnsupportedFormat) {
			return ImportResult{}, fmt.Errorf("%w: %w", document.ErrValidation, err)
		}
		return ImportResult{}, err
	}

	var inputs []DocumentInput
	for _, entries := range parsed {
		for _, e := range entries {
			inputs = append(inputs, DocumentInput{
				Content:    e.Content,
				Tags:       e.Tags,
				Categories: e.Categories,
				ValidTime:  e.ValidTime,
			})
		}
	}

	docs, err := buildAll(inputs, false)
	if err != nil {
		return ImportResult{}, err
	}
	inserted, err := s.store.AddDocuments(ctx, docs)
	if err != nil {
		return ImportResult{}, err
	}

	s.logger.Info("files imported",
		slog.Int("files", len(files)),
		slog.Int("inserted", len(inserted)),
		slog.Int("skipped", len(docs)-len(inserted)),
	)
	s.recordEach(ctx, audit.ActionImport, inserted)
	return ImportResult{Inserted: inserted, Submitted: len(docs)}, nil
}

// Save writes the store to disk and waits for the result.
func (s *Document) Save(ctx context.Context) error {
	if err := s.store.Save(ctx); err != nil {
		return err
	}
	s.record(ctx, audit.NewRecord(audit.ActionSave, "", fmt.Sprintf("%d documents", s.store.Count())))
	return nil
}

// Rebuild re-embeds every document into a fresh index.
func (s *Document) Rebuild(ctx context.Context) error {
	if err := s.store.RebuildIndex(ctx); err != nil {
		return err
	}
	s.record(ctx, audit.NewRecord(audit.ActionRebuild, "", fmt.Sprintf("%d documents", s.store.Count())))
	return nil
}

// Reset removes every document and returns how many were removed out of
// how many were stored.
func (s *Document) Reset(ctx context.Context) (int, int, error) {
	result, err := s.store.Reset(ctx)
	if err != nil {
		return 0, 0, err
	}
	s.record(ctx, audit.NewRecord(audit.ActionReset, "", fmt.Sprintf("%d of %d", result.Removed, result.Total)))
	return result.Removed, result.Total, nil
}

// Count returns the number of stored documents.
func (s *Document) Count() int {
	return s.store.Count()
}

// LastSave returns when the store was last written to disk.
func (s *Document) LastSave() time.Time {
	return s.store.LastSave()
}

// History returns audit records, newest first, or the history of one
// document oldest first when documentID is set.
func (s *Document) History(ctx context.Context, documentID string, limit int) ([]audit.Record, error) {
	if s.records == nil {
		return []audit.Record{}, nil
	}
	if documentID != "" {
		return s.records.ForDocument(ctx, documentID)
	}
	return s.records.Recent(ctx, limit)
}

func (s *Document) recordEach(ctx context.Context, action audit.Action, docs []document.Document) {
	records := make([]audit.Record, len(docs))
	for i, doc := range docs {
		records[i] = audit.NewRecord(action, doc.ID(), "")
	}
	s.record(ctx, records...)
}

// record never fails the caller; a broken audit trail is only logged.
func (s *Document) record(ctx context.Context, records ...audit.Record) {
	if s.records == nil || len(records) == 0 {
		return
	}
	if err := s.records.Save(ctx, records...); err != nil {
		s.logger.Warn("failed to record audit trail",
			slog.String("action", string(records[0].Action())),
			slog.Int("count", len(records)),
			slog.String("error", err.Error()),
		)
	}
}

func (in DocumentInput) build(keepIdentity bool) (document.Document, error) {
	opts := []document.MetadataOption{
		document.WithTags(in.Tags...),
		document.WithCategories(in.Categories...),
	}
	if in.ValidTime != nil {
		if *in.ValidTime < 0 && *in.ValidTime != document.ValidForever {
			return document.Document{}, fmt.Errorf("%w: valid_time must be -1 or non-negative", document.ErrValidation)
		}
		opts = append(opts, document.WithValidTime(*in.ValidTime))
	}
	if keepIdentity {
		if in.ID != "" {
			opts = append(opts, document.WithID(in.ID))
		}
		if in.StartTime != nil {
			opts = append(opts, document.WithStartTime(*in.StartTime))
		}
	}
	return document.NewDocument(in.Content, document.NewMetadata(opts...))
}

func buildAll(inputs []DocumentInput, keepIdentity bool) ([]document.Document, error) {
	docs := make([]document.Document, 0, len(inputs))
	for i, in := range inputs {
		doc, err := in.build(keepIdentity)
		if err != nil {
			return nil, fmt.Errorf("document %d: %w", i, err)
		}
		docs = append(docs, doc)
	}
	return docs, nil
}
