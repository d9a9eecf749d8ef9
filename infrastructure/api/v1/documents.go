// Package v1 implements the /api/v1 HTTP routes.
package v1

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/helixml/semandoc"
	"github.com/helixml/semandoc/application/service"
	"github.com/helixml/semandoc/domain/document"
	"github.com/helixml/semandoc/infrastructure/api/jsonapi"
	"github.com/helixml/semandoc/infrastructure/api/middleware"
	"github.com/helixml/semandoc/infrastructure/api/v1/dto"
)

// maxUploadMemory is the multipart memory budget; larger uploads spill to
// temporary files.
const maxUploadMemory = 32 << 20

// DocumentsRouter handles document endpoints.
type DocumentsRouter struct {
	client     *semandoc.Client
	logger     *slog.Logger
	serializer jsonapi.Serializer
}

// NewDocumentsRouter creates a new DocumentsRouter.
func NewDocumentsRouter(client *semandoc.Client) *DocumentsRouter {
	return &DocumentsRouter{
		client:     client,
		logger:     client.Logger(),
		serializer: jsonapi.NewSerializer(),
	}
}

// Routes returns the chi router for document endpoints.
func (r *DocumentsRouter) Routes() chi.Router {
	router := chi.NewRouter()

	router.Get("/", r.List)
	router.Post("/", r.Create)
	router.Delete("/", r.DeleteMany)
	router.Post("/batch", r.CreateBatch)
	router.Get("/webhook", r.Webhook)
	router.Post("/search", r.Search)
	router.Get("/stats", r.Stats)
	router.Get("/export", r.Export)
	router.Post("/import", r.Import)
	router.Post("/save", r.Save)
	router.Post("/rebuild", r.Rebuild)
	router.Post("/reset", r.Reset)
	router.Get("/{id}", r.Get)
	router.Put("/{id}", r.Update)
	router.Delete("/{id}", r.Delete)
	router.Get("/{id}/history", r.History)

	return router
}

// List handles GET /api/v1/documents.
func (r *DocumentsRouter) List(w http.ResponseWriter, req *http.Request) {
	params, err := ParseListParams(req)
	if err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}

	docs, total := r.client.Documents.List(req.Context(), params)
	resp := jsonapi.NewListResponse(r.serializer.DocumentResources(docs))
	resp.Meta = PaginationMeta(params, total)
	resp.Links = PaginationLinks(req, params, total)
	middleware.WriteJSON(w, http.StatusOK, resp)
}

// Create handles POST /api/v1/documents.
func (r *DocumentsRouter) Create(w http.ResponseWriter, req *http.Request) {
	var body dto.DocumentRequest
	if err := decode(req, &body); err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}

	doc, err := r.client.Documents.Create(req.Context(), body.Input())
	if err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}
	middleware.WriteJSON(w, http.StatusCreated, jsonapi.NewSingleResponse(r.serializer.DocumentResource(doc)))
}

// CreateBatch handles POST /api/v1/documents/batch. Duplicates are
// skipped, never rejected.
func (r *DocumentsRouter) CreateBatch(w http.ResponseWriter, req *http.Request) {
	var body dto.BatchRequest
	if err := decode(req, &body); err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}

	inserted, err := r.client.Documents.CreateBatch(req.Context(), body.Inputs())
	if err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}
	resp := jsonapi.NewListResponse(r.serializer.DocumentResources(inserted)).
		WithMeta("submitted", len(body.Documents)).
		WithMeta("inserted", len(inserted))
	middleware.WriteJSON(w, http.StatusOK, resp)
}

// Webhook handles GET /api/v1/documents/webhook?content=&tags=&categories=.
// Tags and categories may repeat or be comma-separated.
func (r *DocumentsRouter) Webhook(w http.ResponseWriter, req *http.Request) {
	q := req.URL.Query()
	in := service.DocumentInput{
		Content:    q.Get("content"),
		Tags:       splitQuery(q["tags"]),
		Categories: splitQuery(q["categories"]),
	}
	if s := q.Get("valid_time"); s != "" {
		v, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			middleware.WriteError(w, req, fmt.Errorf("%w: valid_time must be an integer", document.ErrValidation), r.logger)
			return
		}
		in.ValidTime = &v
	}

	doc, err := r.client.Documents.Create(req.Context(), in)
	if err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}
	middleware.WriteJSON(w, http.StatusCreated, jsonapi.NewSingleResponse(r.serializer.DocumentResource(doc)))
}

// Get handles GET /api/v1/documents/{id}.
func (r *DocumentsRouter) Get(w http.ResponseWriter, req *http.Request) {
	doc, err := r.client.Documents.Get(req.Context(), chi.URLParam(req, "id"))
	if err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, jsonapi.NewSingleResponse(r.serializer.DocumentResource(doc)))
}

// Update handles PUT /api/v1/documents/{id}. The id is kept.
func (r *DocumentsRouter) Update(w http.ResponseWriter, req *http.Request) {
	var body dto.DocumentRequest
	if err := decode(req, &body); err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}

	doc, err := r.client.Documents.Update(req.Context(), chi.URLParam(req, "id"), body.Input())
	if err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, jsonapi.NewSingleResponse(r.serializer.DocumentResource(doc)))
}

// Delete handles DELETE /api/v1/documents/{id} and returns the deleted
// document.
func (r *DocumentsRouter) Delete(w http.ResponseWriter, req *http.Request) {
	doc, err := r.client.Documents.Delete(req.Context(), chi.URLParam(req, "id"))
	if err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, jsonapi.NewSingleResponse(r.serializer.DocumentResource(doc)))
}

// DeleteMany handles DELETE /api/v1/documents with {"ids": [...]}.
// Unknown ids are skipped.
func (r *DocumentsRouter) DeleteMany(w http.ResponseWriter, req *http.Request) {
	var body dto.DeleteRequest
	if err := decode(req, &body); err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}

	result, err := r.client.Documents.DeleteMany(req.Context(), body.IDs)
	if err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}
	resp := jsonapi.NewListResponse(r.serializer.DocumentResources(result.Documents)).
		WithMeta("removed", result.Removed).
		WithMeta("total", result.Total)
	middleware.WriteJSON(w, http.StatusOK, resp)
}

// History handles GET /api/v1/documents/{id}/history.
func (r *DocumentsRouter) History(w http.ResponseWriter, req *http.Request) {
	limit, err := parseLimit(req, 0)
	if err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}
	records, err := r.client.Documents.History(req.Context(), chi.URLParam(req, "id"), limit)
	if err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, jsonapi.NewListResponse(r.serializer.AuditRecordResources(records)))
}

// Search handles POST /api/v1/documents/search. An empty result is a 200.
func (r *DocumentsRouter) Search(w http.ResponseWriter, req *http.Request) {
	var body dto.SearchRequest
	if err := decode(req, &body); err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}
	if strings.TrimSpace(body.Query) == "" {
		middleware.WriteError(w, req, fmt.Errorf("%w: query must not be empty", document.ErrValidation), r.logger)
		return
	}

	results, err := r.client.Documents.Search(req.Context(), body.Params())
	if err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, jsonapi.NewListResponse(r.serializer.SearchResources(results)))
}

// Stats handles GET /api/v1/documents/stats.
func (r *DocumentsRouter) Stats(w http.ResponseWriter, req *http.Request) {
	stats := r.client.Documents.Stats(req.Context())
	resp := jsonapi.NewSingleResponse(r.serializer.StatsResource(stats)).
		WithMeta("last_save", jsonapi.DateTime(r.client.Documents.LastSave()))
	middleware.WriteJSON(w, http.StatusOK, resp)
}

// Export handles GET /api/v1/documents/export.
func (r *DocumentsRouter) Export(w http.ResponseWriter, req *http.Request) {
	docs := r.client.Documents.Export(req.Context())
	w.Header().Set("Content-Disposition", `attachment; filename="documents.json"`)
	resp := jsonapi.NewListResponse(r.serializer.DocumentResources(docs)).WithMeta("total", len(docs))
	middleware.WriteJSON(w, http.StatusOK, resp)
}

// Import handles POST /api/v1/documents/import. It accepts either the JSON
// body produced by export, or multipart/form-data with one or more "files"
// parts (.txt, .md, .pdf).
func (r *DocumentsRouter) Import(w http.ResponseWriter, req *http.Request) {
	var (
		result service.ImportResult
		err    error
	)
	mediaType, _, _ := mime.ParseMediaType(req.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		result, err = r.importFiles(req)
	} else {
		var body dto.ImportRequest
		if err = decode(req, &body); err == nil {
			result, err = r.client.Documents.Import(req.Context(), body.Inputs())
		}
	}
	if err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}

	resp := jsonapi.NewListResponse(r.serializer.DocumentResources(result.Inserted)).
		WithMeta("submitted", result.Submitted).
		WithMeta("inserted", len(result.Inserted)).
		WithMeta("skipped", result.Submitted-len(result.Inserted))
	middleware.WriteJSON(w, http.StatusOK, resp)
}

func (r *DocumentsRouter) importFiles(req *http.Request) (service.ImportResult, error) {
	if err := req.ParseMultipartForm(maxUploadMemory); err != nil {
		return service.ImportResult{}, fmt.Errorf("%w: %w", document.ErrValidation, err)
	}
	defer func() { _ = req.MultipartForm.RemoveAll() }()

	headers := req.MultipartForm.File["files"]
	if len(headers) == 0 {
		return service.ImportResult{}, fmt.Errorf("%w: no files uploaded", document.ErrValidation)
	}

	files := make([]service.File, 0, len(headers))
	opened := make([]multipart.File, 0, len(headers))
	defer func() {
		for _, f := range opened {
			_ = f.Close()
		}
	}()
	for _, h := range headers {
		f, err := h.Open()
		if err != nil {
			return service.ImportResult{}, fmt.Errorf("open %s: %w", h.Filename, err)
		}
		opened = append(opened, f)
		files = append(files, service.File{Name: h.Filename, Reader: f})
	}
	return r.client.Documents.ImportFiles(req.Context(), files)
}

// Save handles POST /api/v1/documents/save. It waits for the write.
func (r *DocumentsRouter) Save(w http.ResponseWriter, req *http.Request) {
	if err := r.client.Documents.Save(req.Context()); err != nil {
		middleware.WriteError(w, req, fmt.Errorf("save failed: %w", err), r.logger)
		return
	}
	resp := &jsonapi.Document{Meta: jsonapi.Meta{
		"saved":     true,
		"count":     r.client.Documents.Count(),
		"last_save": jsonapi.DateTime(r.client.Documents.LastSave()),
	}}
	middleware.WriteJSON(w, http.StatusOK, resp)
}

// Rebuild handles POST /api/v1/documents/rebuild.
func (r *DocumentsRouter) Rebuild(w http.ResponseWriter, req *http.Request) {
	if err := r.client.Documents.Rebuild(req.Context()); err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, &jsonapi.Document{Meta: jsonapi.Meta{
		"rebuilt": true,
		"count":   r.client.Documents.Count(),
	}})
}

// Reset handles POST /api/v1/documents/reset and removes every document.
func (r *DocumentsRouter) Reset(w http.ResponseWriter, req *http.Request) {
	removed, total, err := r.client.Documents.Reset(req.Context())
	if err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, &jsonapi.Document{Meta: jsonapi.Meta{
		"removed": removed,
		"total":   total,
	}})
}

// decode reads a JSON body, rejecting unknown fields. Decode failures are
// validation errors.
func decode(req *http.Request, v any) error {
	dec := json.NewDecoder(req.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: invalid request body: %w", document.ErrValidation, err)
	}
	return nil
}

func splitQuery(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}

func parseLimit(req *http.Request, fallback int) (int, error) {
	s := req.URL.Query().Get("limit")
	if s == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, errors.Join(document.ErrValidation, fmt.Errorf("limit must be a non-negative integer"))
	}
	return n, nil
}
