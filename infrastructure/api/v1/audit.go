package v1

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/helixml/semandoc"
	"github.com/helixml/semandoc/infrastructure/api/jsonapi"
	"github.com/helixml/semandoc/infrastructure/api/middleware"
)

// defaultAuditLimit bounds GET /api/v1/audit when no limit is given.
const defaultAuditLimit = 100

// AuditRouter exposes the mutation audit trail.
type AuditRouter struct {
	client     *semandoc.Client
	logger     *slog.Logger
	serializer jsonapi.Serializer
}

// NewAuditRouter creates a new AuditRouter.
func NewAuditRouter(client *semandoc.Client) *AuditRouter {
	return &AuditRouter{
		client:     client,
		logger:     client.Logger(),
		serializer: jsonapi.NewSerializer(),
	}
}

// Routes returns the chi router for audit endpoints.
func (r *AuditRouter) Routes() chi.Router {
	router := chi.NewRouter()
	router.Get("/", r.List)
	return router
}

// List handles GET /api/v1/audit?limit=&document_id=. With document_id
// set it returns that document's full history, oldest first.
func (r *AuditRouter) List(w http.ResponseWriter, req *http.Request) {
	limit, err := parseLimit(req, defaultAuditLimit)
	if err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}

	records, err := r.client.Documents.History(req.Context(), req.URL.Query().Get("document_id"), limit)
	if err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, jsonapi.NewListResponse(r.serializer.AuditRecordResources(records)))
}
