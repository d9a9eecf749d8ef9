// Package api serves the document store over HTTP and MCP.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/helixml/semandoc"
	"github.com/helixml/semandoc/infrastructure/api/jsonapi"
	apimiddleware "github.com/helixml/semandoc/infrastructure/api/middleware"
	v1 "github.com/helixml/semandoc/infrastructure/api/v1"
	mcpinternal "github.com/helixml/semandoc/internal/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// RequestTimeout bounds every /api/v1 request.
const RequestTimeout = 60 * time.Second

// APIServer provides an HTTP API backed by a semandoc Client.
type APIServer struct {
	client      *semandoc.Client
	auth        apimiddleware.AuthConfig
	corsOrigins []string
	version     string
	server      *Server
	router      chi.Router
	logger      *slog.Logger
}

// APIServerOption configures an APIServer.
type APIServerOption func(*APIServer)

// WithCORSOrigins sets the allowed CORS origins. Defaults to "*".
func WithCORSOrigins(origins ...string) APIServerOption {
	return func(a *APIServer) { a.corsOrigins = origins }
}

// WithVersion sets the version reported by the service info and MCP
// endpoints.
func WithVersion(version string) APIServerOption {
	return func(a *APIServer) { a.version = version }
}

// NewAPIServer creates a new APIServer wired to client. When the client
// carries API keys, mutating document endpoints require one in X-API-KEY.
// Reads, search, chat and MCP remain open.
func NewAPIServer(client *semandoc.Client, opts ...APIServerOption) *APIServer {
	a := &APIServer{
		client:      client,
		auth:        apimiddleware.NewAuthConfigWithKeys(client.APIKeys()),
		corsOrigins: []string{"*"},
		version:     "dev",
		logger:      client.Logger(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Router returns the router with every route mounted. Add custom
// middleware to a parent router rather than to this one.
func (a *APIServer) Router() chi.Router {
	if a.router == nil {
		a.router = chi.NewRouter()
		a.mountRoutes(a.router)
	}
	return a.router
}

func (a *APIServer) mountRoutes(router chi.Router) {
	c := a.client
	documents := v1.NewDocumentsRouter(c)
	chat := v1.NewChatRouter(c)
	audit := v1.NewAuditRouter(c)

	router.Get("/", a.info)
	router.Get("/health", a.health)
	router.Get("/healthz", a.health)

	router.Route("/api/v1", func(r chi.Router) {
		r.Use(chimiddleware.Timeout(RequestTimeout))
		r.Use(apimiddleware.CORS(a.corsOrigins))

		// Read-only POSTs stay open.
		r.Post("/documents/search", documents.Search)
		r.Mount("/chat", chat.Routes())
		r.Mount("/audit", audit.Routes())

		// The webhook creates documents over GET.
		r.With(apimiddleware.RequireKey(a.auth)).Get("/documents/webhook", documents.Webhook)

		r.Group(func(r chi.Router) {
			r.Use(apimiddleware.WriteProtect(a.auth))
			r.Mount("/documents", documents.Routes())
		})
	})

	mcpSrv := mcpinternal.NewServer(c.Documents, c.Chat, a.version, a.logger)
	router.Mount("/mcp", server.NewStreamableHTTPServer(mcpSrv.MCPServer()))
}

func (a *APIServer) health(w http.ResponseWriter, _ *http.Request) {
	status := "healthy"
	code := http.StatusOK
	if a.client.Closed() {
		status = "closed"
		code = http.StatusServiceUnavailable
	}
	apimiddleware.WriteJSON(w, code, map[string]string{"status": status})
}

func (a *APIServer) info(w http.ResponseWriter, _ *http.Request) {
	apimiddleware.WriteJSON(w, http.StatusOK, &jsonapi.Document{Meta: jsonapi.Meta{
		"name":      "semandoc",
		"version":   a.version,
		"count":     a.client.Documents.Count(),
		"last_save": jsonapi.DateTime(a.client.Documents.LastSave()),
		"chat":      a.client.Chat.Available(),
	}})
}

// ListenAndServe starts the HTTP server on addr and blocks until Shutdown.
func (a *APIServer) ListenAndServe(addr string) error {
	a.server = NewServer(addr, a.logger)
	a.server.Router().Mount("/", a.Router())
	return a.server.Start()
}

// Shutdown gracefully shuts down the server.
func (a *APIServer) Shutdown(ctx context.Context) error {
	if a.server == nil {
		return nil
	}
	return a.server.Shutdown(ctx)
}

// Handler returns the router as an http.Handler for use with custom servers.
func (a *APIServer) Handler() http.Handler {
	return a.Router()
}
