package v1

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/helixml/semandoc"
	"github.com/helixml/semandoc/domain/document"
	"github.com/helixml/semandoc/infrastructure/api/jsonapi"
	"github.com/helixml/semandoc/infrastructure/api/middleware"
	"github.com/helixml/semandoc/infrastructure/api/v1/dto"
)

// ChatRouter handles retrieval-augmented chat.
type ChatRouter struct {
	client     *semandoc.Client
	logger     *slog.Logger
	serializer jsonapi.Serializer
}

// NewChatRouter creates a new ChatRouter.
func NewChatRouter(client *semandoc.Client) *ChatRouter {
	return &ChatRouter{
		client:     client,
		logger:     client.Logger(),
		serializer: jsonapi.NewSerializer(),
	}
}

// Routes returns the chi router for chat endpoints.
func (r *ChatRouter) Routes() chi.Router {
	router := chi.NewRouter()
	router.Post("/", r.Ask)
	return router
}

// Ask handles POST /api/v1/chat.
func (r *ChatRouter) Ask(w http.ResponseWriter, req *http.Request) {
	var body dto.ChatRequest
	if err := decode(req, &body); err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}
	if strings.TrimSpace(body.Query) == "" {
		middleware.WriteError(w, req, fmt.Errorf("%w: query must not be empty", document.ErrValidation), r.logger)
		return
	}

	answer, err := r.client.Chat.Chat(req.Context(), body.Query, body.Tags)
	if err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}
	resource := r.serializer.AnswerResource(answer.Content, answer.Found, answer.Sources)
	middleware.WriteJSON(w, http.StatusOK, jsonapi.NewSingleResponse(resource))
}
