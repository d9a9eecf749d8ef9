// Package mcp provides Model Context Protocol server functionality.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/helixml/semandoc/application/service"
	"github.com/helixml/semandoc/domain/document"
	"github.com/helixml/semandoc/infrastructure/vectorstore"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// defaultTopK is the number of search results returned when k is omitted.
const defaultTopK = 5

// DocumentStore provides the document operations exposed as MCP tools.
type DocumentStore interface {
	Search(ctx context.Context, params service.SearchParams) ([]vectorstore.Result, error)
	Get(ctx context.Context, id string) (document.Document, error)
	Stats(ctx context.Context) document.Stats
}

// Answerer answers questions from stored documents.
type Answerer interface {
	Chat(ctx context.Context, query string, tags []string) (service.Answer, error)
}

// Server wraps the MCP server with document tools.
type Server struct {
	mcpServer *server.MCPServer
	documents DocumentStore
	answerer  Answerer
	version   string
	logger    *slog.Logger
}

// NewServer creates a new MCP server. answerer may be nil, in which case
// the chat tool reports that chat is unavailable.
func NewServer(documents DocumentStore, answerer Answerer, version string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		documents: documents,
		answerer:  answerer,
		version:   version,
		logger:    logger,
	}

	mcpServer := server.NewMCPServer(
		"semandoc",
		version,
		server.WithToolCapabilities(true),
	)
	s.registerTools(mcpServer)

	s.mcpServer = mcpServer
	return s
}

func (s *Server) registerTools(mcpServer *server.MCPServer) {
	searchTool := mcp.NewTool("search_documents",
		mcp.WithDescription("Find stored documents semantically similar to a query"),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Natural language query"),
		),
		mcp.WithNumber("k",
			mcp.Description(fmt.Sprintf("Number of results to return (default: %d)", defaultTopK)),
		),
		mcp.WithArray("tags",
			mcp.Description("Only return documents carrying one of these tags"),
			mcp.WithStringItems(),
		),
		mcp.WithArray("categories",
			mcp.Description("Only return documents in one of these categories"),
			mcp.WithStringItems(),
		),
	)
	mcpServer.AddTool(searchTool, s.handleSearch)

	getTool := mcp.NewTool("get_document",
		mcp.WithDescription("Get a stored document by its id"),
		mcp.WithString("id",
			mcp.Required(),
			mcp.Description("The document id"),
		),
	)
	mcpServer.AddTool(getTool, s.handleGetDocument)

	statsTool := mcp.NewTool("get_stats",
		mcp.WithDescription("Summarise the stored documents by tag and category"),
	)
	mcpServer.AddTool(statsTool, s.handleStats)

	chatTool := mcp.NewTool("ask",
		mcp.WithDescription("Answer a question using the stored documents as context"),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("The question"),
		),
		mcp.WithArray("tags",
			mcp.Description("Restrict retrieval to documents carrying one of these tags"),
			mcp.WithStringItems(),
		),
	)
	mcpServer.AddTool(chatTool, s.handleAsk)

	versionTool := mcp.NewTool("get_version",
		mcp.WithDescription("Get the server version"),
	)
	mcpServer.AddTool(versionTool, s.handleVersion)
}

type documentResult struct {
	ID         string     `json:"id"`
	Content    string     `json:"content"`
	Tags       []string   `json:"tags,omitempty"`
	Categories []string   `json:"categories,omitempty"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
	Distance   *float32   `json:"distance,omitempty"`
}

func newDocumentResult(d document.Document) documentResult {
	m := d.Metadata()
	r := documentResult{
		ID:         d.ID(),
		Content:    d.Content(),
		Tags:       m.Tags(),
		Categories: m.Categories(),
	}
	if exp, ok := m.ExpiresAt(); ok {
		r.ExpiresAt = &exp
	}
	return r
}

func (s *Server) handleSearch(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := request.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError("query is required"), nil
	}

	results, err := s.documents.Search(ctx, service.SearchParams{
		Query:      query,
		K:          request.GetInt("k", defaultTopK),
		Tags:       request.GetStringSlice("tags", nil),
		Categories: request.GetStringSlice("categories", nil),
	})
	if err != nil {
		s.logger.Error("search failed", slog.Any("error", err))
		return mcp.NewToolResultError(fmt.Sprintf("search failed: %v", err)), nil
	}

	out := make([]documentResult, len(results))
	for i, r := range results {
		out[i] = newDocumentResult(r.Document())
		distance := r.Distance()
		out[i].Distance = &distance
	}
	return jsonResult(out)
}

func (s *Server) handleGetDocument(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError("id is required"), nil
	}

	doc, err := s.documents.Get(ctx, id)
	if err != nil {
		if errors.Is(err, document.ErrNotFound) {
			return mcp.NewToolResultError(fmt.Sprintf("document not found: %s", id)), nil
		}
		s.logger.Error("failed to get document", slog.String("id", id), slog.Any("error", err))
		return mcp.NewToolResultError(fmt.Sprintf("failed to get document: %v", err)), nil
	}
	return jsonResult(newDocumentResult(doc))
}

func (s *Server) handleStats(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	stats := s.documents.Stats(ctx)
	return jsonResult(map[string]any{
		"total":                  stats.Total(),
		"tags":                   stats.UniqueTags(),
		"categories":             stats.UniqueCategories(),
		"documents_per_tag":      stats.DocumentsPerTag(),
		"documents_per_category": stats.DocumentsPerCategory(),
	})
}

func (s *Server) handleAsk(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := request.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError("query is required"), nil
	}
	if s.answerer == nil {
		return mcp.NewToolResultError(service.ErrChatUnavailable.Error()), nil
	}

	answer, err := s.answerer.Chat(ctx, query, request.GetStringSlice("tags", nil))
	if err != nil {
		if !errors.Is(err, service.ErrChatUnavailable) {
			s.logger.Error("chat failed", slog.Any("error", err))
		}
		return mcp.NewToolResultError(fmt.Sprintf("chat failed: %v", err)), nil
	}

	sources := make([]string, len(answer.Sources))
	for i, d := range answer.Sources {
		sources[i] = d.ID()
	}
	return jsonResult(map[string]any{
		"answer":  answer.Content,
		"found":   answer.Found,
		"sources": sources,
	})
}

func (s *Server) handleVersion(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(s.version), nil
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(b)), nil
}

// MCPServer returns the underlying MCP server.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// ServeStdio runs the MCP server on stdio.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}
