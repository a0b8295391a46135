package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/davidbz/hearth/internal/config"
	"github.com/davidbz/hearth/internal/http/middleware"
	"github.com/davidbz/hearth/internal/observability"
)

// Server represents the HTTP server.
type Server struct {
	config      config.ServerConfig
	handler     *Handler
	middlewares middleware.Middleware
	srv         *http.Server
}

// NewServer creates a new HTTP server.
func NewServer(
	cfg *config.Config,
	handler *Handler,
	middlewares middleware.Middleware,
) *Server {
	return &Server{
		config:      cfg.Server,
		handler:     handler,
		middlewares: middlewares,
		srv:         nil,
	}
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	mux := http.NewServeMux()

	// Register routes.
	mux.HandleFunc("/v1/chat/completion", s.handler.HandleCompletion)
	mux.HandleFunc("/v1/chat/completion/stream", s.handler.HandleCompletionStream)
	mux.HandleFunc("/v1/chat/create", s.handler.HandleCreateConversation)
	mux.HandleFunc("/v1/chat/get", s.handler.HandleGetConversation)
	mux.HandleFunc("/v1/chat/list", s.handler.HandleListConversations)
	mux.HandleFunc("/v1/chat/rename", s.handler.HandleRenameConversation)
	mux.HandleFunc("/v1/chat/delete", s.handler.HandleDeleteConversation)
	mux.HandleFunc("/v1/chat/save-message", s.handler.HandleSaveMessage)
	mux.HandleFunc("/v1/user/delete-all-chats", s.handler.HandleDeleteAllChats)
	mux.HandleFunc("/v1/user/export", s.handler.HandleExport)
	mux.HandleFunc("/v1/models", s.handler.HandleListModels)
	mux.HandleFunc("/health", s.handler.HandleHealth)

	// Apply middleware chain.
	handlerWithMiddleware := s.middlewares(mux)

	// Create server with timeouts. WriteTimeout bounds the whole streaming
	// response, so it is configured much longer than ReadTimeout.
	s.srv = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      handlerWithMiddleware,
		ReadTimeout:  time.Duration(s.config.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(s.config.WriteTimeout) * time.Second,
	}

	ctx := context.Background()
	observability.FromContext(ctx).Info("starting HTTP server", observability.Int("port", s.config.Port))

	if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	observability.FromContext(ctx).Info("shutting down HTTP server")

	if s.srv == nil {
		return nil
	}

	if err := s.srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}

	return nil
}
