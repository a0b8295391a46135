package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/davidbz/hearth/internal/auth"
	"github.com/davidbz/hearth/internal/chat"
	"github.com/davidbz/hearth/internal/domain"
	"github.com/davidbz/hearth/internal/observability"
	"github.com/davidbz/hearth/internal/registry"
)

// Handler handles HTTP requests.
type Handler struct {
	chat     *chat.Service
	resolver *auth.Resolver
	models   *registry.ModelRegistry
}

// NewHandler creates a new HTTP handler (DI constructor).
func NewHandler(chatService *chat.Service, resolver *auth.Resolver, models *registry.ModelRegistry) *Handler {
	return &Handler{
		chat:     chatService,
		resolver: resolver,
		models:   models,
	}
}

// apiResponse is the JSON envelope shared by every non-streaming endpoint.
type apiResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// HandleCompletion processes non-streaming completion requests.
func (h *Handler) HandleCompletion(w http.ResponseWriter, r *http.Request) {
	ctx, ownerID, req, ok := h.decodeCompletion(w, r)
	if !ok {
		return
	}

	logger := observability.FromContext(ctx)
	logger.Info("completion request received",
		observability.String("model", req.LogicalModel),
		observability.Bool("anonymous", ownerID == ""),
	)

	assistant, err := h.chat.Send(ctx, ownerID, req)
	if err != nil {
		logger.Error("completion failed", observability.Error(err))
		writeError(w, statusForError(err), err)
		return
	}

	logger.Info("completion succeeded",
		observability.Int("response_length", len(assistant.Content)),
		observability.Bool("from_fallback", assistant.FromFallback),
	)

	writeJSON(w, http.StatusOK, apiResponse{Success: true, Data: assistant})
}

// HandleCompletionStream processes streaming completion requests. Increments
// are relayed to the client as chunked plain text; a total failure before the
// first increment is answered as a JSON error instead of opening the stream.
func (h *Handler) HandleCompletionStream(w http.ResponseWriter, r *http.Request) {
	ctx, ownerID, req, ok := h.decodeCompletion(w, r)
	if !ok {
		return
	}

	logger := observability.FromContext(ctx)
	logger.Info("stream request started",
		observability.String("model", req.LogicalModel),
		observability.Bool("anonymous", ownerID == ""),
	)

	flusher, flushable := w.(http.Flusher)
	if !flushable {
		logger.Error("streaming not supported")
		writeError(w, http.StatusInternalServerError, errors.New("streaming not supported"))
		return
	}

	// Headers are not sent until the first write, so the error path below can
	// still replace them with a JSON failure.
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Accel-Buffering", "no")

	outcome, err := h.chat.Stream(ctx, ownerID, req, &flushWriter{w: w, flusher: flusher})
	if err != nil {
		logger.Error("stream failed before first increment", observability.Error(err))
		writeError(w, statusForError(err), err)
		return
	}

	logger.Info("stream finished",
		observability.String("tier", outcome.SourceTier),
		observability.Int("attempt", outcome.Attempt),
		observability.Int("response_length", len(outcome.Text)),
		observability.Bool("persisted", outcome.Persisted),
	)
}

// decodeCompletion performs the shared preamble of both completion endpoints:
// method check, identity resolution with the anonymous-mode policy, body
// decoding, and field validation.
func (h *Handler) decodeCompletion(
	w http.ResponseWriter,
	r *http.Request,
) (context.Context, string, *domain.CompletionRequest, bool) {
	ctx := r.Context()

	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, errors.New("method not allowed"))
		return ctx, "", nil, false
	}

	ownerID, err := h.resolver.ResolveOwner(r)
	if err != nil {
		if !h.resolver.AllowAnonymous() {
			writeError(w, http.StatusUnauthorized, domain.ErrUnauthenticated)
			return ctx, "", nil, false
		}
		ownerID = ""
	}

	var req domain.CompletionRequest
	if decodeErr := json.NewDecoder(r.Body).Decode(&req); decodeErr != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", decodeErr))
		return ctx, "", nil, false
	}

	if req.Prompt == "" {
		writeError(w, http.StatusBadRequest, errors.New("prompt is required"))
		return ctx, "", nil, false
	}

	if ownerID != "" && req.ConversationID == "" {
		writeError(w, http.StatusBadRequest, errors.New("chatId is required"))
		return ctx, "", nil, false
	}

	ctx = observability.WithModel(ctx, req.LogicalModel)

	return ctx, ownerID, &req, true
}

// HandleCreateConversation creates an empty conversation for the owner.
func (h *Handler) HandleCreateConversation(w http.ResponseWriter, r *http.Request) {
	ctx, ownerID, ok := h.authenticated(w, r, http.MethodPost)
	if !ok {
		return
	}

	var body struct {
		Name string `json:"name"`
	}
	// An empty body is fine; the conversation gets the default name.
	_ = json.NewDecoder(r.Body).Decode(&body)

	conv, err := h.chat.CreateConversation(ctx, ownerID, body.Name)
	if err != nil {
		writeError(w, statusForError(err), err)
		return
	}

	writeJSON(w, http.StatusOK, apiResponse{Success: true, Data: conv})
}

// HandleGetConversation returns one conversation with its full history.
func (h *Handler) HandleGetConversation(w http.ResponseWriter, r *http.Request) {
	ctx, ownerID, ok := h.authenticated(w, r, http.MethodGet)
	if !ok {
		return
	}

	conversationID := r.URL.Query().Get("chatId")
	if conversationID == "" {
		writeError(w, http.StatusBadRequest, errors.New("chatId is required"))
		return
	}

	conv, err := h.chat.GetConversation(ctx, ownerID, conversationID)
	if err != nil {
		writeError(w, statusForError(err), err)
		return
	}

	writeJSON(w, http.StatusOK, apiResponse{Success: true, Data: conv})
}

// HandleListConversations returns the owner's conversations, newest first.
func (h *Handler) HandleListConversations(w http.ResponseWriter, r *http.Request) {
	ctx, ownerID, ok := h.authenticated(w, r, http.MethodGet)
	if !ok {
		return
	}

	list, err := h.chat.ListConversations(ctx, ownerID)
	if err != nil {
		writeError(w, statusForError(err), err)
		return
	}

	writeJSON(w, http.StatusOK, apiResponse{Success: true, Data: list})
}

// HandleRenameConversation updates a conversation's display name.
func (h *Handler) HandleRenameConversation(w http.ResponseWriter, r *http.Request) {
	ctx, ownerID, ok := h.authenticated(w, r, http.MethodPost)
	if !ok {
		return
	}

	var body struct {
		ConversationID string `json:"chatId"`
		Name           string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}

	if body.ConversationID == "" || body.Name == "" {
		writeError(w, http.StatusBadRequest, errors.New("chatId and name are required"))
		return
	}

	if err := h.chat.RenameConversation(ctx, ownerID, body.ConversationID, body.Name); err != nil {
		writeError(w, statusForError(err), err)
		return
	}

	writeJSON(w, http.StatusOK, apiResponse{Success: true})
}

// HandleDeleteConversation removes one conversation.
func (h *Handler) HandleDeleteConversation(w http.ResponseWriter, r *http.Request) {
	ctx, ownerID, ok := h.authenticated(w, r, http.MethodPost)
	if !ok {
		return
	}

	var body struct {
		ConversationID string `json:"chatId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}

	if body.ConversationID == "" {
		writeError(w, http.StatusBadRequest, errors.New("chatId is required"))
		return
	}

	if err := h.chat.DeleteConversation(ctx, ownerID, body.ConversationID); err != nil {
		writeError(w, statusForError(err), err)
		return
	}

	writeJSON(w, http.StatusOK, apiResponse{Success: true})
}

// HandleSaveMessage appends a client-produced turn (voice transcriptions
// arrive through this path).
func (h *Handler) HandleSaveMessage(w http.ResponseWriter, r *http.Request) {
	ctx, ownerID, ok := h.authenticated(w, r, http.MethodPost)
	if !ok {
		return
	}

	var body struct {
		ConversationID string         `json:"chatId"`
		Message        domain.Message `json:"message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}

	if body.ConversationID == "" {
		writeError(w, http.StatusBadRequest, errors.New("chatId is required"))
		return
	}

	if err := h.chat.SaveMessage(ctx, ownerID, body.ConversationID, body.Message); err != nil {
		writeError(w, statusForError(err), err)
		return
	}

	writeJSON(w, http.StatusOK, apiResponse{Success: true})
}

// HandleDeleteAllChats removes every conversation belonging to the owner.
func (h *Handler) HandleDeleteAllChats(w http.ResponseWriter, r *http.Request) {
	ctx, ownerID, ok := h.authenticated(w, r, http.MethodPost)
	if !ok {
		return
	}

	if err := h.chat.DeleteAllConversations(ctx, ownerID); err != nil {
		writeError(w, statusForError(err), err)
		return
	}

	writeJSON(w, http.StatusOK, apiResponse{Success: true})
}

// HandleExport returns all of the owner's conversations as one document.
func (h *Handler) HandleExport(w http.ResponseWriter, r *http.Request) {
	ctx, ownerID, ok := h.authenticated(w, r, http.MethodGet)
	if !ok {
		return
	}

	list, err := h.chat.ListConversations(ctx, ownerID)
	if err != nil {
		writeError(w, statusForError(err), err)
		return
	}

	writeJSON(w, http.StatusOK, apiResponse{Success: true, Data: map[string]interface{}{
		"conversations": list,
	}})
}

// HandleListModels returns the routable model families. The list is public:
// clients populate their model picker before signing in.
func (h *Handler) HandleListModels(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, errors.New("method not allowed"))
		return
	}

	writeJSON(w, http.StatusOK, apiResponse{Success: true, Data: map[string]interface{}{
		"models":  h.models.Families(),
		"default": h.models.DefaultModel(),
	}})
}

// HandleHealth handles health check requests.
func (h *Handler) HandleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
	})
}

// authenticated is the shared preamble of the conversation management
// endpoints, which always require an identified owner regardless of the
// anonymous-completion policy.
func (h *Handler) authenticated(
	w http.ResponseWriter,
	r *http.Request,
	method string,
) (context.Context, string, bool) {
	ctx := r.Context()

	if r.Method != method {
		writeError(w, http.StatusMethodNotAllowed, errors.New("method not allowed"))
		return ctx, "", false
	}

	ownerID, err := h.resolver.ResolveOwner(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, domain.ErrUnauthenticated)
		return ctx, "", false
	}

	return ctx, ownerID, true
}

// flushWriter adapts an http.ResponseWriter into the bridge's Sink.
type flushWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

func (f *flushWriter) Write(p []byte) (int, error) {
	return f.w.Write(p)
}

func (f *flushWriter) Flush() {
	f.flusher.Flush()
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		// Already written status, can't change it, just log.
		return
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, apiResponse{Success: false, Error: err.Error()})
}

// statusForError maps domain failures to HTTP status codes.
func statusForError(err error) int {
	var exhausted *domain.AllTiersExhaustedError

	switch {
	case errors.Is(err, domain.ErrConversationNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.As(err, &exhausted):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
