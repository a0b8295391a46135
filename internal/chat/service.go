// Package chat sequences one completion request cycle: make the user's turn
// durable, dispatch through the fallback orchestrator, and persist the
// assistant's turn exactly once after the response is fully known. It also
// exposes the conversation management operations backing the HTTP surface.
package chat

import (
	"context"
	"errors"
	"time"

	"github.com/davidbz/hearth/internal/domain"
	"github.com/davidbz/hearth/internal/observability"
	"github.com/davidbz/hearth/internal/routing"
)

// DefaultConversationName is assigned to newly created conversations.
const DefaultConversationName = "New Chat"

// Service orchestrates completion requests and conversation persistence.
type Service struct {
	orchestrator *routing.Orchestrator
	store        domain.ConversationStore
}

// NewService creates a new chat service (DI constructor).
func NewService(orchestrator *routing.Orchestrator, store domain.ConversationStore) *Service {
	return &Service{
		orchestrator: orchestrator,
		store:        store,
	}
}

// Send handles a non-streaming completion request and returns the assistant
// turn. An empty ownerID marks an anonymous request: the completion runs but
// nothing is persisted.
func (s *Service) Send(
	ctx context.Context,
	ownerID string,
	req *domain.CompletionRequest,
) (*domain.Message, error) {
	userMsg, err := s.prepare(ctx, ownerID, req)
	if err != nil {
		return nil, err
	}

	result, err := s.orchestrator.Complete(ctx, req.LogicalModel, []domain.Message{*userMsg})
	if err != nil {
		return nil, err
	}

	assistant := assistantMessage(result.Text, result.Attempt)

	if ownerID != "" {
		if appendErr := s.store.AppendMessage(ctx, ownerID, req.ConversationID, assistant); appendErr != nil {
			// The completion succeeded; a persistence fault must not destroy it.
			observability.FromContext(ctx).Error("failed to persist assistant turn",
				observability.Error(appendErr))
		}
	}

	return &assistant, nil
}

// StreamOutcome reports what a streaming request produced.
type StreamOutcome struct {
	Text       string
	SourceTier string
	Attempt    int
	Persisted  bool
}

// Stream handles a streaming completion request, relaying increments to sink
// while accumulating the full text. The assistant turn is persisted only when
// the upstream sequence completes normally with non-empty text; a mid-stream
// failure or client disconnect abandons persistence, so stored history only
// ever contains complete assistant turns.
//
// A non-nil error is returned only for failures before the first increment
// was forwarded; by then no response bytes have been written, so the caller
// can still answer with a request-level failure.
func (s *Service) Stream(
	ctx context.Context,
	ownerID string,
	req *domain.CompletionRequest,
	sink Sink,
) (*StreamOutcome, error) {
	userMsg, err := s.prepare(ctx, ownerID, req)
	if err != nil {
		return nil, err
	}

	attempt, err := s.orchestrator.Stream(ctx, req.LogicalModel, []domain.Message{*userMsg})
	if err != nil {
		return nil, err
	}

	outcome := &StreamOutcome{
		SourceTier: attempt.SourceTier,
		Attempt:    attempt.Attempt,
	}

	text, relayErr := Relay(ctx, attempt.Chunks, sink)
	outcome.Text = text

	logger := observability.FromContext(ctx)

	if relayErr != nil {
		// Partial output was shown to the client transiently but is never saved.
		logger.Warn("stream ended abnormally, assistant turn not persisted",
			observability.String("tier", attempt.SourceTier),
			observability.Error(relayErr))
		return outcome, nil
	}

	if text == "" {
		logger.Warn("stream produced no text, nothing to persist")
		return outcome, nil
	}

	if ownerID != "" {
		assistant := assistantMessage(text, attempt.Attempt)
		if appendErr := s.store.AppendMessage(ctx, ownerID, req.ConversationID, assistant); appendErr != nil {
			logger.Error("failed to persist assistant turn", observability.Error(appendErr))
		} else {
			outcome.Persisted = true
		}
	}

	return outcome, nil
}

// prepare validates the request and makes the user's turn durable before any
// provider is contacted, so the turn survives even if every tier fails.
func (s *Service) prepare(
	ctx context.Context,
	ownerID string,
	req *domain.CompletionRequest,
) (*domain.Message, error) {
	if req == nil {
		return nil, errors.New("request cannot be nil")
	}

	if req.Prompt == "" {
		return nil, errors.New("prompt cannot be empty")
	}

	userMsg := domain.Message{
		Role:      domain.RoleUser,
		Content:   req.Prompt,
		Images:    req.Images,
		Timestamp: time.Now().UnixMilli(),
	}

	if ownerID != "" {
		if err := s.store.AppendMessage(ctx, ownerID, req.ConversationID, userMsg); err != nil {
			return nil, err
		}
	}

	return &userMsg, nil
}

// assistantMessage builds the persisted assistant turn. Replies produced by a
// non-primary tier are marked so the UI can annotate them.
func assistantMessage(text string, attempt int) domain.Message {
	return domain.Message{
		Role:         domain.RoleAssistant,
		Content:      text,
		Timestamp:    time.Now().UnixMilli(),
		FromFallback: attempt > 1,
	}
}

// CreateConversation stores a new, empty conversation for the owner.
func (s *Service) CreateConversation(ctx context.Context, ownerID, name string) (*domain.Conversation, error) {
	if ownerID == "" {
		return nil, domain.ErrUnauthenticated
	}

	if name == "" {
		name = DefaultConversationName
	}

	return s.store.Create(ctx, ownerID, name)
}

// GetConversation returns one of the owner's conversations.
func (s *Service) GetConversation(ctx context.Context, ownerID, conversationID string) (*domain.Conversation, error) {
	if ownerID == "" {
		return nil, domain.ErrUnauthenticated
	}

	return s.store.Get(ctx, ownerID, conversationID)
}

// ListConversations returns the owner's conversations, most recent first.
func (s *Service) ListConversations(ctx context.Context, ownerID string) ([]*domain.Conversation, error) {
	if ownerID == "" {
		return nil, domain.ErrUnauthenticated
	}

	return s.store.List(ctx, ownerID)
}

// RenameConversation updates a conversation's display name.
func (s *Service) RenameConversation(ctx context.Context, ownerID, conversationID, name string) error {
	if ownerID == "" {
		return domain.ErrUnauthenticated
	}

	if name == "" {
		return errors.New("name cannot be empty")
	}

	return s.store.Rename(ctx, ownerID, conversationID, name)
}

// DeleteConversation removes one of the owner's conversations.
func (s *Service) DeleteConversation(ctx context.Context, ownerID, conversationID string) error {
	if ownerID == "" {
		return domain.ErrUnauthenticated
	}

	return s.store.Delete(ctx, ownerID, conversationID)
}

// DeleteAllConversations removes every conversation belonging to the owner.
func (s *Service) DeleteAllConversations(ctx context.Context, ownerID string) error {
	if ownerID == "" {
		return domain.ErrUnauthenticated
	}

	return s.store.DeleteAll(ctx, ownerID)
}

// SaveMessage appends a client-produced turn (voice transcriptions arrive
// through this path) to a conversation.
func (s *Service) SaveMessage(ctx context.Context, ownerID, conversationID string, msg domain.Message) error {
	if ownerID == "" {
		return domain.ErrUnauthenticated
	}

	if msg.Role != domain.RoleUser && msg.Role != domain.RoleAssistant {
		return errors.New("message role must be user or assistant")
	}

	if msg.Content == "" {
		return errors.New("message content cannot be empty")
	}

	if msg.Timestamp == 0 {
		msg.Timestamp = time.Now().UnixMilli()
	}

	return s.store.AppendMessage(ctx, ownerID, conversationID, msg)
}
