// Package memory provides an in-process ConversationStore. It backs tests
// and local runs where no Redis address is configured.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/davidbz/hearth/internal/domain"
)

// Store implements the domain.ConversationStore interface in memory.
type Store struct {
	mu            sync.RWMutex
	conversations map[string]map[string]*domain.Conversation // ownerID -> conversationID -> conversation
}

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{
		mu:            sync.RWMutex{},
		conversations: make(map[string]map[string]*domain.Conversation),
	}
}

// Create stores a new empty conversation and returns it.
func (s *Store) Create(_ context.Context, ownerID, name string) (*domain.Conversation, error) {
	now := time.Now()
	conv := &domain.Conversation{
		ID:        uuid.New().String(),
		OwnerID:   ownerID,
		Name:      name,
		Messages:  []domain.Message{},
		CreatedAt: now,
		UpdatedAt: now,
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conversations[ownerID] == nil {
		s.conversations[ownerID] = make(map[string]*domain.Conversation)
	}
	s.conversations[ownerID][conv.ID] = conv

	return copyConversation(conv), nil
}

// Get returns a conversation by id, or ErrConversationNotFound.
func (s *Store) Get(_ context.Context, ownerID, conversationID string) (*domain.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	conv, exists := s.conversations[ownerID][conversationID]
	if !exists {
		return nil, domain.ErrConversationNotFound
	}

	return copyConversation(conv), nil
}

// List returns all of an owner's conversations, most recently updated first.
func (s *Store) List(_ context.Context, ownerID string) ([]*domain.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := make([]*domain.Conversation, 0, len(s.conversations[ownerID]))
	for _, conv := range s.conversations[ownerID] {
		list = append(list, copyConversation(conv))
	}

	sort.Slice(list, func(i, j int) bool {
		return list[i].UpdatedAt.After(list[j].UpdatedAt)
	})

	return list, nil
}

// AppendMessage appends one message to a conversation's history.
func (s *Store) AppendMessage(_ context.Context, ownerID, conversationID string, msg domain.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, exists := s.conversations[ownerID][conversationID]
	if !exists {
		return domain.ErrConversationNotFound
	}

	conv.Messages = append(conv.Messages, msg)
	conv.UpdatedAt = time.Now()

	return nil
}

// Rename updates a conversation's display name.
func (s *Store) Rename(_ context.Context, ownerID, conversationID, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, exists := s.conversations[ownerID][conversationID]
	if !exists {
		return domain.ErrConversationNotFound
	}

	conv.Name = name
	conv.UpdatedAt = time.Now()

	return nil
}

// Delete removes a conversation.
func (s *Store) Delete(_ context.Context, ownerID, conversationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.conversations[ownerID][conversationID]; !exists {
		return domain.ErrConversationNotFound
	}

	delete(s.conversations[ownerID], conversationID)

	return nil
}

// DeleteAll removes every conversation belonging to an owner.
func (s *Store) DeleteAll(_ context.Context, ownerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.conversations, ownerID)

	return nil
}

// copyConversation returns an independent copy so callers can't mutate the
// stored document.
func copyConversation(conv *domain.Conversation) *domain.Conversation {
	copied := *conv
	copied.Messages = make([]domain.Message, len(conv.Messages))
	copy(copied.Messages, conv.Messages)
	return &copied
}
