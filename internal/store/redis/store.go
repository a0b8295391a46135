// Package redis provides the production ConversationStore. Conversation
// documents are stored as JSON values; a per-owner sorted set indexes them by
// last update time for newest-first listing.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/davidbz/hearth/internal/domain"
)

// Store implements the domain.ConversationStore interface on Redis.
type Store struct {
	client *redis.Client
}

// NewStore creates a conversation store backed by the given client.
func NewStore(client *redis.Client) *Store {
	return &Store{
		client: client,
	}
}

func conversationKey(ownerID, conversationID string) string {
	return fmt.Sprintf("conversation:%s:%s", ownerID, conversationID)
}

func ownerIndexKey(ownerID string) string {
	return fmt.Sprintf("conversations:%s", ownerID)
}

// Create stores a new empty conversation and returns it.
func (s *Store) Create(ctx context.Context, ownerID, name string) (*domain.Conversation, error) {
	now := time.Now()
	conv := &domain.Conversation{
		ID:        uuid.New().String(),
		OwnerID:   ownerID,
		Name:      name,
		Messages:  []domain.Message{},
		CreatedAt: now,
		UpdatedAt: now,
	}

	data, err := json.Marshal(conv)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal conversation: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, conversationKey(ownerID, conv.ID), data, 0)
	pipe.ZAdd(ctx, ownerIndexKey(ownerID), redis.Z{
		Score:  float64(now.UnixMilli()),
		Member: conv.ID,
	})
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("failed to store conversation: %w", err)
	}

	return conv, nil
}

// Get returns a conversation by id, or ErrConversationNotFound.
func (s *Store) Get(ctx context.Context, ownerID, conversationID string) (*domain.Conversation, error) {
	raw, err := s.client.Get(ctx, conversationKey(ownerID, conversationID)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrConversationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load conversation: %w", err)
	}

	var conv domain.Conversation
	if unmarshalErr := json.Unmarshal([]byte(raw), &conv); unmarshalErr != nil {
		return nil, fmt.Errorf("failed to unmarshal conversation: %w", unmarshalErr)
	}

	return &conv, nil
}

// List returns all of an owner's conversations, most recently updated first.
func (s *Store) List(ctx context.Context, ownerID string) ([]*domain.Conversation, error) {
	ids, err := s.client.ZRevRange(ctx, ownerIndexKey(ownerID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}

	list := make([]*domain.Conversation, 0, len(ids))
	for _, id := range ids {
		conv, getErr := s.Get(ctx, ownerID, id)
		if errors.Is(getErr, domain.ErrConversationNotFound) {
			// Index entry outlived its document; skip it.
			continue
		}
		if getErr != nil {
			return nil, getErr
		}
		list = append(list, conv)
	}

	return list, nil
}

// AppendMessage appends one message to a conversation's history. The
// read-modify-write runs under WATCH so a concurrent append retries instead
// of silently losing a turn.
func (s *Store) AppendMessage(ctx context.Context, ownerID, conversationID string, msg domain.Message) error {
	return s.update(ctx, ownerID, conversationID, func(conv *domain.Conversation) {
		conv.Messages = append(conv.Messages, msg)
	})
}

// Rename updates a conversation's display name.
func (s *Store) Rename(ctx context.Context, ownerID, conversationID, name string) error {
	return s.update(ctx, ownerID, conversationID, func(conv *domain.Conversation) {
		conv.Name = name
	})
}

// Delete removes a conversation.
func (s *Store) Delete(ctx context.Context, ownerID, conversationID string) error {
	key := conversationKey(ownerID, conversationID)

	removed, err := s.client.Del(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("failed to delete conversation: %w", err)
	}
	if removed == 0 {
		return domain.ErrConversationNotFound
	}

	if err := s.client.ZRem(ctx, ownerIndexKey(ownerID), conversationID).Err(); err != nil {
		return fmt.Errorf("failed to remove index entry: %w", err)
	}

	return nil
}

// DeleteAll removes every conversation belonging to an owner.
func (s *Store) DeleteAll(ctx context.Context, ownerID string) error {
	ids, err := s.client.ZRange(ctx, ownerIndexKey(ownerID), 0, -1).Result()
	if err != nil {
		return fmt.Errorf("failed to list conversations: %w", err)
	}

	pipe := s.client.TxPipeline()
	for _, id := range ids {
		pipe.Del(ctx, conversationKey(ownerID, id))
	}
	pipe.Del(ctx, ownerIndexKey(ownerID))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to delete conversations: %w", err)
	}

	return nil
}

const maxUpdateRetries = 3

// update applies mutate to a conversation document under optimistic locking.
func (s *Store) update(
	ctx context.Context,
	ownerID, conversationID string,
	mutate func(*domain.Conversation),
) error {
	key := conversationKey(ownerID, conversationID)

	txn := func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Result()
		if errors.Is(err, redis.Nil) {
			return domain.ErrConversationNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to load conversation: %w", err)
		}

		var conv domain.Conversation
		if unmarshalErr := json.Unmarshal([]byte(raw), &conv); unmarshalErr != nil {
			return fmt.Errorf("failed to unmarshal conversation: %w", unmarshalErr)
		}

		mutate(&conv)
		conv.UpdatedAt = time.Now()

		data, marshalErr := json.Marshal(&conv)
		if marshalErr != nil {
			return fmt.Errorf("failed to marshal conversation: %w", marshalErr)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, 0)
			pipe.ZAdd(ctx, ownerIndexKey(ownerID), redis.Z{
				Score:  float64(conv.UpdatedAt.UnixMilli()),
				Member: conversationID,
			})
			return nil
		})
		return err
	}

	var err error
	for i := 0; i < maxUpdateRetries; i++ {
		err = s.client.Watch(ctx, txn, key)
		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}
	}
	return err
}
