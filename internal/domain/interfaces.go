package domain

import "context"

// Adapter wraps one upstream completion endpoint behind a uniform capability
// set. Implementations convert between NormalizedMessage form and the
// endpoint's wire format.
type Adapter interface {
	// Complete sends a single-shot completion request and returns the full
	// response text. Any non-2xx response, malformed body, or transport
	// failure is reported as an *UpstreamError.
	Complete(ctx context.Context, messages []Message) (string, error)

	// Stream sends a completion request and returns a finite, non-restartable
	// sequence of text increments. Empty increments are filtered and never
	// yielded. A failure before the first increment is returned directly; a
	// mid-stream failure is carried on the chunk's Error field.
	Stream(ctx context.Context, messages []Message) (<-chan StreamChunk, error)
}

// TierAdapter binds a tier configuration to the adapter constructed for it.
type TierAdapter struct {
	Tier    Tier
	Adapter Adapter
}

// TierResolver maps a logical model identifier to its ordered tier list.
// Resolution is pure and never returns an empty list: unknown identifiers
// fall back to the default model family.
type TierResolver interface {
	Resolve(logicalModel string) []TierAdapter
}

// ConversationStore is the persistence gateway for conversation documents.
// All operations are scoped to an owner; a conversation is only visible to
// the owner that created it.
type ConversationStore interface {
	// Create stores a new empty conversation and returns it.
	Create(ctx context.Context, ownerID, name string) (*Conversation, error)

	// Get returns a conversation by id, or ErrConversationNotFound.
	Get(ctx context.Context, ownerID, conversationID string) (*Conversation, error)

	// List returns all of an owner's conversations, most recently updated first.
	List(ctx context.Context, ownerID string) ([]*Conversation, error)

	// AppendMessage appends one message to a conversation's history.
	AppendMessage(ctx context.Context, ownerID, conversationID string, msg Message) error

	// Rename updates a conversation's display name.
	Rename(ctx context.Context, ownerID, conversationID, name string) error

	// Delete removes a conversation.
	Delete(ctx context.Context, ownerID, conversationID string) error

	// DeleteAll removes every conversation belonging to an owner.
	DeleteAll(ctx context.Context, ownerID string) error
}

// EventPublisher publishes events for observability.
type EventPublisher interface {
	// Publish publishes an event with the given type and data.
	Publish(ctx context.Context, eventType string, data map[string]interface{})
}
