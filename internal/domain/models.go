package domain

import "time"

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message represents one turn in a conversation. Content is the plain text;
// a user turn may additionally carry image references (URLs or data URIs).
// Provider replies are always plain text.
type Message struct {
	Role           string   `json:"role"`
	Content        string   `json:"content"`
	Images         []string `json:"images,omitempty"`
	Timestamp      int64    `json:"timestamp"` // unix milliseconds
	IsVoiceMessage bool     `json:"isVoiceMessage,omitempty"`
	FromFallback   bool     `json:"fromFallback,omitempty"`
}

// CompletionRequest is an inbound prompt request after HTTP decoding.
type CompletionRequest struct {
	ConversationID string   `json:"chatId"`
	Prompt         string   `json:"prompt"`
	Images         []string `json:"images,omitempty"`
	LogicalModel   string   `json:"model,omitempty"`
}

// CompletionResult is the outcome of a successful completion. It exists only
// for the duration of request handling; only Text outlives it, as the
// persisted assistant turn.
type CompletionResult struct {
	Text       string `json:"text"`
	SourceTier string `json:"sourceTier"`
	Attempt    int    `json:"attempt"` // 1-based position of the tier that succeeded
}

// StreamChunk represents a single streaming response increment.
type StreamChunk struct {
	Delta string `json:"delta"`
	Done  bool   `json:"done"`
	Error error  `json:"error,omitempty"`
}

// Tier is one upstream service configuration for a logical model family,
// attempted in Priority order. A tier with an empty APIKey is skipped unless
// it is the final tier in its list.
type Tier struct {
	Priority int
	Name     string // e.g. "deepseek/official"
	BaseURL  string
	APIKey   string
	Model    string // the model name used at this tier's endpoint
}

// Keyless reports whether the tier has no credential configured.
func (t Tier) Keyless() bool {
	return t.APIKey == ""
}

// Conversation is an owner-scoped, append-only message history.
type Conversation struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"ownerId"`
	Name      string    `json:"name"`
	Messages  []Message `json:"messages"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
