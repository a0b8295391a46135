package routing_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/davidbz/hearth/internal/domain"
	"github.com/davidbz/hearth/internal/routing"
)

// mockResolver is a mock implementation of TierResolver for testing.
type mockResolver struct {
	tiers []domain.TierAdapter
}

func (m *mockResolver) Resolve(_ string) []domain.TierAdapter {
	return m.tiers
}

// mockAdapter is a mock implementation of Adapter for testing.
type mockAdapter struct {
	completeFunc func(ctx context.Context, messages []domain.Message) (string, error)
	streamFunc   func(ctx context.Context, messages []domain.Message) (<-chan domain.StreamChunk, error)
	calls        int
}

func (m *mockAdapter) Complete(ctx context.Context, messages []domain.Message) (string, error) {
	m.calls++
	if m.completeFunc != nil {
		return m.completeFunc(ctx, messages)
	}
	return "ok", nil
}

func (m *mockAdapter) Stream(ctx context.Context, messages []domain.Message) (<-chan domain.StreamChunk, error) {
	m.calls++
	if m.streamFunc != nil {
		return m.streamFunc(ctx, messages)
	}
	chunks := make(chan domain.StreamChunk, 2)
	chunks <- domain.StreamChunk{Delta: "ok"}
	chunks <- domain.StreamChunk{Done: true}
	close(chunks)
	return chunks, nil
}

func tier(name, apiKey string, priority int, adapter *mockAdapter) domain.TierAdapter {
	return domain.TierAdapter{
		Tier: domain.Tier{
			Priority: priority,
			Name:     name,
			APIKey:   apiKey,
			Model:    "test-model",
		},
		Adapter: adapter,
	}
}

func failing(message string) *mockAdapter {
	return &mockAdapter{
		completeFunc: func(_ context.Context, _ []domain.Message) (string, error) {
			return "", domain.NewUpstreamError("x", 500, errors.New(message))
		},
		streamFunc: func(_ context.Context, _ []domain.Message) (<-chan domain.StreamChunk, error) {
			return nil, domain.NewUpstreamError("x", 500, errors.New(message))
		},
	}
}

func succeeding(text string) *mockAdapter {
	return &mockAdapter{
		completeFunc: func(_ context.Context, _ []domain.Message) (string, error) {
			return text, nil
		},
		streamFunc: func(_ context.Context, _ []domain.Message) (<-chan domain.StreamChunk, error) {
			chunks := make(chan domain.StreamChunk, 2)
			chunks <- domain.StreamChunk{Delta: text}
			chunks <- domain.StreamChunk{Done: true}
			close(chunks)
			return chunks, nil
		},
	}
}

var testMessages = []domain.Message{{Role: domain.RoleUser, Content: "hello"}}

func TestOrchestrator_Complete(t *testing.T) {
	t.Run("should stop at the first succeeding tier", func(t *testing.T) {
		first := failing("upstream down")
		second := succeeding("hi there")
		third := succeeding("never reached")

		resolver := &mockResolver{tiers: []domain.TierAdapter{
			tier("deepseek/official", "key-a", 1, first),
			tier("deepseek/aggregator", "key-b", 2, second),
			tier("deepseek/hosted", "key-c", 3, third),
		}}
		orchestrator := routing.NewOrchestrator(resolver, nil)

		result, err := orchestrator.Complete(context.Background(), "deepseek", testMessages)

		require.NoError(t, err)
		require.Equal(t, "hi there", result.Text)
		require.Equal(t, "deepseek/aggregator", result.SourceTier)
		require.Equal(t, 2, result.Attempt)
		require.Equal(t, 1, first.calls)
		require.Equal(t, 1, second.calls)
		require.Equal(t, 0, third.calls, "later tiers must never be attempted after a success")
	})

	t.Run("should aggregate all failures on exhaustion", func(t *testing.T) {
		resolver := &mockResolver{tiers: []domain.TierAdapter{
			tier("deepseek/official", "key-a", 1, failing("official down")),
			tier("deepseek/aggregator", "key-b", 2, failing("aggregator down")),
			tier("deepseek/hosted", "key-c", 3, failing("hosted down")),
		}}
		orchestrator := routing.NewOrchestrator(resolver, nil)

		result, err := orchestrator.Complete(context.Background(), "deepseek", testMessages)

		require.Error(t, err)
		require.Nil(t, result)

		var exhausted *domain.AllTiersExhaustedError
		require.ErrorAs(t, err, &exhausted)
		require.Equal(t, "deepseek", exhausted.Model)
		require.Equal(t, 3, exhausted.Attempts)
		require.Len(t, exhausted.Reasons, 3)
		require.Contains(t, exhausted.Reasons[0], "official down")
		require.Contains(t, exhausted.Reasons[2], "hosted down")
	})

	t.Run("should skip keyless tiers except the final one", func(t *testing.T) {
		skipped := succeeding("should not run")
		final := succeeding("keyless fallback answer")

		resolver := &mockResolver{tiers: []domain.TierAdapter{
			tier("deepseek/official", "", 1, skipped),
			tier("deepseek/aggregator", "", 2, skipped),
			tier("deepseek/hosted", "", 3, final),
		}}
		orchestrator := routing.NewOrchestrator(resolver, nil)

		result, err := orchestrator.Complete(context.Background(), "deepseek", testMessages)

		require.NoError(t, err)
		require.Equal(t, "keyless fallback answer", result.Text)
		require.Equal(t, "deepseek/hosted", result.SourceTier)
		require.Equal(t, 1, result.Attempt, "skipped tiers must not count as attempts")
		require.Equal(t, 0, skipped.calls)
		require.Equal(t, 1, final.calls)
	})

	t.Run("should attempt a sole keyless tier", func(t *testing.T) {
		only := succeeding("solo")

		resolver := &mockResolver{tiers: []domain.TierAdapter{
			tier("deepseek/hosted", "", 1, only),
		}}
		orchestrator := routing.NewOrchestrator(resolver, nil)

		result, err := orchestrator.Complete(context.Background(), "deepseek", testMessages)

		require.NoError(t, err)
		require.Equal(t, "solo", result.Text)
		require.Equal(t, 1, only.calls)
	})

	t.Run("should fall back from an HTTP 500 to the aggregator", func(t *testing.T) {
		official := &mockAdapter{
			completeFunc: func(_ context.Context, _ []domain.Message) (string, error) {
				return "", domain.NewUpstreamError("deepseek/official", 500, errors.New("internal server error"))
			},
		}

		resolver := &mockResolver{tiers: []domain.TierAdapter{
			tier("deepseek/official", "key-a", 1, official),
			tier("deepseek/aggregator", "key-b", 2, succeeding("hi there")),
		}}
		orchestrator := routing.NewOrchestrator(resolver, nil)

		result, err := orchestrator.Complete(context.Background(), "deepseek", testMessages)

		require.NoError(t, err)
		require.Equal(t, "hi there", result.Text)
		require.Equal(t, "deepseek/aggregator", result.SourceTier)
	})
}

func TestOrchestrator_Stream(t *testing.T) {
	t.Run("should share the fallback rules with the single-shot path", func(t *testing.T) {
		first := failing("connect refused")
		second := succeeding("streamed")

		resolver := &mockResolver{tiers: []domain.TierAdapter{
			tier("claude/official", "key-a", 1, first),
			tier("claude/aggregator", "key-b", 2, second),
		}}
		orchestrator := routing.NewOrchestrator(resolver, nil)

		attempt, err := orchestrator.Stream(context.Background(), "claude", testMessages)

		require.NoError(t, err)
		require.Equal(t, "claude/aggregator", attempt.SourceTier)
		require.Equal(t, 2, attempt.Attempt)

		var collected string
		for chunk := range attempt.Chunks {
			require.NoError(t, chunk.Error)
			collected += chunk.Delta
		}
		require.Equal(t, "streamed", collected)
	})

	t.Run("should surface exhaustion before opening a stream", func(t *testing.T) {
		resolver := &mockResolver{tiers: []domain.TierAdapter{
			tier("claude/official", "key-a", 1, failing("down")),
			tier("claude/hosted", "", 2, failing("also down")),
		}}
		orchestrator := routing.NewOrchestrator(resolver, nil)

		attempt, err := orchestrator.Stream(context.Background(), "claude", testMessages)

		require.Error(t, err)
		require.Nil(t, attempt)

		var exhausted *domain.AllTiersExhaustedError
		require.ErrorAs(t, err, &exhausted)
		require.Equal(t, 2, exhausted.Attempts)
	})
}
