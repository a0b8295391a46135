// Package routing implements the tiered fallback policy. For each request the
// orchestrator walks a logical model's tier list in priority order, attempting
// one tier at a time: the first success short-circuits, a failure advances to
// the next tier, and exhaustion of the list surfaces a single aggregated
// error. The same walk drives both the single-shot and the streaming call
// shape, so the ordering and skip rules exist in exactly one place.
package routing

import (
	"context"
	"fmt"

	"github.com/davidbz/hearth/internal/domain"
	"github.com/davidbz/hearth/internal/observability"
)

// Orchestrator dispatches completion requests across provider tiers.
type Orchestrator struct {
	resolver domain.TierResolver
	events   domain.EventPublisher
}

// NewOrchestrator creates a new orchestrator (DI constructor).
func NewOrchestrator(resolver domain.TierResolver, events domain.EventPublisher) *Orchestrator {
	return &Orchestrator{
		resolver: resolver,
		events:   events,
	}
}

// StreamAttempt is an established upstream stream together with the identity
// of the tier that produced it.
type StreamAttempt struct {
	Chunks     <-chan domain.StreamChunk
	SourceTier string
	Attempt    int
}

// Complete runs the tier walk with each tier's single-shot capability.
func (o *Orchestrator) Complete(
	ctx context.Context,
	logicalModel string,
	messages []domain.Message,
) (*domain.CompletionResult, error) {
	text, tier, attempt, err := runTiers(ctx, o, logicalModel,
		func(ctx context.Context, ta domain.TierAdapter) (string, error) {
			return ta.Adapter.Complete(ctx, messages)
		})
	if err != nil {
		return nil, err
	}

	return &domain.CompletionResult{
		Text:       text,
		SourceTier: tier.Name,
		Attempt:    attempt,
	}, nil
}

// Stream runs the tier walk with each tier's streaming capability. Fallback
// covers the connection phase only: once a tier has begun yielding
// increments, a mid-stream failure belongs to the caller.
func (o *Orchestrator) Stream(
	ctx context.Context,
	logicalModel string,
	messages []domain.Message,
) (*StreamAttempt, error) {
	chunks, tier, attempt, err := runTiers(ctx, o, logicalModel,
		func(ctx context.Context, ta domain.TierAdapter) (<-chan domain.StreamChunk, error) {
			return ta.Adapter.Stream(ctx, messages)
		})
	if err != nil {
		return nil, err
	}

	return &StreamAttempt{
		Chunks:     chunks,
		SourceTier: tier.Name,
		Attempt:    attempt,
	}, nil
}

// runTiers is the shared tier walk, parameterized by an attempt function so
// both call shapes reuse identical ordering and skip rules. Tiers without a
// credential are skipped without an attempt unless they are the final tier,
// which is always attempted: the keyless fallback must stay reachable.
func runTiers[T any](
	ctx context.Context,
	o *Orchestrator,
	logicalModel string,
	attempt func(context.Context, domain.TierAdapter) (T, error),
) (T, domain.Tier, int, error) {
	tiers := o.resolver.Resolve(logicalModel)

	var (
		zero     T
		attempts int
		reasons  []string
		lastErr  error
	)

	for i, ta := range tiers {
		finalTier := i == len(tiers)-1

		if ta.Tier.Keyless() && !finalTier {
			// Immediate, silent failure transition.
			continue
		}

		tierCtx := observability.WithTier(ctx, ta.Tier.Name)
		attempts++

		result, err := attempt(tierCtx, ta)
		if err == nil {
			o.publish(tierCtx, "tier_succeeded", map[string]interface{}{
				"model":   logicalModel,
				"tier":    ta.Tier.Name,
				"attempt": attempts,
			})
			return result, ta.Tier, attempts, nil
		}

		lastErr = err
		reasons = append(reasons, fmt.Sprintf("%s: %v", ta.Tier.Name, err))

		logger := observability.FromContext(tierCtx)
		if finalTier {
			logger.Error("final tier failed", observability.Error(err))
		} else {
			logger.Warn("tier failed, falling back",
				observability.String("abandoned_tier", ta.Tier.Name),
				observability.Error(err),
			)
		}
		o.publish(tierCtx, "tier_failed", map[string]interface{}{
			"model": logicalModel,
			"tier":  ta.Tier.Name,
			"error": err.Error(),
		})
	}

	return zero, domain.Tier{}, attempts, &domain.AllTiersExhaustedError{
		Model:    logicalModel,
		Attempts: attempts,
		Reasons:  reasons,
		Last:     lastErr,
	}
}

func (o *Orchestrator) publish(ctx context.Context, eventType string, data map[string]interface{}) {
	if o.events == nil {
		return
	}
	o.events.Publish(ctx, eventType, data)
}
