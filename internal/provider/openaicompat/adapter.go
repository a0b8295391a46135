// Package openaicompat provides an adapter for any OpenAI-compatible
// chat-completions endpoint using the official SDK. The same adapter serves
// both official vendor endpoints and the aggregator endpoint; only the base
// URL, credential, and model name differ per tier.
package openaicompat

import (
	"context"
	"errors"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/ssestream"

	"github.com/davidbz/hearth/internal/domain"
	"github.com/davidbz/hearth/internal/observability"
)

// ErrEmptyCompletion indicates the endpoint answered 2xx with no usable content.
var ErrEmptyCompletion = errors.New("empty completion from upstream")

// Config contains one tier's endpoint settings.
type Config struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout int // seconds, bounds every upstream call
}

// Adapter implements the domain.Adapter interface over the OpenAI wire protocol.
type Adapter struct {
	client openai.Client
	tier   string
	model  string
}

// New creates an adapter for one tier. tier is the tier's registry name and
// is used to attribute failures.
func New(tier string, config Config) *Adapter {
	opts := []option.RequestOption{
		option.WithAPIKey(config.APIKey),
	}

	if config.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(config.BaseURL))
	}

	if config.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(time.Duration(config.Timeout)*time.Second))
	}

	// Same-tier retries are disabled on purpose: recovery always means
	// advancing to the next tier, which bounds worst-case latency.
	opts = append(opts, option.WithMaxRetries(0))

	return &Adapter{
		client: openai.NewClient(opts...),
		tier:   tier,
		model:  config.Model,
	}
}

// Complete sends a single-shot completion request and returns the response text.
func (a *Adapter) Complete(ctx context.Context, messages []domain.Message) (string, error) {
	logger := observability.FromContext(ctx)
	logger.Debug("calling chat-completions endpoint", observability.String("tier", a.tier))

	resp, err := a.client.Chat.Completions.New(ctx, a.toSDKParams(messages))
	if err != nil {
		return "", a.wrapError(err)
	}

	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", domain.NewUpstreamError(a.tier, 0, ErrEmptyCompletion)
	}

	logger.Debug("chat-completions call succeeded",
		observability.Int("completion_tokens", int(resp.Usage.CompletionTokens)),
	)

	return resp.Choices[0].Message.Content, nil
}

// Stream sends a completion request and returns a stream of increments. A
// failure during the handshake, before any text arrives, is returned directly
// so the caller can fall back to another tier; once the first increment is
// out, failures travel on the chunk's Error field.
func (a *Adapter) Stream(ctx context.Context, messages []domain.Message) (<-chan domain.StreamChunk, error) {
	logger := observability.FromContext(ctx)
	logger.Debug("calling streaming chat-completions endpoint", observability.String("tier", a.tier))

	stream := a.client.Chat.Completions.NewStreaming(ctx, a.toSDKParams(messages))

	// Pull until the first non-empty delta (or completion) so connect-phase
	// failures surface synchronously.
	first, done, err := a.nextDelta(stream)
	if err != nil {
		_ = stream.Close()
		return nil, err
	}

	chunks := make(chan domain.StreamChunk)

	go func() {
		defer close(chunks)
		defer stream.Close()
		defer logger.Debug("upstream stream finished")

		delta, finished := first, done
		for {
			if delta != "" {
				select {
				case chunks <- domain.StreamChunk{Delta: delta, Done: false}:
				case <-ctx.Done():
					return
				}
			}

			if finished {
				select {
				case chunks <- domain.StreamChunk{Done: true}:
				case <-ctx.Done():
				}
				return
			}

			var nextErr error
			delta, finished, nextErr = a.nextDelta(stream)
			if nextErr != nil {
				select {
				case chunks <- domain.StreamChunk{Error: nextErr}:
				case <-ctx.Done():
				}
				return
			}
		}
	}()

	return chunks, nil
}

// nextDelta advances the SDK stream to the next non-empty content delta.
// It returns done=true when upstream signals completion.
func (a *Adapter) nextDelta(stream *ssestream.Stream[openai.ChatCompletionChunk]) (string, bool, error) {
	for stream.Next() {
		chunk := stream.Current()
		if len(chunk.Choices) == 0 {
			continue
		}

		delta := chunk.Choices[0].Delta.Content
		done := chunk.Choices[0].FinishReason != ""

		if delta == "" && !done {
			continue
		}
		return delta, done, nil
	}

	if err := stream.Err(); err != nil {
		return "", false, a.wrapError(err)
	}

	// Upstream closed without a finish signal; treat as normal completion.
	return "", true, nil
}

// toSDKParams converts normalized messages to SDK ChatCompletionNewParams.
func (a *Adapter) toSDKParams(messages []domain.Message) openai.ChatCompletionNewParams {
	converted := make([]openai.ChatCompletionMessageParamUnion, len(messages))
	for i, msg := range messages {
		switch {
		case msg.Role == domain.RoleUser && len(msg.Images) > 0:
			parts := make([]openai.ChatCompletionContentPartUnionParam, 0, len(msg.Images)+1)
			parts = append(parts, openai.TextContentPart(msg.Content))
			for _, image := range msg.Images {
				parts = append(parts, openai.ImageContentPart(
					openai.ChatCompletionContentPartImageImageURLParam{URL: image},
				))
			}
			converted[i] = openai.UserMessage(parts)
		case msg.Role == domain.RoleAssistant:
			converted[i] = openai.AssistantMessage(msg.Content)
		default:
			converted[i] = openai.UserMessage(msg.Content)
		}
	}

	return openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(a.model),
		Messages: converted,
	}
}

// wrapError converts an SDK error into a tier failure, preserving the HTTP
// status when one is available.
func (a *Adapter) wrapError(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return domain.NewUpstreamError(a.tier, apiErr.StatusCode, err)
	}
	return domain.NewUpstreamError(a.tier, 0, err)
}
