// Package hosted provides an adapter for a generic inference-hosting
// endpoint. The endpoint is single-shot only: Stream is implemented by
// yielding the complete result as one increment, never partial tokens.
// This adapter backs the final fallback tier and works without a credential.
package hosted

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/davidbz/hearth/internal/domain"
	"github.com/davidbz/hearth/internal/observability"
)

// ErrEmptyOutput indicates the endpoint answered 2xx with no generated text.
var ErrEmptyOutput = errors.New("no output generated by upstream")

// Config contains the hosted endpoint settings for one tier.
type Config struct {
	BaseURL string
	APIKey  string // optional; the hosted tier is reachable keyless
	Model   string
	Timeout int // seconds
}

// Adapter implements the domain.Adapter interface for the hosted endpoint.
type Adapter struct {
	tier       string
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
}

// New creates a hosted inference adapter for one tier.
func New(tier string, config Config) *Adapter {
	return &Adapter{
		tier:    tier,
		baseURL: config.BaseURL,
		apiKey:  config.APIKey,
		model:   config.Model,
		httpClient: &http.Client{
			Timeout: time.Duration(config.Timeout) * time.Second,
		},
	}
}

// Hosted endpoint request/response structures.
type hostedRequest struct {
	Messages []hostedMessage `json:"messages"`
}

type hostedMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type hostedResponse struct {
	Error  string `json:"error"`
	Output string `json:"output"`
}

// Complete sends a single-shot inference request and returns the output text.
func (a *Adapter) Complete(ctx context.Context, messages []domain.Message) (string, error) {
	logger := observability.FromContext(ctx)
	logger.Debug("calling hosted inference endpoint", observability.String("tier", a.tier))

	body := hostedRequest{Messages: make([]hostedMessage, len(messages))}
	for i, msg := range messages {
		// The hosted endpoint accepts plain text only; image parts are not
		// representable and are dropped for this tier.
		body.Messages[i] = hostedMessage{Role: msg.Role, Content: msg.Content}
	}

	reqBody, err := json.Marshal(body)
	if err != nil {
		return "", domain.NewUpstreamError(a.tier, 0, fmt.Errorf("failed to marshal request: %w", err))
	}

	url := fmt.Sprintf("%s/run/%s", a.baseURL, a.model)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(reqBody))
	if err != nil {
		return "", domain.NewUpstreamError(a.tier, 0, fmt.Errorf("failed to create request: %w", err))
	}

	httpReq.Header.Set("Content-Type", "application/json")
	if a.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+a.apiKey)
	}

	resp, err := a.httpClient.Do(httpReq)
	if err != nil {
		return "", domain.NewUpstreamError(a.tier, 0, fmt.Errorf("request failed: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return "", domain.NewUpstreamError(a.tier, resp.StatusCode,
			fmt.Errorf("API returned status %d: %s", resp.StatusCode, string(respBody)))
	}

	var hostedResp hostedResponse
	if decodeErr := json.NewDecoder(resp.Body).Decode(&hostedResp); decodeErr != nil {
		return "", domain.NewUpstreamError(a.tier, 0, fmt.Errorf("failed to decode response: %w", decodeErr))
	}

	if hostedResp.Error != "" {
		return "", domain.NewUpstreamError(a.tier, 0, errors.New(hostedResp.Error))
	}

	if hostedResp.Output == "" {
		return "", domain.NewUpstreamError(a.tier, 0, ErrEmptyOutput)
	}

	logger.Debug("hosted inference call succeeded",
		observability.Int("output_length", len(hostedResp.Output)),
	)

	return hostedResp.Output, nil
}

// Stream satisfies the streaming capability by running the single-shot call
// and yielding its full result as one increment.
func (a *Adapter) Stream(ctx context.Context, messages []domain.Message) (<-chan domain.StreamChunk, error) {
	output, err := a.Complete(ctx, messages)
	if err != nil {
		return nil, err
	}

	chunks := make(chan domain.StreamChunk, 2)
	chunks <- domain.StreamChunk{Delta: output, Done: false}
	chunks <- domain.StreamChunk{Done: true}
	close(chunks)

	return chunks, nil
}
