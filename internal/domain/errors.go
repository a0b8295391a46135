package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrConversationNotFound indicates the referenced conversation does not
// resolve for the requesting owner.
var ErrConversationNotFound = errors.New("conversation not found")

// ErrUnauthenticated indicates identity resolution failed for the request.
var ErrUnauthenticated = errors.New("user not authenticated")

// UpstreamError reports the failure of a single provider tier: bad status,
// malformed or empty body, transport fault, or timeout. The orchestrator
// recovers from it locally by advancing to the next tier.
type UpstreamError struct {
	Tier       string
	StatusCode int // zero for transport-level failures
	Err        error
}

func (e *UpstreamError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("tier %s failed with status %d: %v", e.Tier, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("tier %s failed: %v", e.Tier, e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// NewUpstreamError wraps err as a tier failure.
func NewUpstreamError(tier string, statusCode int, err error) *UpstreamError {
	return &UpstreamError{Tier: tier, StatusCode: statusCode, Err: err}
}

// AllTiersExhaustedError is surfaced when every configured tier for a logical
// model has failed. It carries the per-tier failure chain for diagnosis.
type AllTiersExhaustedError struct {
	Model    string
	Attempts int
	Reasons  []string
	Last     error
}

func (e *AllTiersExhaustedError) Error() string {
	return fmt.Sprintf("all %d tiers failed for model %s: %s",
		e.Attempts, e.Model, strings.Join(e.Reasons, "; "))
}

func (e *AllTiersExhaustedError) Unwrap() error {
	return e.Last
}
