// Package generation defines the port to the language-model backend that
// turns a composed prompt into a raw orchestrator output.
package generation

import (
	"context"
	"encoding/json"
	"errors"
)

// Errors a Generator may return. Implementations wrap them so callers can
// classify failures with errors.Is.
var (
	// ErrInvalidResponseShape means the backend answered but the answer could
	// not be coerced into {"actions": [...]}.
	ErrInvalidResponseShape = errors.New("generation: invalid response shape")
	// ErrBackendUnavailable covers transport failures, rejected credentials,
	// rate limiting, server errors and an open circuit.
	ErrBackendUnavailable = errors.New("generation: backend unavailable")
	// ErrTimeout means the per-call deadline elapsed.
	ErrTimeout = errors.New("generation: timeout")
)

// Request is one structured-output generation call.
type Request struct {
	System string
	User   string
	// Schema is the JSON Schema the response must match.
	Schema json.RawMessage
}

// Result is the raw, not yet validated backend answer. Raw always has the
// shape {"actions": [...]} where each entry is a JSON object.
type Result struct {
	Raw       json.RawMessage
	Model     string
	TokensIn  int
	TokensOut int
}

// Generator produces a raw orchestrator output for a prompt.
type Generator interface {
	Generate(ctx context.Context, req Request) (*Result, error)
}

// Class returns a short label for err suitable for logs and metric attributes.
func Class(err error) string {
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrBackendUnavailable):
		return "backend_unavailable"
	case errors.Is(err, ErrInvalidResponseShape):
		return "invalid_response_shape"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "unknown"
	}
}
