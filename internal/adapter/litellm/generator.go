package litellm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Strob0t/ActionForge/internal/port/generation"
	"github.com/Strob0t/ActionForge/internal/resilience"
)

// Generation defaults.
const (
	DefaultTemperature = 0.1
	DefaultMaxTokens   = 2048
	DefaultTimeout     = 30 * time.Second
	schemaName         = "orchestrator_output"
)

// GeneratorConfig tunes the completion calls.
type GeneratorConfig struct {
	Model       string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
}

// Generator implements generation.Generator on top of the chat completion
// endpoint. It makes exactly one attempt per call.
type Generator struct {
	client *Client
	cfg    GeneratorConfig
}

var _ generation.Generator = (*Generator)(nil)

// NewGenerator creates a Generator. Zero MaxTokens and Timeout fall back to
// the package defaults.
func NewGenerator(client *Client, cfg GeneratorConfig) *Generator {
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Generator{client: client, cfg: cfg}
}

// Generate sends the prompt and returns the coerced {"actions": [...]} document.
func (g *Generator) Generate(ctx context.Context, req generation.Request) (*generation.Result, error) {
	ctx, cancel := context.WithTimeout(ctx, g.cfg.Timeout)
	defer cancel()

	chat := ChatCompletionRequest{
		Model: g.cfg.Model,
		Messages: []ChatMessage{
			{Role: "system", Content: req.System},
			{Role: "user", Content: req.User},
		},
		Temperature: g.cfg.Temperature,
		MaxTokens:   g.cfg.MaxTokens,
	}
	if len(req.Schema) > 0 {
		chat.ResponseFormat = &ResponseFormat{
			Type:       "json_schema",
			JSONSchema: &JSONSchemaFormat{Name: schemaName, Schema: req.Schema, Strict: true},
		}
	}

	resp, err := g.client.ChatCompletion(ctx, chat)
	if err != nil {
		return nil, classify(ctx, err)
	}

	raw, err := Coerce(resp.Content)
	if err != nil {
		return nil, err
	}
	return &generation.Result{
		Raw:       raw,
		Model:     resp.Model,
		TokensIn:  resp.TokensIn,
		TokensOut: resp.TokensOut,
	}, nil
}

// classify maps a client error onto the generation port errors.
func classify(ctx context.Context, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", generation.ErrTimeout, err)
	}
	if errors.Is(err, resilience.ErrCircuitOpen) {
		return fmt.Errorf("%w: %w", generation.ErrBackendUnavailable, err)
	}
	if errors.Is(err, ErrMalformedCompletion) {
		return fmt.Errorf("%w: %w", generation.ErrInvalidResponseShape, err)
	}
	return fmt.Errorf("%w: %w", generation.ErrBackendUnavailable, err)
}

// Coerce extracts the first usable JSON value from model text and
// normalizes it to {"actions": [...]}. A bare array or a lone action object
// is wrapped and a missing or null actions field becomes an empty list.
// Prose before the document may contain brackets of its own, so each
// candidate is tried in turn; when none fits the result is
// ErrInvalidResponseShape.
func Coerce(content string) (json.RawMessage, error) {
	text := stripFences(content)
	var firstErr error
	for off := 0; off < len(text); {
		i := strings.IndexAny(text[off:], "{[")
		if i < 0 {
			break
		}
		start := off + i

		dec := json.NewDecoder(strings.NewReader(text[start:]))
		dec.UseNumber()
		var v any
		if err := dec.Decode(&v); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			off = start + 1
			continue
		}

		raw, err := envelope(v)
		if err == nil {
			return raw, nil
		}
		if firstErr == nil {
			firstErr = err
		}
		off = start + int(dec.InputOffset())
	}
	if firstErr != nil {
		return nil, fmt.Errorf("%w: %w", generation.ErrInvalidResponseShape, firstErr)
	}
	return nil, fmt.Errorf("%w: no JSON value in response", generation.ErrInvalidResponseShape)
}

// envelope wraps a decoded value as {"actions": [...]}.
func envelope(v any) (json.RawMessage, error) {
	var entries []any
	switch t := v.(type) {
	case []any:
		entries = t
	case map[string]any:
		a, hasActions := t["actions"]
		switch a := a.(type) {
		case nil:
			entries = []any{}
			if !hasActions && looksLikeAction(t) {
				entries = []any{t}
			}
		case []any:
			entries = a
		default:
			return nil, fmt.Errorf("actions is %T, not an array", a)
		}
	}
	for i, e := range entries {
		if _, ok := e.(map[string]any); !ok {
			return nil, fmt.Errorf("action %d is not an object", i)
		}
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(map[string]any{"actions": entries}); err != nil {
		return nil, err
	}
	return json.RawMessage(bytes.TrimSpace(buf.Bytes())), nil
}

// looksLikeAction reports whether an envelope-less object is an action.
func looksLikeAction(m map[string]any) bool {
	_, hasType := m["type"]
	_, hasTarget := m["target"]
	return hasType || hasTarget
}

// stripFences removes a surrounding markdown code fence, if any.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	} else {
		s = strings.TrimPrefix(s, "```")
	}
	s = strings.TrimSpace(s)
	return strings.TrimSpace(strings.TrimSuffix(s, "```"))
}
