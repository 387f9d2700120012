package litellm_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Strob0t/ActionForge/internal/adapter/litellm"
	"github.com/Strob0t/ActionForge/internal/port/generation"
	"github.com/Strob0t/ActionForge/internal/resilience"
)

func newGenerator(t *testing.T, h http.HandlerFunc, timeout time.Duration) (*litellm.Generator, *litellm.Client) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	client := litellm.NewClient(srv.URL, "test-key")
	return litellm.NewGenerator(client, litellm.GeneratorConfig{
		Model:       "gpt-4o-mini",
		Temperature: litellm.DefaultTemperature,
		Timeout:     timeout,
	}), client
}

func reply(content string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(completion(content))
	}
}

func TestGenerateSendsPrompt(t *testing.T) {
	var got litellm.ChatCompletionRequest
	gen, _ := newGenerator(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		reply(`{"actions":[{"type":"suggest","target":"deals","reason":"x"}]}`)(w, r)
	}, time.Second)

	res, err := gen.Generate(context.Background(), generation.Request{
		System: "system text",
		User:   `{"interaction":{}}`,
		Schema: json.RawMessage(`{"type":"object"}`),
	})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	if got.Messages[0].Role != "system" || got.Messages[0].Content != "system text" {
		t.Errorf("unexpected system message %+v", got.Messages[0])
	}
	if got.Messages[1].Role != "user" {
		t.Errorf("unexpected user message %+v", got.Messages[1])
	}
	if got.Temperature != litellm.DefaultTemperature || got.MaxTokens != litellm.DefaultMaxTokens {
		t.Errorf("unexpected sampling params %v/%d", got.Temperature, got.MaxTokens)
	}
	if got.ResponseFormat == nil || got.ResponseFormat.JSONSchema == nil || string(got.ResponseFormat.JSONSchema.Schema) != `{"type":"object"}` {
		t.Errorf("schema not forwarded: %+v", got.ResponseFormat)
	}
	if res.Model != "gpt-4o-mini" || res.TokensIn != 120 {
		t.Errorf("unexpected result metadata %+v", res)
	}
	want := `{"actions":[{"reason":"x","target":"deals","type":"suggest"}]}`
	if string(res.Raw) != want {
		t.Errorf("Raw = %s, want %s", res.Raw, want)
	}
}

func TestGenerateErrorClasses(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		want    error
	}{
		{"server error", func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "down", http.StatusServiceUnavailable)
		}, generation.ErrBackendUnavailable},
		{"unauthorized", func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "bad key", http.StatusUnauthorized)
		}, generation.ErrBackendUnavailable},
		{"rate limited", func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "slow down", http.StatusTooManyRequests)
		}, generation.ErrBackendUnavailable},
		{"not json", reply("I think you should call them."), generation.ErrInvalidResponseShape},
		{"actions not array", reply(`{"actions":"none"}`), generation.ErrInvalidResponseShape},
		{"entries not objects", reply(`{"actions":[1,2]}`), generation.ErrInvalidResponseShape},
		{"garbage body", func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte("<html>"))
		}, generation.ErrInvalidResponseShape},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen, _ := newGenerator(t, tt.handler, time.Second)
			_, err := gen.Generate(context.Background(), generation.Request{System: "s", User: "u"})
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestGenerateTimeout(t *testing.T) {
	release := make(chan struct{})
	gen, _ := newGenerator(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}, 50*time.Millisecond)
	defer close(release)

	_, err := gen.Generate(context.Background(), generation.Request{System: "s", User: "u"})
	if !errors.Is(err, generation.ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
}

func TestGenerateSingleAttempt(t *testing.T) {
	calls := 0
	gen, _ := newGenerator(t, func(w http.ResponseWriter, _ *http.Request) {
		calls++
		http.Error(w, "down", http.StatusBadGateway)
	}, time.Second)

	_, _ = gen.Generate(context.Background(), generation.Request{})
	if calls != 1 {
		t.Fatalf("expected exactly one backend call, got %d", calls)
	}
}

func TestGenerateOpenCircuit(t *testing.T) {
	gen, client := newGenerator(t, func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "down", http.StatusInternalServerError)
	}, time.Second)
	client.SetBreaker(resilience.NewBreaker(1, time.Minute))

	_, _ = gen.Generate(context.Background(), generation.Request{})
	_, err := gen.Generate(context.Background(), generation.Request{})
	if !errors.Is(err, generation.ErrBackendUnavailable) || !errors.Is(err, resilience.ErrCircuitOpen) {
		t.Fatalf("expected unavailable open circuit, got %v", err)
	}
}

func TestCoerce(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"envelope", `{"actions":[{"type":"suggest"}]}`, `{"actions":[{"type":"suggest"}]}`},
		{"bare array", `[{"type":"suggest"}]`, `{"actions":[{"type":"suggest"}]}`},
		{"empty array", `[]`, `{"actions":[]}`},
		{"null actions", `{"actions":null}`, `{"actions":[]}`},
		{"missing actions", `{"result":"ok"}`, `{"actions":[]}`},
		{"fenced", "```json\n{\"actions\":[]}\n```", `{"actions":[]}`},
		{"leading prose", "Here you go:\n{\"actions\":[]} hope it helps", `{"actions":[]}`},
		{"numbers kept exact", `{"actions":[{"confidence":0.95}]}`, `{"actions":[{"confidence":0.95}]}`},
		{"no html escaping", `{"actions":[{"reason":"a<b"}]}`, `{"actions":[{"reason":"a<b"}]}`},
		{"lone action object", `{"type":"suggest","target":"deals","reason":"r"}`, `{"actions":[{"reason":"r","target":"deals","type":"suggest"}]}`},
		{"bracket in prose", "Note [1]: see below\n{\"actions\":[{\"type\":\"suggest\"}]}", `{"actions":[{"type":"suggest"}]}`},
		{"out of range literal kept", `{"actions":[{"confidence":1e400}]}`, `{"actions":[{"confidence":1e400}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := litellm.Coerce(tt.content)
			if err != nil {
				t.Fatalf("Coerce failed: %v", err)
			}
			if string(got) != tt.want {
				t.Errorf("Coerce() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestCoerceRejects(t *testing.T) {
	for _, content := range []string{"", "no json here", `{"actions":{}}`, `{"actions":["x"]}`, `{"actions":[`, `42`, "see note [1] and [2]"} {
		if _, err := litellm.Coerce(content); !errors.Is(err, generation.ErrInvalidResponseShape) {
			t.Errorf("Coerce(%q): expected ErrInvalidResponseShape, got %v", content, err)
		}
	}
}
