package http_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	afhttp "github.com/Strob0t/ActionForge/internal/adapter/http"
)

type pinger struct{ err error }

func (p pinger) Ping(context.Context) error { return p.err }

type conn bool

func (c conn) IsConnected() bool { return bool(c) }

type backend struct {
	ok  bool
	err error
}

func (b backend) Health(context.Context) (bool, error) { return b.ok, b.err }

func TestHealthHandler(t *testing.T) {
	tests := []struct {
		name   string
		checks afhttp.HealthChecks
		want   map[string]string
	}{
		{
			name:   "nothing configured",
			checks: afhttp.HealthChecks{},
			want:   map[string]string{"status": "ok", "postgres": "disabled", "nats": "disabled", "litellm": "disabled"},
		},
		{
			name:   "all up",
			checks: afhttp.HealthChecks{Postgres: pinger{}, NATS: conn(true), LiteLLM: backend{ok: true}},
			want:   map[string]string{"status": "ok", "postgres": "up", "nats": "up", "litellm": "up"},
		},
		{
			name:   "backend down",
			checks: afhttp.HealthChecks{Postgres: pinger{}, NATS: conn(true), LiteLLM: backend{err: errors.New("refused")}},
			want:   map[string]string{"status": "degraded", "postgres": "up", "nats": "up", "litellm": "down"},
		},
		{
			name:   "postgres and nats down",
			checks: afhttp.HealthChecks{Postgres: pinger{err: errors.New("x")}, NATS: conn(false)},
			want:   map[string]string{"status": "degraded", "postgres": "down", "nats": "down", "litellm": "disabled"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			afhttp.HealthHandler(tt.checks)(rec, httptest.NewRequest(http.MethodGet, "/health", http.NoBody))
			if rec.Code != http.StatusOK {
				t.Fatalf("expected 200, got %d", rec.Code)
			}
			var got map[string]string
			if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
				t.Fatal(err)
			}
			for k, v := range tt.want {
				if got[k] != v {
					t.Errorf("%s = %q, want %q", k, got[k], v)
				}
			}
		})
	}
}
