package http

import (
	"context"
	"net/http"
	"time"
)

const healthProbeTimeout = 2 * time.Second

// Pinger is satisfied by *pgxpool.Pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ConnChecker is satisfied by the message queue.
type ConnChecker interface {
	IsConnected() bool
}

// BackendChecker is satisfied by the LiteLLM client.
type BackendChecker interface {
	Health(ctx context.Context) (bool, error)
}

// HealthChecks lists the dependencies probed by /health. Nil entries are
// reported as "disabled".
type HealthChecks struct {
	Postgres Pinger
	NATS     ConnChecker
	LiteLLM  BackendChecker
}

type healthStatus struct {
	Status   string `json:"status"`
	Postgres string `json:"postgres"`
	NATS     string `json:"nats"`
	LiteLLM  string `json:"litellm"`
}

// HealthHandler reports dependency status. It always answers 200: the
// orchestrator keeps serving fallbacks while a dependency is down, so
// "degraded" is informational.
func HealthHandler(checks HealthChecks) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), healthProbeTimeout)
		defer cancel()

		st := healthStatus{Status: "ok", Postgres: "disabled", NATS: "disabled", LiteLLM: "disabled"}
		mark := func(dst *string, up bool) {
			*dst = "up"
			if !up {
				*dst = "down"
				st.Status = "degraded"
			}
		}

		if checks.Postgres != nil {
			mark(&st.Postgres, checks.Postgres.Ping(ctx) == nil)
		}
		if checks.NATS != nil {
			mark(&st.NATS, checks.NATS.IsConnected())
		}
		if checks.LiteLLM != nil {
			ok, err := checks.LiteLLM.Health(ctx)
			mark(&st.LiteLLM, ok && err == nil)
		}
		writeJSON(w, http.StatusOK, st)
	}
}
