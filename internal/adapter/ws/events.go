package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"
)

// Event type constants for WebSocket messages.
const (
	EventProposalCreated = "proposal.created"
	EventBackendState    = "backend.state"
	EventModelsUpdated   = "models.updated"
)

// ProposalCreatedEvent is broadcast when an orchestration result is recorded.
type ProposalCreatedEvent struct {
	ProposalID   string    `json:"proposal_id"`
	Fingerprint  string    `json:"fingerprint"`
	Source       string    `json:"source"`
	State        string    `json:"state"`
	PolicyName   string    `json:"policy_name,omitempty"`
	ActionCount  int       `json:"action_count"`
	AutoEligible int       `json:"auto_eligible"`
	Dropped      int       `json:"dropped"`
	CreatedAt    time.Time `json:"created_at"`
}

// BackendStateEvent is broadcast when the model backend circuit changes state.
type BackendStateEvent struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// ModelsUpdatedEvent is broadcast when the backend's model list changes.
type ModelsUpdatedEvent struct {
	Models          []string `json:"models"`
	Configured      string   `json:"configured"`
	ConfiguredValid bool     `json:"configured_valid"`
}

// BroadcastEvent is a convenience method that marshals a typed event and broadcasts it.
func (h *Hub) BroadcastEvent(ctx context.Context, eventType string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		slog.Error("marshal ws event payload", "type", eventType, "error", err)
		return
	}

	h.Broadcast(ctx, Message{
		Type:    eventType,
		Payload: json.RawMessage(data),
	})
}
