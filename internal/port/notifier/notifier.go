// Package notifier defines the review alert port (interface).
package notifier

import (
	"context"
	"errors"
)

// ErrNotConfigured is returned when a notifier is not properly configured.
var ErrNotConfigured = errors.New("notifier: not configured")

// Alert levels.
const (
	LevelInfo    = "info"
	LevelWarning = "warning"
)

// Notification is the payload sent through a Notifier.
type Notification struct {
	Title      string `json:"title"`
	Message    string `json:"message"`
	Level      string `json:"level"`
	Event      string `json:"event"` // e.g. "proposal.review_required"
	ProposalID string `json:"proposal_id,omitempty"`
}

// Notifier delivers review alerts to a chat channel.
type Notifier interface {
	// Name returns the unique identifier for this notifier (e.g. "slack").
	Name() string

	// Send delivers a notification.
	Send(ctx context.Context, notification Notification) error
}
