// Package broadcast defines the port for pushing review-feed events to
// connected reviewers.
package broadcast

import "context"

// Broadcaster fans an event out to every connected reviewer. Delivery is
// best effort; slow or closed connections are dropped by the implementation.
type Broadcaster interface {
	BroadcastEvent(ctx context.Context, eventType string, payload any)
}
