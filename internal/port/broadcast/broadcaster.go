// Package broadcast defines the port for pushing real-time events to
// connected clients.
package broadcast

import "context"

// Broadcaster sends real-time events to clients subscribed to a project.
// Delivery is best-effort and non-blocking: a slow or dead subscriber is
// dropped, never backpressures a publisher.
type Broadcaster interface {
	BroadcastProject(ctx context.Context, projectID, eventType string, payload any)
}
