package services

import "context"

// Broadcaster publishes events to stream subscribers. *websocket.Hub
// implements it.
type Broadcaster interface {
	BroadcastJSONContext(ctx context.Context, msgType string, data any) error
}
