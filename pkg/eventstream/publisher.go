package eventstream

import "context"

// Publisher publishes chat lifecycle events to an event stream backend.
type Publisher interface {
	PublishChat(ctx context.Context, event *ChatCompletedEvent) error
	Close() error
}
