package eventstream

import (
	"time"

	"github.com/google/uuid"
)

const (
	// SchemaVersionV1 is the first version of the event payload schema.
	SchemaVersionV1 = 1

	// EventTypeChatCompleted is emitted after a streamed chat completion
	// finishes naturally. Aborted streams emit nothing.
	EventTypeChatCompleted = "crosswire.chat.completed"
)

// ChatCompletedEvent is a transport-neutral event payload for a completed
// chat turn.
type ChatCompletedEvent struct {
	SchemaVersion int             `json:"schema_version"`
	EventType     string          `json:"event_type"`
	EventID       string          `json:"event_id"`
	EmittedAt     time.Time       `json:"emitted_at"`
	Source        EventSource     `json:"source"`
	RequestMeta   ChatRequestMeta `json:"request_meta"`
}

// EventSource identifies where the chat turn originated.
type EventSource struct {
	Provider string `json:"provider"`
	UserID   string `json:"user_id,omitempty"`
}

// ChatRequestMeta captures request lifecycle metadata for the event.
type ChatRequestMeta struct {
	Model       string    `json:"model"`
	StartedAt   time.Time `json:"started_at"`
	CompletedAt time.Time `json:"completed_at"`
	DurationMs  int64     `json:"duration_ms"`
	ChunkCount  int       `json:"chunk_count"`
}

// NewChatCompletedEvent stamps a fresh event with a unique id and the
// current schema version.
func NewChatCompletedEvent(source EventSource, meta ChatRequestMeta) *ChatCompletedEvent {
	return &ChatCompletedEvent{
		SchemaVersion: SchemaVersionV1,
		EventType:     EventTypeChatCompleted,
		EventID:       "evt_" + uuid.NewString(),
		EmittedAt:     time.Now().UTC(),
		Source:        source,
		RequestMeta:   meta,
	}
}
