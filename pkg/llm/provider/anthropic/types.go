package anthropic

import "encoding/json"

// event is the wire shape of one Anthropic Messages API streaming event,
// as carried in an SSE data payload. The Type field discriminates.
type event struct {
	Type string `json:"type"`

	// content_block_start
	Index        int           `json:"index"`
	ContentBlock *contentBlock `json:"content_block,omitempty"`

	// content_block_delta
	Delta *blockDelta `json:"delta,omitempty"`
}

type contentBlock struct {
	Type string `json:"type"` // "text" or "tool_use"
	ID   string `json:"id,omitempty"`
	Name string `json:"name,omitempty"`

	Input json.RawMessage `json:"input,omitempty"`
}

type blockDelta struct {
	Type string `json:"type"` // "text_delta", "input_json_delta", ...

	Text        string `json:"text,omitempty"`
	PartialJSON string `json:"partial_json,omitempty"`

	// message_delta reuses this struct for its stop reason.
	StopReason string `json:"stop_reason,omitempty"`
}
