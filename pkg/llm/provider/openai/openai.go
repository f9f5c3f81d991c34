package openai

import (
	"bytes"
	"encoding/json"

	"github.com/crosswireco/crosswire/pkg/protocol"
)

// doneSentinel is OpenAI's end-of-stream marker in the SSE data field.
var doneSentinel = []byte("[DONE]")

// normalizer maps OpenAI's delta-based chat streaming format onto the
// canonical protocol.
type normalizer struct{}

func New() *normalizer { return &normalizer{} }

func (n *normalizer) Name() string {
	return "openai"
}

// Normalize converts one SSE data payload. Text deltas become text chunks;
// tool-call fragments become tool_calls chunks with ids derived from
// (name, index); a finish_reason or the "[DONE]" sentinel becomes the
// terminal stop chunk.
func (n *normalizer) Normalize(raw []byte, stack *protocol.Stack) (*protocol.Chunk, error) {
	if stack.Stopped() {
		return nil, nil
	}
	if bytes.Equal(bytes.TrimSpace(raw), doneSentinel) {
		return stack.Stop(), nil
	}

	var c chunk
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, err
	}
	if len(c.Choices) == 0 {
		return nil, nil
	}
	choice := c.Choices[0]

	if len(choice.Delta.ToolCalls) > 0 {
		calls := make([]protocol.ToolCall, 0, len(choice.Delta.ToolCalls))
		for _, tc := range choice.Delta.ToolCalls {
			name := stack.ToolName(tc.Index, tc.Function.Name)
			calls = append(calls, protocol.ToolCall{
				Index: tc.Index,
				ID:    protocol.ToolCallID(name, tc.Index),
				Type:  "function",
				Function: protocol.ToolFunction{
					Name:      name,
					Arguments: tc.Function.Arguments,
				},
			})
		}
		return stack.ToolCalls(calls), nil
	}

	if choice.FinishReason != "" {
		return stack.Stop(), nil
	}

	if choice.Delta.Content != "" {
		return stack.Text(choice.Delta.Content), nil
	}

	// Role-only prologue deltas and keep-alives carry nothing to forward.
	return nil, nil
}
