package ollama

import (
	"encoding/json"

	"github.com/crosswireco/crosswire/pkg/protocol"
)

// normalizer maps Ollama's NDJSON streaming format onto the canonical
// protocol. This is the single-process local-inference family: one JSON
// object per line, terminated by a line with done=true.
type normalizer struct{}

func New() *normalizer { return &normalizer{} }

func (n *normalizer) Name() string {
	return "ollama"
}

func (n *normalizer) Normalize(raw []byte, stack *protocol.Stack) (*protocol.Chunk, error) {
	if stack.Stopped() {
		return nil, nil
	}

	var c chunk
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, err
	}

	if len(c.Message.ToolCalls) > 0 {
		calls := make([]protocol.ToolCall, 0, len(c.Message.ToolCalls))
		for i, tc := range c.Message.ToolCalls {
			index := tc.Function.Index
			if index == 0 {
				index = i
			}
			name := stack.ToolName(index, tc.Function.Name)
			args, err := json.Marshal(tc.Function.Arguments)
			if err != nil {
				return nil, err
			}
			calls = append(calls, protocol.ToolCall{
				Index: index,
				ID:    protocol.ToolCallID(name, index),
				Type:  "function",
				Function: protocol.ToolFunction{
					Name:      name,
					Arguments: string(args),
				},
			})
		}
		return stack.ToolCalls(calls), nil
	}

	if c.Done {
		return stack.Stop(), nil
	}

	if c.Message.Content != "" {
		return stack.Text(c.Message.Content), nil
	}
	return nil, nil
}
