package anthropic

import (
	"encoding/json"

	"github.com/crosswireco/crosswire/pkg/protocol"
)

// normalizer maps Anthropic's Messages API streaming events onto the
// canonical protocol. This is the tool-call-capable generative family:
// tool invocations open with a content_block_start carrying the function
// name and continue as input_json_delta argument fragments.
type normalizer struct{}

func New() *normalizer { return &normalizer{} }

func (n *normalizer) Name() string {
	return "anthropic"
}

func (n *normalizer) Normalize(raw []byte, stack *protocol.Stack) (*protocol.Chunk, error) {
	if stack.Stopped() {
		return nil, nil
	}

	var ev event
	if err := json.Unmarshal(raw, &ev); err != nil {
		return nil, err
	}

	switch ev.Type {
	case "content_block_start":
		if ev.ContentBlock != nil && ev.ContentBlock.Type == "tool_use" {
			name := stack.ToolName(ev.Index, ev.ContentBlock.Name)
			return stack.ToolCalls([]protocol.ToolCall{{
				Index: ev.Index,
				ID:    protocol.ToolCallID(name, ev.Index),
				Type:  "function",
				Function: protocol.ToolFunction{
					Name:      name,
					Arguments: "",
				},
			}}), nil
		}
		return nil, nil

	case "content_block_delta":
		if ev.Delta == nil {
			return nil, nil
		}
		switch ev.Delta.Type {
		case "text_delta":
			if ev.Delta.Text == "" {
				return nil, nil
			}
			return stack.Text(ev.Delta.Text), nil
		case "input_json_delta":
			name := stack.ToolName(ev.Index, "")
			return stack.ToolCalls([]protocol.ToolCall{{
				Index: ev.Index,
				ID:    protocol.ToolCallID(name, ev.Index),
				Type:  "function",
				Function: protocol.ToolFunction{
					Name:      name,
					Arguments: ev.Delta.PartialJSON,
				},
			}}), nil
		}
		return nil, nil

	case "message_stop":
		return stack.Stop(), nil

	default:
		// message_start, message_delta, content_block_stop, ping: nothing
		// to forward.
		return nil, nil
	}
}
