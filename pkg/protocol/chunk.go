// Package protocol defines the canonical streaming protocol spoken between
// the gateway and its clients. Every provider's native streaming format is
// normalized into a sequence of Chunks, which are then encoded as
// Server-Sent Events.
package protocol

import (
	"errors"
	"fmt"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// ChunkType identifies the kind of canonical chunk.
type ChunkType string

const (
	// ChunkTypeText carries a raw text fragment.
	ChunkTypeText ChunkType = "text"

	// ChunkTypeToolCalls carries one or more model-initiated function calls.
	ChunkTypeToolCalls ChunkType = "tool_calls"

	// ChunkTypeStop terminates a response. No chunk for the same stream id
	// may follow it.
	ChunkTypeStop ChunkType = "stop"

	// ChunkTypeError carries a normalized error payload.
	ChunkTypeError ChunkType = "error"
)

// StopData is the payload of every stop chunk.
const StopData = "finished"

// Chunk is the canonical, provider-agnostic streaming unit.
// All chunks belonging to one response share the same ID.
type Chunk struct {
	ID   string    `json:"id"`
	Type ChunkType `json:"type"`
	Data any       `json:"data"`
}

// ToolCall is a single tool invocation inside a tool_calls chunk.
type ToolCall struct {
	Index    int          `json:"index"`
	ID       string       `json:"id"`
	Type     string       `json:"type"` // always "function"
	Function ToolFunction `json:"function"`
}

// ToolFunction carries the function name and its JSON-encoded arguments.
type ToolFunction struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// ToolCallID derives a reproducible call id from the function name and the
// call's position, so retried requests produce identical ids.
func ToolCallID(name string, index int) string {
	return fmt.Sprintf("%s_%d", name, index)
}

// Stack is the per-response correlation state. It is created once per
// response lifecycle, owned exclusively by the pipeline processing that
// response, and discarded when the stream closes.
type Stack struct {
	// ID is shared by every chunk of the response.
	ID string

	// toolNames remembers the function name per tool-call index so that
	// argument-only continuation fragments can still derive the call id.
	toolNames map[int]string

	// decoder reassembles UTF-8 text split across binary frames.
	decoder UTF8Decoder

	// carry accumulates partial documents for transports whose framing may
	// split a JSON document across chunks.
	carry []byte

	stopped bool
}

// NewStack creates a Stack with a freshly generated "chat_" correlation id.
func NewStack() *Stack {
	return &Stack{
		ID:        "chat_" + gonanoid.Must(10),
		toolNames: make(map[int]string),
	}
}

// ToolName records or recalls the function name for a tool-call index.
// An empty name recalls the previously seen one.
func (s *Stack) ToolName(index int, name string) string {
	if name != "" {
		s.toolNames[index] = name
		return name
	}
	return s.toolNames[index]
}

// Decoder returns the stack's incremental UTF-8 decoder.
func (s *Stack) Decoder() *UTF8Decoder { return &s.decoder }

// Carry appends fragment to the stack's partial-document buffer and returns
// the accumulated bytes.
func (s *Stack) Carry(fragment string) []byte {
	s.carry = append(s.carry, fragment...)
	return s.carry
}

// ResetCarry clears the partial-document buffer once a complete document
// has been consumed.
func (s *Stack) ResetCarry() { s.carry = s.carry[:0] }

// MarkStopped records that the terminal stop chunk has been emitted.
func (s *Stack) MarkStopped() { s.stopped = true }

// Stopped reports whether the stop chunk was already emitted.
func (s *Stack) Stopped() bool { return s.stopped }

// Text builds a text chunk bound to the stack's id.
func (s *Stack) Text(fragment string) *Chunk {
	return &Chunk{ID: s.ID, Type: ChunkTypeText, Data: fragment}
}

// ToolCalls builds a tool_calls chunk bound to the stack's id.
func (s *Stack) ToolCalls(calls []ToolCall) *Chunk {
	return &Chunk{ID: s.ID, Type: ChunkTypeToolCalls, Data: calls}
}

// Error builds an error chunk bound to the stack's id, carrying the
// normalized failure payload for clients already holding an open stream.
func (s *Stack) Error(data any) *Chunk {
	return &Chunk{ID: s.ID, Type: ChunkTypeError, Data: data}
}

// Stop builds the terminal chunk and marks the stack stopped.
func (s *Stack) Stop() *Chunk {
	s.MarkStopped()
	return &Chunk{ID: s.ID, Type: ChunkTypeStop, Data: StopData}
}

// ChunkStream is a pull-based source of canonical chunks.
// Recv returns io.EOF once the stream is exhausted.
type ChunkStream interface {
	Recv() (*Chunk, error)
	Close() error
}

// ErrStreamClosed indicates Recv was called after Close or a terminal chunk.
var ErrStreamClosed = errors.New("protocol: stream closed")
