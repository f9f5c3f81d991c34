// Package provider defines the normalizer contract every upstream streaming
// format is mapped through. Each provider implementation is a pure per-chunk
// function from its native wire shape to the canonical protocol chunk, with
// the per-response Stack as its only shared state.
package provider

import (
	"github.com/crosswireco/crosswire/pkg/protocol"
)

// Normalizer maps one provider-native streaming chunk to at most one
// canonical chunk.
//
// Implementations must be deterministic: a deterministic input sequence
// through one Stack yields a deterministic output sequence. Returning
// (nil, nil) skips the chunk (keep-alives, pings, empty deltas). Once a stop
// chunk has been emitted for a Stack, no further chunk follows for it.
type Normalizer interface {
	// Name returns the canonical provider name (e.g., "openai", "ollama").
	Name() string

	// Normalize converts a single provider-native chunk payload.
	Normalize(raw []byte, stack *protocol.Stack) (*protocol.Chunk, error)
}
