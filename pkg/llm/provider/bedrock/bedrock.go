package bedrock

import (
	"encoding/json"

	"github.com/crosswireco/crosswire/pkg/protocol"
)

// normalizer maps AWS Bedrock's InvokeModelWithResponseStream format onto
// the canonical protocol. This is the hosted-foundation-model family: the
// response is a sequence of binary vnd.amazon.eventstream frames (see
// FrameScanner), each carrying a base64-encoded model chunk. The decoded
// bytes pass through the stack's incremental UTF-8 decoder so a multi-byte
// character split across frames is never corrupted, and partial JSON
// documents are carried until complete.
type normalizer struct{}

func New() *normalizer { return &normalizer{} }

func (n *normalizer) Name() string {
	return "bedrock"
}

func (n *normalizer) Normalize(raw []byte, stack *protocol.Stack) (*protocol.Chunk, error) {
	if stack.Stopped() {
		return nil, nil
	}

	var p framePayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, err
	}

	// Multi-byte-safe reassembly: bytes held back here are prepended to the
	// next frame's payload by the decoder.
	text := stack.Decoder().Write(p.Bytes)
	doc := stack.Carry(text)
	if len(doc) == 0 || !json.Valid(doc) {
		// Incomplete document, wait for the next frame.
		return nil, nil
	}

	// The document is complete either way; a held-back bad one would
	// prefix every later frame.
	stack.ResetCarry()

	var c modelChunk
	if err := json.Unmarshal(doc, &c); err != nil {
		return nil, err
	}

	if c.OutputText != "" {
		return stack.Text(c.OutputText), nil
	}
	if c.CompletionReason != "" {
		return stack.Stop(), nil
	}
	return nil, nil
}
