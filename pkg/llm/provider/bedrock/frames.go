package bedrock

import (
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws/protocol/eventstream"
)

// FrameScanner reads vnd.amazon.eventstream binary frames from an upstream
// response body. The underlying decoder buffers partial reads, so a frame
// split across TCP reads is reassembled before its payload is returned.
type FrameScanner struct {
	r   io.Reader
	dec *eventstream.Decoder
	buf []byte
}

// NewFrameScanner wraps r for frame-by-frame reading.
func NewFrameScanner(r io.Reader) *FrameScanner {
	return &FrameScanner{
		r:   r,
		dec: eventstream.NewDecoder(),
		buf: make([]byte, 0, 1024),
	}
}

// Next returns the payload of the next event frame, skipping non-event
// messages (exceptions are surfaced as errors). Returns io.EOF when the
// stream ends cleanly.
func (s *FrameScanner) Next() ([]byte, error) {
	for {
		msg, err := s.dec.Decode(s.r, s.buf)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil, io.EOF
			}
			return nil, fmt.Errorf("bedrock: decoding frame: %w", err)
		}

		switch messageType(msg) {
		case "event":
			payload := make([]byte, len(msg.Payload))
			copy(payload, msg.Payload)
			return payload, nil
		case "exception":
			return nil, fmt.Errorf("bedrock: upstream exception: %s", exceptionType(msg))
		default:
			// Keep-alives and unknown message types are skipped.
		}
	}
}

func messageType(msg eventstream.Message) string {
	if h := msg.Headers.Get(":message-type"); h != nil {
		if v, ok := h.Get().(string); ok {
			return v
		}
	}
	return ""
}

func exceptionType(msg eventstream.Message) string {
	if h := msg.Headers.Get(":exception-type"); h != nil {
		if v, ok := h.Get().(string); ok {
			return v
		}
	}
	return "unknown"
}
