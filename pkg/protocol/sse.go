package protocol

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// AppendFrame appends the SSE frame for c to buf and returns the result.
// The wire format is bit-exact:
//
//	id: <id>\n
//	event: <type>\n
//	data: <json>\n
//	\n
//
// with no extra whitespace. The data payload is the JSON encoding of the
// chunk's Data field: a string literal for text, an array for tool_calls,
// and the literal "finished" for stop.
func AppendFrame(buf []byte, c *Chunk) ([]byte, error) {
	data, err := json.Marshal(c.Data)
	if err != nil {
		return buf, fmt.Errorf("protocol: encoding chunk data: %w", err)
	}
	buf = append(buf, "id: "...)
	buf = append(buf, c.ID...)
	buf = append(buf, "\nevent: "...)
	buf = append(buf, c.Type...)
	buf = append(buf, "\ndata: "...)
	buf = append(buf, data...)
	buf = append(buf, "\n\n"...)
	return buf, nil
}

// Encode pulls chunks from src until io.EOF and writes one SSE frame per
// chunk to w. It is single pass and buffers at most one frame at a time.
//
// Zero upstream chunks produce zero frames. A failure while pulling closes
// the output without emitting a partial frame: each frame is serialized
// fully before a single Write call. Cancelling ctx closes src promptly so no
// upstream read is orphaned.
func Encode(ctx context.Context, src ChunkStream, w io.Writer) error {
	defer src.Close()

	var frame []byte
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		chunk, err := src.Recv()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		if chunk == nil {
			continue
		}

		frame, err = AppendFrame(frame[:0], chunk)
		if err != nil {
			return err
		}
		if _, err := w.Write(frame); err != nil {
			return fmt.Errorf("protocol: writing frame: %w", err)
		}
		if f, ok := w.(interface{ Flush() }); ok {
			f.Flush()
		}
	}
}
