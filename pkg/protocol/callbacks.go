package protocol

import (
	"context"
	"encoding/json"
	"errors"
	"io"
)

// Callbacks are optional lifecycle hooks driven while a chunk stream is
// consumed. Any nil hook is a no-op. A hook returning an error aborts the
// stream with that error rather than swallowing it.
type Callbacks struct {
	// OnStart fires exactly once, before the first chunk is forwarded.
	OnStart func() error

	// OnText receives the JSON-encoded string literal of each text fragment.
	OnText func(rawJSON string) error

	// OnToken fires after OnText for each text chunk.
	OnToken func() error

	// OnToolCall fires once per tool_calls chunk, not once per call in it.
	OnToolCall func() error

	// OnCompletion fires exactly once after the last chunk of a completed
	// stream. An aborted stream is not a completed one: cancellation
	// suppresses this hook.
	OnCompletion func() error
}

// CallbackStream taps a ChunkStream, invoking Callbacks as chunks pass
// through unchanged and in order. The hook for a chunk settles before the
// next upstream chunk is pulled.
type CallbackStream struct {
	src       ChunkStream
	cb        Callbacks
	started   bool
	completed bool
	closed    bool
}

// NewCallbackStream wraps src so that cb is driven as a side effect of
// consuming it.
func NewCallbackStream(src ChunkStream, cb Callbacks) *CallbackStream {
	return &CallbackStream{src: src, cb: cb}
}

// Recv pulls the next chunk from the source, fires the matching hooks, and
// returns the chunk unchanged.
func (t *CallbackStream) Recv() (*Chunk, error) {
	if t.closed {
		return nil, ErrStreamClosed
	}

	if !t.started {
		t.started = true
		if t.cb.OnStart != nil {
			if err := t.cb.OnStart(); err != nil {
				return nil, err
			}
		}
	}

	chunk, err := t.src.Recv()
	if err != nil {
		if errors.Is(err, io.EOF) {
			if hookErr := t.complete(); hookErr != nil {
				return nil, hookErr
			}
			return nil, io.EOF
		}
		// Cancellation is not completion: suppress OnCompletion.
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, err
	}
	if chunk == nil {
		return nil, nil
	}

	switch chunk.Type {
	case ChunkTypeText:
		if t.cb.OnText != nil {
			raw, merr := json.Marshal(chunk.Data)
			if merr != nil {
				return nil, merr
			}
			if err := t.cb.OnText(string(raw)); err != nil {
				return nil, err
			}
		}
		if t.cb.OnToken != nil {
			if err := t.cb.OnToken(); err != nil {
				return nil, err
			}
		}
	case ChunkTypeToolCalls:
		if t.cb.OnToolCall != nil {
			if err := t.cb.OnToolCall(); err != nil {
				return nil, err
			}
		}
	}

	return chunk, nil
}

// Close closes the underlying source. It never fires OnCompletion: a stream
// torn down before its terminal chunk did not complete.
func (t *CallbackStream) Close() error {
	if t.closed {
		return nil
	}
	t.closed = true
	return t.src.Close()
}

func (t *CallbackStream) complete() error {
	if t.completed {
		return nil
	}
	t.completed = true
	if t.cb.OnCompletion != nil {
		return t.cb.OnCompletion()
	}
	return nil
}
