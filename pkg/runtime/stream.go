package runtime

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/crosswireco/crosswire/pkg/apierror"
	"github.com/crosswireco/crosswire/pkg/llm"
	"github.com/crosswireco/crosswire/pkg/llm/provider"
	"github.com/crosswireco/crosswire/pkg/protocol"
	"github.com/crosswireco/crosswire/pkg/utils"
)

// frameReader yields one provider-native chunk payload per call and io.EOF
// on clean exhaustion. SSE, NDJSON, and binary event-stream bodies all
// reduce to this shape.
type frameReader interface {
	Next() ([]byte, error)
}

// sseFrames extracts data payloads from a text/event-stream body, one per
// data line. Event-name lines and comments are skipped; the payload keeps
// no reference to the scanner's buffer.
type sseFrames struct {
	sc *bufio.Scanner
}

func newSSEFrames(r io.Reader) *sseFrames {
	sc := bufio.NewScanner(r)
	// Large buffer for big tool-call argument deltas
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	return &sseFrames{sc: sc}
}

func (f *sseFrames) Next() ([]byte, error) {
	for f.sc.Scan() {
		data, ok := bytes.CutPrefix(f.sc.Bytes(), []byte("data:"))
		if !ok {
			continue
		}
		data = bytes.TrimPrefix(data, []byte(" "))
		payload := make([]byte, len(data))
		copy(payload, data)
		return payload, nil
	}
	if err := f.sc.Err(); err != nil {
		return nil, err
	}
	return nil, io.EOF
}

// ndjsonFrames yields one newline-delimited JSON document per call.
type ndjsonFrames struct {
	sc *bufio.Scanner
}

func newNDJSONFrames(r io.Reader) *ndjsonFrames {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	return &ndjsonFrames{sc: sc}
}

func (f *ndjsonFrames) Next() ([]byte, error) {
	for f.sc.Scan() {
		line := f.sc.Bytes()
		if len(line) == 0 {
			continue
		}
		payload := make([]byte, len(line))
		copy(payload, line)
		return payload, nil
	}
	if err := f.sc.Err(); err != nil {
		return nil, err
	}
	return nil, io.EOF
}

// doStream issues req and verifies the upstream accepted the call. A
// non-200 answer is drained and surfaced as a ProviderAPIError so the error
// normalizer can classify it.
func doStream(client *http.Client, req *http.Request, providerName string) (*http.Response, error) {
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		resp.Body.Close()
		return nil, &apierror.ProviderAPIError{
			Provider: providerName,
			Status:   resp.StatusCode,
			Headers:  resp.Header,
			Body:     body,
		}
	}
	return resp, nil
}

// streamResponse pumps upstream frames through the normalizer into an
// SSE-encoded body. All chunks of the response share one freshly minted
// stack id; frame order is preserved end to end because exactly one
// goroutine reads the upstream and exactly one encodes.
//
// cancel aborts the upstream call when the consumer closes the body early,
// so an abandoned response never leaves an orphaned read behind.
func streamResponse(ctx context.Context, logger *zap.Logger, norm provider.Normalizer, frames frameReader, body io.ReadCloser, cb protocol.Callbacks, cancel context.CancelFunc) *ChatResponse {
	stack := protocol.NewStack()
	pipe := protocol.NewPipe(cancel)

	go func() {
		defer body.Close()
		emitted := false
		for {
			raw, err := frames.Next()
			if err != nil {
				if errors.Is(err, io.EOF) {
					// Some upstreams fold their stop signal into the last
					// content frame. Close out the protocol sequence with a
					// terminal stop, unless the stream produced nothing.
					if emitted && !stack.Stopped() {
						pipe.Send(stack.Stop())
					}
					pipe.CloseSend()
				} else {
					// The client already holds an open stream, so the
					// normalized failure also goes out as an error chunk
					// before the connection is torn down.
					if !stack.Stopped() {
						ce := apierror.Normalize(err, norm.Name())
						pipe.Send(stack.Error(llm.ErrorResponse{
							ErrorType: string(ce.ErrorType),
							Body: llm.ErrorBody{
								Error:    ce.Body,
								Provider: ce.Provider,
							},
						}))
					}
					pipe.Fail(err)
				}
				return
			}
			chunk, err := norm.Normalize(raw, stack)
			if err != nil {
				logger.Warn("skipping malformed upstream chunk",
					zap.String("provider", norm.Name()),
					zap.String("raw", utils.Truncate(string(raw), 256)),
					zap.Error(err),
				)
				continue
			}
			if chunk != nil {
				emitted = true
				pipe.Send(chunk)
			}
		}
	}()

	// io.Pipe gives direct backpressure: the encoder's Write blocks until
	// the consumer reads, so at most one frame is buffered at a time.
	pr, pw := io.Pipe()
	go func() {
		err := protocol.Encode(ctx, protocol.NewCallbackStream(pipe, cb), pw)
		pw.CloseWithError(err)
	}()

	return &ChatResponse{Body: pr, Header: sseHeader()}
}

func sseHeader() http.Header {
	h := http.Header{}
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	return h
}

// copyForwardHeaders applies caller-supplied headers before adapters set
// their own, so adapter headers win on conflict.
func copyForwardHeaders(req *http.Request, h http.Header) {
	for k, vs := range h {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
}
