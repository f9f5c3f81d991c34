package protocol

import (
	"bytes"
	"context"
	"errors"
	"io"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

// sliceStream replays a fixed chunk sequence, then returns io.EOF or a
// configured terminal error.
type sliceStream struct {
	chunks []*Chunk
	err    error
	closed bool
}

func (s *sliceStream) Recv() (*Chunk, error) {
	if len(s.chunks) == 0 {
		if s.err != nil {
			return nil, s.err
		}
		return nil, io.EOF
	}
	c := s.chunks[0]
	s.chunks = s.chunks[1:]
	return c, nil
}

func (s *sliceStream) Close() error {
	s.closed = true
	return nil
}

var _ = Describe("AppendFrame", func() {
	It("renders a text chunk as a bit-exact SSE frame", func() {
		chunk := &Chunk{ID: "chat_abc123", Type: ChunkTypeText, Data: "Hello"}

		frame, err := AppendFrame(nil, chunk)
		Expect(err).NotTo(HaveOccurred())
		Expect(string(frame)).To(Equal("id: chat_abc123\nevent: text\ndata: \"Hello\"\n\n"))
	})

	It("JSON-escapes the text payload", func() {
		chunk := &Chunk{ID: "chat_abc123", Type: ChunkTypeText, Data: "line\n\"quoted\""}

		frame, err := AppendFrame(nil, chunk)
		Expect(err).NotTo(HaveOccurred())
		Expect(string(frame)).To(Equal("id: chat_abc123\nevent: text\ndata: \"line\\n\\\"quoted\\\"\"\n\n"))
	})

	It("renders a stop chunk with the finished literal", func() {
		chunk := &Chunk{ID: "chat_abc123", Type: ChunkTypeStop, Data: StopData}

		frame, err := AppendFrame(nil, chunk)
		Expect(err).NotTo(HaveOccurred())
		Expect(string(frame)).To(Equal("id: chat_abc123\nevent: stop\ndata: \"finished\"\n\n"))
	})

	It("renders an error chunk with its payload as JSON", func() {
		chunk := &Chunk{ID: "chat_abc123", Type: ChunkTypeError, Data: map[string]string{"message": "upstream died"}}

		frame, err := AppendFrame(nil, chunk)
		Expect(err).NotTo(HaveOccurred())
		Expect(string(frame)).To(Equal("id: chat_abc123\nevent: error\ndata: {\"message\":\"upstream died\"}\n\n"))
	})

	It("renders tool calls as a JSON array", func() {
		chunk := &Chunk{ID: "chat_abc123", Type: ChunkTypeToolCalls, Data: []ToolCall{{
			Index:    0,
			ID:       "get_weather_0",
			Type:     "function",
			Function: ToolFunction{Name: "get_weather", Arguments: `{"city":"Oslo"}`},
		}}}

		frame, err := AppendFrame(nil, chunk)
		Expect(err).NotTo(HaveOccurred())
		Expect(string(frame)).To(HavePrefix("id: chat_abc123\nevent: tool_calls\ndata: ["))
		Expect(string(frame)).To(ContainSubstring(`"id":"get_weather_0"`))
		Expect(string(frame)).To(ContainSubstring(`"name":"get_weather"`))
		Expect(string(frame)).To(HaveSuffix("]\n\n"))
	})
})

var _ = Describe("Encode", func() {
	It("writes one frame per chunk in order", func() {
		src := &sliceStream{chunks: []*Chunk{
			{ID: "chat_x", Type: ChunkTypeText, Data: "Hi"},
			{ID: "chat_x", Type: ChunkTypeStop, Data: StopData},
		}}
		var buf bytes.Buffer

		err := Encode(context.Background(), src, &buf)
		Expect(err).NotTo(HaveOccurred())
		Expect(buf.String()).To(Equal(
			"id: chat_x\nevent: text\ndata: \"Hi\"\n\n" +
				"id: chat_x\nevent: stop\ndata: \"finished\"\n\n",
		))
	})

	It("produces zero frames for zero chunks", func() {
		src := &sliceStream{}
		var buf bytes.Buffer

		err := Encode(context.Background(), src, &buf)
		Expect(err).NotTo(HaveOccurred())
		Expect(buf.Len()).To(BeZero())
	})

	It("closes the source even on failure", func() {
		src := &sliceStream{err: errors.New("upstream broke")}
		var buf bytes.Buffer

		err := Encode(context.Background(), src, &buf)
		Expect(err).To(MatchError("upstream broke"))
		Expect(src.closed).To(BeTrue())
		Expect(buf.Len()).To(BeZero())
	})

	It("does not emit a partial frame when the pull fails mid-stream", func() {
		src := &sliceStream{
			chunks: []*Chunk{{ID: "chat_x", Type: ChunkTypeText, Data: "ok"}},
			err:    errors.New("mid-stream failure"),
		}
		var buf bytes.Buffer

		err := Encode(context.Background(), src, &buf)
		Expect(err).To(HaveOccurred())
		// The completed frame made it out; nothing after it did.
		Expect(buf.String()).To(Equal("id: chat_x\nevent: text\ndata: \"ok\"\n\n"))
	})

	It("stops promptly when the context is cancelled", func() {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		src := &sliceStream{chunks: []*Chunk{{ID: "chat_x", Type: ChunkTypeText, Data: "never"}}}
		var buf bytes.Buffer

		err := Encode(ctx, src, &buf)
		Expect(err).To(MatchError(context.Canceled))
		Expect(src.closed).To(BeTrue())
	})
})

var _ = Describe("Stack", func() {
	It("mints a chat-prefixed id and shares it across chunk kinds", func() {
		stack := NewStack()
		Expect(stack.ID).To(HavePrefix("chat_"))
		Expect(stack.Text("a").ID).To(Equal(stack.ID))
		Expect(stack.Error("boom").ID).To(Equal(stack.ID))
		Expect(stack.Stop().ID).To(Equal(stack.ID))
	})

	It("mints distinct ids per stack", func() {
		Expect(NewStack().ID).NotTo(Equal(NewStack().ID))
	})

	It("recalls tool names for continuation fragments", func() {
		stack := NewStack()
		Expect(stack.ToolName(0, "get_weather")).To(Equal("get_weather"))
		Expect(stack.ToolName(0, "")).To(Equal("get_weather"))
		Expect(stack.ToolName(1, "")).To(BeEmpty())
	})

	It("accumulates and resets the carry buffer", func() {
		stack := NewStack()
		Expect(string(stack.Carry(`{"a":`))).To(Equal(`{"a":`))
		Expect(string(stack.Carry(`1}`))).To(Equal(`{"a":1}`))
		stack.ResetCarry()
		Expect(string(stack.Carry("x"))).To(Equal("x"))
	})

	It("marks itself stopped after the stop chunk", func() {
		stack := NewStack()
		Expect(stack.Stopped()).To(BeFalse())
		stack.Stop()
		Expect(stack.Stopped()).To(BeTrue())
	})
})

var _ = Describe("ToolCallID", func() {
	It("derives the id from name and index", func() {
		Expect(ToolCallID("get_weather", 0)).To(Equal("get_weather_0"))
		Expect(ToolCallID("get_weather", 2)).To(Equal("get_weather_2"))
	})
})
