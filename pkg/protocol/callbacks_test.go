package protocol

import (
	"context"
	"errors"
	"io"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("CallbackStream", func() {
	var (
		events []string
		cb     Callbacks
	)

	BeforeEach(func() {
		events = nil
		cb = Callbacks{
			OnStart: func() error {
				events = append(events, "start")
				return nil
			},
			OnText: func(rawJSON string) error {
				events = append(events, "text:"+rawJSON)
				return nil
			},
			OnToken: func() error {
				events = append(events, "token")
				return nil
			},
			OnToolCall: func() error {
				events = append(events, "tool_call")
				return nil
			},
			OnCompletion: func() error {
				events = append(events, "completion")
				return nil
			},
		}
	})

	drain := func(cs *CallbackStream) error {
		for {
			_, err := cs.Recv()
			if err != nil {
				return err
			}
		}
	}

	It("fires hooks in order and passes chunks through unchanged", func() {
		src := &sliceStream{chunks: []*Chunk{
			{ID: "chat_x", Type: ChunkTypeText, Data: "Hi"},
			{ID: "chat_x", Type: ChunkTypeToolCalls, Data: []ToolCall{{Index: 0}, {Index: 1}}},
			{ID: "chat_x", Type: ChunkTypeStop, Data: StopData},
		}}
		cs := NewCallbackStream(src, cb)

		first, err := cs.Recv()
		Expect(err).NotTo(HaveOccurred())
		Expect(first.Data).To(Equal("Hi"))

		Expect(drain(cs)).To(MatchError(io.EOF))
		Expect(events).To(Equal([]string{
			"start",
			`text:"Hi"`,
			"token",
			"tool_call", // once per tool_calls chunk, not per call inside it
			"completion",
		}))
	})

	It("fires OnStart before the first chunk even for an empty stream", func() {
		cs := NewCallbackStream(&sliceStream{}, cb)

		Expect(drain(cs)).To(MatchError(io.EOF))
		Expect(events).To(Equal([]string{"start", "completion"}))
	})

	It("fires OnCompletion exactly once across repeated EOF reads", func() {
		src := &sliceStream{chunks: []*Chunk{{ID: "chat_x", Type: ChunkTypeStop, Data: StopData}}}
		cs := NewCallbackStream(src, cb)

		Expect(drain(cs)).To(MatchError(io.EOF))
		_, err := cs.Recv()
		Expect(err).To(MatchError(io.EOF))
		Expect(events).To(Equal([]string{"start", "completion"}))
	})

	It("suppresses OnCompletion when the stream is cancelled", func() {
		src := &sliceStream{
			chunks: []*Chunk{{ID: "chat_x", Type: ChunkTypeText, Data: "partial"}},
			err:    context.Canceled,
		}
		cs := NewCallbackStream(src, cb)

		Expect(drain(cs)).To(MatchError(context.Canceled))
		Expect(events).NotTo(ContainElement("completion"))
	})

	It("suppresses OnCompletion on deadline expiry", func() {
		src := &sliceStream{err: context.DeadlineExceeded}
		cs := NewCallbackStream(src, cb)

		Expect(drain(cs)).To(MatchError(context.DeadlineExceeded))
		Expect(events).NotTo(ContainElement("completion"))
	})

	It("never fires OnCompletion from Close", func() {
		src := &sliceStream{chunks: []*Chunk{{ID: "chat_x", Type: ChunkTypeText, Data: "Hi"}}}
		cs := NewCallbackStream(src, cb)

		_, err := cs.Recv()
		Expect(err).NotTo(HaveOccurred())
		Expect(cs.Close()).To(Succeed())
		Expect(src.closed).To(BeTrue())
		Expect(events).NotTo(ContainElement("completion"))

		_, err = cs.Recv()
		Expect(err).To(MatchError(ErrStreamClosed))
	})

	It("propagates a hook's own error instead of swallowing it", func() {
		hookErr := errors.New("hook exploded")
		cb.OnText = func(string) error { return hookErr }
		src := &sliceStream{chunks: []*Chunk{{ID: "chat_x", Type: ChunkTypeText, Data: "Hi"}}}
		cs := NewCallbackStream(src, cb)

		_, err := cs.Recv()
		Expect(err).To(MatchError(hookErr))
	})

	It("treats all-nil hooks as no-ops", func() {
		src := &sliceStream{chunks: []*Chunk{
			{ID: "chat_x", Type: ChunkTypeText, Data: "Hi"},
			{ID: "chat_x", Type: ChunkTypeStop, Data: StopData},
		}}
		cs := NewCallbackStream(src, Callbacks{})

		Expect(drain(cs)).To(MatchError(io.EOF))
	})
})
