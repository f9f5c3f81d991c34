package runtime

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"

	"github.com/aws/aws-sdk-go-v2/aws/protocol/eventstream"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/crosswireco/crosswire/pkg/llm"
)

// titanEventBody encodes model chunks as a vnd.amazon.eventstream response
// body, each chunk base64-wrapped the way Bedrock frames them.
func titanEventBody(chunks ...string) []byte {
	var buf bytes.Buffer
	enc := eventstream.NewEncoder()
	for _, c := range chunks {
		payload := fmt.Sprintf(`{"bytes":%q}`, base64.StdEncoding.EncodeToString([]byte(c)))
		msg := eventstream.Message{Payload: []byte(payload)}
		msg.Headers.Set(":message-type", eventstream.StringValue("event"))
		msg.Headers.Set(":event-type", eventstream.StringValue("chunk"))
		Expect(enc.Encode(&buf, msg)).To(Succeed())
	}
	return buf.Bytes()
}

var _ = Describe("Bedrock adapter", func() {
	It("decodes eventstream frames into the canonical frame sequence", func() {
		upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			Expect(r.URL.Path).To(Equal("/model/amazon.titan-text-express-v1/invoke-with-response-stream"))
			Expect(r.Header.Get("Accept")).To(Equal("application/vnd.amazon.eventstream"))
			Expect(r.Header.Get("Authorization")).To(Equal("Bearer bedrock-key"))

			w.Write(titanEventBody(
				`{"outputText":"Hello from Titan","index":0}`,
				`{"outputText":"","completionReason":"FINISH"}`,
			))
		}))
		defer upstream.Close()

		rt := NewBedrock(Config{BaseURL: upstream.URL})
		resp, err := rt.Chat(context.Background(), userPayload("amazon.titan-text-express-v1", "hi"), ChatOptions{APIKey: "bedrock-key"})
		Expect(err).NotTo(HaveOccurred())
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		Expect(err).NotTo(HaveOccurred())
		Expect(string(body)).To(ContainSubstring("event: text\ndata: \"Hello from Titan\""))
		Expect(string(body)).To(ContainSubstring("event: stop\ndata: \"finished\""))

		ids := frameIDs(string(body))
		Expect(ids).To(HaveLen(2))
		Expect(ids[0]).To(Equal(ids[1]))
	})

	It("emits an error frame when the upstream raises a mid-stream exception", func() {
		upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			body := titanEventBody(`{"outputText":"partial","index":0}`)

			exc := eventstream.Message{Payload: []byte(`{"message":"slow down"}`)}
			exc.Headers.Set(":message-type", eventstream.StringValue("exception"))
			exc.Headers.Set(":exception-type", eventstream.StringValue("throttlingException"))
			var buf bytes.Buffer
			Expect(eventstream.NewEncoder().Encode(&buf, exc)).To(Succeed())

			w.Write(append(body, buf.Bytes()...))
		}))
		defer upstream.Close()

		rt := NewBedrock(Config{BaseURL: upstream.URL})
		resp, err := rt.Chat(context.Background(), userPayload("amazon.titan-text-express-v1", "hi"), ChatOptions{APIKey: "k"})
		Expect(err).NotTo(HaveOccurred())
		defer resp.Body.Close()

		body, readErr := io.ReadAll(resp.Body)
		Expect(readErr).To(HaveOccurred())

		Expect(string(body)).To(ContainSubstring("event: text\ndata: \"partial\""))
		Expect(string(body)).To(ContainSubstring("event: error\n"))
		Expect(string(body)).To(ContainSubstring("AgentRuntimeError"))
		Expect(string(body)).To(ContainSubstring("throttlingException"))
		Expect(string(body)).NotTo(ContainSubstring("event: stop"))
	})

	It("closes the stream with a stop even when the final frame folds both text and reason", func() {
		upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Write(titanEventBody(`{"outputText":"All done","completionReason":"FINISH"}`))
		}))
		defer upstream.Close()

		rt := NewBedrock(Config{BaseURL: upstream.URL})
		resp, err := rt.Chat(context.Background(), userPayload("amazon.titan-text-express-v1", "hi"), ChatOptions{APIKey: "k"})
		Expect(err).NotTo(HaveOccurred())
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		Expect(err).NotTo(HaveOccurred())
		Expect(string(body)).To(ContainSubstring("event: text\ndata: \"All done\""))
		Expect(string(body)).To(ContainSubstring("event: stop\ndata: \"finished\""))
	})

	It("flattens the conversation into the Titan prompt form", func() {
		var captured bedrockRequest
		upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			Expect(json.NewDecoder(r.Body).Decode(&captured)).To(Succeed())
			w.Write(titanEventBody(`{"completionReason":"FINISH"}`))
		}))
		defer upstream.Close()

		maxTokens := 512
		payload := &llm.ChatStreamPayload{
			Model:     "amazon.titan-text-express-v1",
			MaxTokens: &maxTokens,
			Messages: []llm.Message{
				{Role: "system", Content: llm.MessageContent{Text: "Answer briefly."}},
				{Role: "user", Content: llm.MessageContent{Text: "What is Go?"}},
				{Role: "assistant", Content: llm.MessageContent{Text: "A language."}},
				{Role: "user", Content: llm.MessageContent{Text: "Elaborate."}},
			},
		}

		rt := NewBedrock(Config{BaseURL: upstream.URL})
		resp, err := rt.Chat(context.Background(), payload, ChatOptions{APIKey: "k"})
		Expect(err).NotTo(HaveOccurred())
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()

		Expect(captured.InputText).To(Equal(
			"Answer briefly.\nUser: What is Go?\nBot: A language.\nUser: Elaborate.\nBot:",
		))
		Expect(captured.TextGenerationConfig).NotTo(BeNil())
		Expect(*captured.TextGenerationConfig.MaxTokenCount).To(Equal(512))
	})
})
