package gateway

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/crosswireco/crosswire/gateway/header"
	"github.com/crosswireco/crosswire/pkg/llm"
)

// newTestGateway builds a gateway whose ollama provider points at the given
// upstream URL.
func newTestGateway(upstreamURL string, accessCodes []string) *Gateway {
	g, err := New(Config{
		ListenAddr:    ":0",
		AccessCodes:   accessCodes,
		KeySelectMode: "turn",
		Providers: map[string]ProviderSettings{
			"ollama": {BaseURL: upstreamURL},
			"openai": {BaseURL: upstreamURL, KeyPool: "sk-pool-0,sk-pool-1"},
		},
	}, zap.NewNop())
	Expect(err).NotTo(HaveOccurred())
	return g
}

func chatBody(model, text string) *bytes.Reader {
	body, err := json.Marshal(map[string]any{
		"model":    model,
		"messages": []map[string]any{{"role": "user", "content": text}},
	})
	Expect(err).NotTo(HaveOccurred())
	return bytes.NewReader(body)
}

func authEnvelope(accessCode, apiKey string) string {
	raw, err := json.Marshal(map[string]string{
		"access_code": accessCode,
		"api_key":     apiKey,
	})
	Expect(err).NotTo(HaveOccurred())
	return base64.StdEncoding.EncodeToString(raw)
}

var _ = Describe("Gateway", func() {
	Describe("POST /webapi/chat/:provider", func() {
		It("streams the normalized SSE body for an ollama chat", func() {
			upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				Expect(r.URL.Path).To(Equal("/api/chat"))
				fmt.Fprintln(w, `{"message":{"content":"Hi"},"done":false}`)
				fmt.Fprintln(w, `{"message":{"content":""},"done":true}`)
			}))
			defer upstream.Close()

			g := newTestGateway(upstream.URL, nil)
			defer g.Close()

			req := httptest.NewRequest(http.MethodPost, "/webapi/chat/ollama", chatBody("llama3", "hello"))
			req.Header.Set("Content-Type", "application/json")

			resp, err := g.Test(req, 5000)
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()

			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(resp.Header.Get("Content-Type")).To(Equal("text/event-stream"))
			Expect(resp.Header.Get("Cache-Control")).To(Equal("no-cache"))

			body, err := io.ReadAll(resp.Body)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(body)).To(ContainSubstring("event: text\ndata: \"Hi\""))
			Expect(string(body)).To(ContainSubstring("event: stop\ndata: \"finished\""))
		})

		It("rejects unauthorized requests before any provider work", func() {
			var upstreamHits atomic.Int32
			upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				upstreamHits.Add(1)
			}))
			defer upstream.Close()

			g := newTestGateway(upstream.URL, []string{"valid-code"})
			defer g.Close()

			req := httptest.NewRequest(http.MethodPost, "/webapi/chat/ollama", chatBody("llama3", "hello"))

			resp, err := g.Test(req, 5000)
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()

			Expect(resp.StatusCode).To(Equal(http.StatusUnauthorized))
			Expect(upstreamHits.Load()).To(BeZero())

			var envelope llm.ErrorResponse
			Expect(json.NewDecoder(resp.Body).Decode(&envelope)).To(Succeed())
			Expect(envelope.ErrorType).To(Equal("Unauthorized"))
		})

		It("accepts a listed access code", func() {
			upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				fmt.Fprintln(w, `{"message":{"content":""},"done":true}`)
			}))
			defer upstream.Close()

			g := newTestGateway(upstream.URL, []string{"valid-code"})
			defer g.Close()

			req := httptest.NewRequest(http.MethodPost, "/webapi/chat/ollama", chatBody("llama3", "hello"))
			req.Header.Set(header.AuthHeader, authEnvelope("valid-code", ""))

			resp, err := g.Test(req, 5000)
			Expect(err).NotTo(HaveOccurred())
			resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
		})

		It("rejects an unknown access code as 401 InvalidAccessCode", func() {
			g := newTestGateway("http://127.0.0.1:1", []string{"valid-code"})
			defer g.Close()

			req := httptest.NewRequest(http.MethodPost, "/webapi/chat/ollama", chatBody("llama3", "hello"))
			req.Header.Set(header.AuthHeader, authEnvelope("wrong-code", ""))

			resp, err := g.Test(req, 5000)
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()

			Expect(resp.StatusCode).To(Equal(http.StatusUnauthorized))

			var envelope llm.ErrorResponse
			Expect(json.NewDecoder(resp.Body).Decode(&envelope)).To(Succeed())
			Expect(envelope.ErrorType).To(Equal("InvalidAccessCode"))
		})

		It("uses a pool key when the client supplies none", func() {
			var seenAuth string
			upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				seenAuth = r.Header.Get("Authorization")
				fmt.Fprint(w, "data: [DONE]\n\n")
			}))
			defer upstream.Close()

			g := newTestGateway(upstream.URL, nil)
			defer g.Close()

			req := httptest.NewRequest(http.MethodPost, "/webapi/chat/openai", chatBody("gpt-4o", "hello"))

			resp, err := g.Test(req, 5000)
			Expect(err).NotTo(HaveOccurred())
			resp.Body.Close()

			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(seenAuth).To(Equal("Bearer sk-pool-0"))
		})

		It("prefers the client's own API key over the pool", func() {
			var seenAuth string
			upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				seenAuth = r.Header.Get("Authorization")
				fmt.Fprint(w, "data: [DONE]\n\n")
			}))
			defer upstream.Close()

			g := newTestGateway(upstream.URL, []string{"valid-code"})
			defer g.Close()

			req := httptest.NewRequest(http.MethodPost, "/webapi/chat/openai", chatBody("gpt-4o", "hello"))
			req.Header.Set(header.AuthHeader, authEnvelope("", "sk-client-own"))

			resp, err := g.Test(req, 5000)
			Expect(err).NotTo(HaveOccurred())
			resp.Body.Close()

			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(seenAuth).To(Equal("Bearer sk-client-own"))
		})

		It("returns the 470-class envelope for a malformed payload", func() {
			g := newTestGateway("http://127.0.0.1:1", nil)
			defer g.Close()

			req := httptest.NewRequest(http.MethodPost, "/webapi/chat/ollama", bytes.NewReader([]byte("{not json")))

			resp, err := g.Test(req, 5000)
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()

			Expect(resp.StatusCode).To(Equal(470))

			var envelope llm.ErrorResponse
			Expect(json.NewDecoder(resp.Body).Decode(&envelope)).To(Succeed())
			Expect(envelope.ErrorType).To(Equal("AgentRuntimeError"))
		})

		It("rejects a request that opts out of streaming", func() {
			upstreamHits := int32(0)
			upstream := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
				atomic.AddInt32(&upstreamHits, 1)
			}))
			defer upstream.Close()

			g := newTestGateway(upstream.URL, nil)
			defer g.Close()

			body, err := json.Marshal(map[string]any{
				"model":    "llama3",
				"messages": []map[string]any{{"role": "user", "content": "hello"}},
				"stream":   false,
			})
			Expect(err).NotTo(HaveOccurred())

			req := httptest.NewRequest(http.MethodPost, "/webapi/chat/ollama", bytes.NewReader(body))
			req.Header.Set("Content-Type", "application/json")

			resp, err := g.Test(req, 5000)
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()

			Expect(resp.StatusCode).To(Equal(470))

			var envelope llm.ErrorResponse
			Expect(json.NewDecoder(resp.Body).Decode(&envelope)).To(Succeed())
			Expect(envelope.ErrorType).To(Equal("AgentRuntimeError"))
			Expect(atomic.LoadInt32(&upstreamHits)).To(BeZero())
		})

		It("returns 472 when the ollama host is unreachable", func() {
			g := newTestGateway("http://127.0.0.1:1", nil)
			defer g.Close()

			req := httptest.NewRequest(http.MethodPost, "/webapi/chat/ollama", chatBody("llama3", "hello"))

			resp, err := g.Test(req, 5000)
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()

			Expect(resp.StatusCode).To(Equal(472))

			var envelope llm.ErrorResponse
			Expect(json.NewDecoder(resp.Body).Decode(&envelope)).To(Succeed())
			Expect(envelope.ErrorType).To(Equal("OllamaServiceUnavailable"))
			Expect(envelope.Body.Provider).To(Equal("ollama"))
		})

		It("rejects unknown providers", func() {
			g := newTestGateway("http://127.0.0.1:1", nil)
			defer g.Close()

			req := httptest.NewRequest(http.MethodPost, "/webapi/chat/watson", chatBody("m", "hello"))

			resp, err := g.Test(req, 5000)
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()

			Expect(resp.StatusCode).To(Equal(470))
		})
	})

	Describe("GET /webapi/models/:provider", func() {
		It("lists models from a live-catalog provider", func() {
			upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				Expect(r.URL.Path).To(Equal("/api/tags"))
				fmt.Fprint(w, `{"models":[{"name":"llama3:latest"}]}`)
			}))
			defer upstream.Close()

			g := newTestGateway(upstream.URL, nil)
			defer g.Close()

			req := httptest.NewRequest(http.MethodGet, "/webapi/models/ollama", nil)

			resp, err := g.Test(req, 5000)
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()

			var models []string
			Expect(json.NewDecoder(resp.Body).Decode(&models)).To(Succeed())
			Expect(models).To(Equal([]string{"llama3:latest"}))
		})

		It("returns an empty list for fixed-catalog providers", func() {
			g := newTestGateway("http://127.0.0.1:1", nil)
			defer g.Close()

			req := httptest.NewRequest(http.MethodGet, "/webapi/models/anthropic", nil)

			resp, err := g.Test(req, 5000)
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()

			var models []string
			Expect(json.NewDecoder(resp.Body).Decode(&models)).To(Succeed())
			Expect(models).To(BeEmpty())
		})

		It("gates model listing too", func() {
			g := newTestGateway("http://127.0.0.1:1", []string{"valid-code"})
			defer g.Close()

			req := httptest.NewRequest(http.MethodGet, "/webapi/models/ollama", nil)

			resp, err := g.Test(req, 5000)
			Expect(err).NotTo(HaveOccurred())
			resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusUnauthorized))
		})
	})

	Describe("GET /healthz", func() {
		It("answers ok", func() {
			g := newTestGateway("http://127.0.0.1:1", nil)
			defer g.Close()

			resp, err := g.Test(httptest.NewRequest(http.MethodGet, "/healthz", nil))
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()

			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			body, _ := io.ReadAll(resp.Body)
			Expect(string(body)).To(Equal("ok"))
		})
	})
})
