// Package runtime dispatches canonical chat-completion requests to
// provider-specific adapters. Each adapter speaks its provider's native HTTP
// wire format, normalizes the streamed response into canonical protocol
// chunks, and hands back a body that is already SSE-encoded.
package runtime

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/crosswireco/crosswire/pkg/llm"
	"github.com/crosswireco/crosswire/pkg/llm/provider"
	"github.com/crosswireco/crosswire/pkg/protocol"
)

// ChatOptions carries the per-request knobs beyond the payload itself.
type ChatOptions struct {
	// APIKey is the provider credential selected by the key vault.
	APIKey string

	// Headers are forwarded verbatim onto the upstream request. Adapter-set
	// headers (auth, content type) win on conflict.
	Headers http.Header

	// Callbacks taps the normalized stream for lifecycle notifications.
	Callbacks protocol.Callbacks
}

// ChatResponse is a streamed chat completion. Body is the SSE frame
// sequence; the caller must Close it.
type ChatResponse struct {
	Body   io.ReadCloser
	Header http.Header
}

// Runtime is a provider adapter. Chat blocks until the upstream call is
// established (first-byte headers received), then streams.
type Runtime interface {
	Chat(ctx context.Context, payload *llm.ChatStreamPayload, opts ChatOptions) (*ChatResponse, error)
}

// ModelLister is implemented by adapters whose provider exposes a live
// model catalog. Providers with fixed catalogs omit it.
type ModelLister interface {
	Models(ctx context.Context) ([]string, error)
}

// Config configures an adapter.
type Config struct {
	// BaseURL overrides the provider's default endpoint.
	BaseURL string

	// APIKey is used for catalog calls (Models); per-chat credentials come
	// through ChatOptions and win when set.
	APIKey string

	// HTTPClient, when nil, falls back to a shared client with a generous
	// timeout (LLM responses can be slow, especially with thinking blocks).
	HTTPClient *http.Client

	Logger *zap.Logger
}

func (c Config) client() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return defaultClient
}

func (c Config) logger() *zap.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return zap.NewNop()
}

var defaultClient = &http.Client{
	Timeout: 5 * time.Minute,
}

// New creates the adapter for the given provider type.
func New(providerType string, cfg Config) (Runtime, error) {
	switch providerType {
	case provider.OpenAI:
		return NewOpenAI(cfg), nil
	case provider.Anthropic:
		return NewAnthropic(cfg), nil
	case provider.Ollama:
		return NewOllama(cfg), nil
	case provider.Bedrock:
		return NewBedrock(cfg), nil
	default:
		return nil, fmt.Errorf("unknown provider type: %q (supported: %v)", providerType, provider.SupportedProviders())
	}
}
