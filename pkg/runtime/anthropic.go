package runtime

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/crosswireco/crosswire/pkg/llm"
	"github.com/crosswireco/crosswire/pkg/llm/provider"
	"github.com/crosswireco/crosswire/pkg/llm/provider/anthropic"
)

const (
	defaultAnthropicBaseURL = "https://api.anthropic.com"
	anthropicVersion        = "2023-06-01"

	// Anthropic requires max_tokens; applied when the payload omits it.
	anthropicDefaultMaxTokens = 4096
)

// Anthropic streams chat completions from the Anthropic Messages API.
type Anthropic struct {
	baseURL string
	apiKey  string
	client  *http.Client
	logger  *zap.Logger
	norm    provider.Normalizer
}

func NewAnthropic(cfg Config) *Anthropic {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultAnthropicBaseURL
	}
	return &Anthropic{
		baseURL: baseURL,
		apiKey:  cfg.APIKey,
		client:  cfg.client(),
		logger:  cfg.logger(),
		norm:    anthropic.New(),
	}
}

type anthropicRequest struct {
	Model       string             `json:"model"`
	System      string             `json:"system,omitempty"`
	Messages    []anthropicMessage `json:"messages"`
	MaxTokens   int                `json:"max_tokens"`
	Temperature *float64           `json:"temperature,omitempty"`
	TopP        *float64           `json:"top_p,omitempty"`
	Tools       []anthropicTool    `json:"tools,omitempty"`
	Stream      bool               `json:"stream"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type anthropicContentBlock struct {
	Type   string           `json:"type"`
	Text   string           `json:"text,omitempty"`
	Source *anthropicSource `json:"source,omitempty"`
}

type anthropicSource struct {
	Type      string `json:"type"`
	MediaType string `json:"media_type,omitempty"`
	Data      string `json:"data,omitempty"`
	URL       string `json:"url,omitempty"`
}

type anthropicTool struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	InputSchema map[string]any `json:"input_schema"`
}

// Chat implements Runtime.
func (a *Anthropic) Chat(ctx context.Context, payload *llm.ChatStreamPayload, opts ChatOptions) (*ChatResponse, error) {
	streamCtx, cancel := context.WithCancel(ctx)

	buf, err := json.Marshal(a.buildRequest(payload))
	if err != nil {
		cancel()
		return nil, fmt.Errorf("encoding anthropic request: %w", err)
	}

	req, err := http.NewRequestWithContext(streamCtx, http.MethodPost, a.baseURL+"/v1/messages", bytes.NewReader(buf))
	if err != nil {
		cancel()
		return nil, err
	}
	copyForwardHeaders(req, opts.Headers)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("anthropic-version", anthropicVersion)
	req.Header.Set("x-api-key", a.key(opts))

	resp, err := doStream(a.client, req, provider.Anthropic)
	if err != nil {
		cancel()
		return nil, err
	}

	return streamResponse(streamCtx, a.logger, a.norm, newSSEFrames(resp.Body), resp.Body, opts.Callbacks, cancel), nil
}

func (a *Anthropic) key(opts ChatOptions) string {
	if opts.APIKey != "" {
		return opts.APIKey
	}
	return a.apiKey
}

func (a *Anthropic) buildRequest(payload *llm.ChatStreamPayload) anthropicRequest {
	maxTokens := anthropicDefaultMaxTokens
	if payload.MaxTokens != nil {
		maxTokens = *payload.MaxTokens
	}

	// System messages are lifted out of the conversation: the Messages API
	// takes a single top-level system string. The last one wins.
	system := ""
	messages := make([]anthropicMessage, 0, len(payload.Messages))
	for i := range payload.Messages {
		m := &payload.Messages[i]
		if m.Role == "system" {
			system = m.TextContent()
			continue
		}
		messages = append(messages, anthropicMessage{
			Role:    m.Role,
			Content: anthropicContent(m),
		})
	}

	tools := make([]anthropicTool, 0, len(payload.Tools))
	for _, t := range payload.Tools {
		tools = append(tools, anthropicTool{
			Name:        t.Function.Name,
			Description: t.Function.Description,
			InputSchema: t.Function.Parameters,
		})
	}
	if len(tools) == 0 {
		tools = nil
	}

	return anthropicRequest{
		Model:       payload.Model,
		System:      system,
		Messages:    messages,
		MaxTokens:   maxTokens,
		Temperature: payload.Temperature,
		TopP:        payload.TopP,
		Tools:       tools,
		Stream:      true,
	}
}

// anthropicContent renders message content as Anthropic content blocks.
// Data-URI images become base64 source blocks, plain URLs become url source
// blocks, and unparseable references are dropped.
func anthropicContent(m *llm.Message) any {
	images := m.ImageParts()
	if len(images) == 0 {
		return m.TextContent()
	}

	blocks := []anthropicContentBlock{{Type: "text", Text: m.TextContent()}}
	for _, img := range images {
		data, ok := llm.ParseImageURL(img.ImageURL)
		if !ok {
			continue
		}
		source := &anthropicSource{}
		if data.URL != "" {
			source.Type = "url"
			source.URL = data.URL
		} else {
			source.Type = "base64"
			source.MediaType = data.MediaType
			source.Data = data.Base64
		}
		blocks = append(blocks, anthropicContentBlock{Type: "image", Source: source})
	}
	return blocks
}
