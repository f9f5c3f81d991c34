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
	"github.com/crosswireco/crosswire/pkg/llm/provider/openai"
)

const defaultOpenAIBaseURL = "https://api.openai.com/v1"

// OpenAI streams chat completions from the OpenAI API (and any
// OpenAI-compatible endpoint via Config.BaseURL).
type OpenAI struct {
	baseURL string
	apiKey  string
	client  *http.Client
	logger  *zap.Logger
	norm    provider.Normalizer
}

func NewOpenAI(cfg Config) *OpenAI {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultOpenAIBaseURL
	}
	return &OpenAI{
		baseURL: baseURL,
		apiKey:  cfg.APIKey,
		client:  cfg.client(),
		logger:  cfg.logger(),
		norm:    openai.New(),
	}
}

type openaiRequest struct {
	Model       string          `json:"model"`
	Messages    []openaiMessage `json:"messages"`
	Temperature *float64        `json:"temperature,omitempty"`
	TopP        *float64        `json:"top_p,omitempty"`
	MaxTokens   *int            `json:"max_tokens,omitempty"`
	Tools       []llm.Tool      `json:"tools,omitempty"`
	Stream      bool            `json:"stream"`
}

type openaiMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type openaiContentPart struct {
	Type     string          `json:"type"`
	Text     string          `json:"text,omitempty"`
	ImageURL *openaiImageRef `json:"image_url,omitempty"`
}

type openaiImageRef struct {
	URL string `json:"url"`
}

// Chat implements Runtime.
func (o *OpenAI) Chat(ctx context.Context, payload *llm.ChatStreamPayload, opts ChatOptions) (*ChatResponse, error) {
	streamCtx, cancel := context.WithCancel(ctx)

	buf, err := json.Marshal(o.buildRequest(payload))
	if err != nil {
		cancel()
		return nil, fmt.Errorf("encoding openai request: %w", err)
	}

	req, err := http.NewRequestWithContext(streamCtx, http.MethodPost, o.baseURL+"/chat/completions", bytes.NewReader(buf))
	if err != nil {
		cancel()
		return nil, err
	}
	copyForwardHeaders(req, opts.Headers)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+o.key(opts))

	resp, err := doStream(o.client, req, provider.OpenAI)
	if err != nil {
		cancel()
		return nil, err
	}

	return streamResponse(streamCtx, o.logger, o.norm, newSSEFrames(resp.Body), resp.Body, opts.Callbacks, cancel), nil
}

// Models implements ModelLister.
func (o *OpenAI) Models(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.baseURL+"/models", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+o.apiKey)

	resp, err := doStream(o.client, req, provider.OpenAI)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var list struct {
		Data []struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		return nil, fmt.Errorf("decoding openai model list: %w", err)
	}

	models := make([]string, 0, len(list.Data))
	for _, m := range list.Data {
		models = append(models, m.ID)
	}
	return models, nil
}

func (o *OpenAI) key(opts ChatOptions) string {
	if opts.APIKey != "" {
		return opts.APIKey
	}
	return o.apiKey
}

func (o *OpenAI) buildRequest(payload *llm.ChatStreamPayload) openaiRequest {
	messages := make([]openaiMessage, 0, len(payload.Messages))
	for i := range payload.Messages {
		m := &payload.Messages[i]
		messages = append(messages, openaiMessage{
			Role:    m.Role,
			Content: openaiContent(m),
		})
	}
	return openaiRequest{
		Model:       payload.Model,
		Messages:    messages,
		Temperature: payload.Temperature,
		TopP:        payload.TopP,
		MaxTokens:   payload.MaxTokens,
		Tools:       payload.Tools,
		Stream:      true,
	}
}

// openaiContent renders a message's content in OpenAI's wire form: a plain
// string for text-only messages, a parts array when images are present.
// Unparseable image references are dropped, never fatal.
func openaiContent(m *llm.Message) any {
	images := m.ImageParts()
	if len(images) == 0 {
		return m.TextContent()
	}

	parts := []openaiContentPart{{Type: "text", Text: m.TextContent()}}
	for _, img := range images {
		data, ok := llm.ParseImageURL(img.ImageURL)
		if !ok {
			continue
		}
		url := data.URL
		if url == "" {
			url = "data:" + data.MediaType + ";base64," + data.Base64
		}
		parts = append(parts, openaiContentPart{
			Type:     "image_url",
			ImageURL: &openaiImageRef{URL: url},
		})
	}
	return parts
}
