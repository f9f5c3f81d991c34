package runtime

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/crosswireco/crosswire/pkg/llm"
	"github.com/crosswireco/crosswire/pkg/llm/provider"
	"github.com/crosswireco/crosswire/pkg/llm/provider/bedrock"
)

const defaultBedrockBaseURL = "https://bedrock-runtime.us-east-1.amazonaws.com"

// Bedrock streams foundation-model completions from the AWS Bedrock runtime.
// Responses arrive as binary vnd.amazon.eventstream frames whose payloads
// wrap base64 model chunks.
type Bedrock struct {
	baseURL string
	apiKey  string
	client  *http.Client
	logger  *zap.Logger
	norm    provider.Normalizer
}

func NewBedrock(cfg Config) *Bedrock {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBedrockBaseURL
	}
	return &Bedrock{
		baseURL: baseURL,
		apiKey:  cfg.APIKey,
		client:  cfg.client(),
		logger:  cfg.logger(),
		norm:    bedrock.New(),
	}
}

type bedrockRequest struct {
	InputText            string         `json:"inputText"`
	TextGenerationConfig *bedrockConfig `json:"textGenerationConfig,omitempty"`
}

type bedrockConfig struct {
	MaxTokenCount *int     `json:"maxTokenCount,omitempty"`
	Temperature   *float64 `json:"temperature,omitempty"`
	TopP          *float64 `json:"topP,omitempty"`
}

// Chat implements Runtime.
func (b *Bedrock) Chat(ctx context.Context, payload *llm.ChatStreamPayload, opts ChatOptions) (*ChatResponse, error) {
	streamCtx, cancel := context.WithCancel(ctx)

	buf, err := json.Marshal(b.buildRequest(payload))
	if err != nil {
		cancel()
		return nil, fmt.Errorf("encoding bedrock request: %w", err)
	}

	endpoint := b.baseURL + "/model/" + url.PathEscape(payload.Model) + "/invoke-with-response-stream"
	req, err := http.NewRequestWithContext(streamCtx, http.MethodPost, endpoint, bytes.NewReader(buf))
	if err != nil {
		cancel()
		return nil, err
	}
	copyForwardHeaders(req, opts.Headers)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/vnd.amazon.eventstream")
	req.Header.Set("Authorization", "Bearer "+b.key(opts))

	resp, err := doStream(b.client, req, provider.Bedrock)
	if err != nil {
		cancel()
		return nil, err
	}

	return streamResponse(streamCtx, b.logger, b.norm, bedrock.NewFrameScanner(resp.Body), resp.Body, opts.Callbacks, cancel), nil
}

func (b *Bedrock) key(opts ChatOptions) string {
	if opts.APIKey != "" {
		return opts.APIKey
	}
	return b.apiKey
}

// buildRequest flattens the conversation into the Titan text prompt form.
func (b *Bedrock) buildRequest(payload *llm.ChatStreamPayload) bedrockRequest {
	var cfg *bedrockConfig
	if payload.MaxTokens != nil || payload.Temperature != nil || payload.TopP != nil {
		cfg = &bedrockConfig{
			MaxTokenCount: payload.MaxTokens,
			Temperature:   payload.Temperature,
			TopP:          payload.TopP,
		}
	}
	return bedrockRequest{
		InputText:            titanPrompt(payload.Messages),
		TextGenerationConfig: cfg,
	}
}

func titanPrompt(messages []llm.Message) string {
	var sb strings.Builder
	for i := range messages {
		m := &messages[i]
		switch m.Role {
		case "assistant":
			sb.WriteString("Bot: ")
		case "system":
			// System text goes in bare, ahead of the dialogue.
		default:
			sb.WriteString("User: ")
		}
		sb.WriteString(m.TextContent())
		sb.WriteString("\n")
	}
	sb.WriteString("Bot:")
	return sb.String()
}
