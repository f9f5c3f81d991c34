package runtime

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"syscall"

	"go.uber.org/zap"

	"github.com/crosswireco/crosswire/pkg/apierror"
	"github.com/crosswireco/crosswire/pkg/llm"
	"github.com/crosswireco/crosswire/pkg/llm/provider"
	"github.com/crosswireco/crosswire/pkg/llm/provider/ollama"
)

const defaultOllamaBaseURL = "http://localhost:11434"

// Ollama streams chat completions from a local Ollama host over NDJSON.
type Ollama struct {
	baseURL string
	client  *http.Client
	logger  *zap.Logger
	norm    provider.Normalizer
}

func NewOllama(cfg Config) *Ollama {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultOllamaBaseURL
	}
	return &Ollama{
		baseURL: baseURL,
		client:  cfg.client(),
		logger:  cfg.logger(),
		norm:    ollama.New(),
	}
}

type ollamaRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
	Tools    []llm.Tool      `json:"tools,omitempty"`
	Options  *ollamaOptions  `json:"options,omitempty"`
}

type ollamaMessage struct {
	Role    string   `json:"role"`
	Content string   `json:"content"`
	Images  []string `json:"images,omitempty"`
}

type ollamaOptions struct {
	Temperature *float64 `json:"temperature,omitempty"`
	TopP        *float64 `json:"top_p,omitempty"`
	NumPredict  *int     `json:"num_predict,omitempty"`
}

// Chat implements Runtime.
func (o *Ollama) Chat(ctx context.Context, payload *llm.ChatStreamPayload, opts ChatOptions) (*ChatResponse, error) {
	streamCtx, cancel := context.WithCancel(ctx)

	buf, err := json.Marshal(o.buildRequest(payload))
	if err != nil {
		cancel()
		return nil, fmt.Errorf("encoding ollama request: %w", err)
	}

	req, err := http.NewRequestWithContext(streamCtx, http.MethodPost, o.baseURL+"/api/chat", bytes.NewReader(buf))
	if err != nil {
		cancel()
		return nil, err
	}
	copyForwardHeaders(req, opts.Headers)
	req.Header.Set("Content-Type", "application/json")

	resp, err := doStream(o.client, req, provider.Ollama)
	if err != nil {
		cancel()
		return nil, o.classify(err)
	}

	return streamResponse(streamCtx, o.logger, o.norm, newNDJSONFrames(resp.Body), resp.Body, opts.Callbacks, cancel), nil
}

// Models implements ModelLister via Ollama's tag listing.
func (o *Ollama) Models(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.baseURL+"/api/tags", nil)
	if err != nil {
		return nil, err
	}

	resp, err := doStream(o.client, req, provider.Ollama)
	if err != nil {
		return nil, o.classify(err)
	}
	defer resp.Body.Close()

	var list struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		return nil, fmt.Errorf("decoding ollama tag list: %w", err)
	}

	models := make([]string, 0, len(list.Models))
	for _, m := range list.Models {
		models = append(models, m.Name)
	}
	return models, nil
}

// classify maps an unreachable local host to its dedicated error kind so
// clients can tell "Ollama is down" apart from a model failure.
func (o *Ollama) classify(err error) error {
	if ollamaUnreachable(err) {
		return apierror.New(apierror.OllamaServiceUnavailable, provider.Ollama, map[string]any{
			"message": "ollama service is unavailable at " + o.baseURL,
		})
	}
	return err
}

func ollamaUnreachable(err error) bool {
	if errors.Is(err, syscall.ECONNREFUSED) {
		return true
	}
	var op *net.OpError
	return errors.As(err, &op) && op.Op == "dial"
}

func (o *Ollama) buildRequest(payload *llm.ChatStreamPayload) ollamaRequest {
	messages := make([]ollamaMessage, 0, len(payload.Messages))
	for i := range payload.Messages {
		m := &payload.Messages[i]
		msg := ollamaMessage{
			Role:    m.Role,
			Content: m.TextContent(),
		}
		// Ollama takes bare base64 payloads, no data-URI wrapper.
		for _, img := range m.ImageParts() {
			data, ok := llm.ParseImageURL(img.ImageURL)
			if !ok || data.Base64 == "" {
				continue
			}
			msg.Images = append(msg.Images, data.Base64)
		}
		messages = append(messages, msg)
	}

	var options *ollamaOptions
	if payload.Temperature != nil || payload.TopP != nil || payload.MaxTokens != nil {
		options = &ollamaOptions{
			Temperature: payload.Temperature,
			TopP:        payload.TopP,
			NumPredict:  payload.MaxTokens,
		}
	}

	return ollamaRequest{
		Model:    payload.Model,
		Messages: messages,
		Stream:   true,
		Tools:    payload.Tools,
		Options:  options,
	}
}
