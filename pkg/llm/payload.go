// Package llm defines the canonical chat-completion request shape accepted
// by the gateway. Provider adapters translate this internal representation
// into each provider's native request format.
package llm

import "encoding/json"

// ChatStreamPayload is the immutable per-request description of a chat
// completion call.
type ChatStreamPayload struct {
	// Model name (e.g., "gpt-4o", "claude-sonnet-4", "llama3")
	Model string `json:"model"`

	// Conversation messages, in order
	Messages []Message `json:"messages"`

	// Sampling parameters (unified across providers)
	Temperature *float64 `json:"temperature,omitempty"`
	TopP        *float64 `json:"top_p,omitempty"`
	MaxTokens   *int     `json:"max_tokens,omitempty"`

	// Tool definitions made available to the model
	Tools []Tool `json:"tools,omitempty"`

	// Whether to stream the response
	Stream *bool `json:"stream,omitempty"`
}

// Streaming reports the effective streaming flag, defaulting to true:
// the gateway's wire protocol is stream-first.
func (p *ChatStreamPayload) Streaming() bool {
	if p.Stream == nil {
		return true
	}
	return *p.Stream
}

// Message is a single role/content entry in a conversation.
type Message struct {
	Role    string         `json:"role"` // "system", "user", "assistant", "tool"
	Content MessageContent `json:"content"`
}

// MessageContent is either a plain string or a list of content parts.
type MessageContent struct {
	// Text holds plain-string content.
	Text string

	// Parts holds multimodal content. When non-nil it takes precedence
	// over Text.
	Parts []ContentPart
}

// ContentPart is one piece of multimodal message content.
type ContentPart struct {
	Type string `json:"type"` // "text" or "image_url"

	Text string `json:"text,omitempty"`

	// ImageURL carries either an http(s) URL or a data URI.
	ImageURL string `json:"image_url,omitempty"`
}

// UnmarshalJSON accepts both the plain-string and the parts-list encodings.
func (c *MessageContent) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		c.Text = s
		c.Parts = nil
		return nil
	}

	var parts []contentPartWire
	if err := json.Unmarshal(data, &parts); err != nil {
		return err
	}
	c.Parts = make([]ContentPart, 0, len(parts))
	for _, p := range parts {
		part := ContentPart{Type: p.Type, Text: p.Text}
		if p.ImageURL != nil {
			part.ImageURL = p.ImageURL.URL
		}
		c.Parts = append(c.Parts, part)
	}
	return nil
}

// MarshalJSON emits the string form when no parts are present.
func (c MessageContent) MarshalJSON() ([]byte, error) {
	if c.Parts == nil {
		return json.Marshal(c.Text)
	}
	out := make([]contentPartWire, 0, len(c.Parts))
	for _, p := range c.Parts {
		w := contentPartWire{Type: p.Type, Text: p.Text}
		if p.ImageURL != "" {
			w.ImageURL = &imageURLWire{URL: p.ImageURL}
		}
		out = append(out, w)
	}
	return json.Marshal(out)
}

// contentPartWire matches the OpenAI-style parts encoding used on the wire.
type contentPartWire struct {
	Type     string        `json:"type"`
	Text     string        `json:"text,omitempty"`
	ImageURL *imageURLWire `json:"image_url,omitempty"`
}

type imageURLWire struct {
	URL string `json:"url"`
}

// TextContent returns the message's effective text. For multi-part content
// the LAST text part wins; parts are never concatenated.
func (m *Message) TextContent() string {
	if m.Content.Parts == nil {
		return m.Content.Text
	}
	text := ""
	for _, p := range m.Content.Parts {
		if p.Type == "text" {
			text = p.Text
		}
	}
	return text
}

// ImageParts returns the image parts of the message, in order.
func (m *Message) ImageParts() []ContentPart {
	var images []ContentPart
	for _, p := range m.Content.Parts {
		if p.Type == "image_url" && p.ImageURL != "" {
			images = append(images, p)
		}
	}
	return images
}

// Tool defines a callable function exposed to the model.
type Tool struct {
	Type     string       `json:"type"` // always "function"
	Function ToolFunction `json:"function"`
}

// ToolFunction describes a function signature exposed to the model.
type ToolFunction struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

// ErrorResponse is the JSON error envelope returned for failed requests.
type ErrorResponse struct {
	ErrorType string    `json:"errorType"`
	Body      ErrorBody `json:"body"`
}

// ErrorBody carries the opaque original failure payload plus the provider
// that produced it, when known.
type ErrorBody struct {
	Error    any    `json:"error"`
	Provider string `json:"provider,omitempty"`
}
