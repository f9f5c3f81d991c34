package bedrock

// framePayload is the JSON carried by one eventstream message: the model's
// native chunk, base64-encoded. encoding/json base64-decodes the Bytes
// field on unmarshal.
type framePayload struct {
	Bytes []byte `json:"bytes"`
}

// modelChunk is the decoded foundation-model chunk (Titan text shape).
type modelChunk struct {
	OutputText       string `json:"outputText"`
	Index            int    `json:"index"`
	CompletionReason string `json:"completionReason"`

	InputTextTokenCount  int `json:"inputTextTokenCount,omitempty"`
	TotalOutputTextCount int `json:"totalOutputTextTokenCount,omitempty"`
}
