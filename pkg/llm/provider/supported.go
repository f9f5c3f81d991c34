package provider

import (
	"fmt"

	"github.com/crosswireco/crosswire/pkg/llm/provider/anthropic"
	"github.com/crosswireco/crosswire/pkg/llm/provider/bedrock"
	"github.com/crosswireco/crosswire/pkg/llm/provider/ollama"
	"github.com/crosswireco/crosswire/pkg/llm/provider/openai"
)

// Supported provider type constants
const (
	Anthropic = "anthropic"
	Bedrock   = "bedrock"
	Ollama    = "ollama"
	OpenAI    = "openai"
)

// SupportedProviders returns the list of all supported provider type names.
func SupportedProviders() []string {
	return []string{Anthropic, Bedrock, Ollama, OpenAI}
}

// New creates the Normalizer for the given provider type.
// Returns an error if the provider type is not recognized.
func New(providerType string) (Normalizer, error) {
	switch providerType {
	case Anthropic:
		return anthropic.New(), nil
	case Bedrock:
		return bedrock.New(), nil
	case Ollama:
		return ollama.New(), nil
	case OpenAI:
		return openai.New(), nil
	default:
		return nil, fmt.Errorf("unknown provider type: %q (supported: %v)", providerType, SupportedProviders())
	}
}
