// Package apierror reduces the open set of provider and runtime failures
// into a closed, HTTP-mappable error taxonomy. Every failure crossing the
// gateway boundary is converted into exactly one ChatError, serialized once
// as the stable {errorType, body} envelope.
package apierror

import (
	"fmt"
	"net/http"
)

// ErrorType is the closed taxonomy of failure kinds exposed to clients.
// Clients pattern-match on these names, so they are a stable contract.
type ErrorType string

const (
	// Unauthorized: the request carried no credentials at all.
	Unauthorized ErrorType = "Unauthorized"

	// InvalidAccessCode: the supplied access code is not in the allowlist.
	InvalidAccessCode ErrorType = "InvalidAccessCode"

	// InvalidProviderAPIKey: the provider rejected the API key.
	InvalidProviderAPIKey ErrorType = "InvalidProviderAPIKey"

	// LocationNotSupported: the provider restricts the caller's region.
	LocationNotSupported ErrorType = "LocationNotSupported"

	// AgentRuntimeError: an unclassified local fault, not provider-caused.
	AgentRuntimeError ErrorType = "AgentRuntimeError"

	// ProviderBizError: the provider's own structured business error
	// (rate limit, policy rejection, malformed prompt, ...).
	ProviderBizError ErrorType = "ProviderBizError"

	// OllamaServiceUnavailable: the local inference host is unreachable.
	OllamaServiceUnavailable ErrorType = "OllamaServiceUnavailable"

	// InternalServerError: the catch-all.
	InternalServerError ErrorType = "InternalServerError"
)

// InvalidAPIKey returns the provider-specific invalid-key variant, e.g.
// "InvalidOpenAIAPIKey". Every variant contains "Invalid" and therefore
// maps to 401.
func InvalidAPIKey(provider string) ErrorType {
	return ErrorType("Invalid" + titled(provider) + "APIKey")
}

func titled(s string) string {
	switch s {
	case "openai":
		return "OpenAI"
	case "ollama":
		return "Ollama"
	case "anthropic":
		return "Anthropic"
	case "bedrock":
		return "Bedrock"
	default:
		if s == "" {
			return "Provider"
		}
		return string(s[0]-'a'+'A') + s[1:]
	}
}

// Statuses outside the standard registry, carved out for triage: the 470
// class marks "our bug", 471 "provider rejected the call", 472 "local
// inference host down".
const (
	StatusAgentRuntimeError  = 470
	StatusProviderBizError   = 471
	StatusServiceUnavailable = 472
)

// ChatError is the unified error carrier thrown at the adapter boundary and
// caught exactly once at the request-handling boundary. It is created once
// at the throw site and never mutated.
type ChatError struct {
	ErrorType ErrorType
	Provider  string
	Body      any
}

func (e *ChatError) Error() string {
	if e.Provider != "" {
		return fmt.Sprintf("%s (%s)", e.ErrorType, e.Provider)
	}
	return string(e.ErrorType)
}

// New creates a ChatError carrying the opaque original failure payload.
func New(errorType ErrorType, provider string, body any) *ChatError {
	return &ChatError{ErrorType: errorType, Provider: provider, Body: body}
}

// statusTable maps named kinds to explicit statuses.
var statusTable = map[ErrorType]int{
	Unauthorized:             http.StatusUnauthorized,
	InvalidProviderAPIKey:    http.StatusUnauthorized,
	LocationNotSupported:     http.StatusForbidden,
	AgentRuntimeError:        StatusAgentRuntimeError,
	ProviderBizError:         StatusProviderBizError,
	OllamaServiceUnavailable: StatusServiceUnavailable,
	InternalServerError:      http.StatusInternalServerError,
}
