package apierror

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"
)

// ProviderAPIError is the structured error a runtime adapter raises when an
// upstream provider answers with a non-2xx response.
type ProviderAPIError struct {
	Provider string
	Status   int
	Headers  http.Header
	Body     []byte
}

func (e *ProviderAPIError) Error() string {
	return fmt.Sprintf("%s: upstream returned %d", e.Provider, e.Status)
}

// StatusCodeError is implemented by failures that carry an HTTP-like status.
type StatusCodeError interface {
	error
	StatusCode() int
}

// Normalize reduces an arbitrary failure into the unified ChatError carrier.
// Unwrapping order: the provider's own structured error, then a wrapped
// ChatError cause, then a status-bearing projection, and finally a generic
// runtime fault. An unrecognized failure is never assumed to be the
// provider's doing: it lands in the 470 class.
func Normalize(err error, provider string) *ChatError {
	var ce *ChatError
	if errors.As(err, &ce) {
		if ce.Provider == "" {
			ce.Provider = provider
		}
		return ce
	}

	var papi *ProviderAPIError
	if errors.As(err, &papi) {
		if papi.Provider == "" {
			papi.Provider = provider
		}
		return fromProviderAPIError(papi)
	}

	var sce StatusCodeError
	if errors.As(err, &sce) {
		// Minimal projection when only a status is known.
		body := map[string]any{
			"message": sce.Error(),
			"status":  sce.StatusCode(),
		}
		if sce.StatusCode() == http.StatusUnauthorized {
			return New(InvalidAPIKey(provider), provider, body)
		}
		return New(ProviderBizError, provider, body)
	}

	// Generic local fault. Preserve enough shape for triage without
	// pretending to know what went wrong.
	body := map[string]any{
		"message": err.Error(),
		"name":    fmt.Sprintf("%T", err),
	}
	if cause := errors.Unwrap(err); cause != nil {
		body["cause"] = cause.Error()
	}
	return New(AgentRuntimeError, provider, body)
}

// fromProviderAPIError classifies an upstream HTTP failure.
func fromProviderAPIError(e *ProviderAPIError) *ChatError {
	switch e.Status {
	case http.StatusUnauthorized:
		return New(InvalidAPIKey(e.Provider), e.Provider, upstreamBody(e))
	case http.StatusForbidden:
		if locationRestricted(e.Body) {
			return New(LocationNotSupported, e.Provider, upstreamBody(e))
		}
		return New(InvalidAPIKey(e.Provider), e.Provider, upstreamBody(e))
	default:
		return New(ProviderBizError, e.Provider, upstreamBody(e))
	}
}

// upstreamBody extracts the provider's nested error object when present,
// falling back to the raw payload.
func upstreamBody(e *ProviderAPIError) any {
	if nested := gjson.GetBytes(e.Body, "error"); nested.Exists() {
		return json.RawMessage(nested.Raw)
	}
	if json.Valid(e.Body) && len(e.Body) > 0 {
		return json.RawMessage(e.Body)
	}
	return map[string]any{
		"message": strings.TrimSpace(string(e.Body)),
		"status":  e.Status,
	}
}

// locationRestricted probes a 403 body for region-restriction markers.
func locationRestricted(body []byte) bool {
	msg := strings.ToLower(gjson.GetBytes(body, "error.message").String())
	if msg == "" {
		msg = strings.ToLower(string(body))
	}
	return strings.Contains(msg, "country") ||
		strings.Contains(msg, "region") ||
		strings.Contains(msg, "territory") ||
		strings.Contains(msg, "unsupported_country_region_territory")
}
