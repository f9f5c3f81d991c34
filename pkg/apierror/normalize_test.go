package apierror

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

type fakeStatusErr struct {
	status int
}

func (e *fakeStatusErr) Error() string   { return fmt.Sprintf("upstream said %d", e.status) }
func (e *fakeStatusErr) StatusCode() int { return e.status }

var _ = Describe("Normalize", func() {
	It("returns an existing ChatError unchanged, filling in the provider", func() {
		original := New(ProviderBizError, "", map[string]any{"message": "quota"})
		wrapped := fmt.Errorf("calling upstream: %w", original)

		ce := Normalize(wrapped, "openai")
		Expect(ce).To(BeIdenticalTo(original))
		Expect(ce.Provider).To(Equal("openai"))
	})

	It("classifies an upstream 401 as the provider's invalid-key variant", func() {
		err := &ProviderAPIError{
			Provider: "openai",
			Status:   http.StatusUnauthorized,
			Body:     []byte(`{"error":{"message":"Incorrect API key provided"}}`),
		}

		ce := Normalize(err, "openai")
		Expect(ce.ErrorType).To(Equal(ErrorType("InvalidOpenAIAPIKey")))
		Expect(StatusFor(ce.ErrorType, nil)).To(Equal(401))
	})

	It("classifies a region-restricted 403 as LocationNotSupported", func() {
		err := &ProviderAPIError{
			Provider: "openai",
			Status:   http.StatusForbidden,
			Body:     []byte(`{"error":{"message":"Country, region, or territory not supported","code":"unsupported_country_region_territory"}}`),
		}

		ce := Normalize(err, "openai")
		Expect(ce.ErrorType).To(Equal(LocationNotSupported))
	})

	It("classifies other upstream failures as ProviderBizError", func() {
		err := &ProviderAPIError{
			Provider: "anthropic",
			Status:   http.StatusTooManyRequests,
			Body:     []byte(`{"error":{"type":"rate_limit_error","message":"slow down"}}`),
		}

		ce := Normalize(err, "anthropic")
		Expect(ce.ErrorType).To(Equal(ProviderBizError))
	})

	It("prefers the provider's nested error object as the body", func() {
		err := &ProviderAPIError{
			Provider: "openai",
			Status:   http.StatusBadRequest,
			Body:     []byte(`{"error":{"message":"bad prompt","type":"invalid_request_error"}}`),
		}

		ce := Normalize(err, "openai")
		raw, ok := ce.Body.(json.RawMessage)
		Expect(ok).To(BeTrue())
		Expect(string(raw)).To(MatchJSON(`{"message":"bad prompt","type":"invalid_request_error"}`))
	})

	It("projects a minimal shape from a non-JSON upstream body", func() {
		err := &ProviderAPIError{
			Provider: "ollama",
			Status:   http.StatusBadGateway,
			Body:     []byte("upstream exploded\n"),
		}

		ce := Normalize(err, "ollama")
		body := ce.Body.(map[string]any)
		Expect(body["message"]).To(Equal("upstream exploded"))
		Expect(body["status"]).To(Equal(http.StatusBadGateway))
	})

	It("uses the status projection for status-bearing errors", func() {
		ce := Normalize(&fakeStatusErr{status: 401}, "openai")
		Expect(ce.ErrorType).To(Equal(ErrorType("InvalidOpenAIAPIKey")))

		ce = Normalize(&fakeStatusErr{status: 429}, "openai")
		Expect(ce.ErrorType).To(Equal(ProviderBizError))
	})

	It("wraps an unrecognized failure as a runtime fault, never blaming the provider", func() {
		cause := errors.New("disk on fire")
		ce := Normalize(fmt.Errorf("reading state: %w", cause), "openai")

		Expect(ce.ErrorType).To(Equal(AgentRuntimeError))
		Expect(StatusFor(ce.ErrorType, nil)).To(Equal(470))

		body := ce.Body.(map[string]any)
		Expect(body["message"]).To(Equal("reading state: disk on fire"))
		Expect(body["cause"]).To(Equal("disk on fire"))
	})
})
