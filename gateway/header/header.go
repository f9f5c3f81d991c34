// Package header handles the gateway's request headers.
//
// The gateway sits between a client and an upstream LLM provider like so:
//
//	Client <--> Gateway <--> Upstream LLM Provider
//
// Client credentials travel in a dedicated gateway header so they never mix
// with the provider-facing auth headers the runtime adapters set themselves.
package header

import (
	"encoding/base64"
	"encoding/json"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/crosswireco/crosswire/pkg/auth"
)

const (
	// AuthHeader carries the client's base64-encoded JSON credential
	// envelope: {"access_code": "...", "api_key": "...", "user_id": "..."}.
	AuthHeader = "X-Crosswire-Auth"

	// OAuthHeader marks a request already authorized by an upstream OAuth
	// layer. Any non-empty value passes the gate.
	OAuthHeader = "X-Crosswire-OAuth"
)

// Handler manages headers between gateway connections.
type Handler struct{}

// NewHandler creates a new header Handler.
func NewHandler() *Handler {
	return &Handler{}
}

// credentialEnvelope is the wire shape inside AuthHeader.
type credentialEnvelope struct {
	AccessCode string `json:"access_code"`
	APIKey     string `json:"api_key"`
	UserID     string `json:"user_id"`
}

// DecodeAuth extracts the auth context from the request. A missing or
// malformed header yields an empty context, which the gate then rejects
// unless gating is disabled; decoding never fails the request by itself.
func (h *Handler) DecodeAuth(c *fiber.Ctx) auth.Context {
	ctx := auth.Context{
		OAuthAuthorized: c.Get(OAuthHeader) != "",
	}

	raw := c.Get(AuthHeader)
	if raw == "" {
		return ctx
	}

	decoded, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		// Some clients use the URL-safe alphabet.
		decoded, err = base64.URLEncoding.DecodeString(raw)
		if err != nil {
			return ctx
		}
	}

	var env credentialEnvelope
	if err := json.Unmarshal(decoded, &env); err != nil {
		return ctx
	}

	ctx.AccessCode = env.AccessCode
	ctx.APIKey = env.APIKey
	ctx.UserID = env.UserID
	return ctx
}

// skipRequest is the set of request headers (client --> gateway --> upstream)
// that are not forwarded to the upstream LLM provider.
var skipRequest = map[string]struct{}{
	// Hop-by-hop headers: only meaningful for a single transport-level connection.
	"Connection": {},

	// The Host header is rewritten by Go's http.Transport to match the
	// upstream URL. Forwarding the client's Host would confuse virtual-hosted
	// upstreams.
	"Host": {},

	// Accept-Encoding is stripped so that Go's http.Transport adds its own
	// "Accept-Encoding: gzip" and transparently decompresses the upstream
	// response.
	"Accept-Encoding": {},

	// Content-Length belongs to the client's JSON body; the adapters build
	// their own provider-shaped bodies.
	"Content-Length": {},

	// Provider credentials are set by the runtime adapters from the key
	// vault, never copied from the client.
	"Authorization": {},
	"X-Api-Key":     {},

	// Internal gateway headers.
	AuthHeader:  {},
	OAuthHeader: {},
}

// ForwardHeaders collects the client headers that should travel to the
// upstream provider, filtering internal and hop-by-hop headers.
func (h *Handler) ForwardHeaders(c *fiber.Ctx) http.Header {
	out := http.Header{}
	c.Request().Header.VisitAll(func(key, value []byte) {
		k := http.CanonicalHeaderKey(string(key))
		if _, skip := skipRequest[k]; !skip {
			out.Add(k, string(value))
		}
	})
	return out
}
