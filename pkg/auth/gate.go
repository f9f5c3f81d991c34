// Package auth implements request-level authorization and per-pool API key
// rotation for the gateway. The gate runs before any provider credential or
// network work is done.
package auth

import (
	"slices"

	"github.com/crosswireco/crosswire/pkg/apierror"
)

// Context is the per-request credential set, decoded from the inbound
// request's auth headers. Built fresh per request and never persisted.
type Context struct {
	// AccessCode is the operator-configured shared secret, if supplied.
	AccessCode string

	// APIKey is a caller-supplied provider API key, if supplied.
	APIKey string

	// UserID tags the request for telemetry; not an authorization input.
	UserID string

	// OAuthAuthorized marks a request carrying a verified session/OAuth
	// assertion.
	OAuthAuthorized bool
}

// Gate authorizes inbound requests against an optional access-code
// allowlist.
type Gate struct {
	accessCodes []string
}

// NewGate creates a Gate. An empty allowlist disables access-code checking
// entirely.
func NewGate(accessCodes []string) *Gate {
	return &Gate{accessCodes: accessCodes}
}

// Check authorizes the request. A request passes if ANY of:
//   - it carries its own provider API key;
//   - no allowlist is configured;
//   - its access code is in the allowlist;
//   - it carries a verified OAuth assertion.
//
// Otherwise it is rejected with a 401-class ChatError before any provider
// work happens.
func (g *Gate) Check(ctx Context) error {
	if ctx.APIKey != "" {
		return nil
	}
	if len(g.accessCodes) == 0 {
		return nil
	}
	if ctx.AccessCode != "" && slices.Contains(g.accessCodes, ctx.AccessCode) {
		return nil
	}
	if ctx.OAuthAuthorized {
		return nil
	}

	if ctx.AccessCode == "" {
		return apierror.New(apierror.Unauthorized, "", map[string]any{
			"message": "no credentials supplied",
		})
	}
	return apierror.New(apierror.InvalidAccessCode, "", map[string]any{
		"message": "access code not recognized",
	})
}
