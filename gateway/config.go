package gateway

import (
	"github.com/crosswireco/crosswire/pkg/eventstream"
)

// Config is the gateway server configuration.
type Config struct {
	// ListenAddr is the address to listen on (e.g., ":8080")
	ListenAddr string

	// AccessCodes is the allowlist of client access codes. Empty disables
	// access gating.
	AccessCodes []string

	// KeySelectMode selects how keys rotate inside a pool: "random" or "turn".
	KeySelectMode string

	// Providers maps provider type names to their upstream settings.
	Providers map[string]ProviderSettings

	// Publisher receives chat lifecycle events. Nil disables publishing.
	Publisher eventstream.Publisher
}

// ProviderSettings holds per-provider upstream configuration.
type ProviderSettings struct {
	// KeyPool is the comma-separated server-side API key pool.
	KeyPool string

	// BaseURL overrides the provider's default endpoint.
	BaseURL string
}
