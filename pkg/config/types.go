package config

import "strconv"

// Config represents the persistent crosswire configuration stored as
// config.toml in the .crosswire/ directory. The TOML layout uses sections
// for logical grouping.
type Config struct {
	Version   int            `toml:"version"`
	Server    ServerConfig   `toml:"server"`
	Auth      AuthConfig     `toml:"auth"`
	OpenAI    ProviderConfig `toml:"openai"`
	Anthropic ProviderConfig `toml:"anthropic"`
	Ollama    ProviderConfig `toml:"ollama"`
	Bedrock   ProviderConfig `toml:"bedrock"`
	Kafka     KafkaConfig    `toml:"kafka"`
}

// ServerConfig holds gateway server settings.
type ServerConfig struct {
	Listen string `toml:"listen,omitempty"`
	Debug  bool   `toml:"debug,omitempty"`
}

// AuthConfig holds access gating and key rotation settings.
type AuthConfig struct {
	// AccessCodes is the comma-separated allowlist. Empty disables gating.
	AccessCodes string `toml:"access_codes,omitempty"`

	// KeySelectMode is "random" or "turn".
	KeySelectMode string `toml:"key_select_mode,omitempty"`
}

// ProviderConfig holds per-provider upstream settings.
type ProviderConfig struct {
	// APIKeys is the comma-separated server-side key pool for this provider.
	APIKeys string `toml:"api_keys,omitempty"`

	// BaseURL overrides the provider's default endpoint.
	BaseURL string `toml:"base_url,omitempty"`
}

// KafkaConfig holds lifecycle event publishing settings.
type KafkaConfig struct {
	Enabled bool   `toml:"enabled,omitempty"`
	Brokers string `toml:"brokers,omitempty"`
	Topic   string `toml:"topic,omitempty"`
}

// configKeyInfo maps a user-facing dotted key name to a getter and setter on *Config.
type configKeyInfo struct {
	get func(c *Config) string
	set func(c *Config, v string) error
}

// configKeys is the authoritative map of all supported config keys.
// Keys use dotted notation matching the TOML section structure.
var configKeys = map[string]configKeyInfo{
	"server.listen": {
		get: func(c *Config) string { return c.Server.Listen },
		set: func(c *Config, v string) error { c.Server.Listen = v; return nil },
	},
	"server.debug": {
		get: func(c *Config) string { return strconv.FormatBool(c.Server.Debug) },
		set: func(c *Config, v string) error {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return err
			}
			c.Server.Debug = b
			return nil
		},
	},
	"auth.access_codes": {
		get: func(c *Config) string { return c.Auth.AccessCodes },
		set: func(c *Config, v string) error { c.Auth.AccessCodes = v; return nil },
	},
	"auth.key_select_mode": {
		get: func(c *Config) string { return c.Auth.KeySelectMode },
		set: func(c *Config, v string) error { c.Auth.KeySelectMode = v; return nil },
	},
	"openai.api_keys": {
		get: func(c *Config) string { return c.OpenAI.APIKeys },
		set: func(c *Config, v string) error { c.OpenAI.APIKeys = v; return nil },
	},
	"openai.base_url": {
		get: func(c *Config) string { return c.OpenAI.BaseURL },
		set: func(c *Config, v string) error { c.OpenAI.BaseURL = v; return nil },
	},
	"anthropic.api_keys": {
		get: func(c *Config) string { return c.Anthropic.APIKeys },
		set: func(c *Config, v string) error { c.Anthropic.APIKeys = v; return nil },
	},
	"anthropic.base_url": {
		get: func(c *Config) string { return c.Anthropic.BaseURL },
		set: func(c *Config, v string) error { c.Anthropic.BaseURL = v; return nil },
	},
	"ollama.base_url": {
		get: func(c *Config) string { return c.Ollama.BaseURL },
		set: func(c *Config, v string) error { c.Ollama.BaseURL = v; return nil },
	},
	"bedrock.api_keys": {
		get: func(c *Config) string { return c.Bedrock.APIKeys },
		set: func(c *Config, v string) error { c.Bedrock.APIKeys = v; return nil },
	},
	"bedrock.base_url": {
		get: func(c *Config) string { return c.Bedrock.BaseURL },
		set: func(c *Config, v string) error { c.Bedrock.BaseURL = v; return nil },
	},
	"kafka.enabled": {
		get: func(c *Config) string { return strconv.FormatBool(c.Kafka.Enabled) },
		set: func(c *Config, v string) error {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return err
			}
			c.Kafka.Enabled = b
			return nil
		},
	},
	"kafka.brokers": {
		get: func(c *Config) string { return c.Kafka.Brokers },
		set: func(c *Config, v string) error { c.Kafka.Brokers = v; return nil },
	},
	"kafka.topic": {
		get: func(c *Config) string { return c.Kafka.Topic },
		set: func(c *Config, v string) error { c.Kafka.Topic = v; return nil },
	},
}

// ProviderSection returns the section for the named provider, nil when the
// name is not a configured provider.
func (c *Config) ProviderSection(name string) *ProviderConfig {
	switch name {
	case "openai":
		return &c.OpenAI
	case "anthropic":
		return &c.Anthropic
	case "ollama":
		return &c.Ollama
	case "bedrock":
		return &c.Bedrock
	default:
		return nil
	}
}
