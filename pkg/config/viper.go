package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/crosswireco/crosswire/pkg/dotdir"
)

// InitViper creates and returns a configured *viper.Viper.
// It sets defaults from NewDefaultConfig(), reads the config.toml file
// (if found via dotdir resolution), and binds environment variables
// with the CROSSWIRE_ prefix.
//
// Config precedence (highest to lowest):
//  1. CLI flags (once bound via BindRegisteredFlags)
//  2. Environment variables (CROSSWIRE_SERVER_LISTEN, CROSSWIRE_OPENAI_API_KEYS, etc.)
//  3. config.toml file values
//  4. Defaults from NewDefaultConfig()
func InitViper(configDir string) (*viper.Viper, error) {
	v := viper.New()

	// 1. Register all defaults from NewDefaultConfig().
	setViperDefaults(v)

	// 2. Config file discovery via dotdir resolution.
	v.SetConfigName("config")
	v.SetConfigType("toml")

	ddm := dotdir.NewManager()
	target, err := ddm.Target(configDir)
	if err != nil {
		return nil, fmt.Errorf("resolving config dir: %w", err)
	}

	if target != "" {
		v.AddConfigPath(target)
	}

	if err := v.ReadInConfig(); err != nil {
		// Config file not found errors are fine, defaults will apply.
		if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	// 3. Environment variables: CROSSWIRE_SERVER_LISTEN, CROSSWIRE_AUTH_ACCESS_CODES, etc.
	v.SetEnvPrefix("CROSSWIRE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v, nil
}

// FromViper materializes a Config from a resolved viper instance, after the
// full precedence chain has been applied.
func FromViper(v *viper.Viper) *Config {
	return &Config{
		Version: v.GetInt("version"),
		Server: ServerConfig{
			Listen: v.GetString("server.listen"),
			Debug:  v.GetBool("server.debug"),
		},
		Auth: AuthConfig{
			AccessCodes:   v.GetString("auth.access_codes"),
			KeySelectMode: v.GetString("auth.key_select_mode"),
		},
		OpenAI: ProviderConfig{
			APIKeys: v.GetString("openai.api_keys"),
			BaseURL: v.GetString("openai.base_url"),
		},
		Anthropic: ProviderConfig{
			APIKeys: v.GetString("anthropic.api_keys"),
			BaseURL: v.GetString("anthropic.base_url"),
		},
		Ollama: ProviderConfig{
			BaseURL: v.GetString("ollama.base_url"),
		},
		Bedrock: ProviderConfig{
			APIKeys: v.GetString("bedrock.api_keys"),
			BaseURL: v.GetString("bedrock.base_url"),
		},
		Kafka: KafkaConfig{
			Enabled: v.GetBool("kafka.enabled"),
			Brokers: v.GetString("kafka.brokers"),
			Topic:   v.GetString("kafka.topic"),
		},
	}
}

// setViperDefaults registers defaults from NewDefaultConfig() into viper
// using dotted-key notation. This keeps defaults.go as the single source of truth.
func setViperDefaults(v *viper.Viper) {
	d := NewDefaultConfig()

	v.SetDefault("version", d.Version)

	// Server
	v.SetDefault("server.listen", d.Server.Listen)
	v.SetDefault("server.debug", d.Server.Debug)

	// Auth
	v.SetDefault("auth.access_codes", d.Auth.AccessCodes)
	v.SetDefault("auth.key_select_mode", d.Auth.KeySelectMode)

	// Providers
	v.SetDefault("openai.api_keys", d.OpenAI.APIKeys)
	v.SetDefault("openai.base_url", d.OpenAI.BaseURL)
	v.SetDefault("anthropic.api_keys", d.Anthropic.APIKeys)
	v.SetDefault("anthropic.base_url", d.Anthropic.BaseURL)
	v.SetDefault("ollama.base_url", d.Ollama.BaseURL)
	v.SetDefault("bedrock.api_keys", d.Bedrock.APIKeys)
	v.SetDefault("bedrock.base_url", d.Bedrock.BaseURL)

	// Kafka
	v.SetDefault("kafka.enabled", d.Kafka.Enabled)
	v.SetDefault("kafka.brokers", d.Kafka.Brokers)
	v.SetDefault("kafka.topic", d.Kafka.Topic)
}
