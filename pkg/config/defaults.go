package config

const (
	defaultListen        = ":8080"
	defaultKeySelectMode = "random"

	defaultOllamaBaseURL = "http://localhost:11434"

	defaultKafkaTopic = "crosswire.chat.completed"
)

// NewDefaultConfig returns a Config with sane defaults for all fields.
// This is the single source of truth for default values.
func NewDefaultConfig() *Config {
	return &Config{
		Version: CurrentV,
		Server: ServerConfig{
			Listen: defaultListen,
		},
		Auth: AuthConfig{
			KeySelectMode: defaultKeySelectMode,
		},
		Ollama: ProviderConfig{
			BaseURL: defaultOllamaBaseURL,
		},
		Kafka: KafkaConfig{
			Topic: defaultKafkaTopic,
		},
	}
}
