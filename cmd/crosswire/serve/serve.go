// Package servecmder provides the serve command that runs the gateway.
package servecmder

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/crosswireco/crosswire/gateway"
	"github.com/crosswireco/crosswire/pkg/config"
	"github.com/crosswireco/crosswire/pkg/eventstream"
	kafkapub "github.com/crosswireco/crosswire/pkg/eventstream/kafka"
	noppub "github.com/crosswireco/crosswire/pkg/eventstream/nop"
	"github.com/crosswireco/crosswire/pkg/logger"
)

type ServeCommander struct {
	listen       string
	debug        bool
	accessCodes  string
	keyMode      string
	ollamaTarget string
	kafkaBrokers string
	kafkaTopic   string

	viper  *viper.Viper
	logger *zap.Logger
}

const serveLongDesc string = `Run the Crosswire gateway.

The gateway accepts chat requests on /webapi/chat/:provider, normalizes each
provider's streaming wire format into a single SSE chunk protocol, and streams
the result back to the client.

Configuration precedence: flags > CROSSWIRE_* environment variables >
.crosswire/config.toml > defaults.`

const serveShortDesc string = "Run the Crosswire gateway"

func NewServeCmd() *cobra.Command {
	cmder := &ServeCommander{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: serveShortDesc,
		Long:  serveLongDesc,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			configDir, err := cmd.Flags().GetString("config-dir")
			if err != nil {
				configDir = ""
			}

			v, err := config.InitViper(configDir)
			if err != nil {
				return fmt.Errorf("initializing config: %w", err)
			}

			config.BindRegisteredFlags(v, cmd, config.ServeFlags, []string{
				config.FlagListen,
				config.FlagDebug,
				config.FlagAccessCodes,
				config.FlagKeyMode,
				config.FlagOllamaTarget,
				config.FlagKafkaBrokers,
				config.FlagKafkaTopic,
			})

			cmder.viper = v
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			// The global --debug flag also forces debug logging on.
			if globalDebug, err := cmd.Flags().GetBool("debug"); err == nil && globalDebug {
				cmder.viper.Set("server.debug", true)
			}
			return cmder.run()
		},
	}

	config.AddStringFlag(cmd, config.ServeFlags, config.FlagListen, &cmder.listen)
	config.AddStringFlag(cmd, config.ServeFlags, config.FlagAccessCodes, &cmder.accessCodes)
	config.AddStringFlag(cmd, config.ServeFlags, config.FlagKeyMode, &cmder.keyMode)
	config.AddStringFlag(cmd, config.ServeFlags, config.FlagOllamaTarget, &cmder.ollamaTarget)
	config.AddStringFlag(cmd, config.ServeFlags, config.FlagKafkaBrokers, &cmder.kafkaBrokers)
	config.AddStringFlag(cmd, config.ServeFlags, config.FlagKafkaTopic, &cmder.kafkaTopic)

	return cmd
}

func (c *ServeCommander) run() error {
	cfg := config.FromViper(c.viper)

	c.logger = logger.NewLogger(cfg.Server.Debug)
	defer c.logger.Sync()

	publisher, err := c.createPublisher(cfg)
	if err != nil {
		return err
	}
	defer publisher.Close()

	gatewayConfig := gateway.Config{
		ListenAddr:    cfg.Server.Listen,
		AccessCodes:   splitList(cfg.Auth.AccessCodes),
		KeySelectMode: cfg.Auth.KeySelectMode,
		Providers:     providerSettings(cfg),
		Publisher:     publisher,
	}

	g, err := gateway.New(gatewayConfig, c.logger)
	if err != nil {
		return fmt.Errorf("creating gateway: %w", err)
	}
	defer g.Close()

	c.logger.Info("starting gateway",
		zap.String("listen_addr", cfg.Server.Listen),
		zap.String("key_select_mode", cfg.Auth.KeySelectMode),
		zap.Bool("kafka_enabled", cfg.Kafka.Enabled),
	)

	// Channel to capture errors from the serve goroutine
	errChan := make(chan error, 1)

	go func() {
		if err := g.Run(); err != nil {
			errChan <- fmt.Errorf("gateway error: %w", err)
		}
	}()

	// Wait for interrupt signal or error
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return err
	case sig := <-sigChan:
		c.logger.Info("received signal, shutting down", zap.String("signal", sig.String()))
		return nil
	}
}

func (c *ServeCommander) createPublisher(cfg *config.Config) (eventstream.Publisher, error) {
	if !cfg.Kafka.Enabled {
		return noppub.NewPublisher(), nil
	}

	publisher, err := kafkapub.NewPublisher(kafkapub.Config{
		Brokers: splitList(cfg.Kafka.Brokers),
		Topic:   cfg.Kafka.Topic,
	})
	if err != nil {
		return nil, fmt.Errorf("creating kafka publisher: %w", err)
	}
	return publisher, nil
}

func providerSettings(cfg *config.Config) map[string]gateway.ProviderSettings {
	return map[string]gateway.ProviderSettings{
		"openai": {
			KeyPool: cfg.OpenAI.APIKeys,
			BaseURL: cfg.OpenAI.BaseURL,
		},
		"anthropic": {
			KeyPool: cfg.Anthropic.APIKeys,
			BaseURL: cfg.Anthropic.BaseURL,
		},
		"ollama": {
			BaseURL: cfg.Ollama.BaseURL,
		},
		"bedrock": {
			KeyPool: cfg.Bedrock.APIKeys,
			BaseURL: cfg.Bedrock.BaseURL,
		},
	}
}

func splitList(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}

	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
