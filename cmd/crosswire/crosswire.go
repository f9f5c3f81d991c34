// Package crosswirecmder provides the root crosswire command.
package crosswirecmder

import (
	"log/slog"

	"github.com/spf13/cobra"

	configcmder "github.com/crosswireco/crosswire/cmd/crosswire/config"
	servecmder "github.com/crosswireco/crosswire/cmd/crosswire/serve"
	versioncmder "github.com/crosswireco/crosswire/cmd/crosswire/version"
	"github.com/crosswireco/crosswire/pkg/logger"
)

const crosswireLongDesc string = `Crosswire is an LLM gateway: one streaming wire protocol in front of
many heterogeneous model providers.

Run the gateway using:
  crosswire serve          Run the gateway server

Manage configuration using:
  crosswire config set <key> <value>
  crosswire config get <key>
  crosswire config list`

const crosswireShortDesc string = "Crosswire - LLM Gateway"

func NewCrosswireCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crosswire",
		Short: crosswireShortDesc,
		Long:  crosswireLongDesc,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			// CLI commands log through slog's default; the serve command
			// replaces this with its zap service logger.
			debug, _ := cmd.Flags().GetBool("debug")
			slog.SetDefault(logger.New(logger.WithPretty(true), logger.WithDebug(debug)))
		},
	}

	// Global flags
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String("config-dir", "", "Override the .crosswire/ config directory")

	// Add subcommands
	cmd.AddCommand(servecmder.NewServeCmd())
	cmd.AddCommand(configcmder.NewConfigCmd())
	cmd.AddCommand(versioncmder.NewVersionCmd())

	return cmd
}
