// Package configcmder provides the config command for managing persistent
// crosswire configuration stored in the .crosswire/ directory.
package configcmder

import (
	"github.com/spf13/cobra"
)

const configLongDesc string = `Manage persistent crosswire configuration.

Configuration is stored as config.toml in the .crosswire/ directory and
provides default values for command flags. CLI flags and CROSSWIRE_*
environment variables always take precedence over config file values.

Keys use dotted notation matching the TOML section structure:
  server.listen, server.debug,
  auth.access_codes, auth.key_select_mode,
  openai.api_keys, openai.base_url,
  anthropic.api_keys, anthropic.base_url,
  ollama.base_url,
  bedrock.api_keys, bedrock.base_url,
  kafka.enabled, kafka.brokers, kafka.topic

Use subcommands to get, set, or list configuration values:
  crosswire config set <key> <value>    Set a configuration value
  crosswire config get <key>            Get a configuration value
  crosswire config list                 List all configuration values

Examples:
  crosswire config set server.listen :9090
  crosswire config set auth.key_select_mode turn
  crosswire config get ollama.base_url
  crosswire config list`

const configShortDesc string = "Manage persistent crosswire configuration"

func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: configShortDesc,
		Long:  configLongDesc,
	}

	cmd.AddCommand(newSetCmd())
	cmd.AddCommand(newGetCmd())
	cmd.AddCommand(newListCmd())

	return cmd
}
