// Package configcmder provides the config command for managing persistent
// dechat configuration stored in the .dechat/ directory.
package configcmder

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/dechat/pkg/cliui"
	"github.com/papercomputeco/dechat/pkg/config"
)

const configLongDesc string = `Manage persistent dechat configuration.

Configuration is stored as config.toml in the .dechat/ directory and provides
default values for command flags. CLI flags and DECHAT_* environment
variables always take precedence over config file values.

Keys use dotted notation matching the TOML section structure:
  server.listen, server.ollama_url, server.model, server.stream_framing,
  client.target, client.framing, client.render,
  warehouse.sqlite_path, warehouse.dbt_manifest,
  rag.provider, rag.target, rag.embedding_model, rag.dimensions

Use subcommands to get, set, or list configuration values:
  dechat config set <key> <value>    Set a configuration value
  dechat config get <key>            Get a configuration value
  dechat config list                 List all configuration values

Examples:
  dechat config set server.model llama3.2
  dechat config set client.render plain
  dechat config get warehouse.sqlite_path
  dechat config list`

const configShortDesc string = "Manage persistent dechat configuration"

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

func validateKey(key string) error {
	if !config.IsValidConfigKey(key) {
		return fmt.Errorf("unknown config key: %q\n\nValid keys: %s",
			key, strings.Join(config.ValidConfigKeys(), ", "))
	}
	return nil
}

func completeKeys(_ *cobra.Command, args []string, _ string) ([]string, cobra.ShellCompDirective) {
	if len(args) == 0 {
		return config.ValidConfigKeys(), cobra.ShellCompDirectiveNoFileComp
	}
	return nil, cobra.ShellCompDirectiveNoFileComp
}

// printTarget reports which config file is in use.
func printTarget(w io.Writer, cfger *config.Configer) {
	if target := cfger.GetTarget(); target != "" {
		fmt.Fprintf(w, "\n  %s %s\n\n",
			cliui.KeyStyle.Render("Config file:"),
			cliui.DimStyle.Render(target),
		)
		return
	}
	fmt.Fprintf(w, "\n  %s\n\n", cliui.DimStyle.Render("No config file found. Using defaults."))
}
