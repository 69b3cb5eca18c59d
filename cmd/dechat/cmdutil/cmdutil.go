// Package cmdutil holds setup shared by dechat subcommands.
package cmdutil

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/papercomputeco/dechat/pkg/chatclient"
	"github.com/papercomputeco/dechat/pkg/config"
	"github.com/papercomputeco/dechat/pkg/logger"
)

// LoadViper resolves configuration for cmd and binds the given flag
// registry keys so that explicitly set flags win over env and file values.
func LoadViper(cmd *cobra.Command, registryKeys ...string) (*viper.Viper, error) {
	configDir, _ := cmd.Flags().GetString("config-dir")

	v, err := config.InitViper(configDir)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	config.BindRegisteredFlags(v, cmd, config.Flags, registryKeys)
	return v, nil
}

// NewLogger returns the colorized CLI logger, at debug level when the
// persistent --debug flag is set.
func NewLogger(cmd *cobra.Command) (*slog.Logger, error) {
	debug, err := cmd.Flags().GetBool("debug")
	if err != nil {
		return nil, fmt.Errorf("could not get debug flag: %w", err)
	}

	return logger.New(
		logger.WithDebug(debug),
		logger.WithFormat(logger.FormatPretty),
		logger.WithWriter(cmd.ErrOrStderr()),
	), nil
}

// NewClient returns a chat client for target with the command's logger.
func NewClient(cmd *cobra.Command, target string) (*chatclient.Client, error) {
	l, err := NewLogger(cmd)
	if err != nil {
		return nil, err
	}

	return chatclient.New(chatclient.Config{Target: target}, l), nil
}
