// Package dechatcmder
package dechatcmder

import (
	"github.com/spf13/cobra"

	chatcmder "github.com/papercomputeco/dechat/cmd/dechat/chat"
	chatscmder "github.com/papercomputeco/dechat/cmd/dechat/chats"
	configcmder "github.com/papercomputeco/dechat/cmd/dechat/config"
	ingestcmder "github.com/papercomputeco/dechat/cmd/dechat/ingest"
	searchcmder "github.com/papercomputeco/dechat/cmd/dechat/search"
	servecmder "github.com/papercomputeco/dechat/cmd/dechat/serve"
	sqlcmder "github.com/papercomputeco/dechat/cmd/dechat/sqlcmd"
	versioncmder "github.com/papercomputeco/dechat/cmd/version"
)

const dechatLongDesc string = `dechat is a data engineering assistant for your terminal.

It answers SQL, dbt, Airflow and BigQuery questions with a local Ollama
model, grounded in your warehouse schema, dbt manifest and runbooks.

Run the backend, then chat with it:
  dechat serve         Run the chat server
  dechat chat          Start an interactive chat session
  dechat sql run       Run a read-only query on the warehouse`

const dechatShortDesc string = "dechat - Data Engineering Assistant"

func NewDechatCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "dechat",
		Short:         dechatShortDesc,
		Long:          dechatLongDesc,
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	// Global flags
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String("config-dir", "", "Override the .dechat/ config directory")

	// Add subcommands
	cmd.AddCommand(servecmder.NewServeCmd())
	cmd.AddCommand(chatcmder.NewChatCmd())
	cmd.AddCommand(chatscmder.NewChatsCmd())
	cmd.AddCommand(sqlcmder.NewSQLCmd())
	cmd.AddCommand(searchcmder.NewSearchCmd())
	cmd.AddCommand(ingestcmder.NewIngestCmd())
	cmd.AddCommand(configcmder.NewConfigCmd())
	cmd.AddCommand(versioncmder.NewVersionCmd())

	return cmd
}
