// Package sqlcmder provides the sql command for running and repairing
// queries against the dechat server's warehouse.
package sqlcmder

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/dechat/cmd/dechat/cmdutil"
	"github.com/papercomputeco/dechat/pkg/chatclient"
	"github.com/papercomputeco/dechat/pkg/cliui"
	"github.com/papercomputeco/dechat/pkg/config"
)

type sqlCommander struct {
	target string
	errMsg string
	client *chatclient.Client
}

const sqlLongDesc string = `Run read-only SQL against the warehouse of a dechat server, or ask the
model to repair a failing query.

Only SELECT statements are accepted by the server. Pass "-" as the query to
read it from stdin.

Examples:
  dechat sql run "SELECT count(*) FROM orders"
  cat query.sql | dechat sql run -
  dechat sql fix "SELEC * FROM orders" --error 'near "SELEC": syntax error'`

const sqlShortDesc string = "Run and fix warehouse SQL"

func NewSQLCmd() *cobra.Command {
	cmder := &sqlCommander{}

	cmd := &cobra.Command{
		Use:   "sql",
		Short: sqlShortDesc,
		Long:  sqlLongDesc,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			v, err := cmdutil.LoadViper(cmd, config.FlagTarget)
			if err != nil {
				return err
			}

			cmder.client, err = cmdutil.NewClient(cmd, v.GetString("client.target"))
			return err
		},
	}

	config.AddPersistentStringFlag(cmd, config.Flags, config.FlagTarget, &cmder.target)

	cmd.AddCommand(&cobra.Command{
		Use:   "run <query>",
		Short: "Run a SELECT query and print the rows",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query, err := readQuery(cmd.InOrStdin(), args[0])
			if err != nil {
				return err
			}
			return cmder.run(cmd, query)
		},
	})

	fixCmd := &cobra.Command{
		Use:   "fix <query>",
		Short: "Ask the model to repair a failing query",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query, err := readQuery(cmd.InOrStdin(), args[0])
			if err != nil {
				return err
			}
			return cmder.fix(cmd, query)
		},
	}
	fixCmd.Flags().StringVarP(&cmder.errMsg, "error", "e", "", "Error message the query produced")
	cmd.AddCommand(fixCmd)

	return cmd
}

func readQuery(stdin io.Reader, arg string) (string, error) {
	if arg != "-" {
		return arg, nil
	}

	b, err := io.ReadAll(stdin)
	if err != nil {
		return "", fmt.Errorf("reading query from stdin: %w", err)
	}

	query := strings.TrimSpace(string(b))
	if query == "" {
		return "", errors.New("empty query on stdin")
	}
	return query, nil
}

func (c *sqlCommander) run(cmd *cobra.Command, query string) error {
	res, err := c.client.RunSQL(cmd.Context(), query)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(res.Columns) == 0 {
		fmt.Fprintf(out, "  %s %s\n", cliui.SuccessMark, res.Message)
		return nil
	}

	fmt.Fprintln(out, cliui.ResultTable(res.Columns, res.Rows))

	summary := fmt.Sprintf("%d row(s)", len(res.Rows))
	if res.Truncated {
		summary += ", truncated"
	}
	fmt.Fprintf(out, "  %s\n", cliui.DimStyle.Render(summary))
	return nil
}

func (c *sqlCommander) fix(cmd *cobra.Command, query string) error {
	fixed, err := c.client.FixSQL(cmd.Context(), query, c.errMsg)
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), fixed)
	return nil
}
