// Package searchcmder provides the search command for semantic search over
// the knowledge base indexed by "dechat ingest".
package searchcmder

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/papercomputeco/dechat/api"
	"github.com/papercomputeco/dechat/cmd/dechat/cmdutil"
	"github.com/papercomputeco/dechat/pkg/config"
	"github.com/papercomputeco/dechat/pkg/utils"
)

var (
	rankStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("82")).Bold(true)
	scoreStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	sourceStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	previewStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	headerStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("252")).Bold(true)
)

type searchCommander struct {
	query  string
	topK   int
	quiet  bool
	target string
}

const searchLongDesc string = `Search the knowledge base of a dechat server.

Returns the documents (runbooks, model docs, notes) most similar to the
query text. These are the same documents the server adds to chat prompts.
Requires a server started with a [rag] provider.

Use --quiet to print only document sources, one per line.

Examples:
  dechat search "how is revenue attributed"
  dechat search "late arriving events" --top 10
  dechat search "airflow retries" --quiet`

const searchShortDesc string = "Search the knowledge base"

func NewSearchCmd() *cobra.Command {
	cmder := &searchCommander{}

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: searchShortDesc,
		Long:  searchLongDesc,
		Args:  cobra.ExactArgs(1),
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			v, err := cmdutil.LoadViper(cmd, config.FlagTarget)
			if err != nil {
				return err
			}

			cmder.target = v.GetString("client.target")
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cmder.query = args[0]
			return cmder.run(cmd)
		},
	}

	cmd.Flags().IntVarP(&cmder.topK, "top", "k", 5, "Number of results to return")
	cmd.Flags().BoolVarP(&cmder.quiet, "quiet", "q", false, "Output only document sources, one per line")
	config.AddStringFlag(cmd, config.Flags, config.FlagTarget, &cmder.target)

	return cmd
}

func (c *searchCommander) run(cmd *cobra.Command) error {
	client, err := cmdutil.NewClient(cmd, c.target)
	if err != nil {
		return err
	}

	output, err := client.Search(cmd.Context(), c.query, c.topK)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()

	if output.Count == 0 {
		if !c.quiet {
			fmt.Fprintln(out, "No results found.")
		}
		return nil
	}

	if c.quiet {
		for _, result := range output.Results {
			fmt.Fprintln(out, result.Source)
		}
		return nil
	}

	fmt.Fprintf(out, "\n%s %s\n\n",
		headerStyle.Render("Search Results for:"),
		sourceStyle.Render(fmt.Sprintf("%q", output.Query)),
	)

	for i, result := range output.Results {
		printResult(out, i+1, result)
	}

	return nil
}

func printResult(w io.Writer, rank int, result api.SearchResult) {
	fmt.Fprintf(w, "  %s  %s  %s\n",
		rankStyle.Render(fmt.Sprintf("#%d", rank)),
		scoreStyle.Render(fmt.Sprintf("score: %.4f", result.Score)),
		sourceStyle.Render(result.Source),
	)

	preview := strings.ReplaceAll(result.Preview, "\n", " ")
	fmt.Fprintf(w, "  %s\n\n", previewStyle.Render(utils.Truncate(preview, 100)))
}
