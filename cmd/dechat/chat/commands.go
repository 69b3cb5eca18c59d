package chatcmder

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/papercomputeco/dechat/pkg/cliui"
	"github.com/papercomputeco/dechat/pkg/render"
)

var errNoReply = errors.New("no assistant reply yet")

const helpText = `  /run N     run the N-th SQL block of the last reply
  /fix N     ask the model to repair the N-th SQL block after /run failed
  /copy N    print the N-th code block of the last reply, unformatted
  /new       start a new conversation
  /exit      leave the session
`

// command handles a slash command. quit is true when the session should end.
func (c *chatCommander) command(ctx context.Context, line string) (quit bool, err error) {
	fields := strings.Fields(line)
	name, args := fields[0], fields[1:]

	switch name {
	case "/exit", "/quit":
		return true, nil

	case "/help":
		fmt.Fprint(c.out, helpText)
		fmt.Fprintln(c.out)
		return false, nil

	case "/new":
		return false, c.reset()

	case "/run":
		n, err := blockNumber(args)
		if err != nil {
			return false, err
		}
		return false, c.runBlock(ctx, n)

	case "/fix":
		n, err := blockNumber(args)
		if err != nil {
			return false, err
		}
		return false, c.fixBlock(ctx, n)

	case "/copy":
		n, err := blockNumber(args)
		if err != nil {
			return false, err
		}
		return false, c.copyBlock(n)

	default:
		return false, fmt.Errorf("unknown command %s (try /help)", name)
	}
}

func blockNumber(args []string) (int, error) {
	if len(args) == 0 {
		return 1, nil
	}

	n, err := strconv.Atoi(args[0])
	if err != nil || n < 1 {
		return 0, fmt.Errorf("invalid block number %q", args[0])
	}
	return n, nil
}

func (c *chatCommander) reset() error {
	c.conv.ChatID = ""
	c.conv.Scope = ""
	c.lastReply = ""
	clear(c.queryErrors)
	clear(c.fixedQueries)

	if err := c.sessions.ClearSession(c.configDir); err != nil {
		return err
	}

	fmt.Fprintf(c.out, "  %s new conversation\n\n", cliui.SuccessMark)
	return nil
}

// sqlQuery returns the n-th SQL block of the last reply, or its fixed
// version when /fix produced one.
func (c *chatCommander) sqlQuery(n int) (string, error) {
	if c.lastReply == "" {
		return "", errNoReply
	}

	if fixed, ok := c.fixedQueries[n]; ok {
		return fixed, nil
	}

	blocks := render.SQLBlocks(c.lastReply)
	if n > len(blocks) {
		return "", fmt.Errorf("the last reply has %d SQL block(s)", len(blocks))
	}
	return blocks[n-1].Code, nil
}

func (c *chatCommander) runBlock(ctx context.Context, n int) error {
	query, err := c.sqlQuery(n)
	if err != nil {
		return err
	}

	res, err := c.client.RunSQL(ctx, query)
	if err != nil {
		c.queryErrors[n] = err.Error()
		fmt.Fprintf(c.out, "  %s %v\n", cliui.FailMark, err)
		fmt.Fprintf(c.out, "  %s\n\n", cliui.DimStyle.Render(fmt.Sprintf("try /fix %d", n)))
		return nil
	}
	delete(c.queryErrors, n)

	if len(res.Columns) == 0 {
		fmt.Fprintf(c.out, "  %s %s\n\n", cliui.SuccessMark, res.Message)
		return nil
	}

	fmt.Fprintln(c.out, cliui.ResultTable(res.Columns, res.Rows))

	summary := fmt.Sprintf("%d row(s)", len(res.Rows))
	if res.Truncated {
		summary += ", truncated"
	}
	fmt.Fprintf(c.out, "  %s\n\n", cliui.DimStyle.Render(summary))
	return nil
}

func (c *chatCommander) fixBlock(ctx context.Context, n int) error {
	query, err := c.sqlQuery(n)
	if err != nil {
		return err
	}

	errMsg, ok := c.queryErrors[n]
	if !ok {
		return fmt.Errorf("block %d has not failed (use /run %d first)", n, n)
	}

	fixed, err := c.client.FixSQL(ctx, query, errMsg)
	if err != nil {
		return err
	}

	c.fixedQueries[n] = fixed
	delete(c.queryErrors, n)

	out, err := c.renderer.Render("```sql\n" + fixed + "\n```")
	if err != nil {
		out = fixed
	}
	fmt.Fprintf(c.out, "%s\n", strings.TrimRight(out, "\n"))
	fmt.Fprintf(c.out, "  %s\n\n", cliui.DimStyle.Render(fmt.Sprintf("/run %d runs the fixed query", n)))
	return nil
}

func (c *chatCommander) copyBlock(n int) error {
	if c.lastReply == "" {
		return errNoReply
	}

	blocks := render.CodeBlocks(c.lastReply)
	if n > len(blocks) {
		return fmt.Errorf("the last reply has %d code block(s)", len(blocks))
	}

	fmt.Fprint(c.out, blocks[n-1].Code)
	if !strings.HasSuffix(blocks[n-1].Code, "\n") {
		fmt.Fprintln(c.out)
	}
	fmt.Fprintln(c.out)
	return nil
}
