// Package chatcmder provides the chat command, an interactive terminal
// client for the dechat server.
package chatcmder

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/papercomputeco/dechat/cmd/dechat/cmdutil"
	"github.com/papercomputeco/dechat/pkg/chatclient"
	"github.com/papercomputeco/dechat/pkg/cliui"
	"github.com/papercomputeco/dechat/pkg/config"
	"github.com/papercomputeco/dechat/pkg/dotdir"
	"github.com/papercomputeco/dechat/pkg/render"
	"github.com/papercomputeco/dechat/pkg/reply"
)

var (
	userPrompt      = lipgloss.NewStyle().Foreground(lipgloss.Color("82")).Bold(true).Render("you> ")
	assistantPrompt = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Render("assistant> ")
)

type chatCommander struct {
	target    string
	framing   string
	render    string
	newChat   bool
	configDir string

	in    io.Reader
	out   io.Writer
	tty   bool
	width int

	client   *chatclient.Client
	renderer render.Renderer
	sessions *dotdir.Manager
	logger   *slog.Logger

	conv      chatclient.Conversation
	lastReply string

	// queryErrors holds the last /run error per SQL block, for /fix.
	queryErrors map[int]string

	// fixedQueries replaces SQL blocks of the last reply after /fix.
	fixedQueries map[int]string
}

var chatFlags = []string{config.FlagTarget, config.FlagFraming, config.FlagRender}

const chatLongDesc string = `Start an interactive chat session with the dechat server.

Replies stream in as the model writes them. SQL code blocks in the last
reply can be executed against the warehouse and repaired when they fail.

The conversation id is saved in .dechat/session.json, so running
"dechat chat" again resumes the same conversation. Use --new or /new to
start over.

Commands inside the session:
  /run N     Run the N-th SQL block of the last reply
  /fix N     Ask the model to fix the N-th SQL block after a failed /run
  /copy N    Print the N-th code block of the last reply, unformatted
  /new       Start a new conversation
  /exit      Leave the session

With a message argument, dechat chat sends it, prints the reply and exits.

Examples:
  dechat chat
  dechat chat --new --target http://warehouse-box:8090
  dechat chat "count orders per day last week" --render plain`

const chatShortDesc string = "Interactive chat with the dechat server"

func NewChatCmd() *cobra.Command {
	cmder := &chatCommander{}

	cmd := &cobra.Command{
		Use:   "chat [message]",
		Short: chatShortDesc,
		Long:  chatLongDesc,
		Args:  cobra.MaximumNArgs(1),
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			v, err := cmdutil.LoadViper(cmd, chatFlags...)
			if err != nil {
				return err
			}

			cmder.target = v.GetString("client.target")
			cmder.framing = v.GetString("client.framing")
			cmder.render = v.GetString("client.render")
			cmder.configDir, _ = cmd.Flags().GetString("config-dir")
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cmder.logger, err = cmdutil.NewLogger(cmd)
			if err != nil {
				return err
			}

			cmder.in = cmd.InOrStdin()
			cmder.out = cmd.OutOrStdout()
			if f, ok := cmder.out.(*os.File); ok {
				cmder.tty = term.IsTerminal(int(f.Fd()))
			}

			if err := cmder.setup(); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			if len(args) == 1 {
				return cmder.send(ctx, args[0])
			}
			return cmder.repl(ctx)
		},
	}

	config.AddStringFlag(cmd, config.Flags, config.FlagTarget, &cmder.target)
	config.AddStringFlag(cmd, config.Flags, config.FlagFraming, &cmder.framing)
	config.AddStringFlag(cmd, config.Flags, config.FlagRender, &cmder.render)
	cmd.Flags().BoolVar(&cmder.newChat, "new", false, "Start a new conversation instead of resuming the saved one")

	return cmd
}

// setup builds the client and renderer and restores the saved session.
func (c *chatCommander) setup() error {
	framing, ok := reply.ParseFraming(c.framing)
	if !ok {
		return fmt.Errorf("invalid framing %q (available: auto, line, embedded)", c.framing)
	}

	kind := render.Kind(c.render)
	if !c.tty && (kind == render.KindTerminal || kind == "") {
		kind = render.KindPlain
	}

	if f, ok := c.out.(*os.File); ok && c.tty {
		if w, _, err := term.GetSize(int(f.Fd())); err == nil {
			c.width = w
		}
	}

	r, err := render.New(kind, c.width-2)
	if err != nil {
		return err
	}
	c.renderer = r

	c.client = chatclient.New(chatclient.Config{Target: c.target, Framing: framing}, c.logger)
	c.queryErrors = map[int]string{}
	c.fixedQueries = map[int]string{}

	if c.sessions == nil {
		c.sessions = dotdir.NewManager()
	}

	if c.newChat {
		return c.sessions.ClearSession(c.configDir)
	}

	s, err := c.sessions.LoadSession(c.configDir)
	if err != nil {
		c.logger.Warn("ignoring unreadable session", "error", err)
		return nil
	}
	if s != nil {
		c.conv = chatclient.Conversation{ChatID: s.ChatID, Scope: s.Scope}
		c.logger.Debug("resuming conversation", "chat_id", s.ChatID)
	}

	return nil
}

func (c *chatCommander) repl(ctx context.Context) error {
	c.printBanner()

	scanner := bufio.NewScanner(c.in)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	for {
		fmt.Fprint(c.out, userPrompt)

		if !scanner.Scan() {
			fmt.Fprintln(c.out)
			return scanner.Err()
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "/") {
			quit, err := c.command(ctx, line)
			if err != nil {
				fmt.Fprintf(c.out, "  %s %v\n\n", cliui.FailMark, err)
			}
			if quit {
				return nil
			}
			continue
		}

		if err := c.send(ctx, line); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			fmt.Fprintf(c.out, "\n  %s %v\n\n", cliui.FailMark, err)
		}
	}
}

func (c *chatCommander) printBanner() {
	fmt.Fprintf(c.out, "\n  %s %s\n", cliui.KeyStyle.Render("dechat"), cliui.DimStyle.Render(c.target))
	if c.conv.ChatID != "" {
		fmt.Fprintf(c.out, "  %s %s\n", cliui.DimStyle.Render("resuming"), cliui.IDStyle.Render(c.conv.ChatID))
	}
	fmt.Fprintf(c.out, "  %s\n\n", cliui.DimStyle.Render("/run N, /fix N, /copy N, /new, /exit"))
}

// send posts one message and displays the reply.
func (c *chatCommander) send(ctx context.Context, message string) error {
	display := newStreamDisplay(c.out, c.renderer, c.tty, c.width)

	fmt.Fprint(c.out, assistantPrompt)

	rep, conv, err := c.client.Chat(ctx, c.conv, message, display.update)
	if err != nil {
		display.abort()
		return err
	}

	if rep.Streamed {
		display.finish(rep.Body)
	} else {
		display.whole(rep.Scope, rep.Body)
	}

	c.conv = conv
	c.lastReply = rep.Body
	clear(c.queryErrors)
	clear(c.fixedQueries)

	if conv.ChatID != "" {
		if err := c.sessions.SaveSession(&dotdir.Session{ChatID: conv.ChatID, Scope: conv.Scope}, c.configDir); err != nil {
			c.logger.Warn("could not save session", "error", err)
		}
	}

	return nil
}
