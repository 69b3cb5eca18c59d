// Package chatscmder provides the chats command for browsing and deleting
// conversations stored by a dechat server.
package chatscmder

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/dechat/cmd/dechat/cmdutil"
	"github.com/papercomputeco/dechat/pkg/chatclient"
	"github.com/papercomputeco/dechat/pkg/cliui"
	"github.com/papercomputeco/dechat/pkg/config"
	"github.com/papercomputeco/dechat/pkg/utils"
)

type chatsCommander struct {
	target string
	client *chatclient.Client
}

const chatsLongDesc string = `List, show and delete conversations stored by the dechat server.

Without a subcommand, lists every conversation, most recent first.

Examples:
  dechat chats
  dechat chats show 5f0c3f0e-8d8f-4a4e-9d55-2f1b0c9a7e21
  dechat chats delete 5f0c3f0e-8d8f-4a4e-9d55-2f1b0c9a7e21`

const chatsShortDesc string = "Browse stored conversations"

func NewChatsCmd() *cobra.Command {
	cmder := &chatsCommander{}

	cmd := &cobra.Command{
		Use:   "chats",
		Short: chatsShortDesc,
		Long:  chatsLongDesc,
		Args:  cobra.NoArgs,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			v, err := cmdutil.LoadViper(cmd, config.FlagTarget)
			if err != nil {
				return err
			}

			cmder.client, err = cmdutil.NewClient(cmd, v.GetString("client.target"))
			return err
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmder.list(cmd)
		},
	}

	config.AddPersistentStringFlag(cmd, config.Flags, config.FlagTarget, &cmder.target)

	cmd.AddCommand(&cobra.Command{
		Use:   "show <chat-id>",
		Short: "Print the messages of a conversation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmder.show(cmd, args[0])
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "delete <chat-id>",
		Short: "Delete a conversation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmder.delete(cmd, args[0])
		},
	})

	return cmd
}

func (c *chatsCommander) list(cmd *cobra.Command) error {
	chats, err := c.client.ListChats(cmd.Context())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(chats) == 0 {
		fmt.Fprintf(out, "  %s No conversations yet.\n", cliui.DimStyle.Render("●"))
		return nil
	}

	fmt.Fprintln(out)
	for _, chat := range chats {
		fmt.Fprintf(out, "  %s  %s\n",
			cliui.IDStyle.Render(chat.ID),
			cliui.ValueStyle.Render(utils.Truncate(chat.Title, 60)),
		)
		fmt.Fprintf(out, "  %s\n",
			cliui.DimStyle.Render(fmt.Sprintf("%s messages, updated %s",
				strconv.Itoa(chat.MessageCount),
				chat.UpdatedAt.Local().Format("2006-01-02 15:04"),
			)),
		)
	}
	fmt.Fprintln(out)

	return nil
}

func (c *chatsCommander) show(cmd *cobra.Command, chatID string) error {
	messages, err := c.client.GetChat(cmd.Context(), chatID)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "\n  %s  %s\n\n", cliui.KeyStyle.Render("Chat:"), cliui.IDStyle.Render(chatID))

	for _, msg := range messages {
		fmt.Fprintf(out, "  %s %s\n", cliui.NameStyle.Render(msg.Role), cliui.ScopeBadge(msg.Scope))
		writeIndented(out, msg.Content)
		fmt.Fprintln(out)
	}

	return nil
}

func (c *chatsCommander) delete(cmd *cobra.Command, chatID string) error {
	if err := c.client.DeleteChat(cmd.Context(), chatID); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "  %s deleted %s\n", cliui.SuccessMark, cliui.IDStyle.Render(chatID))
	return nil
}

func writeIndented(w io.Writer, s string) {
	for _, line := range strings.Split(strings.TrimRight(s, "\n"), "\n") {
		fmt.Fprintf(w, "    %s\n", line)
	}
}
