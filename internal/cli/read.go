package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/pelusa-v/pelusa-chat-client/internal/app"
	"github.com/pelusa-v/pelusa-chat-client/internal/chat"
)

func init() {
	rootCmd.AddCommand(readCmd)
}

var readCmd = &cobra.Command{
	Use:   "read [room-id]",
	Short: "Print a room's messages",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx, cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		if _, err := a.Sync.LoadRoom(ctx, args[0]); err != nil {
			return err
		}
		printView(os.Stdout, a.View(args[0]))
		return nil
	},
}

func printView(w io.Writer, v app.RoomView) {
	if v.Pinned != nil {
		fmt.Fprint(w, "📌 ")
		printMessage(w, *v.Pinned)
	}
	for _, m := range v.Visible {
		printMessage(w, m)
	}
	if v.Draft != "" {
		fmt.Fprintf(w, "(draft) %s\n", v.Draft)
	}
}

func printMessage(w io.Writer, m chat.Message) {
	sender := m.SenderDisplayName
	if sender == "" {
		sender = m.SenderID
	}
	text := m.DisplayText()
	if m.IsHidden {
		text = "(hidden)"
	} else if m.Type != chat.TypeText && !m.IsRecalled {
		text = fmt.Sprintf("[%s] %s", m.Type, text)
	}
	fmt.Fprintf(w, "%-12s %s: %s", humanize.Time(m.SentAt), sender, text)
	for _, r := range m.Reactions {
		fmt.Fprintf(w, " %s", r.Emoji)
	}
	fmt.Fprintln(w)
}
