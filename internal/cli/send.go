package cli

import (
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pelusa-v/pelusa-chat-client/internal/chat"
)

func init() {
	sendCmd.Flags().String("reply", "", "id of the message to reply to")
	sendCmd.Flags().String("file", "", "send a media file instead of text")
	rootCmd.AddCommand(sendCmd)
}

var sendCmd = &cobra.Command{
	Use:   "send [room-id] [text...]",
	Short: "Send a message to a room",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx, cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		roomID := args[0]
		if _, err := a.Sync.LoadRoom(ctx, roomID); err != nil {
			return err
		}

		if path, _ := cmd.Flags().GetString("file"); path != "" {
			data, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("read %s: %w", path, err)
			}
			m := chat.Media{
				Name:        filepath.Base(path),
				ContentType: mime.TypeByExtension(filepath.Ext(path)),
				Data:        data,
			}
			if err := a.Actions.SendMedia(ctx, roomID, m); err != nil {
				return err
			}
		} else {
			reply, _ := cmd.Flags().GetString("reply")
			if err := a.Actions.SendText(ctx, roomID, strings.Join(args[1:], " "), reply); err != nil {
				return err
			}
		}
		printView(os.Stdout, a.View(roomID))
		return nil
	},
}
