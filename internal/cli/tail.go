package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(tailCmd)
}

var tailCmd = &cobra.Command{
	Use:   "tail [room-id]",
	Short: "Follow a room live",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		a, err := newApp(ctx, cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		roomID := args[0]
		updates := make(chan struct{}, 1)
		unsubscribe := a.Sync.Subscribe(func(id string) {
			if id != roomID {
				return
			}
			select {
			case updates <- struct{}{}:
			default:
			}
		})
		defer unsubscribe()

		view, err := a.EnterRoom(ctx, roomID)
		if err != nil {
			return err
		}
		defer a.LeaveRoom(roomID)
		printView(os.Stdout, view)

		seen := len(view.Visible)
		for {
			select {
			case <-ctx.Done():
				if ctx.Err() == context.Canceled {
					return nil
				}
				return ctx.Err()
			case <-updates:
				v := a.View(roomID)
				if seen > len(v.Visible) {
					seen = 0
				}
				for _, m := range v.Visible[seen:] {
					printMessage(os.Stdout, m)
				}
				seen = len(v.Visible)
			}
		}
	},
}
