package cli

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func init() {
	membersCmd.Flags().String("kick", "", "remove this member")
	membersCmd.Flags().String("promote", "", "make this member an admin")
	membersCmd.Flags().String("demote", "", "take admin away from this member")
	rootCmd.AddCommand(membersCmd)
}

var membersCmd = &cobra.Command{
	Use:   "members [room-id]",
	Short: "Show or manage a group's members",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx, cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		roomID := args[0]
		if _, err := a.Directory.ListRooms(ctx); err != nil {
			return err
		}
		if _, err := a.Authority.Load(ctx, roomID); err != nil {
			return err
		}

		if id, _ := cmd.Flags().GetString("kick"); id != "" {
			err = a.Authority.Kick(ctx, roomID, id)
		} else if id, _ := cmd.Flags().GetString("promote"); id != "" {
			err = a.Authority.Promote(ctx, roomID, id)
		} else if id, _ := cmd.Flags().GetString("demote"); id != "" {
			err = a.Authority.Demote(ctx, roomID, id)
		}
		if err != nil {
			return err
		}

		g, _ := a.Authority.Group(roomID)
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tROLE\tADDED")
		for _, m := range g.Members {
			added := "-"
			if !m.AddedAt.IsZero() {
				added = humanize.Time(m.AddedAt)
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", m.UserID, m.DisplayName, g.RoleOf(m.UserID), added)
		}
		return w.Flush()
	},
}
