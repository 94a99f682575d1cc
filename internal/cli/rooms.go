package cli

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(roomsCmd)
}

var roomsCmd = &cobra.Command{
	Use:   "rooms [query]",
	Short: "List rooms, optionally filtered by name",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx, cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		if _, err := a.Directory.ListRooms(ctx); err != nil {
			return err
		}
		query := ""
		if len(args) == 1 {
			query = args[0]
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tKIND\tUNREAD\tLAST")
		for _, r := range a.Directory.Filter(query) {
			kind := "direct"
			if r.IsGroup {
				kind = "group"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n", r.ID, r.DisplayName, kind, r.UnreadCount, oneLine(r.LastMessagePreview))
		}
		return w.Flush()
	},
}

func oneLine(s string) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if len(s) > 40 {
		return s[:37] + "..."
	}
	return s
}
