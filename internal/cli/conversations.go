package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

// NewConversationsCmd creates the conversations command.
func NewConversationsCmd() *cobra.Command {
	var (
		limit      int
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:     "conversations",
		Aliases: []string{"ls"},
		Short:   "List stored conversations",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := GetCLIContext(cmd).GetStorage()
			if err != nil {
				return err
			}
			convs, err := db.ListConversations(limit)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if jsonOutput {
				data, err := json.MarshalIndent(convs, "", "  ")
				if err != nil {
					return err
				}
				fmt.Fprintln(out, string(data))
				return nil
			}

			if len(convs) == 0 {
				fmt.Fprintln(out, "No conversations yet. Start one with: chatwindow chat")
				return nil
			}

			tw := newTable(out)
			fmt.Fprintln(tw, "ID\tTITLE\tMODEL\tMESSAGES\tUPDATED")
			for _, c := range convs {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n", c.ID, orDash(c.Title), orDash(c.Model), c.MessageCount, formatTime(c.UpdatedAt))
			}
			return tw.Flush()
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum number of conversations (0 for all)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	return cmd
}
