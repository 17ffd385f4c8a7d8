package cli

import (
	"encoding/json"
	"fmt"

	"chatwindow/internal/contextmgr"

	"github.com/spf13/cobra"
)

// NewProfilesCmd creates the profiles command.
func NewProfilesCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "profiles",
		Short: "List the resolved model profiles",
		Long: `List the context window profile applied to each known model.

Entries come from the built-in table, the profiles section of the config file
and context.profiles_file, in increasing precedence. Models not listed use the
default profile.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			table, err := GetCLIContext(cmd).Profiles()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if jsonOutput {
				entries := map[string]contextmgr.Profile{"*": table.Base()}
				for _, id := range table.Models() {
					entries[id] = table.Lookup(id)
				}
				data, err := json.MarshalIndent(entries, "", "  ")
				if err != nil {
					return err
				}
				fmt.Fprintln(out, string(data))
				return nil
			}

			tw := newTable(out)
			fmt.Fprintln(tw, "MODEL\tLIMIT\tTARGET\tSUMMARIZE\tNEAR LIMIT\tRECENT")
			row := func(name string, p contextmgr.Profile) {
				fmt.Fprintf(tw, "%s\t%d\t%d\t%d%%\t%d%%\t%d\n", name, p.ContextLimit, p.Target(), p.SummarizePercent, p.NearLimitPercent, p.RecentMessages)
			}
			row("(default)", table.Base())
			for _, id := range table.Models() {
				row(id, table.Lookup(id))
			}
			return tw.Flush()
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	return cmd
}
