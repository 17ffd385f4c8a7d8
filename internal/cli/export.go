package cli

import (
	"fmt"
	"os"
	"time"

	"chatwindow/internal/export"
	"chatwindow/internal/storage"

	"github.com/spf13/cobra"
)

// NewExportCmd creates the export command.
func NewExportCmd() *cobra.Command {
	var (
		conversationID string
		output         string
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export a conversation as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx := GetCLIContext(cmd)
			conv, err := cliCtx.ResolveConversation(conversationID)
			if err != nil {
				return err
			}
			db, err := cliCtx.GetStorage()
			if err != nil {
				return err
			}
			stored, err := db.GetMessages(conv.ID, 0)
			if err != nil {
				return err
			}

			snap := export.Build(storage.ContextMessages(stored), map[string]any{
				"conversationId": conv.ID,
				"chatTitle":      conv.Title,
				"model":          conv.Model,
			}, time.Now())

			data, err := snap.JSON()
			if err != nil {
				return err
			}

			if output == "" {
				_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
				return err
			}
			if err := os.WriteFile(output, append(data, '\n'), 0o644); err != nil {
				return fmt.Errorf("write export: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Exported %d messages to %s\n", snap.MessageCount, output)
			return nil
		},
	}

	cmd.Flags().StringVar(&conversationID, "conversation", "", "conversation ID (default: last used)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default: stdout)")
	return cmd
}
