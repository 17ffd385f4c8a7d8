package cli

import (
	"encoding/json"
	"errors"
	"fmt"

	"chatwindow/internal/contextmgr"
	"chatwindow/internal/storage"

	"github.com/spf13/cobra"
)

// StatusReport is the output of the status command.
type StatusReport struct {
	ConversationID string             `json:"conversation_id"`
	Title          string             `json:"title"`
	Model          string             `json:"model"`
	Messages       int                `json:"messages"`
	Profile        contextmgr.Profile `json:"profile"`
	Status         contextmgr.Status  `json:"status"`
	Summaries      int                `json:"summaries"`
	LastSummary    string             `json:"last_summary,omitempty"`
}

// NewStatusCmd creates the status command.
func NewStatusCmd() *cobra.Command {
	var (
		conversationID string
		model          string
		jsonOutput     bool
	)

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show context window usage of a conversation",
		Example: `  chatwindow status
  chatwindow status --conversation 5f0c... --model qwen2.5:0.5b --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			report, err := buildStatus(GetCLIContext(cmd), conversationID, model)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if jsonOutput {
				data, err := json.MarshalIndent(report, "", "  ")
				if err != nil {
					return err
				}
				fmt.Fprintln(out, string(data))
				return nil
			}

			fmt.Fprintf(out, "Conversation: %s %s\n", report.ConversationID, orDash(report.Title))
			fmt.Fprintf(out, "Model:        %s (limit %d, target %d)\n", report.Model, report.Profile.ContextLimit, report.Profile.Target())
			fmt.Fprintf(out, "Messages:     %d\n", report.Messages)
			fmt.Fprintf(out, "Usage:        %s\n", formatStatus(report.Status))
			fmt.Fprintf(out, "Summaries:    %d\n", report.Summaries)
			if report.LastSummary != "" {
				fmt.Fprintf(out, "\nLast summary:\n%s\n", report.LastSummary)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&conversationID, "conversation", "", "conversation ID (default: last used)")
	cmd.Flags().StringVarP(&model, "model", "m", "", "model profile to measure against (default: conversation model)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	return cmd
}

func buildStatus(cliCtx *CLIContext, conversationID, model string) (*StatusReport, error) {
	conv, err := cliCtx.ResolveConversation(conversationID)
	if err != nil {
		return nil, err
	}
	db, err := cliCtx.GetStorage()
	if err != nil {
		return nil, err
	}
	stored, err := db.GetMessages(conv.ID, 0)
	if err != nil {
		return nil, err
	}
	profiles, err := cliCtx.Profiles()
	if err != nil {
		return nil, err
	}

	if model == "" {
		model = conv.Model
	}
	if model == "" {
		model = cliCtx.Config.Ollama.Model
	}

	compactor := contextmgr.NewCompactor(profiles)
	report := &StatusReport{
		ConversationID: conv.ID,
		Title:          conv.Title,
		Model:          model,
		Messages:       len(stored),
		Profile:        profiles.Lookup(model),
		Status:         compactor.Status(storage.ContextMessages(stored), model),
	}

	if report.Summaries, err = db.CountSummaries(conv.ID); err != nil {
		return nil, err
	}
	latest, err := db.LatestSummary(conv.ID)
	switch {
	case err == nil:
		report.LastSummary = latest.Summary
	case !errors.Is(err, storage.ErrNotFound):
		return nil, err
	}
	return report, nil
}
