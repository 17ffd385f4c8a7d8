package contextmgr

import "strings"

// SummaryPrefix starts the content of the system message that replaces
// compressed history.
const SummaryPrefix = "Previous conversation summary: "

const summaryInstructions = `Summarize the following conversation in 200 words or fewer. Preserve the key facts, the user's stated preferences, important context, and any decisions that were made, so the conversation can continue without the original messages.

Conversation:
`

// BuildSummaryPrompt renders the fixed summarization prompt for older messages,
// one "<Role>: <content>" line per message.
func BuildSummaryPrompt(older []Message) string {
	size := len(summaryInstructions) + len("\nSummary:")
	for i := range older {
		size += len(older[i].Role) + len(older[i].Content) + 3
	}

	var sb strings.Builder
	sb.Grow(size)
	sb.WriteString(summaryInstructions)
	for i := range older {
		sb.WriteString(older[i].Role.Title())
		sb.WriteString(": ")
		sb.WriteString(older[i].Content)
		sb.WriteByte('\n')
	}
	sb.WriteString("\nSummary:")
	return sb.String()
}
