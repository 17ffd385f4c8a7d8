// Package contextmgr decides which messages of a conversation are submitted to a
// bounded-context model on each turn, compressing older history into a summary
// when the estimated size crosses the model's threshold.
package contextmgr

import "unicode/utf8"

// MessageOverhead is the token cost charged per message for role and framing.
const MessageOverhead = 4

// EstimateTokens approximates the token count of text as ceil(chars / 3.5).
// It is a character heuristic, not a tokenizer.
func EstimateTokens(text string) int {
	n := utf8.RuneCountInString(text)
	if n == 0 {
		return 0
	}
	// ceil(n / 3.5) == ceil(2n / 7)
	return (2*n + 6) / 7
}

// EstimateMessagesTokens sums EstimateTokens over every message's content plus
// MessageOverhead per message.
func EstimateMessagesTokens(messages []Message) int {
	total := 0
	for i := range messages {
		total += EstimateTokens(messages[i].Content) + MessageOverhead
	}
	return total
}
