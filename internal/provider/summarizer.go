package provider

import (
	"context"
	"fmt"
)

// SummaryOptions are the generation parameters of summarization calls.
type SummaryOptions struct {
	Temperature float64 `mapstructure:"summary_temperature" yaml:"summary_temperature"`
	MaxTokens   int     `mapstructure:"summary_max_tokens" yaml:"summary_max_tokens"`
}

// DefaultSummaryOptions returns a low temperature and a small token cap.
func DefaultSummaryOptions() SummaryOptions {
	return SummaryOptions{Temperature: 0.3, MaxTokens: 300}
}

// Summarizer returns a function that answers a summarization prompt with one
// non-streaming Chat call to p. Its signature matches contextmgr.SummarizeFunc.
func Summarizer(p Provider, model string, opts SummaryOptions) func(ctx context.Context, prompt string) (string, error) {
	return func(ctx context.Context, prompt string) (string, error) {
		resp, err := p.Chat(ctx, ChatRequest{
			Model:       model,
			Messages:    []Message{{Role: "user", Content: prompt}},
			Temperature: opts.Temperature,
			MaxTokens:   opts.MaxTokens,
		})
		if err != nil {
			return "", fmt.Errorf("summarize: %w", err)
		}
		if resp == nil {
			return "", NewProviderError(ErrCodeInvalidResponse, "empty response", p.Name(), false)
		}
		return resp.Content, nil
	}
}
