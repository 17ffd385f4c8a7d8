package contextmgr

import (
	"context"
	"strings"
	"time"

	"chatwindow/pkg/logger"

	"github.com/rs/zerolog"
)

// SummarizeFunc performs a single non-streaming completion for prompt and
// returns the model's answer. Generation parameters are fixed by the caller.
type SummarizeFunc func(ctx context.Context, prompt string) (string, error)

// Outcome names the path Prepare took.
type Outcome string

// Prepare outcomes.
const (
	// OutcomePassthrough means the history fit under the target and was returned as-is.
	OutcomePassthrough Outcome = "passthrough"
	// OutcomeShortHistory means the history was over target but too short to
	// compress, so it was returned whole without calling summarize.
	OutcomeShortHistory Outcome = "short_history"
	// OutcomeSummarized means older messages were replaced by a summary.
	OutcomeSummarized Outcome = "summarized"
	// OutcomeFallback means summarization failed and only the recent window was kept.
	OutcomeFallback Outcome = "fallback"
)

// Result is the message set to submit for a turn. Summary is empty unless
// Summarized is set.
type Result struct {
	Messages   []Message
	Summarized bool
	Summary    string
	Outcome    Outcome
}

// Compactor applies the compression policy against a profile table.
// It holds no per-conversation state and is safe to share between managers.
type Compactor struct {
	profiles *Profiles
	recorder Recorder
	logger   zerolog.Logger
	now      func() time.Time
}

// NewCompactor creates a Compactor. A nil table uses DefaultProfiles.
func NewCompactor(profiles *Profiles) *Compactor {
	if profiles == nil {
		profiles = DefaultProfiles()
	}
	return &Compactor{
		profiles: profiles,
		recorder: nopRecorder{},
		logger:   logger.Component("contextmgr"),
		now:      time.Now,
	}
}

// SetRecorder sets the metrics recorder. nil disables recording.
func (c *Compactor) SetRecorder(r Recorder) {
	if r == nil {
		r = nopRecorder{}
	}
	c.recorder = r
}

// SetLogger replaces the compactor's logger.
func (c *Compactor) SetLogger(l zerolog.Logger) {
	c.logger = l
}

// Profiles returns the table the compactor resolves models against.
func (c *Compactor) Profiles() *Profiles {
	return c.profiles
}

// Status reports window usage of messages for modelID.
func (c *Compactor) Status(messages []Message, modelID string) Status {
	return StatusFor(messages, c.profiles.Lookup(modelID))
}

// Prepare returns the messages to submit for modelID.
//
// Histories at or under the profile target come back unchanged. Longer ones
// keep the last RecentMessages verbatim and replace everything before them with
// a system message holding a summary produced by summarize. If there is nothing
// before the recent window, or summarize fails, only the recent window is
// returned. Prepare never fails: summarization errors are logged and dropped.
func (c *Compactor) Prepare(ctx context.Context, messages []Message, modelID string, summarize SummarizeFunc) Result {
	profile := c.profiles.Lookup(modelID)
	tokens := EstimateMessagesTokens(messages)
	usage := percentOf(tokens, profile.ContextLimit)

	if tokens <= profile.Target() {
		c.recorder.ObservePrepare(modelID, string(OutcomePassthrough), usage)
		return Result{Messages: messages, Outcome: OutcomePassthrough}
	}

	keep := min(profile.RecentMessages, len(messages))
	split := len(messages) - keep
	older, recent := messages[:split], messages[split:]

	if len(older) == 0 {
		c.logger.Debug().
			Str("model", modelID).
			Int("tokens", tokens).
			Int("target", profile.Target()).
			Int("messages", len(messages)).
			Msg("history over target but too short to compress")
		c.recorder.ObservePrepare(modelID, string(OutcomeShortHistory), usage)
		return Result{Messages: recent, Outcome: OutcomeShortHistory}
	}

	summary, err := c.summarize(ctx, modelID, older, summarize)
	if err != nil {
		c.logger.Warn().
			Err(err).
			Str("model", modelID).
			Int("tokens", tokens).
			Int("dropped", len(older)).
			Msg("summarization failed, keeping recent window only")
		c.recorder.ObservePrepare(modelID, string(OutcomeFallback), usage)
		out := make([]Message, len(recent))
		copy(out, recent)
		return Result{Messages: out, Outcome: OutcomeFallback}
	}

	out := make([]Message, 0, 1+len(recent))
	out = append(out, Message{
		Role:      RoleSystem,
		Content:   SummaryPrefix + summary,
		Timestamp: c.now(),
	})
	out = append(out, recent...)

	c.logger.Info().
		Str("model", modelID).
		Int("tokens_before", tokens).
		Int("tokens_after", EstimateMessagesTokens(out)).
		Int("summarized_messages", len(older)).
		Msg("compressed conversation history")
	c.recorder.ObservePrepare(modelID, string(OutcomeSummarized), usage)

	return Result{
		Messages:   out,
		Summarized: true,
		Summary:    summary,
		Outcome:    OutcomeSummarized,
	}
}

// summarize runs the summarization call for older and normalizes its answer.
func (c *Compactor) summarize(ctx context.Context, modelID string, older []Message, fn SummarizeFunc) (string, error) {
	if fn == nil {
		return "", ErrNoSummarizer
	}

	start := c.now()
	summary, err := fn(ctx, BuildSummaryPrompt(older))
	c.recorder.ObserveSummarize(modelID, c.now().Sub(start), err)
	if err != nil {
		return "", err
	}

	summary = strings.TrimSpace(summary)
	if summary == "" {
		return "", ErrEmptySummary
	}
	return summary, nil
}
