package contextmgr

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCompactor() *Compactor {
	c := NewCompactor(nil)
	c.SetLogger(zerolog.Nop())
	c.now = func() time.Time { return time.Date(2026, 5, 6, 7, 8, 9, 0, time.UTC) }
	return c
}

func TestCompactor_Status(t *testing.T) {
	c := NewCompactor(NewProfiles(Profile{ContextLimit: 100}, nil))

	tests := []struct {
		name      string
		chars     int
		current   int
		pct       int
		needs     bool
		nearLimit bool
	}{
		{"below threshold", 20, 10, 10, false, false},
		{"exactly at 70 is not over", 231, 70, 70, false, false},
		{"over summarize threshold", 234, 71, 71, true, false},
		{"over near limit", 304, 91, 91, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msgs := []Message{{Role: RoleUser, Content: strings.Repeat("a", tt.chars)}}
			got := c.Status(msgs, "whatever")
			assert.Equal(t, tt.current, got.Current)
			assert.Equal(t, 100, got.Max)
			assert.Equal(t, tt.pct, got.Percentage)
			assert.Equal(t, tt.needs, got.NeedsSummarization)
			assert.Equal(t, tt.nearLimit, got.IsNearLimit)
		})
	}
}

func TestCompactor_Status_UnknownModelUsesDefault(t *testing.T) {
	c := NewCompactor(nil)

	empty := c.Status(nil, "no-such-model")
	assert.Equal(t, Status{Current: 0, Max: DefaultContextLimit, Percentage: 0}, empty)

	msgs := makeHistory(10, 525)
	got := c.Status(msgs, "no-such-model")
	assert.Equal(t, 1540, got.Current)
	assert.Equal(t, DefaultContextLimit, got.Max)
	assert.Equal(t, 38, got.Percentage) // round(100*1540/4096) = round(37.6)
}

func TestCompactor_Prepare_BelowThresholdUnchanged(t *testing.T) {
	c := newTestCompactor()
	stub := &stubSummarizer{reply: "unused"}
	msgs := makeHistory(10, 525) // 1540 tokens, target 2867

	res := c.Prepare(context.Background(), msgs, "unknown-model", stub.Summarize)

	assert.False(t, res.Summarized)
	assert.Empty(t, res.Summary)
	assert.Equal(t, OutcomePassthrough, res.Outcome)
	require.Len(t, res.Messages, len(msgs))
	assert.Same(t, &msgs[0], &res.Messages[0], "passthrough must return the input slice")
	assert.Zero(t, stub.calls())

	// Same input twice yields the same result.
	again := c.Prepare(context.Background(), msgs, "unknown-model", stub.Summarize)
	assert.Equal(t, res, again)
}

func TestCompactor_Prepare_PassthroughDoesNotAllocate(t *testing.T) {
	c := newTestCompactor()
	msgs := makeHistory(10, 525)
	ctx := context.Background()

	allocs := testing.AllocsPerRun(100, func() {
		_ = c.Prepare(ctx, msgs, "unknown-model", nil)
	})
	assert.Zero(t, allocs)
}

func TestCompactor_Prepare_Summarizes(t *testing.T) {
	c := newTestCompactor()
	stub := &stubSummarizer{reply: "Summary text."}
	msgs := makeHistory(20, 525) // 3080 tokens > 2867

	res := c.Prepare(context.Background(), msgs, "unknown-model", stub.Summarize)

	require.True(t, res.Summarized)
	assert.Equal(t, OutcomeSummarized, res.Outcome)
	assert.Equal(t, "Summary text.", res.Summary)
	require.Len(t, res.Messages, 1+MinRecentMessages)

	first := res.Messages[0]
	assert.Equal(t, RoleSystem, first.Role)
	assert.Equal(t, "Previous conversation summary: Summary text.", first.Content)
	assert.Equal(t, time.Date(2026, 5, 6, 7, 8, 9, 0, time.UTC), first.Timestamp)
	assert.Equal(t, msgs[len(msgs)-MinRecentMessages:], res.Messages[1:])

	require.Equal(t, 1, stub.calls())
	prompt := stub.prompts[0]
	assert.Contains(t, prompt, "200 words")
	for _, m := range msgs[:len(msgs)-MinRecentMessages] {
		assert.Contains(t, prompt, m.Role.Title()+": "+m.Content)
	}
	for _, m := range msgs[len(msgs)-MinRecentMessages:] {
		assert.NotContains(t, prompt, m.Content, "recent messages must not be summarized")
	}
}

func TestCompactor_Prepare_TrimsSummary(t *testing.T) {
	c := newTestCompactor()
	stub := &stubSummarizer{reply: "\n  The user likes Go.  \n"}

	res := c.Prepare(context.Background(), makeHistory(20, 525), "unknown-model", stub.Summarize)

	require.True(t, res.Summarized)
	assert.Equal(t, "The user likes Go.", res.Summary)
	assert.Equal(t, SummaryPrefix+"The user likes Go.", res.Messages[0].Content)
}

func TestCompactor_Prepare_RepeatedCallsSummarizeEachTime(t *testing.T) {
	c := newTestCompactor()
	stub := &stubSummarizer{reply: "s"}
	msgs := makeHistory(20, 525)

	c.Prepare(context.Background(), msgs, "unknown-model", stub.Summarize)
	c.Prepare(context.Background(), msgs, "unknown-model", stub.Summarize)

	assert.Equal(t, 2, stub.calls())
}

func TestCompactor_Prepare_FallbackOnFailure(t *testing.T) {
	failures := map[string]SummarizeFunc{
		"error": func(context.Context, string) (string, error) {
			return "", errors.New("backend exploded")
		},
		"empty answer": func(context.Context, string) (string, error) {
			return "   ", nil
		},
		"nil summarizer": nil,
		"cancelled": func(ctx context.Context, _ string) (string, error) {
			<-ctx.Done()
			return "", ctx.Err()
		},
	}

	for name, fn := range failures {
		t.Run(name, func(t *testing.T) {
			c := newTestCompactor()
			msgs := makeHistory(20, 525)

			ctx, cancel := context.WithCancel(context.Background())
			if name == "cancelled" {
				cancel()
			}
			defer cancel()

			res := c.Prepare(ctx, msgs, "unknown-model", fn)

			assert.False(t, res.Summarized)
			assert.Empty(t, res.Summary)
			assert.Equal(t, OutcomeFallback, res.Outcome)
			require.Len(t, res.Messages, MinRecentMessages)
			assert.Equal(t, msgs[len(msgs)-MinRecentMessages:], res.Messages)

			// The result must not alias the caller's history.
			res.Messages[0].Content = "mutated"
			assert.NotEqual(t, "mutated", msgs[len(msgs)-MinRecentMessages].Content)
		})
	}
}

func TestCompactor_Prepare_ShortHeavyHistoryIsNotSummarized(t *testing.T) {
	c := newTestCompactor()
	stub := &stubSummarizer{reply: "unused"}
	msgs := makeHistory(3, 4000) // 3 * (1143+4) tokens, over target

	res := c.Prepare(context.Background(), msgs, "unknown-model", stub.Summarize)

	assert.False(t, res.Summarized)
	assert.Equal(t, OutcomeShortHistory, res.Outcome)
	assert.Equal(t, msgs, res.Messages)
	assert.Zero(t, stub.calls())
}

func TestCompactor_Prepare_ExactlyRecentWindow(t *testing.T) {
	c := newTestCompactor()
	stub := &stubSummarizer{reply: "unused"}
	msgs := makeHistory(MinRecentMessages, 2000)

	res := c.Prepare(context.Background(), msgs, "unknown-model", stub.Summarize)

	assert.Equal(t, OutcomeShortHistory, res.Outcome)
	assert.Len(t, res.Messages, MinRecentMessages)
	assert.Zero(t, stub.calls())
}

func TestCompactor_Prepare_UsesProfileOverrides(t *testing.T) {
	profiles := NewProfiles(DefaultProfile(), map[string]Profile{
		"small": {ContextLimit: 1000, SummarizePercent: 50, RecentMessages: 2},
	})
	c := NewCompactor(profiles)
	c.SetLogger(zerolog.Nop())
	stub := &stubSummarizer{reply: "short"}

	// 5 * (150+4) = 770 tokens: over 500 for "small", under 2867 for the default.
	msgs := makeHistory(5, 525)

	res := c.Prepare(context.Background(), msgs, "small", stub.Summarize)
	require.True(t, res.Summarized)
	assert.Len(t, res.Messages, 3)

	res = c.Prepare(context.Background(), msgs, "other", stub.Summarize)
	assert.Equal(t, OutcomePassthrough, res.Outcome)
}

func TestCompactor_Prepare_RecordsOutcomes(t *testing.T) {
	c := newTestCompactor()
	rec := &fakeRecorder{}
	c.SetRecorder(rec)
	ok := &stubSummarizer{reply: "done"}
	bad := &stubSummarizer{err: errors.New("nope")}

	c.Prepare(context.Background(), makeHistory(2, 10), "m", ok.Summarize)
	c.Prepare(context.Background(), makeHistory(20, 525), "m", ok.Summarize)
	c.Prepare(context.Background(), makeHistory(20, 525), "m", bad.Summarize)
	c.Prepare(context.Background(), makeHistory(2, 9000), "m", ok.Summarize)

	require.Len(t, rec.prepares, 4)
	assert.Equal(t, "passthrough", rec.prepares[0].outcome)
	assert.Equal(t, "summarized", rec.prepares[1].outcome)
	assert.Equal(t, 75, rec.prepares[1].usage) // round(100*3080/4096)
	assert.Equal(t, "fallback", rec.prepares[2].outcome)
	assert.Equal(t, "short_history", rec.prepares[3].outcome)

	require.Len(t, rec.summarizes, 2)
	assert.NoError(t, rec.summarizes[0])
	assert.Error(t, rec.summarizes[1])

	c.SetRecorder(nil)
	assert.NotPanics(t, func() {
		c.Prepare(context.Background(), makeHistory(2, 10), "m", nil)
	})
}

func TestBuildSummaryPrompt(t *testing.T) {
	prompt := BuildSummaryPrompt([]Message{
		{Role: RoleUser, Content: "I prefer tabs."},
		{Role: RoleAssistant, Content: "Noted."},
		{Role: RoleSystem, Content: "Be brief."},
	})

	assert.Contains(t, prompt, "User: I prefer tabs.\nAssistant: Noted.\nSystem: Be brief.\n")
	assert.Contains(t, prompt, "preferences")
	assert.Contains(t, prompt, "decisions")
	assert.True(t, strings.HasSuffix(prompt, "Summary:"))
}
