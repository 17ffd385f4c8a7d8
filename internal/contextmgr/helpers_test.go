package contextmgr

import (
	"context"
	"strings"
	"sync"
	"time"
)

// makeHistory returns n alternating user/assistant messages whose content is
// chars long, each starting with its index so tests can identify them.
func makeHistory(n, chars int) []Message {
	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	msgs := make([]Message, n)
	for i := range msgs {
		role := RoleUser
		if i%2 == 1 {
			role = RoleAssistant
		}
		tag := "m" + string(rune('A'+i%26))
		msgs[i] = Message{
			Role:      role,
			Content:   tag + strings.Repeat(".", chars-len(tag)),
			Timestamp: base.Add(time.Duration(i) * time.Minute),
		}
	}
	return msgs
}

// stubSummarizer records the prompts it receives.
type stubSummarizer struct {
	mu      sync.Mutex
	prompts []string
	reply   string
	err     error
}

func (s *stubSummarizer) Summarize(ctx context.Context, prompt string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prompts = append(s.prompts, prompt)
	if s.err != nil {
		return "", s.err
	}
	return s.reply, nil
}

func (s *stubSummarizer) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.prompts)
}

type recordedPrepare struct {
	model   string
	outcome string
	usage   int
}

// fakeRecorder captures recorder calls.
type fakeRecorder struct {
	prepares   []recordedPrepare
	summarizes []error
}

func (f *fakeRecorder) ObservePrepare(model, outcome string, usagePercent int) {
	f.prepares = append(f.prepares, recordedPrepare{model, outcome, usagePercent})
}

func (f *fakeRecorder) ObserveSummarize(_ string, _ time.Duration, err error) {
	f.summarizes = append(f.summarizes, err)
}
