package contextmgr

import "context"

// Manager binds a Compactor to one conversation: the selected model and the
// last summary produced for it.
//
// A Manager is not safe for concurrent use. Callers serialize Prepare per
// conversation and call ClearSummary whenever the conversation changes.
type Manager struct {
	compactor   *Compactor
	modelID     string
	lastSummary *string
}

// NewManager creates a Manager for modelID. A nil compactor uses the defaults.
func NewManager(compactor *Compactor, modelID string) *Manager {
	if compactor == nil {
		compactor = NewCompactor(nil)
	}
	return &Manager{compactor: compactor, modelID: modelID}
}

// SetModel switches the active model profile. It affects later calls only and
// keeps the last summary.
func (m *Manager) SetModel(modelID string) {
	m.modelID = modelID
}

// Model returns the active model identifier.
func (m *Manager) Model() string {
	return m.modelID
}

// Profile returns the resolved profile of the active model.
func (m *Manager) Profile() Profile {
	return m.compactor.profiles.Lookup(m.modelID)
}

// ClearSummary forgets the last summary.
func (m *Manager) ClearSummary() {
	m.lastSummary = nil
}

// LastSummary returns the most recent summary and whether one is held.
func (m *Manager) LastSummary() (string, bool) {
	if m.lastSummary == nil {
		return "", false
	}
	return *m.lastSummary, true
}

// Prepare runs the compression policy for the active model and remembers the
// summary when one was produced.
func (m *Manager) Prepare(ctx context.Context, messages []Message, summarize SummarizeFunc) Result {
	res := m.compactor.Prepare(ctx, messages, m.modelID, summarize)
	if res.Summarized {
		s := res.Summary
		m.lastSummary = &s
	}
	return res
}

// Status reports window usage of messages for the active model.
func (m *Manager) Status(messages []Message) Status {
	return m.compactor.Status(messages, m.modelID)
}

// NeedsSummarization reports whether messages are past the summarize threshold.
func (m *Manager) NeedsSummarization(messages []Message) bool {
	return m.Status(messages).NeedsSummarization
}
