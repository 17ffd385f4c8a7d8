// Package session runs chat turns for one open conversation: it loads and
// persists history, applies the context policy before every request, and
// serializes turns.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"chatwindow/internal/contextmgr"
	"chatwindow/internal/export"
	"chatwindow/internal/provider"
	"chatwindow/internal/storage"
	"chatwindow/pkg/logger"

	"github.com/rs/zerolog"
)

var (
	// ErrTurnInProgress is returned when a turn is started or the model is
	// changed while another turn is running.
	ErrTurnInProgress = errors.New("a turn is already in progress")
	// ErrTurnAbandoned is returned by a turn that was cancelled, either by the
	// caller or because the conversation was switched. Nothing is committed.
	ErrTurnAbandoned = errors.New("turn abandoned")
	// ErrNoConversation is returned when no conversation is open.
	ErrNoConversation = errors.New("no conversation open")
)

// Store is the persistence the session needs. *storage.DB implements it.
type Store interface {
	CreateConversation(title, model string) (*storage.Conversation, error)
	GetConversation(id string) (*storage.Conversation, error)
	SetConversationModel(id, model string) error
	AppendMessage(conversationID, role, content string) (*storage.Message, error)
	GetMessages(conversationID string, limit int) ([]*storage.Message, error)
	SaveSummary(s *storage.Summary) error
	KVSet(key, value string) error
}

// Options configures generation.
type Options struct {
	// Model is used for conversations that have none recorded.
	Model string
	// SystemPrompt, if set, is sent ahead of the prepared messages. It is not
	// part of the stored history and is never summarized.
	SystemPrompt string
	Temperature  float64
	MaxTokens    int
	Summary      provider.SummaryOptions
}

// TurnResult describes a completed turn.
type TurnResult struct {
	Reply    string
	Usage    *provider.Usage
	Prepared contextmgr.Result
	// Status is the window usage of the history after the turn.
	Status contextmgr.Status
}

type turn struct {
	convID string
	cancel context.CancelFunc
	done   chan struct{}
}

// Session is safe for concurrent use. At most one turn runs at a time.
type Session struct {
	store     Store
	provider  provider.Provider
	compactor *contextmgr.Compactor
	manager   *contextmgr.Manager
	opts      Options
	logger    zerolog.Logger
	now       func() time.Time

	mu          sync.Mutex
	conv        *storage.Conversation
	history     []contextmgr.Message
	model       string
	lastSummary string
	hasSummary  bool
	current     *turn
}

// New creates a session with no open conversation. A nil compactor uses the
// default profiles.
func New(store Store, p provider.Provider, compactor *contextmgr.Compactor, opts Options) *Session {
	if compactor == nil {
		compactor = contextmgr.NewCompactor(nil)
	}
	if opts.Summary == (provider.SummaryOptions{}) {
		opts.Summary = provider.DefaultSummaryOptions()
	}
	return &Session{
		store:     store,
		provider:  p,
		compactor: compactor,
		manager:   contextmgr.NewManager(compactor, opts.Model),
		opts:      opts,
		logger:    logger.Component("session"),
		model:     opts.Model,
		now:       time.Now,
	}
}

// SetLogger replaces the session logger.
func (s *Session) SetLogger(l zerolog.Logger) {
	s.logger = l
}

// Create starts a new conversation and makes it current. An in-flight turn is
// cancelled first.
func (s *Session) Create(title string) (*storage.Conversation, error) {
	s.mu.Lock()
	model := s.model
	s.mu.Unlock()

	conv, err := s.store.CreateConversation(title, model)
	if err != nil {
		return nil, fmt.Errorf("create conversation: %w", err)
	}
	if err := s.switchTo(conv, nil); err != nil {
		return nil, err
	}
	return conv, nil
}

// Open loads a stored conversation and makes it current. An in-flight turn is
// cancelled first.
func (s *Session) Open(id string) (*storage.Conversation, error) {
	conv, err := s.store.GetConversation(id)
	if err != nil {
		return nil, fmt.Errorf("open conversation %s: %w", id, err)
	}
	stored, err := s.store.GetMessages(id, 0)
	if err != nil {
		return nil, fmt.Errorf("load messages: %w", err)
	}
	if err := s.switchTo(conv, storage.ContextMessages(stored)); err != nil {
		return nil, err
	}
	return conv, nil
}

// switchTo cancels the running turn, waits for it to unwind, and installs conv.
func (s *Session) switchTo(conv *storage.Conversation, history []contextmgr.Message) error {
	s.cancelAndWait()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current != nil {
		return ErrTurnInProgress
	}

	if conv.Model != "" {
		s.model = conv.Model
	}
	s.conv = conv
	s.history = history
	s.manager.SetModel(s.model)
	s.manager.ClearSummary()
	s.lastSummary, s.hasSummary = "", false

	if err := s.store.KVSet(storage.KeyLastConversation, conv.ID); err != nil {
		s.logger.Warn().Err(err).Msg("failed to remember last conversation")
	}
	s.logger.Debug().Str("conversation", conv.ID).Int("messages", len(history)).Msg("conversation opened")
	return nil
}

func (s *Session) cancelAndWait() {
	s.mu.Lock()
	t := s.current
	s.mu.Unlock()
	if t == nil {
		return
	}
	t.cancel()
	<-t.done
}

// Cancel aborts the in-flight turn, if any, and reports whether there was one.
// It does not wait for the turn to unwind.
func (s *Session) Cancel() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return false
	}
	s.current.cancel()
	return true
}

// Busy reports whether a turn is running.
func (s *Session) Busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current != nil
}

// Conversation returns the open conversation, or nil.
func (s *Session) Conversation() *storage.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conv == nil {
		return nil
	}
	c := *s.conv
	c.Model = s.model
	c.MessageCount = len(s.history)
	return &c
}

// History returns a copy of the committed messages.
func (s *Session) History() []contextmgr.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]contextmgr.Message(nil), s.history...)
}

// Model returns the model used for the next turn.
func (s *Session) Model() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.model
}

// SetModel switches the model for later turns and records it on the open
// conversation. The last summary is kept.
func (s *Session) SetModel(model string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current != nil {
		return ErrTurnInProgress
	}

	if s.conv != nil {
		if err := s.store.SetConversationModel(s.conv.ID, model); err != nil {
			return fmt.Errorf("record model: %w", err)
		}
	}
	s.model = model
	s.manager.SetModel(model)
	return nil
}

// Status reports window usage of the committed history for the current model.
func (s *Session) Status() contextmgr.Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.compactor.Status(s.history, s.model)
}

// LastSummary returns the summary produced by the most recent compression in
// this conversation.
func (s *Session) LastSummary() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSummary, s.hasSummary
}

// Snapshot exports the committed history with conversation metadata.
func (s *Session) Snapshot() (export.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conv == nil {
		return export.Snapshot{}, ErrNoConversation
	}
	return export.Build(s.history, map[string]any{
		"conversationId": s.conv.ID,
		"chatTitle":      s.conv.Title,
		"model":          s.model,
	}, s.now()), nil
}

// Send runs one turn: it prepares the history plus text, streams the reply
// (calling onDelta with every fragment when set), and commits both messages
// once the reply is complete. A failed or abandoned turn commits nothing.
func (s *Session) Send(ctx context.Context, text string, onDelta func(string)) (*TurnResult, error) {
	s.mu.Lock()
	if s.conv == nil {
		s.mu.Unlock()
		return nil, ErrNoConversation
	}
	if s.current != nil {
		s.mu.Unlock()
		return nil, ErrTurnInProgress
	}

	turnCtx, cancel := context.WithCancel(ctx)
	t := &turn{convID: s.conv.ID, cancel: cancel, done: make(chan struct{})}
	s.current = t

	model := s.model
	user := contextmgr.Message{Role: contextmgr.RoleUser, Content: text, Timestamp: s.now()}
	input := make([]contextmgr.Message, len(s.history), len(s.history)+1)
	copy(input, s.history)
	input = append(input, user)
	s.mu.Unlock()

	defer func() {
		cancel()
		s.mu.Lock()
		s.current = nil
		s.mu.Unlock()
		close(t.done)
	}()

	log := s.logger.With().Str("conversation", t.convID).Str("model", model).Logger()
	log.Debug().Int("history", len(input)).Msg("turn started")

	prepared := s.manager.Prepare(turnCtx, input, provider.Summarizer(s.provider, model, s.opts.Summary))

	reply, usage, err := s.generate(turnCtx, model, prepared.Messages, onDelta)
	if turnCtx.Err() != nil {
		log.Debug().Msg("turn abandoned")
		return nil, ErrTurnAbandoned
	}
	if err != nil {
		log.Debug().Err(err).Msg("turn failed")
		return nil, err
	}

	return s.commit(t, model, input, reply, usage, prepared)
}

func (s *Session) generate(ctx context.Context, model string, msgs []contextmgr.Message, onDelta func(string)) (string, *provider.Usage, error) {
	req := provider.ChatRequest{
		Model:       model,
		Messages:    provider.FromContext(msgs),
		Temperature: s.opts.Temperature,
		MaxTokens:   s.opts.MaxTokens,
	}
	if s.opts.SystemPrompt != "" {
		req.Messages = append([]provider.Message{{Role: string(contextmgr.RoleSystem), Content: s.opts.SystemPrompt}}, req.Messages...)
	}

	events, err := s.provider.Stream(ctx, req)
	if err != nil {
		return "", nil, err
	}

	acc := provider.StreamAccumulator{OnDelta: onDelta}
	resp, err := acc.Process(events)
	if err != nil {
		return "", nil, err
	}
	return resp.Content, resp.Usage, nil
}

func (s *Session) commit(t *turn, model string, input []contextmgr.Message, reply string, usage *provider.Usage, prepared contextmgr.Result) (*TurnResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conv == nil || s.conv.ID != t.convID {
		return nil, ErrTurnAbandoned
	}

	user := input[len(input)-1]
	storedUser, err := s.store.AppendMessage(t.convID, string(user.Role), user.Content)
	if err != nil {
		return nil, fmt.Errorf("save user message: %w", err)
	}
	storedReply, err := s.store.AppendMessage(t.convID, string(contextmgr.RoleAssistant), reply)
	if err != nil {
		return nil, fmt.Errorf("save reply: %w", err)
	}

	s.history = append(s.history, storedUser.ContextMessage(), storedReply.ContextMessage())

	if prepared.Summarized {
		s.lastSummary, s.hasSummary = prepared.Summary, true
		record := &storage.Summary{
			ConversationID:     t.convID,
			Model:              model,
			Summary:            prepared.Summary,
			SummarizedMessages: len(input) - (len(prepared.Messages) - 1),
			TokensBefore:       contextmgr.EstimateMessagesTokens(input),
			TokensAfter:        contextmgr.EstimateMessagesTokens(prepared.Messages),
		}
		if err := s.store.SaveSummary(record); err != nil {
			s.logger.Warn().Err(err).Str("conversation", t.convID).Msg("failed to record summary")
		}
	}

	return &TurnResult{
		Reply:    reply,
		Usage:    usage,
		Prepared: prepared,
		Status:   s.compactor.Status(s.history, model),
	}, nil
}
