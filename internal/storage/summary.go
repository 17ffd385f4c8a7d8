package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Summary records one compression of a conversation's history.
type Summary struct {
	ID                 string    `json:"id"`
	ConversationID     string    `json:"conversation_id"`
	Model              string    `json:"model"`
	Summary            string    `json:"summary"`
	SummarizedMessages int       `json:"summarized_messages"`
	TokensBefore       int       `json:"tokens_before"`
	TokensAfter        int       `json:"tokens_after"`
	CreatedAt          time.Time `json:"created_at"`
}

// SaveSummary stores s, filling ID and CreatedAt when empty.
func (db *DB) SaveSummary(s *Summary) error {
	if s.ID == "" {
		s.ID = uuid.New().String()
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now().UTC()
	}

	_, err := db.Exec(`
		INSERT INTO summaries (id, conversation_id, model, summary, summarized_messages, tokens_before, tokens_after, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		s.ID, s.ConversationID, s.Model, s.Summary, s.SummarizedMessages, s.TokensBefore, s.TokensAfter, s.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("save summary: %w", err)
	}
	return nil
}

// LatestSummary returns the newest summary of a conversation, or ErrNotFound.
func (db *DB) LatestSummary(conversationID string) (*Summary, error) {
	var s Summary
	err := db.QueryRow(`
		SELECT id, conversation_id, model, summary, summarized_messages, tokens_before, tokens_after, created_at
		FROM summaries
		WHERE conversation_id = ?
		ORDER BY rowid DESC
		LIMIT 1`,
		conversationID,
	).Scan(&s.ID, &s.ConversationID, &s.Model, &s.Summary, &s.SummarizedMessages, &s.TokensBefore, &s.TokensAfter, &s.CreatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("latest summary: %w", err)
	}
	return &s, nil
}

// CountSummaries returns how many times a conversation has been compressed.
func (db *DB) CountSummaries(conversationID string) (int, error) {
	var n int
	err := db.QueryRow("SELECT COUNT(*) FROM summaries WHERE conversation_id = ?", conversationID).Scan(&n)
	return n, err
}
