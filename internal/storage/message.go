package storage

import (
	"database/sql"
	"fmt"
	"slices"
	"time"

	"chatwindow/internal/contextmgr"

	"github.com/google/uuid"
)

// Message is a stored chat message.
type Message struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	Role           string    `json:"role"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"created_at"`
}

// ContextMessage converts m for the context manager.
func (m *Message) ContextMessage() contextmgr.Message {
	return contextmgr.Message{
		Role:      contextmgr.Role(m.Role),
		Content:   m.Content,
		Timestamp: m.CreatedAt,
	}
}

// AppendMessage adds a message to the end of a conversation and bumps its
// updated_at. It returns ErrNotFound if the conversation does not exist.
func (db *DB) AppendMessage(conversationID, role, content string) (*Message, error) {
	m := &Message{
		ID:             uuid.New().String(),
		ConversationID: conversationID,
		Role:           role,
		Content:        content,
		CreatedAt:      time.Now().UTC(),
	}

	err := db.WithTx(func(tx *sql.Tx) error {
		res, err := tx.Exec(
			"UPDATE conversations SET updated_at = ? WHERE id = ?",
			m.CreatedAt, conversationID,
		)
		if err != nil {
			return err
		}
		if err := requireAffected(res); err != nil {
			return err
		}

		_, err = tx.Exec(
			"INSERT INTO messages (id, conversation_id, role, content, created_at) VALUES (?, ?, ?, ?, ?)",
			m.ID, m.ConversationID, m.Role, m.Content, m.CreatedAt,
		)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("append message: %w", err)
	}
	return m, nil
}

// GetMessages returns the messages of a conversation in insertion order. With
// limit > 0 only the last limit messages are returned.
func (db *DB) GetMessages(conversationID string, limit int) ([]*Message, error) {
	if limit <= 0 {
		limit = -1
	}

	rows, err := db.Query(`
		SELECT id, conversation_id, role, content, created_at
		FROM messages
		WHERE conversation_id = ?
		ORDER BY rowid DESC
		LIMIT ?`,
		conversationID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("get messages: %w", err)
	}
	defer rows.Close()

	var out []*Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.Role, &m.Content, &m.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	slices.Reverse(out)
	return out, nil
}

// ContextMessages converts stored messages for the context manager.
func ContextMessages(msgs []*Message) []contextmgr.Message {
	out := make([]contextmgr.Message, len(msgs))
	for i, m := range msgs {
		out[i] = m.ContextMessage()
	}
	return out
}
