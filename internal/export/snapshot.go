// Package export turns a conversation into a serializable snapshot.
package export

import (
	"encoding/json"
	"time"

	"chatwindow/internal/contextmgr"
)

// Reserved snapshot keys. Metadata entries with these names are ignored.
const (
	KeyExportedAt   = "exportedAt"
	KeyMessageCount = "messageCount"
	KeyMessages     = "messages"
)

// Message is the exported form of a conversation message.
type Message struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Snapshot is a point-in-time copy of a conversation. Metadata is flattened
// into the top-level JSON object next to the reserved keys.
type Snapshot struct {
	ExportedAt   time.Time
	MessageCount int
	Metadata     map[string]any
	Messages     []Message
}

// Build creates a Snapshot of messages taken at now. It performs no I/O.
func Build(messages []contextmgr.Message, metadata map[string]any, now time.Time) Snapshot {
	out := make([]Message, len(messages))
	for i, m := range messages {
		out[i] = Message{
			Role:      string(m.Role),
			Content:   m.Content,
			Timestamp: m.Timestamp,
		}
	}

	meta := make(map[string]any, len(metadata))
	for k, v := range metadata {
		switch k {
		case KeyExportedAt, KeyMessageCount, KeyMessages:
			continue
		}
		meta[k] = v
	}

	return Snapshot{
		ExportedAt:   now,
		MessageCount: len(out),
		Metadata:     meta,
		Messages:     out,
	}
}

// MarshalJSON implements json.Marshaler.
func (s Snapshot) MarshalJSON() ([]byte, error) {
	obj := make(map[string]any, len(s.Metadata)+3)
	for k, v := range s.Metadata {
		obj[k] = v
	}
	obj[KeyExportedAt] = s.ExportedAt
	obj[KeyMessageCount] = s.MessageCount
	messages := s.Messages
	if messages == nil {
		messages = []Message{}
	}
	obj[KeyMessages] = messages
	return json.Marshal(obj)
}

// JSON returns the indented JSON encoding of s.
func (s Snapshot) JSON() ([]byte, error) {
	return json.MarshalIndent(s, "", "  ")
}
