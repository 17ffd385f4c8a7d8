package storage

import (
	"database/sql"
	"errors"
	"time"
)

// KeyLastConversation holds the id of the conversation chat resumes by default.
const KeyLastConversation = "last_conversation"

// KVSet stores value under key, replacing any previous value.
func (db *DB) KVSet(key, value string) error {
	_, err := db.Exec(
		"INSERT OR REPLACE INTO kv_store (key, value, updated_at) VALUES (?, ?, ?)",
		key, value, time.Now().UTC(),
	)
	return err
}

// KVGet returns the value of key, or ErrNotFound.
func (db *DB) KVGet(key string) (string, error) {
	var value string
	err := db.QueryRow("SELECT value FROM kv_store WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return value, nil
}

// KVDelete removes key. It returns ErrNotFound if the key was absent.
func (db *DB) KVDelete(key string) error {
	res, err := db.Exec("DELETE FROM kv_store WHERE key = ?", key)
	if err != nil {
		return err
	}
	return requireAffected(res)
}
