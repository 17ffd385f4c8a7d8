package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"chatwindow/internal/config"
	"chatwindow/internal/contextmgr"
	"chatwindow/internal/storage"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runRoot(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Cleanup(config.Reset)

	var out bytes.Buffer
	cmd := NewRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

// seedWorkspace writes a config pointing at a fresh database holding one
// conversation with two messages, and returns the config path and the id.
func seedWorkspace(t *testing.T) (string, string) {
	t.Helper()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "data.db")
	cfgPath := filepath.Join(dir, "config.yaml")

	cfgYAML := "log:\n  level: off\nstorage:\n  path: " + dbPath + "\nollama:\n  model: phi3.5\n"
	require.NoError(t, os.WriteFile(cfgPath, []byte(cfgYAML), 0o644))

	db, err := storage.Open(dbPath)
	require.NoError(t, err)
	conv, err := db.CreateConversation("Seeded", "phi3.5")
	require.NoError(t, err)
	_, err = db.AppendMessage(conv.ID, "user", "What is a goroutine?")
	require.NoError(t, err)
	_, err = db.AppendMessage(conv.ID, "assistant", "A lightweight thread managed by the Go runtime.")
	require.NoError(t, err)
	require.NoError(t, db.KVSet(storage.KeyLastConversation, conv.ID))
	require.NoError(t, db.Close())

	return cfgPath, conv.ID
}

func TestVersionCmd_JSON(t *testing.T) {
	out, err := runRoot(t, "version", "--json")
	require.NoError(t, err)

	var info BuildInfo
	require.NoError(t, json.Unmarshal([]byte(out), &info))
	assert.Equal(t, Version, info.Version)
	assert.NotEmpty(t, info.GoVersion)
}

func TestInitCmd(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	out, err := runRoot(t, "init", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Wrote "+path)
	assert.FileExists(t, path)

	_, err = runRoot(t, "init", "--config", path)
	assert.ErrorContains(t, err, "already exists")

	_, err = runRoot(t, "init", "--config", path, "--force")
	require.NoError(t, err)

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, config.Default().Context, cfg.Context)
}

func TestConversationsCmd(t *testing.T) {
	cfgPath, id := seedWorkspace(t)

	out, err := runRoot(t, "conversations", "--config", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out, "TITLE")
	assert.Contains(t, out, id)
	assert.Contains(t, out, "Seeded")
}

func TestStatusCmd_JSON(t *testing.T) {
	cfgPath, id := seedWorkspace(t)

	out, err := runRoot(t, "status", "--config", cfgPath, "--json")
	require.NoError(t, err)

	var report StatusReport
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, id, report.ConversationID)
	assert.Equal(t, "phi3.5", report.Model)
	assert.Equal(t, 2, report.Messages)
	assert.Equal(t, 4096, report.Profile.ContextLimit)
	assert.Equal(t, 4096, report.Status.Max)
	assert.Positive(t, report.Status.Current)
	assert.Zero(t, report.Summaries)
	assert.Empty(t, report.LastSummary)

	out, err = runRoot(t, "status", "--config", cfgPath, "--json", "--model", "tinyllama")
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, 2048, report.Status.Max)
}

func TestStatusCmd_UnknownConversation(t *testing.T) {
	cfgPath, _ := seedWorkspace(t)

	_, err := runRoot(t, "status", "--config", cfgPath, "--conversation", "nope")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestExportCmd(t *testing.T) {
	cfgPath, id := seedWorkspace(t)
	outFile := filepath.Join(t.TempDir(), "export.json")

	out, err := runRoot(t, "export", "--config", cfgPath, "-o", outFile)
	require.NoError(t, err)
	assert.Contains(t, out, "Exported 2 messages")

	data, err := os.ReadFile(outFile)
	require.NoError(t, err)

	var doc struct {
		ConversationID string `json:"conversationId"`
		MessageCount   int    `json:"messageCount"`
		Messages       []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, id, doc.ConversationID)
	assert.Equal(t, 2, doc.MessageCount)
	require.Len(t, doc.Messages, 2)
	assert.Equal(t, "user", doc.Messages[0].Role)
}

func TestProfilesCmd(t *testing.T) {
	cfgPath, _ := seedWorkspace(t)

	out, err := runRoot(t, "profiles", "--config", cfgPath, "--json")
	require.NoError(t, err)

	var entries map[string]struct {
		ContextLimit int `json:"context_limit"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &entries))
	assert.Equal(t, 4096, entries["*"].ContextLimit)
	assert.Equal(t, 2048, entries["tinyllama"].ContextLimit)
	assert.Equal(t, 8192, entries["mistral"].ContextLimit)
}

func TestServeMetrics(t *testing.T) {
	log := zerolog.Nop()
	compactor := contextmgr.NewCompactor(nil)

	stop, err := serveMetrics("127.0.0.1:0", compactor, &log)
	require.NoError(t, err)
	compactor.Prepare(context.Background(), nil, "phi3.5", nil)
	stop()

	_, err = serveMetrics("not-an-address", contextmgr.NewCompactor(nil), &log)
	assert.Error(t, err)
}
