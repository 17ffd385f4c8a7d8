package cli

import (
	"errors"
	"fmt"
	"sync"

	"chatwindow/internal/config"
	"chatwindow/internal/contextmgr"
	"chatwindow/internal/profilewatch"
	"chatwindow/internal/provider/ollama"
	"chatwindow/internal/storage"
	"chatwindow/pkg/logger"

	"github.com/rs/zerolog"
)

// CLIContext carries the loaded config and lazily opened resources.
type CLIContext struct {
	Config     *config.Config
	ConfigPath string
	Logger     *zerolog.Logger
	Verbose    bool
	Quiet      bool

	storagePath string
	storageOnce sync.Once
	storage     *storage.DB
	storageErr  error
}

// NewCLIContext creates a CLI context.
func NewCLIContext(cfg *config.Config, configPath string, log *zerolog.Logger, storagePath string, verbose, quiet bool) *CLIContext {
	return &CLIContext{
		Config:      cfg,
		ConfigPath:  configPath,
		Logger:      log,
		storagePath: storagePath,
		Verbose:     verbose,
		Quiet:       quiet,
	}
}

// GetStorage opens the database on first use.
func (c *CLIContext) GetStorage() (*storage.DB, error) {
	c.storageOnce.Do(func() {
		c.storage, c.storageErr = storage.Open(c.storagePath)
	})
	return c.storage, c.storageErr
}

// Provider creates the Ollama provider from config.
func (c *CLIContext) Provider() (*ollama.OllamaProvider, error) {
	oc := c.Config.Ollama
	return ollama.NewOllamaProvider(ollama.Config{
		Endpoint:  oc.Endpoint,
		Model:     oc.Model,
		Timeout:   oc.TimeoutDuration(),
		KeepAlive: oc.KeepAlive,
	})
}

// Profiles builds the profile table, applying the profiles file when one is
// configured. A broken profiles file is logged and skipped.
func (c *CLIContext) Profiles() (*contextmgr.Profiles, error) {
	table := c.Config.ProfileTable()

	path := c.Config.Context.ProfilesFile
	if path == "" {
		return table, nil
	}
	expanded, err := config.ExpandPath(path)
	if err != nil {
		return nil, err
	}
	if err := profilewatch.Apply(expanded, c.Config.ProfileEntries(), table); err != nil {
		c.Log().Warn().Err(err).Str("path", expanded).Msg("profiles file not applied")
	}
	return table, nil
}

// ResolveConversation returns id, or the last conversation used when id is empty.
func (c *CLIContext) ResolveConversation(id string) (*storage.Conversation, error) {
	db, err := c.GetStorage()
	if err != nil {
		return nil, err
	}

	if id == "" {
		id, err = db.KVGet(storage.KeyLastConversation)
		if errors.Is(err, storage.ErrNotFound) {
			return nil, errors.New("no conversation given and none used yet (pass --conversation)")
		}
		if err != nil {
			return nil, err
		}
	}

	conv, err := db.GetConversation(id)
	if err != nil {
		return nil, fmt.Errorf("conversation %s: %w", id, err)
	}
	return conv, nil
}

// Close releases opened resources and the log file.
func (c *CLIContext) Close() error {
	var err error
	if c.storage != nil {
		err = c.storage.Close()
	}
	return errors.Join(err, logger.Close())
}

// Log returns the CLI logger.
func (c *CLIContext) Log() *zerolog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return logger.Get()
}
