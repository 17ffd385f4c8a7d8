// Package profilewatch keeps a profile table in sync with a YAML profiles file.
package profilewatch

import (
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"sync"
	"time"

	"chatwindow/internal/config"
	"chatwindow/internal/contextmgr"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// DefaultDebounce is the quiet period after the last file event before reloading.
const DefaultDebounce = 300 * time.Millisecond

// Apply reads the profiles file at path and replaces the entries of table with
// base overridden by the file. A missing file applies base alone. On any other
// error the table is left unchanged.
func Apply(path string, base map[string]contextmgr.Profile, table *contextmgr.Profiles) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		table.Replace(base)
		return nil
	}
	if err != nil {
		return fmt.Errorf("read profiles: %w", err)
	}

	fromFile, err := config.ParseProfiles(data)
	if err != nil {
		return err
	}

	merged := maps.Clone(base)
	if merged == nil {
		merged = make(map[string]contextmgr.Profile, len(fromFile))
	}
	maps.Copy(merged, fromFile)
	table.Replace(merged)
	return nil
}

// Watcher reloads a profiles file into a table whenever it changes.
type Watcher struct {
	path    string
	base    map[string]contextmgr.Profile
	table   *contextmgr.Profiles
	watcher *fsnotify.Watcher
	logger  zerolog.Logger

	mu       sync.Mutex
	onReload func(error)
	debounce time.Duration
	timer    *time.Timer
	stopCh   chan struct{}
	stopped  bool
}

// New loads path into table and starts watching it. The parent directory is
// watched so that editors replacing the file by rename are picked up.
func New(path string, base map[string]contextmgr.Profile, table *contextmgr.Profiles, logger zerolog.Logger) (*Watcher, error) {
	expanded, err := config.ExpandPath(path)
	if err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(expanded)
	if err != nil {
		return nil, err
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fw.Add(filepath.Dir(abs)); err != nil {
		fw.Close()
		return nil, fmt.Errorf("watch %s: %w", filepath.Dir(abs), err)
	}

	w := &Watcher{
		path:     abs,
		base:     maps.Clone(base),
		table:    table,
		watcher:  fw,
		logger:   logger,
		debounce: DefaultDebounce,
		stopCh:   make(chan struct{}),
	}

	if err := Apply(w.path, w.base, w.table); err != nil {
		w.logger.Warn().Err(err).Str("path", w.path).Msg("profiles file not applied")
	}
	w.logger.Debug().Str("path", w.path).Msg("watching profiles file")

	go w.loop()
	return w, nil
}

// SetOnReload registers fn to be called after every reload attempt.
func (w *Watcher) SetOnReload(fn func(error)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onReload = fn
}

// SetDebounceDelay changes the debounce period.
func (w *Watcher) SetDebounceDelay(d time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.debounce = d
}

func (w *Watcher) loop() {
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			w.logger.Debug().Str("op", event.Op.String()).Msg("profiles file changed")
			w.schedule()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error().Err(err).Msg("profiles watcher error")

		case <-w.stopCh:
			return
		}
	}
}

func (w *Watcher) schedule() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return
	}
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.reload)
}

func (w *Watcher) reload() {
	err := Apply(w.path, w.base, w.table)
	if err != nil {
		w.logger.Warn().Err(err).Str("path", w.path).Msg("profiles reload failed, keeping previous table")
	} else {
		w.logger.Info().Str("path", w.path).Int("models", len(w.table.Models())).Msg("profiles reloaded")
	}

	w.mu.Lock()
	fn := w.onReload
	w.mu.Unlock()
	if fn != nil {
		fn(err)
	}
}

// Close stops watching. The table keeps its last state.
func (w *Watcher) Close() error {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return nil
	}
	w.stopped = true
	if w.timer != nil {
		w.timer.Stop()
	}
	w.mu.Unlock()

	close(w.stopCh)
	return w.watcher.Close()
}
