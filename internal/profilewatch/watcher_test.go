package profilewatch

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"chatwindow/internal/contextmgr"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTable() (*contextmgr.Profiles, map[string]contextmgr.Profile) {
	base := map[string]contextmgr.Profile{"llama3.2": {ContextLimit: 8192}}
	return contextmgr.NewProfiles(contextmgr.DefaultProfile(), base), base
}

// writeAtomic replaces path by rename so the watcher never sees a partial file.
func writeAtomic(t *testing.T, path, content string) {
	t.Helper()
	tmp := path + ".tmp"
	require.NoError(t, os.WriteFile(tmp, []byte(content), 0o644))
	require.NoError(t, os.Rename(tmp, path))
}

func TestApply(t *testing.T) {
	table, base := newTable()
	path := filepath.Join(t.TempDir(), "profiles.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
profiles:
  - model: tiny
    context_limit: 1024
  - model: llama3.2
    context_limit: 4096
`), 0o644))

	require.NoError(t, Apply(path, base, table))

	assert.Equal(t, 1024, table.Lookup("tiny").ContextLimit)
	assert.Equal(t, 4096, table.Lookup("llama3.2").ContextLimit, "file overrides base")
	assert.Equal(t, 8192, base["llama3.2"].ContextLimit, "base map is not modified")
}

func TestApply_MissingFileRestoresBase(t *testing.T) {
	table, base := newTable()
	table.Merge(map[string]contextmgr.Profile{"stale": {ContextLimit: 10}})

	require.NoError(t, Apply(filepath.Join(t.TempDir(), "absent.yaml"), base, table))

	assert.False(t, table.Has("stale"))
	assert.True(t, table.Has("llama3.2"))
}

func TestApply_InvalidKeepsTable(t *testing.T) {
	table, base := newTable()
	path := filepath.Join(t.TempDir(), "profiles.yaml")
	require.NoError(t, os.WriteFile(path, []byte("profiles: [oops"), 0o644))

	assert.Error(t, Apply(path, base, table))
	assert.Equal(t, []string{"llama3.2"}, table.Models())
}

func TestWatcher_ReloadsOnChange(t *testing.T) {
	table, base := newTable()
	path := filepath.Join(t.TempDir(), "profiles.yaml")
	require.NoError(t, os.WriteFile(path, []byte("profiles:\n  - model: a\n    context_limit: 1000\n"), 0o644))

	w, err := New(path, base, table, zerolog.Nop())
	require.NoError(t, err)
	defer w.Close()
	w.SetDebounceDelay(10 * time.Millisecond)

	assert.Equal(t, 1000, table.Lookup("a").ContextLimit, "initial load")

	writeAtomic(t, path, "profiles:\n  - model: a\n    context_limit: 2000\n")

	require.Eventually(t, func() bool {
		return table.Lookup("a").ContextLimit == 2000
	}, 5*time.Second, 20*time.Millisecond)
}

func TestWatcher_BadEditKeepsPrevious(t *testing.T) {
	table, base := newTable()
	path := filepath.Join(t.TempDir(), "profiles.yaml")
	require.NoError(t, os.WriteFile(path, []byte("profiles:\n  - model: a\n    context_limit: 1000\n"), 0o644))

	w, err := New(path, base, table, zerolog.Nop())
	require.NoError(t, err)
	defer w.Close()
	w.SetDebounceDelay(10 * time.Millisecond)

	failed := make(chan error, 8)
	w.SetOnReload(func(err error) {
		if err != nil {
			failed <- err
		}
	})

	writeAtomic(t, path, "profiles: [broken")

	select {
	case err := <-failed:
		assert.Error(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("no failed reload after edit")
	}
	assert.Equal(t, 1000, table.Lookup("a").ContextLimit)
}

func TestWatcher_CloseIdempotent(t *testing.T) {
	table, base := newTable()
	w, err := New(filepath.Join(t.TempDir(), "profiles.yaml"), base, table, zerolog.Nop())
	require.NoError(t, err)

	assert.NoError(t, w.Close())
	assert.NoError(t, w.Close())
}
