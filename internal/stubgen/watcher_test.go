package stubgen

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test Plan for the watcher:
// - Start and stop cleanly, including repeated Stop calls
// - Process events for source files and companion .pxd files
// - Never process generated .pyi files
// - Skip events under ignored directories
// - Ignore chmod-only events

func newTestWatcher(t *testing.T, root string) *Watcher {
	t.Helper()
	gen := newTestGenerator(t, Options{Root: root, Ignore: []string{"build/**"}})
	w, err := NewWatcher(gen)
	require.NoError(t, err)
	return w
}

func TestWatcher_StartStop(t *testing.T) {
	t.Parallel()

	w := newTestWatcher(t, t.TempDir())
	w.Start(context.Background())
	w.Stop()
	w.Stop() // idempotent
}

func TestWatcher_ShouldProcessEvent(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "build"), 0o755))
	w := newTestWatcher(t, root)
	defer w.Stop()
	w.Start(context.Background())

	cases := []struct {
		name string
		op   fsnotify.Op
		want bool
	}{
		{"matrix.pyx", fsnotify.Write, true},
		{"matrix.pyx", fsnotify.Create, true},
		{"matrix.pyx", fsnotify.Remove, true},
		{"matrix.pxd", fsnotify.Write, true},
		{"matrix.pyi", fsnotify.Write, false},
		{"notes.txt", fsnotify.Write, false},
		{"matrix.pyx", fsnotify.Chmod, false},
		{filepath.Join("build", "gen.pyx"), fsnotify.Write, false},
	}
	for _, tc := range cases {
		event := fsnotify.Event{Name: filepath.Join(root, tc.name), Op: tc.op}
		assert.Equal(t, tc.want, w.shouldProcessEvent(event), "%s %v", tc.name, tc.op)
	}
}
