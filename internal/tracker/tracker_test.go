package tracker

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	vcserrors "vcs/internal/errors"
	"vcs/internal/object"
	"vcs/shared/utils"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestTracker(t *testing.T, ignore ...string) (*Tracker, *object.Store, string) {
	root := t.TempDir()

	opts := badger.DefaultOptions("").WithInMemory(true)
	opts.Logger = nil
	db, err := badger.Open(opts)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	objects, err := object.New(filepath.Join(root, ".vcs", "objects"), object.Options{})
	require.NoError(t, err)

	tr, err := New(root, db, objects, Options{Ignore: ignore})
	require.NoError(t, err)
	return tr, objects, root
}

func writeFile(t *testing.T, root, rel, content string) {
	abs := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(abs), 0755))
	require.NoError(t, os.WriteFile(abs, []byte(content), 0644))
}

func TestTracker(t *testing.T) {
	tr, objects, root := setupTestTracker(t, "*.log")

	writeFile(t, root, "a.txt", "alpha")
	writeFile(t, root, "dir/b.txt", "beta")
	writeFile(t, root, "dir/debug.log", "noise")

	t.Run("Track", func(t *testing.T) {
		require.NoError(t, tr.Track([]string{"a.txt", "dir"}))

		tracked, err := tr.Tracked()
		require.NoError(t, err)
		require.Len(t, tracked, 2)
		assert.Equal(t, "a.txt", tracked[0].Path)
		assert.Equal(t, "dir/b.txt", tracked[1].Path)
		assert.Equal(t, StatusTracked, tracked[0].Status)

		hash, err := tr.StoredHash("a.txt")
		require.NoError(t, err)
		assert.Equal(t, utils.HashContent([]byte("alpha")), hash)
		assert.True(t, objects.Exists(hash))
	})

	t.Run("Track missing file", func(t *testing.T) {
		err := tr.Track([]string{"missing.txt"})
		assert.True(t, vcserrors.IsType(err, vcserrors.ErrorTypeNotFound))
	})

	t.Run("Track outside root", func(t *testing.T) {
		err := tr.Track([]string{"../elsewhere"})
		assert.True(t, vcserrors.IsType(err, vcserrors.ErrorTypeInvalidInput))
	})

	t.Run("absolute paths normalize", func(t *testing.T) {
		hash, err := tr.StoredHash(filepath.Join(root, "dir", "b.txt"))
		require.NoError(t, err)
		assert.Equal(t, utils.HashContent([]byte("beta")), hash)
	})

	t.Run("Refresh", func(t *testing.T) {
		writeFile(t, root, "a.txt", "changed")
		state, err := tr.Refresh("a.txt")
		require.NoError(t, err)
		assert.Equal(t, StatusModified, state.Status)
		assert.Equal(t, utils.HashContent([]byte("alpha")), state.Hash)

		writeFile(t, root, "a.txt", "alpha")
		state, err = tr.Refresh("a.txt")
		require.NoError(t, err)
		assert.Equal(t, StatusTracked, state.Status)

		_, err = tr.Refresh("dir/debug.log")
		assert.True(t, vcserrors.IsType(err, vcserrors.ErrorTypeNotFound))
	})

	t.Run("Status", func(t *testing.T) {
		writeFile(t, root, "new.txt", "fresh")
		writeFile(t, root, "dir/b.txt", "beta v2")

		status, err := tr.Status()
		require.NoError(t, err)

		byPath := map[string]Status{}
		for _, s := range status {
			byPath[s.Path] = s.Status
		}
		assert.Equal(t, StatusTracked, byPath["a.txt"])
		assert.Equal(t, StatusModified, byPath["dir/b.txt"])
		assert.Equal(t, StatusUntracked, byPath["new.txt"])
		assert.NotContains(t, byPath, "dir/debug.log")
		for p := range byPath {
			assert.NotContains(t, p, ".vcs")
		}
	})

	t.Run("Snapshot and Commit", func(t *testing.T) {
		require.NoError(t, os.Remove(filepath.Join(root, "a.txt")))

		hashes, err := tr.Snapshot()
		require.NoError(t, err)
		assert.Equal(t, map[string]string{"dir/b.txt": utils.HashContent([]byte("beta v2"))}, hashes)

		require.NoError(t, tr.Commit(hashes))
		tracked, err := tr.Tracked()
		require.NoError(t, err)
		require.Len(t, tracked, 1)
		assert.Equal(t, "dir/b.txt", tracked[0].Path)
		assert.Equal(t, StatusTracked, tracked[0].Status)
		assert.Equal(t, hashes["dir/b.txt"], tracked[0].Hash)
	})

	t.Run("Untrack", func(t *testing.T) {
		require.NoError(t, tr.Untrack([]string{"dir/b.txt", "never-tracked.txt"}))
		_, err := tr.State("dir/b.txt")
		assert.True(t, vcserrors.IsType(err, vcserrors.ErrorTypeNotFound))
	})
}

func TestTrackerDeletedAndConflicted(t *testing.T) {
	tr, _, root := setupTestTracker(t)
	writeFile(t, root, "a.txt", "alpha")
	require.NoError(t, tr.Track([]string{"a.txt"}))

	require.NoError(t, tr.MarkConflicted("a.txt"))
	state, err := tr.Refresh("a.txt")
	require.NoError(t, err)
	assert.Equal(t, StatusConflicted, state.Status)

	require.NoError(t, os.Remove(filepath.Join(root, "a.txt")))
	state, err = tr.Refresh("a.txt")
	require.NoError(t, err)
	assert.Equal(t, StatusDeleted, state.Status)
}

func TestTrackerListeners(t *testing.T) {
	tr, _, root := setupTestTracker(t)

	var mu sync.Mutex
	events := map[string][]Status{}
	tr.OnChange(func(path string, state FileState) {
		mu.Lock()
		defer mu.Unlock()
		events[path] = append(events[path], state.Status)
	})

	writeFile(t, root, "a.txt", "alpha")
	require.NoError(t, tr.Track([]string{"a.txt"}))
	writeFile(t, root, "a.txt", "beta")
	_, err := tr.Refresh("a.txt")
	require.NoError(t, err)
	require.NoError(t, tr.Untrack([]string{"a.txt"}))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []Status{StatusTracked, StatusModified, StatusUntracked}, events["a.txt"])
}

func TestIgnorer(t *testing.T) {
	ig, err := NewIgnorer([]string{"*.tmp", "build/", "docs/*.md"})
	require.NoError(t, err)

	tests := []struct {
		path    string
		ignored bool
	}{
		{".vcs", true},
		{".vcs/objects/abc", true},
		{".git/HEAD", true},
		{"scratch.tmp", true},
		{"deep/dir/scratch.tmp", true},
		{"build/out.bin", true},
		{"src/build/out.bin", true},
		{"docs/readme.md", true},
		{"docs/sub/readme.md", false},
		{"main.go", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.ignored, ig.Ignored(tt.path))
		})
	}

	_, err = NewIgnorer([]string{"[unterminated"})
	assert.Error(t, err)
}

func TestWatcher(t *testing.T) {
	tr, _, root := setupTestTracker(t)
	writeFile(t, root, "watched.txt", "v1")
	require.NoError(t, tr.Track([]string{"watched.txt"}))

	w, err := NewWatcher(tr)
	require.NoError(t, err)
	defer w.Close()

	writeFile(t, root, "watched.txt", "v2")

	assert.Eventually(t, func() bool {
		state, err := tr.State("watched.txt")
		return err == nil && state.Status == StatusModified
	}, 5*time.Second, 20*time.Millisecond)

	require.NoError(t, w.Close())
	require.NoError(t, w.Close())
}

func TestTrackerClearConflict(t *testing.T) {
	tr, _, root := setupTestTracker(t)
	writeFile(t, root, "a.txt", "alpha")
	require.NoError(t, tr.Track([]string{"a.txt"}))
	require.NoError(t, tr.MarkConflicted("a.txt"))

	state, err := tr.ClearConflict("a.txt")
	require.NoError(t, err)
	assert.Equal(t, StatusTracked, state.Status)

	require.NoError(t, tr.MarkConflicted("a.txt"))
	writeFile(t, root, "a.txt", "resolved")
	state, err = tr.ClearConflict("a.txt")
	require.NoError(t, err)
	assert.Equal(t, StatusModified, state.Status)
}

func TestTrackerAbsPath(t *testing.T) {
	tr, _, root := setupTestTracker(t)

	tests := []struct {
		name string
		path string
		want string
	}{
		{"relative", "dir/b.txt", filepath.Join(root, "dir", "b.txt")},
		{"absolute inside root", filepath.Join(root, "a.txt"), filepath.Join(root, "a.txt")},
		{"parent", "../escaped.txt", ""},
		{"absolute outside root", filepath.Join(filepath.Dir(root), "escaped.txt"), ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			abs, err := tr.AbsPath(tt.path)
			if tt.want == "" {
				assert.True(t, vcserrors.IsType(err, vcserrors.ErrorTypeInvalidInput))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, abs)
		})
	}
}
