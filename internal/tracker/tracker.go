// internal/tracker/tracker.go
package tracker

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	vcserrors "vcs/internal/errors"
	"vcs/internal/logging"
	"vcs/internal/storage"
	"vcs/shared/utils"

	"github.com/dgraph-io/badger/v4"
	"go.uber.org/zap"
)

type Options struct {
	Ignore []string
	Logger *zap.Logger
}

// Tracker records which working files belong to the repository and the blob
// hash each one had when it was last tracked or committed.
type Tracker struct {
	root   string
	blobs  BlobWriter
	states *storage.BadgerStore
	ignore *Ignorer
	logger *zap.Logger

	mu        sync.Mutex
	listeners []Listener
}

func New(root string, db *badger.DB, blobs BlobWriter, opts Options) (*Tracker, error) {
	if root == "" {
		return nil, fmt.Errorf("root path cannot be empty")
	}
	if db == nil {
		return nil, fmt.Errorf("database cannot be nil")
	}
	if blobs == nil {
		return nil, fmt.Errorf("blob writer cannot be nil")
	}

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("getting absolute path for root %s: %w", root, err)
	}

	ignore, err := NewIgnorer(opts.Ignore)
	if err != nil {
		return nil, err
	}

	return &Tracker{
		root:   absRoot,
		blobs:  blobs,
		states: storage.NewBadgerStore(db, "file_state"),
		ignore: ignore,
		logger: logging.OrNop(opts.Logger),
	}, nil
}

func (t *Tracker) Root() string {
	return t.root
}

// OnChange registers a listener called after every state change.
func (t *Tracker) OnChange(l Listener) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.listeners = append(t.listeners, l)
}

func (t *Tracker) emit(state FileState) {
	t.mu.Lock()
	listeners := append([]Listener(nil), t.listeners...)
	t.mu.Unlock()

	for _, l := range listeners {
		l(state.Path, state)
	}
}

// Normalize turns path into the slash-separated form relative to the root
// used as the tracking key.
func (t *Tracker) Normalize(path string) (string, error) {
	abs := path
	if !filepath.IsAbs(abs) {
		abs = filepath.Join(t.root, abs)
	}
	rel, err := filepath.Rel(t.root, filepath.Clean(abs))
	if err != nil {
		return "", vcserrors.InvalidInput("invalid path: " + path)
	}
	rel = filepath.ToSlash(rel)
	if rel == ".." || strings.HasPrefix(rel, "../") {
		return "", vcserrors.InvalidInput("path outside repository: " + path)
	}
	return rel, nil
}

// AbsPath maps a tracked path to its location on disk. Paths outside the
// root fail with InvalidInput.
func (t *Tracker) AbsPath(path string) (string, error) {
	rel, err := t.Normalize(path)
	if err != nil {
		return "", err
	}
	return filepath.Join(t.root, filepath.FromSlash(rel)), nil
}

func (t *Tracker) Ignored(rel string) bool {
	return t.ignore.Ignored(rel)
}

// Track stores the current content of each file, walking directories, and
// records it as tracked. Ignored files are skipped.
func (t *Tracker) Track(paths []string) error {
	for _, path := range paths {
		rel, err := t.Normalize(path)
		if err != nil {
			return err
		}
		abs := filepath.Join(t.root, filepath.FromSlash(rel))

		info, err := os.Stat(abs)
		if err != nil {
			if os.IsNotExist(err) {
				return vcserrors.NotFound("file does not exist: " + path)
			}
			return vcserrors.IOFailure("accessing "+path, err)
		}

		if !info.IsDir() {
			if t.Ignored(rel) {
				t.logger.Debug("skipping ignored file", zap.String("path", rel))
				continue
			}
			if err := t.trackFile(rel); err != nil {
				return err
			}
			continue
		}

		err = filepath.WalkDir(abs, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			r, err := filepath.Rel(t.root, p)
			if err != nil {
				return err
			}
			r = filepath.ToSlash(r)
			if t.Ignored(r) {
				if d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
			if d.IsDir() {
				return nil
			}
			return t.trackFile(r)
		})
		if err != nil {
			return fmt.Errorf("walking directory %s: %w", path, err)
		}
	}
	return nil
}

func (t *Tracker) trackFile(rel string) error {
	state, err := t.storeFile(rel)
	if err != nil {
		return err
	}
	if err := t.states.Put(state); err != nil {
		return fmt.Errorf("saving file state for %s: %w", rel, err)
	}

	t.logger.Debug("tracked file", zap.String("path", rel), zap.String("hash", state.Hash))
	t.emit(*state)
	return nil
}

// storeFile puts the file content in the blob store and returns a TRACKED state.
func (t *Tracker) storeFile(rel string) (*FileState, error) {
	abs := filepath.Join(t.root, filepath.FromSlash(rel))
	info, err := os.Stat(abs)
	if err != nil {
		return nil, vcserrors.IOFailure("accessing "+rel, err)
	}
	content, err := os.ReadFile(abs)
	if err != nil {
		return nil, vcserrors.IOFailure("reading "+rel, err)
	}
	hash, err := t.blobs.Put(content)
	if err != nil {
		return nil, fmt.Errorf("storing content of %s: %w", rel, err)
	}

	return &FileState{
		Path:    rel,
		Hash:    hash,
		Size:    info.Size(),
		ModTime: info.ModTime(),
		Status:  StatusTracked,
	}, nil
}

// Untrack forgets the given paths. Paths that are not tracked are ignored.
func (t *Tracker) Untrack(paths []string) error {
	for _, path := range paths {
		rel, err := t.Normalize(path)
		if err != nil {
			return err
		}
		err = t.states.Delete(rel)
		if err != nil && !vcserrors.IsType(err, vcserrors.ErrorTypeNotFound) {
			return fmt.Errorf("deleting file state for %s: %w", rel, err)
		}
		if err == nil {
			t.emit(FileState{Path: rel, Status: StatusUntracked})
		}
	}
	return nil
}

func (t *Tracker) State(path string) (*FileState, error) {
	rel, err := t.Normalize(path)
	if err != nil {
		return nil, err
	}
	var state FileState
	if err := t.states.Get(rel, &state); err != nil {
		if vcserrors.IsType(err, vcserrors.ErrorTypeNotFound) {
			return nil, vcserrors.NotFound("file not tracked: " + path)
		}
		return nil, err
	}
	return &state, nil
}

// StoredHash returns the blob hash recorded for a tracked path.
func (t *Tracker) StoredHash(path string) (string, error) {
	state, err := t.State(path)
	if err != nil {
		return "", err
	}
	return state.Hash, nil
}

// Tracked returns all tracked file states ordered by path.
func (t *Tracker) Tracked() ([]FileState, error) {
	var states []FileState
	if err := t.states.List(&states); err != nil {
		return nil, err
	}
	sort.Slice(states, func(i, j int) bool { return states[i].Path < states[j].Path })
	return states, nil
}

// Refresh compares a tracked file with the disk and updates its status.
func (t *Tracker) Refresh(path string) (*FileState, error) {
	state, err := t.State(path)
	if err != nil {
		return nil, err
	}

	next := t.compare(state)
	if next == state.Status {
		return state, nil
	}

	state.Status = next
	if err := t.states.Put(state); err != nil {
		return nil, fmt.Errorf("saving file state for %s: %w", state.Path, err)
	}
	t.logger.Debug("file status changed", zap.String("path", state.Path), zap.String("status", string(next)))
	t.emit(*state)
	return state, nil
}

func (t *Tracker) compare(state *FileState) Status {
	abs := filepath.Join(t.root, filepath.FromSlash(state.Path))
	hash, _, err := utils.HashFile(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return StatusDeleted
		}
		t.logger.Warn("hashing tracked file", zap.String("path", state.Path), zap.Error(err))
		return state.Status
	}
	if hash == state.Hash {
		if state.Status == StatusConflicted {
			return StatusConflicted
		}
		return StatusTracked
	}
	return StatusModified
}

// MarkConflicted flags a tracked path as part of an unresolved merge.
func (t *Tracker) MarkConflicted(path string) error {
	state, err := t.State(path)
	if err != nil {
		return err
	}
	state.Status = StatusConflicted
	if err := t.states.Put(state); err != nil {
		return err
	}
	t.emit(*state)
	return nil
}

// ClearConflict drops the conflicted flag and recomputes the status.
func (t *Tracker) ClearConflict(path string) (*FileState, error) {
	state, err := t.State(path)
	if err != nil {
		return nil, err
	}
	if state.Status == StatusConflicted {
		state.Status = StatusTracked
		if err := t.states.Put(state); err != nil {
			return nil, err
		}
	}
	return t.Refresh(path)
}

// Status refreshes every tracked file and lists untracked files in the
// working tree, ordered by path.
func (t *Tracker) Status() ([]FileState, error) {
	tracked, err := t.Tracked()
	if err != nil {
		return nil, err
	}

	known := make(map[string]bool, len(tracked))
	result := make([]FileState, 0, len(tracked))
	for _, s := range tracked {
		known[s.Path] = true
		refreshed, err := t.Refresh(s.Path)
		if err != nil {
			return nil, err
		}
		result = append(result, *refreshed)
	}

	err = filepath.WalkDir(t.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(t.root, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if rel == "." {
			return nil
		}
		if t.Ignored(rel) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || known[rel] {
			return nil
		}
		result = append(result, FileState{Path: rel, Status: StatusUntracked})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking workspace: %w", err)
	}

	sort.Slice(result, func(i, j int) bool { return result[i].Path < result[j].Path })
	return result, nil
}

// Snapshot stores the current content of every tracked file still on disk
// and returns the path to hash map for a new version.
func (t *Tracker) Snapshot() (map[string]string, error) {
	tracked, err := t.Tracked()
	if err != nil {
		return nil, err
	}

	hashes := make(map[string]string, len(tracked))
	for _, s := range tracked {
		abs := filepath.Join(t.root, filepath.FromSlash(s.Path))
		if _, err := os.Stat(abs); os.IsNotExist(err) {
			continue
		}
		state, err := t.storeFile(s.Path)
		if err != nil {
			return nil, err
		}
		hashes[s.Path] = state.Hash
	}
	return hashes, nil
}

// Commit records hashes as the stored state of each tracked file. Tracked
// files missing from hashes were deleted and are dropped.
func (t *Tracker) Commit(hashes map[string]string) error {
	tracked, err := t.Tracked()
	if err != nil {
		return err
	}

	for _, s := range tracked {
		hash, ok := hashes[s.Path]
		if !ok {
			if err := t.Untrack([]string{s.Path}); err != nil {
				return err
			}
			continue
		}

		state := s
		state.Hash = hash
		state.Status = StatusTracked
		abs := filepath.Join(t.root, filepath.FromSlash(s.Path))
		if info, err := os.Stat(abs); err == nil {
			state.Size = info.Size()
			state.ModTime = info.ModTime()
		}
		if err := t.states.Put(&state); err != nil {
			return fmt.Errorf("saving file state for %s: %w", s.Path, err)
		}
		t.emit(state)
	}
	return nil
}
