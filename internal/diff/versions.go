package diff

import (
	"fmt"
	"os"
	"sort"

	vcserrors "vcs/internal/errors"
	"vcs/internal/object"
	"vcs/internal/version"

	"go.uber.org/zap"
)

type VersionSource interface {
	Lookup(id string) (*version.Version, error)
}

type BlobSource interface {
	Lines(hash string) ([]string, error)
}

// WorkingTree resolves tracked paths to their stored hash and on-disk location.
type WorkingTree interface {
	StoredHash(path string) (string, error)
	AbsPath(path string) (string, error)
}

// DiffVersions diffs every path referenced by either version whose hashes
// differ. A path missing on one side diffs against empty content.
func (e *Engine) DiffVersions(oldID, newID string) (*Result, error) {
	if e.versions == nil || e.blobs == nil {
		return nil, fmt.Errorf("diff engine has no version or blob source")
	}

	oldVersion, err := e.versions.Lookup(oldID)
	if err != nil {
		return nil, err
	}
	newVersion, err := e.versions.Lookup(newID)
	if err != nil {
		return nil, err
	}

	result := newResult(oldVersion.ID, newVersion.ID)
	for _, path := range unionPaths(oldVersion.FileHashes, newVersion.FileHashes) {
		oldHash := oldVersion.FileHashes[path]
		newHash := newVersion.FileHashes[path]
		if oldHash == newHash {
			continue
		}

		oldLines, err := e.linesFor(oldHash)
		if err != nil {
			return nil, fmt.Errorf("loading %s from %s: %w", path, oldVersion.ID, err)
		}
		newLines, err := e.linesFor(newHash)
		if err != nil {
			return nil, fmt.Errorf("loading %s from %s: %w", path, newVersion.ID, err)
		}

		changes := e.Diff(oldLines, newLines)
		if !changes.IsEmpty() {
			result.Changes[path] = &changes
		}
	}

	e.logger.Debug("diffed versions",
		zap.String("from", oldVersion.ID),
		zap.String("to", newVersion.ID),
		zap.Int("files", len(result.Changes)))
	return result, nil
}

// DiffWorkingFile compares the stored blob of a tracked path against the
// file currently on disk.
func (e *Engine) DiffWorkingFile(path string) (*Result, error) {
	if e.tree == nil || e.blobs == nil {
		return nil, fmt.Errorf("diff engine has no working tree or blob source")
	}

	abs, err := e.tree.AbsPath(path)
	if err != nil {
		return nil, err
	}
	content, err := os.ReadFile(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, vcserrors.NotFound("file does not exist: " + path)
		}
		return nil, vcserrors.IOFailure("reading working file", err)
	}

	hash, err := e.tree.StoredHash(path)
	if err != nil {
		return nil, err
	}
	storedLines, err := e.blobs.Lines(hash)
	if err != nil {
		return nil, err
	}

	result := newResult("current", "working")
	changes := e.Diff(storedLines, object.DecodeLines(content))
	if !changes.IsEmpty() {
		result.Changes[path] = &changes
	}
	return result, nil
}

func (e *Engine) linesFor(hash string) ([]string, error) {
	if hash == "" {
		return []string{}, nil
	}
	return e.blobs.Lines(hash)
}

func unionPaths(a, b map[string]string) []string {
	paths := make([]string, 0, len(a)+len(b))
	for p := range a {
		paths = append(paths, p)
	}
	for p := range b {
		if _, ok := a[p]; !ok {
			paths = append(paths, p)
		}
	}
	sort.Strings(paths)
	return paths
}
