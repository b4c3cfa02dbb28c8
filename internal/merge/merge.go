// internal/merge/merge.go
package merge

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	vcserrors "vcs/internal/errors"
	"vcs/internal/logging"
	"vcs/internal/object"
	"vcs/internal/version"
	"vcs/shared/utils"

	"go.uber.org/zap"
)

const DefaultSimilarityThreshold = 0.5

type VersionSource interface {
	Lookup(id string) (*version.Version, error)
}

type BlobStore interface {
	Lines(hash string) ([]string, error)
	Put(content []byte) (string, error)
}

type Options struct {
	Versions VersionSource
	Blobs    BlobStore
	// Root is the directory conflict paths are written under. Paths that
	// would leave it are refused.
	Root string
	// Threshold below which a differing block is a conflict. Nil means
	// DefaultSimilarityThreshold; zero accepts every block.
	Threshold *float64
	Logger    *zap.Logger
	// Notify is called after a resolution has been written.
	Notify func(path, hash string)
}

// Engine scans two versions for conflicting files and keeps the conflicts
// of the last Merge pending until they are resolved.
//
// Merge and ResolveConflict mutate the pending set. The mutex only keeps the
// set memory safe: callers must serialize Merge and ResolveConflict on one
// engine themselves, otherwise which merge's conflicts remain pending is
// unspecified.
type Engine struct {
	versions  VersionSource
	blobs     BlobStore
	root      string
	threshold float64
	logger    *zap.Logger
	notify    func(path, hash string)

	mu      sync.Mutex
	pending []*ConflictInfo
}

func NewEngine(opts Options) (*Engine, error) {
	if opts.Versions == nil || opts.Blobs == nil {
		return nil, fmt.Errorf("merge engine requires a version source and a blob store")
	}
	threshold := DefaultSimilarityThreshold
	if opts.Threshold != nil {
		threshold = *opts.Threshold
	}
	if threshold < 0 || threshold > 1 {
		return nil, vcserrors.InvalidInput(fmt.Sprintf("similarity threshold %v out of range [0,1]", threshold))
	}

	return &Engine{
		versions:  opts.Versions,
		blobs:     opts.Blobs,
		root:      opts.Root,
		threshold: threshold,
		logger:    logging.OrNop(opts.Logger),
		notify:    opts.Notify,
	}, nil
}

// Scan compares every file of the source version with the same path in the
// target version. It does not touch the pending set. Paths only in the
// source, or with identical hashes, never conflict.
func (e *Engine) Scan(sourceID, targetID string) (*Report, error) {
	source, err := e.versions.Lookup(sourceID)
	if err != nil {
		return nil, err
	}
	target, err := e.versions.Lookup(targetID)
	if err != nil {
		return nil, err
	}

	report := &Report{
		Source:    source.ID,
		Target:    target.ID,
		Conflicts: []*ConflictInfo{},
		Accepted:  []AcceptedBlock{},
	}

	paths := make([]string, 0, len(source.FileHashes))
	for p := range source.FileHashes {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	for _, path := range paths {
		sourceHash := source.FileHashes[path]
		targetHash, ok := target.FileHashes[path]
		if !ok || sourceHash == targetHash {
			continue
		}

		sourceLines, err := e.blobs.Lines(sourceHash)
		if err != nil {
			return nil, fmt.Errorf("loading %s from %s: %w", path, source.ID, err)
		}
		targetLines, err := e.blobs.Lines(targetHash)
		if err != nil {
			return nil, fmt.Errorf("loading %s from %s: %w", path, target.ID, err)
		}

		conflicts, accepted := scanFile(sourceLines, targetLines, e.threshold)
		for _, block := range accepted {
			report.Accepted = append(report.Accepted, AcceptedBlock{FilePath: path, Block: block})
		}
		if len(conflicts) > 0 {
			report.Conflicts = append(report.Conflicts, &ConflictInfo{
				FilePath:          path,
				SourceVersionHash: sourceHash,
				TargetVersionHash: targetHash,
				Blocks:            conflicts,
				Status:            StatusUnresolved,
			})
		}
	}

	return report, nil
}

// Merge scans the two versions and replaces the pending conflicts with the
// result. It reports true when no file conflicts. Accepted near-matches are
// not merged into any file.
func (e *Engine) Merge(sourceID, targetID string) (bool, error) {
	report, err := e.MergeReport(sourceID, targetID)
	if err != nil {
		return false, err
	}
	return report.Clean(), nil
}

// MergeReport is Merge returning the full scan report.
func (e *Engine) MergeReport(sourceID, targetID string) (*Report, error) {
	report, err := e.Scan(sourceID, targetID)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	e.pending = report.Conflicts
	e.mu.Unlock()

	e.logger.Info("merge scanned",
		zap.String("source", report.Source),
		zap.String("target", report.Target),
		zap.Int("conflicts", len(report.Conflicts)),
		zap.Int("accepted", len(report.Accepted)))
	return report, nil
}

// Conflicts returns a copy of the pending conflicts.
func (e *Engine) Conflicts() []*ConflictInfo {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]*ConflictInfo, len(e.pending))
	for i, c := range e.pending {
		out[i] = c.clone()
	}
	return out
}

// ResolveConflict writes the resolved content of path to the object store
// and the working file, then drops the conflict. It returns the new blob hash.
func (e *Engine) ResolveConflict(path string, res Resolution) (string, error) {
	if !res.Strategy.Valid() {
		return "", vcserrors.InvalidInput(fmt.Sprintf("invalid resolution strategy: %q", res.Strategy))
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	idx := -1
	for i, c := range e.pending {
		if c.FilePath == path {
			idx = i
			break
		}
	}
	if idx == -1 {
		return "", vcserrors.Conflict("no conflict found for file: " + path)
	}
	conflict := e.pending[idx]

	sourceLines, err := e.blobs.Lines(conflict.SourceVersionHash)
	if err != nil {
		return "", err
	}
	targetLines, err := e.blobs.Lines(conflict.TargetVersionHash)
	if err != nil {
		return "", err
	}

	working, err := utils.JoinRepoPath(e.root, path)
	if err != nil {
		return "", err
	}

	content := []byte(object.JoinLines(applyResolution(conflict.Blocks, sourceLines, targetLines, res)))
	hash, err := e.blobs.Put(content)
	if err != nil {
		return "", err
	}
	if err := writeWorkingFile(working, content); err != nil {
		return "", err
	}

	conflict.Status = res.Strategy.resolvedStatus()
	e.pending = append(e.pending[:idx:idx], e.pending[idx+1:]...)

	e.logger.Info("conflict resolved",
		zap.String("path", path),
		zap.String("status", string(conflict.Status)),
		zap.String("hash", hash))
	if e.notify != nil {
		e.notify(path, hash)
	}
	return hash, nil
}

func writeWorkingFile(abs string, content []byte) error {
	if err := os.MkdirAll(filepath.Dir(abs), 0755); err != nil {
		return vcserrors.IOFailure("creating working directory", err)
	}
	if err := os.WriteFile(abs, content, 0644); err != nil {
		return vcserrors.IOFailure("writing working file", err)
	}
	return nil
}
