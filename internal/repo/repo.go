// internal/repo/repo.go
package repo

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"vcs/internal/config"
	"vcs/internal/diff"
	vcserrors "vcs/internal/errors"
	"vcs/internal/logging"
	"vcs/internal/merge"
	"vcs/internal/object"
	"vcs/internal/tracker"
	"vcs/internal/version"

	"github.com/dgraph-io/badger/v4"
	"go.uber.org/zap"
)

const MetaDir = ".vcs"

// Repository wires the stores and engines of one working tree.
type Repository struct {
	Root     string
	Objects  *object.Store
	Versions *version.Store
	Tracker  *tracker.Tracker
	Diff     *diff.Engine
	Merge    *merge.Engine

	db      *badger.DB
	watcher *tracker.Watcher
	logger  *zap.Logger
}

func metaPath(root string, parts ...string) string {
	return filepath.Join(append([]string{root, MetaDir}, parts...)...)
}

// Init creates the repository layout under root. Running it on an existing
// repository is harmless.
func Init(root string) error {
	dirs := []string{
		metaPath(root, "objects"),
		metaPath(root, "versions"),
		metaPath(root, "db"),
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating directory %s: %w", dir, err)
		}
	}
	return nil
}

// FindRoot walks up from startDir to the nearest directory holding MetaDir.
func FindRoot(startDir string) (string, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", err
	}

	for {
		if IsRepository(dir) {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return "", vcserrors.NotFound(fmt.Sprintf("not a repository (or any parent up to /): %s", startDir))
}

// IsRepository reports whether root has been initialized.
func IsRepository(root string) bool {
	info, err := os.Stat(metaPath(root))
	return err == nil && info.IsDir()
}

func Open(root string, cfg *config.Config, logger *zap.Logger) (*Repository, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	logger = logging.OrNop(logger)

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("getting absolute path for root %s: %w", root, err)
	}
	if !IsRepository(absRoot) {
		return nil, vcserrors.NotFound("not a repository (run init first): " + absRoot)
	}
	if err := Init(absRoot); err != nil {
		return nil, err
	}

	comp := object.DefaultCompressionOptions()
	comp.Enabled = cfg.Compression.Enabled
	if cfg.Compression.Level > 0 {
		comp.Level = cfg.Compression.Level
	}
	if cfg.Compression.MinSize > 0 {
		comp.MinSize = cfg.Compression.MinSize
	}

	objects, err := object.New(metaPath(absRoot, "objects"), object.Options{
		CacheSize:   cfg.Cache.Size,
		Compression: comp,
		Logger:      logger.Named("objects"),
	})
	if err != nil {
		return nil, fmt.Errorf("initializing object store: %w", err)
	}

	versions, err := version.New(metaPath(absRoot, "versions"), version.Options{
		Author: cfg.Author,
		Logger: logger.Named("versions"),
	})
	if err != nil {
		return nil, fmt.Errorf("initializing version store: %w", err)
	}

	db, err := openDB(metaPath(absRoot, "db"))
	if err != nil {
		return nil, err
	}

	tr, err := tracker.New(absRoot, db, objects, tracker.Options{
		Ignore: cfg.Tracker.Ignore,
		Logger: logger.Named("tracker"),
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing tracker: %w", err)
	}

	r := &Repository{
		Root:     absRoot,
		Objects:  objects,
		Versions: versions,
		Tracker:  tr,
		db:       db,
		logger:   logger,
	}

	r.Diff = diff.NewEngine(diff.Options{
		Versions: versions,
		Blobs:    objects,
		Tree:     tr,
		Logger:   logger.Named("diff"),
	})

	threshold := cfg.Merge.SimilarityThreshold
	r.Merge, err = merge.NewEngine(merge.Options{
		Versions:  versions,
		Blobs:     objects,
		Root:      absRoot,
		Threshold: &threshold,
		Logger:    logger.Named("merge"),
		Notify:    r.onResolved,
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	if cfg.Tracker.Watch {
		r.watcher, err = tracker.NewWatcher(tr)
		if err != nil {
			db.Close()
			return nil, err
		}
	}

	return r, nil
}

// onResolved refreshes the tracked status of a file written by a resolution.
func (r *Repository) onResolved(path, hash string) {
	if _, err := r.Tracker.ClearConflict(path); err != nil && !vcserrors.IsType(err, vcserrors.ErrorTypeNotFound) {
		r.logger.Warn("refreshing resolved file", zap.String("path", path), zap.Error(err))
	}
}

// Commit snapshots every tracked file into a new version.
func (r *Repository) Commit(message string) (*version.Version, error) {
	hashes, err := r.Tracker.Snapshot()
	if err != nil {
		return nil, fmt.Errorf("snapshotting tracked files: %w", err)
	}

	id, err := r.Versions.Create(message, hashes)
	if err != nil {
		return nil, err
	}

	if err := r.Tracker.Commit(hashes); err != nil {
		return nil, fmt.Errorf("updating tracked state: %w", err)
	}

	return r.Versions.Get(id), nil
}

// MergeVersions runs a merge and flags tracked files that now conflict.
func (r *Repository) MergeVersions(sourceID, targetID string) (*merge.Report, error) {
	report, err := r.Merge.MergeReport(sourceID, targetID)
	if err != nil {
		return nil, err
	}

	for _, c := range report.Conflicts {
		err := r.Tracker.MarkConflicted(c.FilePath)
		switch {
		case err == nil:
		case vcserrors.IsType(err, vcserrors.ErrorTypeNotFound):
		case vcserrors.IsType(err, vcserrors.ErrorTypeInvalidInput):
			r.logger.Warn("conflict path outside working tree", zap.String("path", c.FilePath))
		default:
			return nil, err
		}
	}
	return report, nil
}

// Revert writes every file of a version back into the working tree and
// tracks it at that content.
func (r *Repository) Revert(id string) error {
	v, err := r.Versions.Lookup(id)
	if err != nil {
		return err
	}

	paths := make([]string, 0, len(v.FileHashes))
	for p := range v.FileHashes {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	// Resolve every path and blob before touching the working tree.
	type restore struct {
		abs     string
		content []byte
	}
	restores := make([]restore, 0, len(paths))
	for _, p := range paths {
		abs, err := r.Tracker.AbsPath(p)
		if err != nil {
			return fmt.Errorf("restoring %s: %w", p, err)
		}
		content, err := r.Objects.Get(v.FileHashes[p])
		if err != nil {
			return fmt.Errorf("restoring %s: %w", p, err)
		}
		restores = append(restores, restore{abs: abs, content: content})
	}

	for i, rs := range restores {
		if err := os.MkdirAll(filepath.Dir(rs.abs), 0755); err != nil {
			return vcserrors.IOFailure("creating directory for "+paths[i], err)
		}
		if err := os.WriteFile(rs.abs, rs.content, 0644); err != nil {
			return vcserrors.IOFailure("writing "+paths[i], err)
		}
	}

	if err := r.Tracker.Track(paths); err != nil {
		return err
	}

	r.logger.Info("reverted working tree", zap.String("version", v.ID), zap.Int("files", len(paths)))
	return nil
}

func (r *Repository) Close() error {
	if r.watcher != nil {
		if err := r.watcher.Close(); err != nil {
			r.logger.Warn("closing watcher", zap.Error(err))
		}
	}
	return r.db.Close()
}
