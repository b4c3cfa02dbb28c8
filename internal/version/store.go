// internal/version/store.go
package version

import (
	"encoding/json"
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	vcserrors "vcs/internal/errors"
	"vcs/internal/logging"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Options struct {
	// Author recorded on new versions; defaults to the OS user name.
	Author string
	Logger *zap.Logger
}

// Store persists versions as one JSON file per id under <repo>/.vcs/versions
// and keeps every version in memory. Lookups go through a concurrent index;
// history is kept in creation order.
type Store struct {
	dir    string
	author string
	logger *zap.Logger

	index sync.Map // id -> *Version

	mu      sync.RWMutex
	history []*Version
}

func New(dir string, opts Options) (*Store, error) {
	if dir == "" {
		return nil, fmt.Errorf("versions directory is required")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, vcserrors.IOFailure("creating versions directory", err)
	}

	s := &Store{
		dir:    dir,
		author: opts.Author,
		logger: logging.OrNop(opts.Logger),
	}
	if s.author == "" {
		s.author = defaultAuthor()
	}

	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func defaultAuthor() string {
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username
	}
	if name := os.Getenv("USER"); name != "" {
		return name
	}
	return "unknown"
}

// load reads every version file. Unreadable or corrupted records are skipped.
func (s *Store) load() error {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return vcserrors.IOFailure("reading versions directory", err)
	}

	var loaded []*Version
	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}

		path := filepath.Join(s.dir, entry.Name())
		v, err := readVersionFile(path)
		if err != nil {
			s.logger.Warn("skipping unreadable version file",
				zap.String("path", path),
				zap.Error(err))
			continue
		}
		if v.ID != entry.Name() {
			s.logger.Warn("skipping version file with mismatched id",
				zap.String("path", path),
				zap.String("id", v.ID))
			continue
		}
		loaded = append(loaded, v)
	}

	sort.SliceStable(loaded, func(i, j int) bool {
		if !loaded[i].Timestamp.Equal(loaded[j].Timestamp) {
			return loaded[i].Timestamp.Before(loaded[j].Timestamp)
		}
		return loaded[i].ID < loaded[j].ID
	})

	for _, v := range loaded {
		s.index.Store(v.ID, v)
	}
	s.history = loaded

	s.logger.Debug("loaded version history", zap.Int("versions", len(loaded)))
	return nil
}

func readVersionFile(path string) (*Version, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var v Version
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("decoding version: %w", err)
	}
	if v.ID == "" {
		return nil, fmt.Errorf("version record has no id")
	}
	if v.FileHashes == nil {
		v.FileHashes = map[string]string{}
	}
	return &v, nil
}

// Create records a new version and returns its id. Hashes are not checked
// against the object store.
func (s *Store) Create(message string, fileHashes map[string]string) (string, error) {
	if strings.TrimSpace(message) == "" {
		return "", vcserrors.InvalidInput("version message cannot be empty")
	}

	v := &Version{
		ID:         uuid.New().String(),
		Message:    message,
		Author:     s.author,
		Timestamp:  time.Now().UTC(),
		FileHashes: make(map[string]string, len(fileHashes)),
	}
	for path, hash := range fileHashes {
		v.FileHashes[path] = hash
	}

	if err := s.persist(v); err != nil {
		return "", err
	}

	s.index.Store(v.ID, v)
	s.mu.Lock()
	s.history = append(s.history, v)
	s.mu.Unlock()

	s.logger.Info("version created",
		zap.String("id", v.ID),
		zap.String("author", v.Author),
		zap.Int("files", len(v.FileHashes)))
	return v.ID, nil
}

func (s *Store) persist(v *Version) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return vcserrors.IOFailure("marshaling version", err)
	}

	tmp, err := os.CreateTemp(s.dir, ".tmp-"+v.ID+"-*")
	if err != nil {
		return vcserrors.IOFailure("creating version file", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return vcserrors.IOFailure("writing version file", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return vcserrors.IOFailure("closing version file", err)
	}
	if err := os.Rename(tmpName, filepath.Join(s.dir, v.ID)); err != nil {
		os.Remove(tmpName)
		return vcserrors.IOFailure("publishing version file", err)
	}
	return nil
}

// Get returns a copy of the version, or nil if the id is unknown.
func (s *Store) Get(id string) *Version {
	v, ok := s.index.Load(id)
	if !ok {
		return nil
	}
	return v.(*Version).clone()
}

// Lookup is Get with a NotFound error for unknown ids.
func (s *Store) Lookup(id string) (*Version, error) {
	v := s.Get(id)
	if v == nil {
		return nil, vcserrors.NotFound("version not found: " + id)
	}
	return v, nil
}

// History returns all versions in creation order.
func (s *Store) History() []*Version {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Version, len(s.history))
	for i, v := range s.history {
		out[i] = v.clone()
	}
	return out
}

// Current returns the most recently created version, or nil.
func (s *Store) Current() *Version {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.history) == 0 {
		return nil
	}
	return s.history[len(s.history)-1].clone()
}

// Find returns the first version in history matching pred.
func (s *Store) Find(pred func(*Version) bool) *Version {
	for _, v := range s.History() {
		if pred(v) {
			return v
		}
	}
	return nil
}

func (s *Store) ByAuthor(author string) []*Version {
	var result []*Version
	for _, v := range s.History() {
		if v.Author == author {
			result = append(result, v)
		}
	}
	return result
}

func (s *Store) Dir() string {
	return s.dir
}
