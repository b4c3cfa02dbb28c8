// internal/object/store.go
package object

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	vcserrors "vcs/internal/errors"
	"vcs/internal/logging"
	"vcs/shared/utils"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
)

// Options configures Store behavior
type Options struct {
	CacheSize   int // Number of blobs to keep decoded in memory
	Compression CompressionOptions
	Logger      *zap.Logger
	// Notify is called after a new blob file has been written.
	Notify func(hash string)
}

// Store is the content-addressed blob store under <repo>/.vcs/objects.
// Each blob lives in a file named by the lowercase hex SHA-256 of its content.
type Store struct {
	root   string
	cache  *lru.Cache[string, []byte]
	comp   *compressionManager
	logger *zap.Logger
	notify func(hash string)
}

func New(root string, opts Options) (*Store, error) {
	if root == "" {
		return nil, fmt.Errorf("objects directory is required")
	}
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, vcserrors.IOFailure("creating objects directory", err)
	}

	if opts.CacheSize <= 0 {
		opts.CacheSize = 1000
	}
	cache, err := lru.New[string, []byte](opts.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("creating cache: %w", err)
	}

	comp, err := newCompressionManager(opts.Compression)
	if err != nil {
		return nil, err
	}

	return &Store{
		root:   root,
		cache:  cache,
		comp:   comp,
		logger: logging.OrNop(opts.Logger),
		notify: opts.Notify,
	}, nil
}

// Put stores content and returns its hash. Storing content that is already
// present is a no-op.
func (s *Store) Put(content []byte) (string, error) {
	if content == nil {
		content = []byte{}
	}
	hash := utils.HashContent(content)
	path := s.Path(hash)

	if _, err := os.Stat(path); err == nil {
		s.logger.Debug("object already stored", zap.String("hash", hash))
		s.cache.Add(hash, bytes.Clone(content))
		return hash, nil
	} else if !os.IsNotExist(err) {
		return "", vcserrors.IOFailure("checking object "+hash, err)
	}

	data, err := s.comp.compress(content)
	if err != nil {
		return "", vcserrors.IOFailure("compressing object "+hash, err)
	}

	// Write to a private temp file and rename into place, so concurrent
	// writers of the same hash each leave a complete file behind.
	tmp, err := os.CreateTemp(s.root, ".tmp-"+hash[:12]+"-*")
	if err != nil {
		return "", vcserrors.IOFailure("creating temp object", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return "", vcserrors.IOFailure("writing object "+hash, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return "", vcserrors.IOFailure("closing object "+hash, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return "", vcserrors.IOFailure("publishing object "+hash, err)
	}

	s.cache.Add(hash, bytes.Clone(content))
	s.logger.Debug("object stored",
		zap.String("hash", hash),
		zap.Int("size", len(content)),
		zap.Int("stored_size", len(data)))

	if s.notify != nil {
		s.notify(hash)
	}
	return hash, nil
}

// Get returns the content stored under hash. The cache never shares its
// buffers with callers, so the result may be modified freely.
func (s *Store) Get(hash string) ([]byte, error) {
	if !utils.IsHash(hash) {
		return nil, vcserrors.InvalidInput(fmt.Sprintf("invalid object hash %q", hash))
	}

	if content, ok := s.cache.Get(hash); ok {
		return bytes.Clone(content), nil
	}

	data, err := os.ReadFile(s.Path(hash))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, vcserrors.NotFound("object not found: " + hash)
		}
		return nil, vcserrors.IOFailure("reading object "+hash, err)
	}

	content := data
	if decoded, ok := s.comp.decompress(data); ok && utils.HashContent(decoded) == hash {
		content = decoded
	}

	s.cache.Add(hash, bytes.Clone(content))
	return content, nil
}

// Lines returns the blob as a sequence of text lines (see DecodeLines).
func (s *Store) Lines(hash string) ([]string, error) {
	content, err := s.Get(hash)
	if err != nil {
		return nil, err
	}
	return DecodeLines(content), nil
}

// Exists checks if content exists
func (s *Store) Exists(hash string) bool {
	if !utils.IsHash(hash) {
		return false
	}
	if s.cache.Contains(hash) {
		return true
	}
	_, err := os.Stat(s.Path(hash))
	return err == nil
}

func (s *Store) Path(hash string) string {
	return filepath.Join(s.root, hash)
}

func (s *Store) Root() string {
	return s.root
}
