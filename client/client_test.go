package client

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"vcs/internal/api"
	"vcs/internal/errors"
	"vcs/internal/merge"
	"vcs/internal/repo"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestClient(t *testing.T) (*Client, string) {
	root := t.TempDir()
	require.NoError(t, repo.Init(root))
	r, err := repo.Open(root, nil, nil)
	require.NoError(t, err)
	t.Cleanup(func() { r.Close() })

	srv := httptest.NewServer(api.NewRouter(api.Services{
		Versions: r.Versions,
		Objects:  r.Objects,
		Diff:     r.Diff,
		Merge:    r.Merge,
	}, nil))
	t.Cleanup(srv.Close)
	return New(srv.URL), r.Root
}

func TestClient(t *testing.T) {
	c, root := setupTestClient(t)

	baseHash, err := c.PutObject([]byte("base\ncommon\nend"))
	require.NoError(t, err)
	sourceHash, err := c.PutObject([]byte("source\ncommon\nend"))
	require.NoError(t, err)

	content, err := c.GetObject(baseHash)
	require.NoError(t, err)
	assert.Equal(t, "base\ncommon\nend", string(content))

	target, err := c.CreateVersion("base", map[string]string{"file.txt": baseHash})
	require.NoError(t, err)
	source, err := c.CreateVersion("source", map[string]string{"file.txt": sourceHash})
	require.NoError(t, err)

	got, err := c.GetVersion(source.ID)
	require.NoError(t, err)
	assert.Equal(t, sourceHash, got.FileHashes["file.txt"])

	history, err := c.History()
	require.NoError(t, err)
	assert.Len(t, history, 2)

	result, err := c.DiffVersions(target.ID, source.ID)
	require.NoError(t, err)
	assert.Len(t, result.Changes["file.txt"].Modifications, 1)

	merged, err := c.Merge(source.ID, target.ID)
	require.NoError(t, err)
	assert.False(t, merged.Clean)
	require.Len(t, merged.Conflicts, 1)

	conflicts, err := c.Conflicts()
	require.NoError(t, err)
	require.Len(t, conflicts, 1)

	hash, err := c.Resolve("file.txt", merge.KeepTarget, nil)
	require.NoError(t, err)
	assert.Equal(t, baseHash, hash)

	data, err := os.ReadFile(filepath.Join(root, "file.txt"))
	require.NoError(t, err)
	assert.Equal(t, "base\ncommon\nend", string(data))
}

func TestClientErrors(t *testing.T) {
	c, _ := setupTestClient(t)

	_, err := c.GetVersion("missing")
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeNotFound))
	assert.Equal(t, http.StatusNotFound, errors.StatusCode(err))

	_, err = c.Resolve("nothing.txt", merge.KeepSource, nil)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConflict))

	_, err = c.DiffWorkingFile("absent.txt")
	assert.True(t, errors.IsType(err, errors.ErrorTypeNotFound))
}
