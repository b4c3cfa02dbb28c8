package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"vcs/internal/diff"
	"vcs/internal/merge"
	"vcs/internal/repo"
	"vcs/internal/version"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestServer(t *testing.T) (*httptest.Server, *repo.Repository) {
	root := t.TempDir()
	require.NoError(t, repo.Init(root))
	r, err := repo.Open(root, nil, nil)
	require.NoError(t, err)
	t.Cleanup(func() { r.Close() })

	srv := httptest.NewServer(NewRouter(Services{
		Versions: r.Versions,
		Objects:  r.Objects,
		Diff:     r.Diff,
		Merge:    r.Merge,
	}, nil))
	t.Cleanup(srv.Close)
	return srv, r
}

func doJSON(t *testing.T, method, url string, body interface{}) *http.Response {
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func putObject(t *testing.T, srv *httptest.Server, content string) string {
	resp, err := http.Post(srv.URL+"/api/objects", "application/octet-stream", bytes.NewBufferString(content))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var out map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out["hash"]
}

func createVersion(t *testing.T, srv *httptest.Server, message string, hashes map[string]string) *version.Version {
	resp := doJSON(t, "POST", srv.URL+"/api/versions", map[string]interface{}{
		"message":     message,
		"file_hashes": hashes,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var v version.Version
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return &v
}

func TestObjectHandler(t *testing.T) {
	srv, _ := setupTestServer(t)

	hash := putObject(t, srv, "hello")
	assert.Equal(t, hash, putObject(t, srv, "hello"))

	resp, err := http.Get(srv.URL + "/api/objects/" + hash)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var buf bytes.Buffer
	buf.ReadFrom(resp.Body)
	assert.Equal(t, "hello", buf.String())

	tests := []struct {
		name       string
		hash       string
		wantStatus int
	}{
		{"unknown hash", fmt.Sprintf("%064x", 0), http.StatusNotFound},
		{"invalid hash", "not-a-hash", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := http.Get(srv.URL + "/api/objects/" + tt.hash)
			require.NoError(t, err)
			defer resp.Body.Close()
			assert.Equal(t, tt.wantStatus, resp.StatusCode)
		})
	}
}

func TestVersionHandler(t *testing.T) {
	srv, _ := setupTestServer(t)
	hash := putObject(t, srv, "content")

	tests := []struct {
		name       string
		input      map[string]interface{}
		wantStatus int
	}{
		{
			name:       "valid version",
			input:      map[string]interface{}{"message": "first", "file_hashes": map[string]string{"a.txt": hash}},
			wantStatus: http.StatusCreated,
		},
		{
			name:       "missing message",
			input:      map[string]interface{}{"file_hashes": map[string]string{}},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "blank message",
			input:      map[string]interface{}{"message": "  "},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "invalid hash",
			input:      map[string]interface{}{"message": "m", "file_hashes": map[string]string{"a.txt": "zz"}},
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := doJSON(t, "POST", srv.URL+"/api/versions", tt.input)
			assert.Equal(t, tt.wantStatus, resp.StatusCode)
		})
	}

	resp := doJSON(t, "GET", srv.URL+"/api/versions", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var history []version.Version
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&history))
	require.Len(t, history, 1)
	assert.Equal(t, "first", history[0].Message)

	resp = doJSON(t, "GET", srv.URL+"/api/versions/"+history[0].ID, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = doJSON(t, "GET", srv.URL+"/api/versions/missing", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	var errResp errorResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&errResp))
	assert.Equal(t, "NOT_FOUND", string(errResp.Type))
}

func TestDiffHandler(t *testing.T) {
	srv, r := setupTestServer(t)
	v1 := createVersion(t, srv, "v1", map[string]string{"a.txt": putObject(t, srv, "a\nb\nc")})
	v2 := createVersion(t, srv, "v2", map[string]string{"a.txt": putObject(t, srv, "a\nx\nc")})

	resp := doJSON(t, "GET", fmt.Sprintf("%s/api/diff?from=%s&to=%s", srv.URL, v1.ID, v2.ID), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var result diff.Result
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	require.Contains(t, result.Changes, "a.txt")
	require.Len(t, result.Changes["a.txt"].Modifications, 1)
	assert.Equal(t, "x", *result.Changes["a.txt"].Modifications[0].NewContent)

	resp = doJSON(t, "GET", srv.URL+"/api/diff", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	require.NoError(t, os.WriteFile(filepath.Join(r.Root, "w.txt"), []byte("one"), 0644))
	resp = doJSON(t, "GET", srv.URL+"/api/diff?file=w.txt", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestMergeHandler(t *testing.T) {
	srv, r := setupTestServer(t)
	target := createVersion(t, srv, "base", map[string]string{"file.txt": putObject(t, srv, "base\ncommon\nend")})
	source := createVersion(t, srv, "source", map[string]string{"file.txt": putObject(t, srv, "source\ncommon\nend")})

	resp := doJSON(t, "POST", srv.URL+"/api/merge", map[string]string{"source": source.ID, "target": target.ID})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var merged mergeResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&merged))
	assert.False(t, merged.Clean)
	require.Len(t, merged.Conflicts, 1)

	resp = doJSON(t, "GET", srv.URL+"/api/conflicts", nil)
	var conflicts []merge.ConflictInfo
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&conflicts))
	require.Len(t, conflicts, 1)
	assert.Equal(t, "source", conflicts[0].Blocks[0].SourceContent)

	resp = doJSON(t, "POST", srv.URL+"/api/conflicts/resolve", map[string]interface{}{
		"path":     "file.txt",
		"strategy": "bogus",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = doJSON(t, "POST", srv.URL+"/api/conflicts/resolve", map[string]interface{}{
		"path":         "file.txt",
		"strategy":     "CUSTOM",
		"custom_lines": map[string]string{"0": "resolved"},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	content, err := os.ReadFile(filepath.Join(r.Root, "file.txt"))
	require.NoError(t, err)
	assert.Equal(t, "resolved\ncommon\nend", string(content))

	resp = doJSON(t, "POST", srv.URL+"/api/conflicts/resolve", map[string]interface{}{
		"path":     "file.txt",
		"strategy": "KEEP_SOURCE",
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = doJSON(t, "POST", srv.URL+"/api/merge", map[string]string{"source": source.ID, "target": "missing"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHealth(t *testing.T) {
	srv, _ := setupTestServer(t)
	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRejectsPathsOutsideRoot(t *testing.T) {
	srv, r := setupTestServer(t)
	hash := putObject(t, srv, "zzzz\ncommon")

	for _, path := range []string{"../escaped.txt", "/tmp/escaped.txt", "dir/../../escaped.txt"} {
		t.Run(path, func(t *testing.T) {
			resp := doJSON(t, "POST", srv.URL+"/api/versions", map[string]interface{}{
				"message":     "crafted",
				"file_hashes": map[string]string{path: hash},
			})
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		})
	}
	assert.Empty(t, r.Versions.History())

	// A conflict recorded outside the API still cannot be resolved out of the root.
	target, err := r.Objects.Put([]byte("aaaa\ncommon"))
	require.NoError(t, err)
	targetID, err := r.Versions.Create("target", map[string]string{"../escaped.txt": target})
	require.NoError(t, err)
	sourceID, err := r.Versions.Create("source", map[string]string{"../escaped.txt": hash})
	require.NoError(t, err)

	resp := doJSON(t, "POST", srv.URL+"/api/merge", map[string]string{"source": sourceID, "target": targetID})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = doJSON(t, "POST", srv.URL+"/api/conflicts/resolve", map[string]interface{}{
		"path":     "../escaped.txt",
		"strategy": "KEEP_SOURCE",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	_, statErr := os.Stat(filepath.Join(filepath.Dir(r.Root), "escaped.txt"))
	assert.True(t, os.IsNotExist(statErr))
}
