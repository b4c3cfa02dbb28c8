// client/client.go
package client

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"vcs/internal/diff"
	"vcs/internal/errors"
	"vcs/internal/merge"
	"vcs/internal/version"
)

type Client struct {
	baseURL    string
	httpClient *http.Client
}

func New(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: time.Second * 10,
		},
	}
}

// MergeResult is the server's answer to a merge request.
type MergeResult struct {
	Clean bool `json:"clean"`
	merge.Report
}

// decodeError turns a non-success response into an *errors.Error carrying
// the HTTP status.
func decodeError(resp *http.Response) error {
	var body struct {
		Error string           `json:"error"`
		Type  errors.ErrorType `json:"type"`
	}
	data, _ := io.ReadAll(resp.Body)
	if err := json.Unmarshal(data, &body); err != nil || body.Error == "" {
		body.Error = fmt.Sprintf("unexpected status: %s", resp.Status)
	}
	return &errors.Error{Type: body.Type, Message: body.Error, Code: resp.StatusCode}
}

func (c *Client) do(method, path, contentType string, body io.Reader, want int, out interface{}) error {
	req, err := http.NewRequest(method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != want {
		return decodeError(resp)
	}
	if out == nil {
		return nil
	}
	if raw, ok := out.(*[]byte); ok {
		*raw, err = io.ReadAll(resp.Body)
		return err
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *Client) postJSON(path string, in interface{}, want int, out interface{}) error {
	data, err := json.Marshal(in)
	if err != nil {
		return err
	}
	return c.do(http.MethodPost, path, "application/json", bytes.NewBuffer(data), want, out)
}

// Object operations
func (c *Client) PutObject(content []byte) (string, error) {
	var out struct {
		Hash string `json:"hash"`
	}
	err := c.do(http.MethodPost, "/api/objects", "application/octet-stream", bytes.NewReader(content), http.StatusCreated, &out)
	return out.Hash, err
}

func (c *Client) GetObject(hash string) ([]byte, error) {
	var content []byte
	err := c.do(http.MethodGet, "/api/objects/"+url.PathEscape(hash), "", nil, http.StatusOK, &content)
	return content, err
}

// Version operations
func (c *Client) CreateVersion(message string, fileHashes map[string]string) (*version.Version, error) {
	req := map[string]interface{}{
		"message":     message,
		"file_hashes": fileHashes,
	}
	var v version.Version
	if err := c.postJSON("/api/versions", req, http.StatusCreated, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

func (c *Client) GetVersion(id string) (*version.Version, error) {
	var v version.Version
	if err := c.do(http.MethodGet, "/api/versions/"+url.PathEscape(id), "", nil, http.StatusOK, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

func (c *Client) History() ([]*version.Version, error) {
	var history []*version.Version
	if err := c.do(http.MethodGet, "/api/versions", "", nil, http.StatusOK, &history); err != nil {
		return nil, err
	}
	return history, nil
}

// Diff operations
func (c *Client) DiffVersions(from, to string) (*diff.Result, error) {
	q := url.Values{"from": {from}, "to": {to}}
	var result diff.Result
	if err := c.do(http.MethodGet, "/api/diff?"+q.Encode(), "", nil, http.StatusOK, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) DiffWorkingFile(path string) (*diff.Result, error) {
	q := url.Values{"file": {path}}
	var result diff.Result
	if err := c.do(http.MethodGet, "/api/diff?"+q.Encode(), "", nil, http.StatusOK, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Merge operations
func (c *Client) Merge(source, target string) (*MergeResult, error) {
	var result MergeResult
	req := map[string]string{"source": source, "target": target}
	if err := c.postJSON("/api/merge", req, http.StatusOK, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) Conflicts() ([]*merge.ConflictInfo, error) {
	var conflicts []*merge.ConflictInfo
	if err := c.do(http.MethodGet, "/api/conflicts", "", nil, http.StatusOK, &conflicts); err != nil {
		return nil, err
	}
	return conflicts, nil
}

// Resolve returns the hash of the resolved content.
func (c *Client) Resolve(path string, strategy merge.Strategy, customLines map[int]string) (string, error) {
	req := map[string]interface{}{
		"path":         path,
		"strategy":     strategy,
		"custom_lines": customLines,
	}
	var out struct {
		Hash string `json:"hash"`
	}
	err := c.postJSON("/api/conflicts/resolve", req, http.StatusOK, &out)
	return out.Hash, err
}
