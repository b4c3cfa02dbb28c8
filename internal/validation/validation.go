package validation

import (
	"encoding/json"
	"fmt"
	"net/http"

	"vcs/internal/errors"
	"vcs/internal/merge"
	"vcs/shared/utils"
)

// maxBodySize bounds JSON request bodies.
const maxBodySize = 10 << 20

type Validator interface {
	Validate() error
}

// DecodeJSON decodes the request body into v and validates it.
func DecodeJSON(r *http.Request, v Validator) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodySize))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return errors.InvalidInput("invalid request body: " + err.Error())
	}
	return v.Validate()
}

type CreateVersionRequest struct {
	Message    *string           `json:"message"`
	FileHashes map[string]string `json:"file_hashes"`
}

func (r *CreateVersionRequest) Validate() error {
	if r.Message == nil {
		return errors.InvalidInput("message is required")
	}
	for path, hash := range r.FileHashes {
		cleaned, err := utils.CleanRepoPath(path)
		if err != nil {
			return err
		}
		if cleaned != path {
			return errors.InvalidInput(fmt.Sprintf("file path %q is not clean, use %q", path, cleaned))
		}
		if !utils.IsHash(hash) {
			return errors.InvalidInput(fmt.Sprintf("invalid hash for %s", path))
		}
	}
	return nil
}

type MergeRequest struct {
	Source string `json:"source"`
	Target string `json:"target"`
}

func (r *MergeRequest) Validate() error {
	if r.Source == "" || r.Target == "" {
		return errors.InvalidInput("source and target are required")
	}
	return nil
}

type ResolveRequest struct {
	Path        string         `json:"path"`
	Strategy    string         `json:"strategy"`
	CustomLines map[int]string `json:"custom_lines"`
}

func (r *ResolveRequest) Validate() error {
	if r.Path == "" {
		return errors.InvalidInput("path is required")
	}
	if _, err := utils.CleanRepoPath(r.Path); err != nil {
		return err
	}
	_, err := merge.ParseStrategy(r.Strategy)
	return err
}

// Resolution converts a validated request.
func (r *ResolveRequest) Resolution() merge.Resolution {
	strategy, _ := merge.ParseStrategy(r.Strategy)
	return merge.Resolution{
		FilePath:    r.Path,
		Strategy:    strategy,
		CustomLines: r.CustomLines,
	}
}
