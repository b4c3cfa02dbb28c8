package api

import (
	"net/http"
	"sync"

	"vcs/internal/diff"
	"vcs/internal/errors"
	"vcs/internal/logging"
	"vcs/internal/merge"
	"vcs/internal/validation"

	"go.uber.org/zap"
)

type DiffBox interface {
	DiffVersions(oldID, newID string) (*diff.Result, error)
	DiffWorkingFile(path string) (*diff.Result, error)
}

type MergeBox interface {
	MergeReport(sourceID, targetID string) (*merge.Report, error)
	Conflicts() []*merge.ConflictInfo
	ResolveConflict(path string, res merge.Resolution) (string, error)
}

type DiffHandler struct {
	box    DiffBox
	logger *zap.Logger
}

func NewDiffHandler(box DiffBox, logger *zap.Logger) *DiffHandler {
	return &DiffHandler{box: box, logger: logging.OrNop(logger)}
}

// Diff serves ?from=&to= version diffs and ?file= working file diffs.
func (h *DiffHandler) Diff(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var (
		result *diff.Result
		err    error
	)
	switch {
	case q.Get("file") != "":
		result, err = h.box.DiffWorkingFile(q.Get("file"))
	case q.Get("from") != "" && q.Get("to") != "":
		result, err = h.box.DiffVersions(q.Get("from"), q.Get("to"))
	default:
		err = errors.InvalidInput("either file or from and to are required")
	}
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type mergeResponse struct {
	Clean bool `json:"clean"`
	*merge.Report
}

type resolveResponse struct {
	Path string `json:"path"`
	Hash string `json:"hash"`
}

// MergeHandler serializes merges and resolutions, since the engine's
// pending conflicts expect a single writer.
type MergeHandler struct {
	box    MergeBox
	logger *zap.Logger
	mu     sync.Mutex
}

func NewMergeHandler(box MergeBox, logger *zap.Logger) *MergeHandler {
	return &MergeHandler{box: box, logger: logging.OrNop(logger)}
}

func (h *MergeHandler) Merge(w http.ResponseWriter, r *http.Request) {
	var req validation.MergeRequest
	if err := validation.DecodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	h.mu.Lock()
	report, err := h.box.MergeReport(req.Source, req.Target)
	h.mu.Unlock()
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, mergeResponse{Clean: report.Clean(), Report: report})
}

func (h *MergeHandler) Conflicts(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.box.Conflicts())
}

func (h *MergeHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	var req validation.ResolveRequest
	if err := validation.DecodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	h.mu.Lock()
	hash, err := h.box.ResolveConflict(req.Path, req.Resolution())
	h.mu.Unlock()
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, resolveResponse{Path: req.Path, Hash: hash})
}
