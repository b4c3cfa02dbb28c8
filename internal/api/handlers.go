// internal/api/handlers.go
package api

import (
	"encoding/json"
	"io"
	"net/http"

	"vcs/internal/errors"
	"vcs/internal/logging"
	"vcs/internal/validation"
	"vcs/internal/version"

	"go.uber.org/zap"
)

// maxObjectSize bounds uploaded blobs.
const maxObjectSize = 64 << 20

type VersionBox interface {
	Create(message string, fileHashes map[string]string) (string, error)
	Lookup(id string) (*version.Version, error)
	History() []*version.Version
}

type ObjectBox interface {
	Put(content []byte) (string, error)
	Get(hash string) ([]byte, error)
}

type errorResponse struct {
	Error string           `json:"error"`
	Type  errors.ErrorType `json:"type,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError maps err to its HTTP status. Untyped errors are 500s.
func writeError(w http.ResponseWriter, logger *zap.Logger, err error) {
	status := errors.StatusCode(err)
	resp := errorResponse{Error: err.Error()}

	var e *errors.Error
	if errors.As(err, &e) {
		resp.Type = e.Type
	}
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", zap.Error(err))
	}
	writeJSON(w, status, resp)
}

type VersionHandler struct {
	box    VersionBox
	logger *zap.Logger
}

func NewVersionHandler(box VersionBox, logger *zap.Logger) *VersionHandler {
	return &VersionHandler{box: box, logger: logging.OrNop(logger)}
}

func (h *VersionHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req validation.CreateVersionRequest
	if err := validation.DecodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	id, err := h.box.Create(*req.Message, req.FileHashes)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	v, err := h.box.Lookup(id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, v)
}

func (h *VersionHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, h.logger, errors.InvalidInput("missing id"))
		return
	}

	v, err := h.box.Lookup(id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (h *VersionHandler) List(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.box.History())
}

type ObjectHandler struct {
	box    ObjectBox
	logger *zap.Logger
}

func NewObjectHandler(box ObjectBox, logger *zap.Logger) *ObjectHandler {
	return &ObjectHandler{box: box, logger: logging.OrNop(logger)}
}

// Put stores the raw request body as a blob.
func (h *ObjectHandler) Put(w http.ResponseWriter, r *http.Request) {
	content, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxObjectSize))
	if err != nil {
		writeError(w, h.logger, errors.InvalidInput("reading body: "+err.Error()))
		return
	}

	hash, err := h.box.Put(content)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"hash": hash})
}

func (h *ObjectHandler) Get(w http.ResponseWriter, r *http.Request) {
	content, err := h.box.Get(r.PathValue("hash"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	w.WriteHeader(http.StatusOK)
	w.Write(content)
}
