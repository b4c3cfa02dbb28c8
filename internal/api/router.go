package api

import (
	"net/http"

	"go.uber.org/zap"
)

type Services struct {
	Versions VersionBox
	Objects  ObjectBox
	Diff     DiffBox
	Merge    MergeBox
}

func NewRouter(s Services, logger *zap.Logger) *http.ServeMux {
	versionHandler := NewVersionHandler(s.Versions, logger)
	objectHandler := NewObjectHandler(s.Objects, logger)
	diffHandler := NewDiffHandler(s.Diff, logger)
	mergeHandler := NewMergeHandler(s.Merge, logger)

	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", healthCheck)

	mux.HandleFunc("POST /api/versions", versionHandler.Create)
	mux.HandleFunc("GET /api/versions", versionHandler.List)
	mux.HandleFunc("GET /api/versions/{id}", versionHandler.Get)

	mux.HandleFunc("POST /api/objects", objectHandler.Put)
	mux.HandleFunc("GET /api/objects/{hash}", objectHandler.Get)

	mux.HandleFunc("GET /api/diff", diffHandler.Diff)

	mux.HandleFunc("POST /api/merge", mergeHandler.Merge)
	mux.HandleFunc("GET /api/conflicts", mergeHandler.Conflicts)
	mux.HandleFunc("POST /api/conflicts/resolve", mergeHandler.Resolve)

	return mux
}

func healthCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"healthy"}`))
}
