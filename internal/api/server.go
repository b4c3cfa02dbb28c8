package api

import (
	"net/http"
	"time"

	"vcs/internal/logging"
	"vcs/internal/middleware"
)

// NewServer builds the HTTP server with request ids, access logging and
// panic recovery around the router.
func NewServer(addr string, s Services, logger *logging.Logger) *http.Server {
	handler := middleware.Chain(
		NewRouter(s, logger.Logger),
		middleware.Recover(logger),
		middleware.Logger(logger),
		middleware.RequestID,
	)

	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
}
