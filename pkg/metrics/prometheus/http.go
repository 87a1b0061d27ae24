package prometheus

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/marmos91/boltkit/internal/logger"
)

// HTTPServer serves /metrics and /healthz for operations tooling.
type HTTPServer struct {
	srv *http.Server
}

// NewHTTPServer builds the HTTP endpoint for a recorder.
func NewHTTPServer(addr string, rec *Recorder) *HTTPServer {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(
		rec.Registry(),
		promhttp.HandlerOpts{},
	))
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	return &HTTPServer{
		srv: &http.Server{
			Addr:              addr,
			Handler:           r,
			ReadHeaderTimeout: 5 * time.Second,
		},
	}
}

// Serve blocks until the server stops. A closed server returns nil.
func (h *HTTPServer) Serve() error {
	logger.Info("metrics server started", "address", h.srv.Addr)
	err := h.srv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown drains in-flight requests and stops the server.
func (h *HTTPServer) Shutdown(ctx context.Context) error {
	return h.srv.Shutdown(ctx)
}
