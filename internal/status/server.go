// Package status serves a small loopback HTTP endpoint with liveness and
// pipeline progress, for running the client in the background
package status

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"nexusprover/internal/platform/logger"
)

// Snapshot is what /status reports
type Snapshot struct {
	Version        string `json:"version"`
	NodeID         string `json:"node_id"`
	CompletedTasks int64  `json:"completed_tasks"`
	Workers        int    `json:"workers"`
}

// Server is a thin wrapper over chi + stdlib http.Server
type Server struct {
	srv  *http.Server
	addr string
}

// NewServer builds the status server; snap is polled per request
func NewServer(addr string, snap func() Snapshot) *Server {
	if addr == "" {
		addr = "127.0.0.1:9099"
	}
	m := chi.NewRouter()
	m.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	m.Get("/status", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(snap())
	})
	return &Server{
		addr: addr,
		srv: &http.Server{
			Addr:              addr,
			Handler:           m,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
}

// Run starts the server and blocks until ctx is done or the listener fails
func (s *Server) Run(ctx context.Context) error {
	log := logger.Named("status")
	log.Info().Str("addr", s.addr).Msg("status server listening")

	errCh := make(chan error, 1)
	go func() { errCh <- s.srv.ListenAndServe() }()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = s.srv.Shutdown(shutdownCtx)
		return nil
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}
