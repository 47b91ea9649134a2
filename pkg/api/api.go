// Package api serves a read-only JSON view of a running watcher, normally
// over the Unix domain socket bound by internal/socket.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/lc/confwatch/internal/appconfig"
	"github.com/lc/confwatch/internal/buildinfo"
	"github.com/lc/confwatch/internal/log"
	"github.com/lc/confwatch/internal/watcher"
)

// StatusResponse is the body of GET /v1/status.
type StatusResponse struct {
	RunID        string        `json:"run_id"`
	Path         string        `json:"path"`
	Interval     time.Duration `json:"interval"`
	State        string        `json:"state"`
	StartedAt    time.Time     `json:"started_at"`
	LastModified *time.Time    `json:"last_modified,omitempty"`
	Digest       string        `json:"digest,omitempty"`
	LastError    string        `json:"last_error,omitempty"`
	Checks       int64         `json:"checks"`
	Loads        int64         `json:"loads"`
	Failures     int64         `json:"failures"`
	Uptime       time.Duration `json:"uptime"`
	Version      string        `json:"version"`
	Commit       string        `json:"commit"`
}

// Source is the watcher state the server exposes.
type Source interface {
	Current() (*appconfig.Config, bool)
	Status() watcher.Status
}

var _ Source = (*watcher.Watcher)(nil)

// Server handles API requests.
type Server struct {
	src   Source
	start time.Time
	mux   *http.ServeMux
	srv   *http.Server
}

// New creates a Server reading from src.
func New(src Source) *Server {
	s := &Server{
		src:   src,
		start: time.Now(),
		mux:   http.NewServeMux(),
	}

	s.mux.HandleFunc("/v1/status", s.handleStatus)
	s.mux.HandleFunc("/v1/config", s.handleConfig)

	s.srv = &http.Server{
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the route multiplexer.
func (s *Server) Handler() http.Handler { return s.mux }

// Serve accepts connections on ln until Shutdown. It returns nil after a
// graceful shutdown.
func (s *Server) Serve(ln net.Listener) error {
	log.Debug("api: serving", "addr", ln.Addr().String())
	if err := s.srv.Serve(ln); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("serving status api: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error { return s.srv.Shutdown(ctx) }

// Snapshot builds a StatusResponse from the current watcher state.
func (s *Server) Snapshot() StatusResponse {
	st := s.src.Status()
	resp := StatusResponse{
		RunID:     st.RunID,
		Path:      st.Path,
		Interval:  st.Interval,
		State:     st.State.String(),
		StartedAt: st.StartedAt,
		Checks:    st.Checks,
		Loads:     st.Loads,
		Failures:  st.Failures,
		Uptime:    time.Since(s.start),
		Version:   buildinfo.Version,
		Commit:    buildinfo.Commit,
	}
	if !st.LastModified.IsZero() {
		mod := st.LastModified
		resp.LastModified = &mod
		resp.Digest = strconv.FormatUint(st.Digest, 16)
	}
	if st.LastError != nil {
		resp.LastError = st.LastError.Error()
	}
	return resp
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, s.Snapshot())
}

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	cfg, ok := s.src.Current()
	if !ok {
		http.Error(w, "no valid configuration loaded", http.StatusNotFound)
		return
	}
	writeJSON(w, cfg)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, fmt.Sprintf("Error encoding response: %v", err), http.StatusInternalServerError)
	}
}
