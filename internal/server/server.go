// Package server provides the HTTP dashboard and API for the lot monitor.
package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"path/filepath"
	"strconv"
	"time"

	"github.com/hybridgroup/mjpeg"
	"github.com/rs/zerolog/log"

	"github.com/ayusman/lotwatch/internal/metrics"
	"github.com/ayusman/lotwatch/internal/snapshot"
	"github.com/ayusman/lotwatch/internal/status"
	"github.com/ayusman/lotwatch/internal/store"
)

const (
	defaultEventLimit    = 50
	defaultSnapshotLimit = 10
)

var errInvalidLimit = errors.New("limit must be a positive integer")

// Controller pauses and resumes the monitor.
type Controller interface {
	SetEnabled(enabled bool)
	IsEnabled() bool
}

// Config holds the server configuration.
type Config struct {
	StaticDir  string
	Board      *status.Board
	Store      *store.Store
	Snapshots  *snapshot.Writer
	Metrics    *metrics.Metrics
	Stream     *mjpeg.Stream
	Controller Controller
}

// Server represents the HTTP server for the dashboard.
type Server struct {
	config Config
	mux    *http.ServeMux
	start  time.Time
	live   *LiveHandler
}

// New creates a new Server with the given configuration.
func New(config Config) *Server {
	s := &Server{
		config: config,
		mux:    http.NewServeMux(),
		start:  time.Now(),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.mux.HandleFunc("/api/health", s.handleHealth)

	if s.config.Board != nil {
		s.mux.HandleFunc("/api/status", s.handleStatus)
		s.live = NewLiveHandler(s.config.Board)
		s.mux.Handle("/api/live", s.live)
	}

	if s.config.Board != nil || s.config.Store != nil {
		s.mux.HandleFunc("/api/events", s.handleEvents)
	}

	if s.config.Snapshots != nil {
		s.mux.HandleFunc("/api/snapshots", s.handleSnapshots)
		s.mux.HandleFunc("/snapshots/{file}", s.handleSnapshotFile)
	}

	if s.config.Controller != nil {
		s.mux.HandleFunc("/api/monitor", s.handleMonitor)
	}

	if s.config.Stream != nil {
		s.mux.Handle("/api/stream", s.config.Stream)
	}

	if s.config.Metrics != nil {
		s.mux.Handle("/metrics", s.config.Metrics.Handler())
	}

	if s.config.StaticDir != "" {
		fs := http.FileServer(http.Dir(s.config.StaticDir))
		s.mux.Handle("/", fs)
	}
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// Close disconnects live clients.
func (s *Server) Close() {
	if s.live != nil {
		s.live.Close()
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"uptime": time.Since(s.start).String(),
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, s.config.Board.Current())
}

// handleEvents serves persisted events, or the in-memory list when there is no store.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	limit, err := parseLimit(r, defaultEventLimit)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if s.config.Store == nil {
		events := s.config.Board.Current().Events
		if len(events) > limit {
			events = events[:limit]
		}
		writeJSON(w, http.StatusOK, map[string]any{"events": events})
		return
	}

	events, err := s.config.Store.Events().List(limit)
	if err != nil {
		log.Error().Err(err).Msg("list events")
		http.Error(w, "Failed to list events", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": events})
}

func (s *Server) handleSnapshots(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	limit, err := parseLimit(r, defaultSnapshotLimit)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	infos, err := s.config.Snapshots.List(limit)
	if err != nil {
		log.Error().Err(err).Msg("list snapshots")
		http.Error(w, "Failed to list snapshots", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"snapshots": infos})
}

func (s *Server) handleSnapshotFile(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("file")
	if !snapshot.IsSnapshotName(name) {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Cache-Control", "max-age=86400")
	http.ServeFile(w, r, filepath.Join(s.config.Snapshots.Dir(), name))
}

type monitorState struct {
	Enabled bool `json:"enabled"`
}

// handleMonitor reports or changes the pause toggle. Changes are persisted when a store is configured.
func (s *Server) handleMonitor(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
	case http.MethodPost, http.MethodPut:
		var req monitorState
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid JSON", http.StatusBadRequest)
			return
		}
		s.config.Controller.SetEnabled(req.Enabled)
		if s.config.Store != nil {
			if err := s.config.Store.Settings().Set(store.SettingEnabled, strconv.FormatBool(req.Enabled)); err != nil {
				log.Warn().Err(err).Msg("persist monitor toggle")
			}
		}
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	writeJSON(w, http.StatusOK, monitorState{Enabled: s.config.Controller.IsEnabled()})
}

// ListenAndServe starts the HTTP server on the given address.
func (s *Server) ListenAndServe(addr string) error {
	return http.ListenAndServe(addr, s)
}

func parseLimit(r *http.Request, def int) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, errInvalidLimit
	}
	return n, nil
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Debug().Err(err).Msg("encode response")
	}
}
