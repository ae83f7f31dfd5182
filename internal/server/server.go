package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"burstq/internal/config"
	"burstq/internal/runner"
	"burstq/internal/storage"
)

// Controller is the part of runner.Controller the HTTP layer drives.
type Controller interface {
	Start(cfg runner.Config) (string, error)
	Status() runner.Status
}

// Archive is the read side of the run archive.
type Archive interface {
	List(limit int) ([]runner.RunResult, error)
	Get(id string) (*runner.RunResult, error)
}

type Server struct {
	ctrl     Controller
	archive  Archive
	defaults func() config.Defaults
	metrics  http.Handler
	log      *zap.Logger

	// StreamInterval is the websocket status push period.
	StreamInterval time.Duration
}

type Options struct {
	Controller Controller
	Archive    Archive // optional
	Defaults   func() config.Defaults
	Metrics    http.Handler // optional
	Logger     *zap.Logger
}

func New(opts Options) *Server {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	defaults := opts.Defaults
	if defaults == nil {
		defaults = func() config.Defaults {
			return config.Defaults{Requests: runner.DefaultRequests, Concurrency: runner.DefaultConcurrency}
		}
	}
	return &Server{
		ctrl:           opts.Controller,
		archive:        opts.Archive,
		defaults:       defaults,
		metrics:        opts.Metrics,
		log:            log.Named("http"),
		StreamInterval: 500 * time.Millisecond,
	}
}

func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/health", s.health).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/load-test", s.startRun).Methods(http.MethodPost)
	api.HandleFunc("/load-test", s.status).Methods(http.MethodGet)
	api.HandleFunc("/load-test/ws", s.streamStatus).Methods(http.MethodGet)
	if s.archive != nil {
		api.HandleFunc("/runs", s.listRuns).Methods(http.MethodGet)
		api.HandleFunc("/runs/{id}", s.getRun).Methods(http.MethodGet)
	}
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics).Methods(http.MethodGet)
	}
	r.Use(s.logRequests)
	return r
}

// startRequest accepts both the short "requests" key and "num_requests".
type startRequest struct {
	URL         string `json:"url"`
	Requests    *int   `json:"requests"`
	NumRequests *int   `json:"num_requests"`
	Concurrency *int   `json:"concurrency"`
}

func (s *Server) startRun(w http.ResponseWriter, r *http.Request) {
	var body startRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}

	d := s.defaults()
	cfg := d.RunConfig(body.URL, 0, 0)
	switch {
	case body.NumRequests != nil:
		cfg.NumRequests = *body.NumRequests
	case body.Requests != nil:
		cfg.NumRequests = *body.Requests
	}
	if body.Concurrency != nil {
		cfg.Concurrency = *body.Concurrency
	}

	id, err := s.ctrl.Start(cfg)
	switch {
	case errors.Is(err, runner.ErrAlreadyRunning):
		writeError(w, http.StatusBadRequest, "Test already running")
		return
	case errors.Is(err, runner.ErrInvalidConfig):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"message": "Load test started",
		"status":  "running",
		"id":      id,
	})
}

func (s *Server) status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.ctrl.Status())
}

func (s *Server) listRuns(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if q := r.URL.Query().Get("limit"); q != "" {
		n, err := strconv.Atoi(q)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}
	runs, err := s.archive.List(limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if runs == nil {
		runs = []runner.RunResult{}
	}
	writeJSON(w, http.StatusOK, runs)
}

func (s *Server) getRun(w http.ResponseWriter, r *http.Request) {
	run, err := s.archive.Get(mux.Vars(r)["id"])
	switch {
	case errors.Is(err, storage.ErrNotFound):
		writeError(w, http.StatusNotFound, "run not found")
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "healthy",
		"running":   s.ctrl.Status().Running,
		"timestamp": time.Now().Unix(),
	})
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.log.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Duration("took", time.Since(start)),
		)
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
