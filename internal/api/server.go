package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JakeFAU/datasetcrawler/internal/controller"
	"github.com/JakeFAU/datasetcrawler/internal/metrics"
	"github.com/JakeFAU/datasetcrawler/internal/progress"
)

const (
	defaultEventLimit = 100
	maxEventLimit     = 1000
	requestTimeout    = 30 * time.Second
)

// Runner is the slice of the controller the API drives.
type Runner interface {
	Start(ctx context.Context, opts controller.Options) (uuid.UUID, error)
	Stop() bool
	Status() controller.Snapshot
}

// EventSource serves retained progress events by sequence number.
type EventSource interface {
	After(after uint64, limit int) []progress.Event
}

// Server wires HTTP handlers to the run controller and the event feed.
type Server struct {
	router   chi.Router
	runner   Runner
	events   EventSource
	defaults controller.Options
	logger   *zap.Logger
}

// NewServer constructs a Server with middleware and routes. defaults fill any
// option a start request leaves out. events and m may be nil.
func NewServer(
	runner Runner,
	events EventSource,
	m *metrics.Metrics,
	defaults controller.Options,
	logger *zap.Logger,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		runner:   runner,
		events:   events,
		defaults: defaults,
		logger:   logger,
	}
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(logger))
	r.Use(recoverMiddleware(logger))
	r.Use(m.Middleware)

	r.Get("/healthz", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", m.Handler())
	r.Route("/v1", func(r chi.Router) {
		r.Get("/status", s.handleStatus)
		r.Get("/events", s.handleEvents)
		r.Post("/runs", s.handleStartRun)
		r.Post("/runs/stop", s.handleStopRun)
	})
	s.router = r
	return s
}

// Handler exposes the configured router.
func (s *Server) Handler() http.Handler {
	return http.TimeoutHandler(s.router, requestTimeout, `{"error":"request timed out"}`)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.runner.Status())
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if s.events == nil {
		writeError(w, http.StatusServiceUnavailable, "event feed unavailable")
		return
	}
	after, limit, err := parseAfterLimit(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	events := s.events.After(after, limit)
	next := after
	if n := len(events); n > 0 {
		next = events[n-1].Seq
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"events": events,
		"next":   next,
	})
}

func (s *Server) handleStartRun(w http.ResponseWriter, r *http.Request) {
	var req startRunRequest
	if r.ContentLength != 0 {
		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
	}
	opts := req.options(s.defaults)

	runID, err := s.runner.Start(r.Context(), opts)
	if err != nil {
		if errors.Is(err, controller.ErrAlreadyRunning) {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		s.logger.Error("start run failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to start run")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"run_id": runID.String()})
}

func (s *Server) handleStopRun(w http.ResponseWriter, _ *http.Request) {
	stopped := s.runner.Stop()
	status := http.StatusAccepted
	if !stopped {
		status = http.StatusOK
	}
	writeJSON(w, status, map[string]bool{"stopping": stopped})
}

type startRunRequest struct {
	Concurrency      *int    `json:"concurrency"`
	ExpansionEnabled *bool   `json:"expansion_enabled"`
	InputPath        *string `json:"input_path"`
	DBPath           *string `json:"db_path"`
}

func (req startRunRequest) options(def controller.Options) controller.Options {
	opts := def
	if req.Concurrency != nil {
		opts.Concurrency = *req.Concurrency
	}
	if req.ExpansionEnabled != nil {
		opts.ExpansionEnabled = *req.ExpansionEnabled
	}
	if req.InputPath != nil && *req.InputPath != "" {
		opts.InputPath = *req.InputPath
	}
	if req.DBPath != nil && *req.DBPath != "" {
		opts.DBPath = *req.DBPath
	}
	return opts
}

func parseAfterLimit(r *http.Request) (uint64, int, error) {
	q := r.URL.Query()
	var after uint64
	if v := q.Get("after"); v != "" {
		parsed, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return 0, 0, errors.New("invalid after")
		}
		after = parsed
	}
	limit := defaultEventLimit
	if v := q.Get("limit"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed <= 0 {
			return 0, 0, errors.New("invalid limit")
		}
		limit = min(parsed, maxEventLimit)
	}
	return after, limit, nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		zap.L().Error("write JSON failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
