// Package api exposes the HTTP interface for the auditor service.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pagepulse/pagepulse/internal/audit"
	"github.com/pagepulse/pagepulse/internal/config"
	"github.com/pagepulse/pagepulse/internal/tasks"
	"github.com/pagepulse/pagepulse/internal/telemetry"
)

// BatchService runs the synchronous audit path.
type BatchService interface {
	RunBatch(ctx context.Context, req audit.BatchRequest) ([]audit.Record, error)
}

// ChunkScheduler fans a batch out as remote tasks.
type ChunkScheduler interface {
	Schedule(ctx context.Context, urls []string, blockedPatterns []string, chunkSize int) ([]tasks.ScheduledChunk, error)
}

// TaskReporter lists the queue's active tasks.
type TaskReporter interface {
	ListActive(ctx context.Context, pageSize int32, pageToken string) (tasks.ActiveTasks, error)
}

// URLDiscoverer expands a seed page into a URL batch.
type URLDiscoverer interface {
	Discover(ctx context.Context, seed string, limit int) ([]string, error)
}

// Server wires HTTP handlers to the audit service and task subsystem.
type Server struct {
	router     chi.Router
	service    BatchService
	scheduler  ChunkScheduler
	reporter   TaskReporter
	discoverer URLDiscoverer
	cfg        config.Config
	logger     *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(
	service BatchService,
	scheduler ChunkScheduler,
	reporter TaskReporter,
	discoverer URLDiscoverer,
	cfg config.Config,
	logger *zap.Logger,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		service:    service,
		scheduler:  scheduler,
		reporter:   reporter,
		discoverer: discoverer,
		cfg:        cfg,
		logger:     logger,
	}

	timeout := time.Duration(cfg.Server.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 600 * time.Second
	}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoverMiddleware)
	r.Use(telemetry.Middleware)
	r.Use(timeoutMiddleware(timeout))
	if cfg.Auth.Enabled {
		r.Use(apiKeyMiddleware(cfg.Auth.APIKey))
	}

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", telemetry.Handler())

	r.Post("/audit", s.handleAudit)
	r.Post("/audit-async", s.handleAuditAsync)
	r.Get("/active-tasks", s.handleActiveTasks)
	r.Post("/discover", s.handleDiscover)

	s.router = r
	return s
}

// Handler returns the router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

type auditRequest struct {
	URLs            []string `json:"urls"`
	BlockedRequests []string `json:"blockedRequests"`
	Mode            string   `json:"mode"`
	StoreData       bool     `json:"storeData"`
}

type asyncRequest struct {
	URLs            []string `json:"urls"`
	BlockedRequests []string `json:"blockedRequests"`
}

type discoverRequest struct {
	URL   string `json:"url"`
	Limit int    `json:"limit"`
}

func (s *Server) handleAudit(w http.ResponseWriter, r *http.Request) {
	var req auditRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if err := validateURLs(req.URLs); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	mode, err := audit.ParseMode(req.Mode)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	records, err := s.service.RunBatch(r.Context(), audit.BatchRequest{
		URLs:            req.URLs,
		BlockedRequests: req.BlockedRequests,
		Mode:            mode,
		StoreData:       req.StoreData,
	})
	if err != nil {
		s.logger.Error("batch audit failed", zap.Int("urls", len(req.URLs)), zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, records)
}

func (s *Server) handleAuditAsync(w http.ResponseWriter, r *http.Request) {
	var req asyncRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if err := validateURLs(req.URLs); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	chunks, err := s.scheduler.Schedule(r.Context(), req.URLs, req.BlockedRequests, s.cfg.Audit.ChunkSize)
	if err != nil {
		s.logger.Error("chunk scheduling failed", zap.Int("urls", len(req.URLs)), zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	telemetry.IncTasksScheduled(len(chunks))
	writeJSON(w, http.StatusOK, map[string]any{"tasks": chunks})
}

func (s *Server) handleActiveTasks(w http.ResponseWriter, r *http.Request) {
	var pageSize int32
	if raw := r.URL.Query().Get("pageSize"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 32)
		if err != nil || parsed < 0 {
			writeError(w, http.StatusBadRequest, "pageSize must be a non-negative integer")
			return
		}
		pageSize = int32(parsed)
	}

	active, err := s.reporter.ListActive(r.Context(), pageSize, r.URL.Query().Get("pageToken"))
	if err != nil {
		s.logger.Error("list active tasks failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, active)
}

func (s *Server) handleDiscover(w http.ResponseWriter, r *http.Request) {
	var req discoverRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.URL == "" {
		writeError(w, http.StatusBadRequest, "url required")
		return
	}

	urls, err := s.discoverer.Discover(r.Context(), req.URL, req.Limit)
	if err != nil {
		s.logger.Error("url discovery failed", zap.String("seed", req.URL), zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"urls": urls})
}

// validateURLs rejects empty batches and anything that is not a syntactically
// valid absolute http(s) URL. Reachability is not checked.
func validateURLs(urls []string) error {
	if len(urls) == 0 {
		return fmt.Errorf("at least one url required")
	}
	for _, raw := range urls {
		parsed, err := url.Parse(raw)
		if err != nil || !parsed.IsAbs() || parsed.Host == "" {
			return fmt.Errorf("invalid url %q", raw)
		}
		if parsed.Scheme != "http" && parsed.Scheme != "https" {
			return fmt.Errorf("invalid url %q: scheme must be http or https", raw)
		}
	}
	return nil
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := uuid.NewString()
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)
		s.logger.Info("request completed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.status),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()),
		)
	})
}

func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("panic recovered", zap.Any("error", rec))
				writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func timeoutMiddleware(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, d, "request timed out")
	}
}

func apiKeyMiddleware(expected string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get("X-API-Key")
			if key == "" {
				key = r.URL.Query().Get("api_key")
			}
			if key != expected {
				writeError(w, http.StatusForbidden, "unauthorized")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

type requestIDKey struct{}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		zap.L().Error("write JSON failed", zap.Error(err))
	}
}

// writeError emits the service's error envelope: {"error":{"code","message"}}.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{
		"error": map[string]any{"code": status, "message": msg},
	})
}
