// Package server implements the vbs-server HTTP API: search proxying, frame
// windows, submission boards and the evaluation submission workflow.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/kilupskalvis/vbs/internal/boardstore"
	"github.com/kilupskalvis/vbs/internal/catalog"
	"github.com/kilupskalvis/vbs/internal/evaluation"
	"github.com/kilupskalvis/vbs/internal/history"
	"github.com/kilupskalvis/vbs/internal/models"
	"github.com/kilupskalvis/vbs/internal/search"
	"github.com/kilupskalvis/vbs/internal/submission"
	"github.com/kilupskalvis/vbs/internal/window"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Searcher runs queries against the search backend.
type Searcher interface {
	Search(ctx context.Context, q *search.Query) ([]models.SearchResult, error)
}

// SubmissionLog records sent submissions.
type SubmissionLog interface {
	Record(r *history.Record) error
	ForBoard(boardID string, limit int) ([]*history.Record, error)
}

// Deps are the collaborators the API is built on. History may be nil.
type Deps struct {
	Catalog *catalog.Catalog
	Search  Searcher
	Eval    evaluation.Client
	Boards  boardstore.Store
	History SubmissionLog
}

// ServerConfig holds configurable limits and defaults for the server.
type ServerConfig struct {
	MaxRequestBody    int64 // bytes, for JSON endpoints
	RequestsPerMinute int   // per-client rate limit
	AccessToken       string
	AdminToken        string
	FPS               float64
	TopK              int
	WindowBefore      int
	WindowAfter       int
	SubmitTimeout     time.Duration
	BoardTTL          time.Duration
	PruneInterval     time.Duration // 0 disables scheduled pruning
	Webhooks          *WebhookNotifier
}

// DefaultServerConfig returns reasonable defaults.
func DefaultServerConfig() *ServerConfig {
	return &ServerConfig{
		MaxRequestBody:    16 * 1024 * 1024, // 16MB, query images arrive inline
		RequestsPerMinute: 600,
		FPS:               submission.DefaultFPS,
		TopK:              search.DefaultTopK,
		WindowBefore:      window.DefaultBefore,
		WindowAfter:       window.DefaultAfter,
		SubmitTimeout:     submission.DefaultTimeout,
		BoardTTL:          72 * time.Hour,
		PruneInterval:     time.Hour,
	}
}

type api struct {
	deps   Deps
	cfg    *ServerConfig
	logger *slog.Logger
	flows  *flowRegistry
	now    func() time.Time
}

// Handler creates the HTTP handler with all routes and middleware.
// The returned cleanup function stops background goroutines and should be
// called on server shutdown.
func Handler(deps Deps, cfg *ServerConfig, logger *slog.Logger) (http.Handler, func()) {
	if cfg == nil {
		cfg = DefaultServerConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}

	a := &api{deps: deps, cfg: cfg, logger: logger, now: time.Now}
	a.flows = newFlowRegistry(a.newWorkflow)

	rl := newRateLimiter(cfg.RequestsPerMinute)
	auth := bearerAuth(cfg.AccessToken, "access")

	// applyMiddleware reverses the list, so the first item runs outermost.
	// Execution order: auth -> rl -> handler
	withAuth := func(h http.HandlerFunc) http.Handler {
		return applyMiddleware(h, auth, rl.middleware)
	}

	mux := http.NewServeMux()

	// Health endpoints (no auth)
	mux.HandleFunc("GET /healthz", handleHealthz)
	mux.HandleFunc("GET /readyz", a.handleReadyz)
	mux.Handle("GET /metrics", promhttp.Handler())

	// Admin endpoints
	if cfg.AdminToken != "" {
		adminMux := http.NewServeMux()
		adminMux.HandleFunc("POST /admin/boards/prune", a.handlePrune)
		mux.Handle("/admin/", bearerAuth(cfg.AdminToken, "admin")(adminMux))
	}

	// Search and frames
	mux.Handle("POST /api/v1/search", withAuth(a.handleSearch))
	mux.Handle("GET /api/v1/frames/window", withAuth(a.handleWindow))
	mux.Handle("GET /api/v1/frames/meta", withAuth(a.handleFrameMeta))
	mux.Handle("POST /api/v1/frames/centered", withAuth(a.handleCentered))
	mux.Handle("POST /api/v1/trake/variations", withAuth(a.handleTrakeVariations))

	// Boards
	mux.Handle("POST /api/v1/boards", withAuth(a.handleCreateBoard))
	mux.Handle("GET /api/v1/boards", withAuth(a.handleListBoards))
	mux.Handle("GET /api/v1/boards/{id}", withAuth(a.handleGetBoard))
	mux.Handle("DELETE /api/v1/boards/{id}", withAuth(a.handleDeleteBoard))
	mux.Handle("PUT /api/v1/boards/{id}/task", withAuth(a.handleSelectTask))
	mux.Handle("POST /api/v1/boards/{id}/frames", withAuth(a.handleSubmitFrame))
	mux.Handle("POST /api/v1/boards/{id}/frameset", withAuth(a.handleSubmitFrameset))
	mux.Handle("PUT /api/v1/boards/{id}/answer", withAuth(a.handleSetAnswer))
	mux.Handle("DELETE /api/v1/boards/{id}/entries", withAuth(a.handleClearEntries))
	mux.Handle("GET /api/v1/boards/{id}/history", withAuth(a.handleBoardHistory))

	// Submission workflow
	mux.Handle("POST /api/v1/boards/{id}/prepare", withAuth(a.handlePrepare))
	mux.Handle("POST /api/v1/boards/{id}/send", withAuth(a.handleSend))
	mux.Handle("POST /api/v1/boards/{id}/ack", withAuth(a.handleAcknowledge))
	mux.Handle("GET /api/v1/boards/{id}/workflow", withAuth(a.handleWorkflow))

	// Evaluation server
	mux.Handle("POST /api/v1/eval/login", withAuth(a.handleLogin))
	mux.Handle("GET /api/v1/eval/evaluations", withAuth(a.handleEvaluations))

	// Apply global middleware
	handler := applyMiddleware(mux,
		recoveryMiddleware(logger),
		requestIDMiddleware,
		loggingMiddleware(logger),
	)

	pr := startPruner(deps.Boards, cfg.BoardTTL, cfg.PruneInterval, logger, func(ids []string) {
		for _, id := range ids {
			a.flows.drop(id)
		}
	})

	cleanup := func() {
		rl.Stop()
		pr.Stop()
	}

	return handler, cleanup
}

// applyMiddleware applies middleware in reverse order so the first in the list runs first.
func applyMiddleware(h http.Handler, mws ...func(http.Handler) http.Handler) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

// --- Health Handlers ---

func handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func (a *api) handleReadyz(w http.ResponseWriter, r *http.Request) {
	if a.deps.Catalog == nil || a.deps.Catalog.Index == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("not ready: keyframe index not loaded"))
		return
	}
	if _, err := a.deps.Boards.List(r.Context()); err != nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("not ready: board store unavailable"))
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

// --- Admin Handlers ---

func (a *api) handlePrune(w http.ResponseWriter, r *http.Request) {
	ttl := a.cfg.BoardTTL
	if v := r.URL.Query().Get("ttl"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", "invalid ttl: "+err.Error())
			return
		}
		ttl = d
	}

	result, err := PruneBoards(r.Context(), a.deps.Boards, ttl, a.now(), a.logger)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
		return
	}
	for _, id := range result.Pruned {
		a.flows.drop(id)
	}
	writeJSON(w, http.StatusOK, result)
}

// --- Helpers ---

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]string{"error": code, "message": message})
}

func readJSON(r *http.Request, maxSize int64, v interface{}) error {
	limited := io.LimitReader(r.Body, maxSize)
	if err := json.NewDecoder(limited).Decode(v); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	return nil
}

// writeDomainError maps package errors onto HTTP responses.
func (a *api) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	var cv *submission.CrossVideoError
	var remoteErr *evaluation.RemoteError
	var backendErr *search.BackendError

	switch {
	case errors.As(err, &cv):
		writeJSON(w, http.StatusConflict, map[string]string{
			"error":           "cross_video",
			"message":         cv.Error(),
			"existing_video":  cv.Existing,
			"attempted_video": cv.Attempted,
		})
	case errors.Is(err, boardstore.ErrNotFound),
		errors.Is(err, catalog.ErrNotFound),
		errors.Is(err, evaluation.ErrNoEvaluation):
		writeError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, submission.ErrEmptySelection):
		writeError(w, http.StatusUnprocessableEntity, "empty_selection", err.Error())
	case errors.Is(err, submission.ErrBusy):
		writeError(w, http.StatusConflict, "busy", err.Error())
	case errors.Is(err, submission.ErrInvalidTransition):
		writeError(w, http.StatusConflict, "invalid_transition", err.Error())
	case errors.Is(err, submission.ErrInvalidInput),
		errors.Is(err, models.ErrInvalidFramePath),
		errors.Is(err, window.ErrInvalidWindow),
		errors.Is(err, window.ErrInvalidStride),
		errors.Is(err, search.ErrEmptyQuery),
		errors.Is(err, search.ErrInvalidDataURL),
		errors.Is(err, evaluation.ErrInvalidRequest):
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
	case errors.As(err, &remoteErr):
		writeJSON(w, http.StatusBadGateway, map[string]interface{}{
			"error":           "evaluation_error",
			"message":         remoteErr.Message,
			"upstream_status": remoteErr.Status,
		})
	case errors.As(err, &backendErr):
		writeJSON(w, http.StatusBadGateway, map[string]interface{}{
			"error":           "search_error",
			"message":         backendErr.Message,
			"upstream_status": backendErr.Status,
		})
	default:
		a.logger.Error("request failed", "path", r.URL.Path, "error", err, "request_id", requestID(r))
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}
