package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/openretry/retryd/internal/core/domain"
	"github.com/openretry/retryd/internal/core/policy"
	"github.com/openretry/retryd/internal/infra/storage"
	"github.com/openretry/retryd/internal/ingest"
)

// Server exposes the ingestion and admin HTTP API.
type Server struct {
	records   storage.RetryLogRepository
	policies  *policy.Cache
	publisher *ingest.Publisher
	server    *http.Server
}

// NewServer creates the API server on the given port.
func NewServer(
	port int,
	records storage.RetryLogRepository,
	policies *policy.Cache,
	publisher *ingest.Publisher,
) *Server {
	s := &Server{
		records:   records,
		policies:  policies,
		publisher: publisher,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/notifications", s.handlePublishNotifications)
		r.Get("/records/{id}", s.handleGetRecord)
		r.Get("/records/due", s.handleListDue)
		r.Post("/policies/reload", s.handleReloadPolicies)
	})

	s.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: r,
	}
	return s
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	return s.server.ListenAndServe()
}

// Stop stops the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// handlePublishNotifications accepts a JSON array of notifications and
// publishes it onto the ingestion queue. Fire and forget: 202 means queued,
// not reconciled.
func (s *Server) handlePublishNotifications(w http.ResponseWriter, r *http.Request) {
	var batch []domain.FailureNotification
	if err := json.NewDecoder(r.Body).Decode(&batch); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid body: %v", err))
		return
	}
	for i, n := range batch {
		if n.ProcessName == "" {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("notification %d: process_name is required", i))
			return
		}
		if !n.Status.Valid() {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("notification %d: invalid status %q", i, n.Status))
			return
		}
	}

	if err := s.publisher.Publish(r.Context(), batch); err != nil {
		writeError(w, http.StatusServiceUnavailable, "failed to enqueue notifications")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]int{"accepted": len(batch)})
}

func (s *Server) handleGetRecord(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	rec, err := s.records.Get(r.Context(), id)
	if errors.Is(err, storage.ErrRecordNotFound) {
		writeError(w, http.StatusNotFound, "record not found")
		return
	}
	if err != nil {
		slog.Error("Failed to load retry record", "record_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load record")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(recordView(rec))
}

func (s *Server) handleListDue(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}

	due, err := s.records.GetDue(r.Context(), time.Now(), limit)
	if err != nil {
		slog.Error("Failed to list due retry records", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list due records")
		return
	}

	views := make([]map[string]any, 0, len(due))
	for _, rec := range due {
		views = append(views, recordView(rec))
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(views)
}

func (s *Server) handleReloadPolicies(w http.ResponseWriter, r *http.Request) {
	if err := s.policies.Reload(r.Context()); err != nil {
		slog.Error("Failed to reload policy cache", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to reload policies")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]int{"policies": s.policies.Size()})
}

func recordView(rec *domain.RetryLogRecord) map[string]any {
	view := map[string]any{
		"id":                     rec.ID,
		"process_name":           rec.ProcessName,
		"method_name":            rec.MethodName,
		"status":                 rec.Status,
		"processed":              rec.Processed,
		"error_message":          rec.ErrorMessage,
		"retry_enabled":          rec.RetryEnabled,
		"retry_interval_minutes": rec.RetryIntervalMinutes,
		"max_retry_limit":        rec.MaxRetryLimit,
		"retry_count":            rec.RetryCount,
		"created_at":             rec.CreatedAt,
		"updated_at":             rec.UpdatedAt,
	}
	if !rec.RetryDueAt.IsZero() {
		view["retry_due_at"] = rec.RetryDueAt
	}
	return view
}

func writeError(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
