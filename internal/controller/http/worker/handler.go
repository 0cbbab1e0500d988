package worker

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type JobProcessor interface {
	ProcessJob(ctx context.Context, jobID string) error
}

// Handler accepts dispatches over HTTP and processes each job in the
// background. The job record, not the response, carries the outcome.
type Handler struct {
	Processor JobProcessor
	Logger    *slog.Logger

	ctx context.Context
	wg  sync.WaitGroup
}

// NewHandler ties background processing to ctx: cancelling it aborts jobs
// still in flight.
func NewHandler(ctx context.Context, p JobProcessor, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{Processor: p, Logger: logger, ctx: ctx}
}

func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/health", h.health)
	r.Post("/process", h.process)
	return r
}

// Wait blocks until every accepted job has finished.
func (h *Handler) Wait() { h.wg.Wait() }

func (h *Handler) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (h *Handler) process(w http.ResponseWriter, r *http.Request) {
	jobID := r.URL.Query().Get("jobId")
	if jobID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "Missing jobId"})
		return
	}

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		if err := h.Processor.ProcessJob(h.ctx, jobID); err != nil {
			h.Logger.Error("job processing failed", slog.String("job_id", jobID), slog.String("error", err.Error()))
		}
	}()

	writeJSON(w, http.StatusAccepted, map[string]any{"ok": true, "jobId": jobID})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
