// Package api serves the daemon's status, health and metrics endpoints.
package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/gyaneshwarpardhi/plado/internal/engine"
	"github.com/gyaneshwarpardhi/plado/internal/event"
	"github.com/gyaneshwarpardhi/plado/internal/store"
)

// readyThreshold is the job queue utilization above which /readyz fails.
const readyThreshold = 0.8

// Monitor is the view of the scheduler the API reads from.
type Monitor interface {
	Statuses() []engine.Status
	Status(name string) (engine.Status, bool)
	Store() store.Store
}

// Queue reports job queue occupancy.
type Queue interface {
	QueueLen() int
	QueueCap() int
	Running() int
}

// Reloader re-reads the configuration file.
type Reloader interface {
	Reload() error
}

// Handler holds all HTTP handler dependencies.
type Handler struct {
	mon    Monitor
	queue  Queue
	reload Reloader
	logger *slog.Logger
}

// New creates an HTTP handler and registers all routes. reload may be nil,
// which disables POST /v1/reload.
func New(mon Monitor, queue Queue, reload Reloader, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handler{mon: mon, queue: queue, reload: reload, logger: logger}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(h.logRequests)

	r.Get("/healthz", h.healthz)
	r.Get("/readyz", h.readyz)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	r.Route("/v1", func(r chi.Router) {
		r.Get("/definitions", h.listDefinitions)
		r.Get("/definitions/{name}", h.getDefinition)
		r.Get("/definitions/{name}/snapshots", h.listSnapshots)
		r.Post("/reload", h.reloadConfig)
	})
	return r
}

func (h *Handler) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		h.logger.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

// GET /healthz: always 200 (liveness probe).
func (h *Handler) healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GET /readyz: 503 if the job queue is more than 80% full.
func (h *Handler) readyz(w http.ResponseWriter, r *http.Request) {
	var util float64
	if h.queue != nil && h.queue.QueueCap() > 0 {
		util = float64(h.queue.QueueLen()) / float64(h.queue.QueueCap())
	}
	status, code := "ready", http.StatusOK
	if util > readyThreshold {
		status, code = "overloaded", http.StatusServiceUnavailable
	}
	body := map[string]any{"status": status, "job_queue_utilization": util}
	if h.queue != nil {
		body["jobs_running"] = h.queue.Running()
	}
	writeJSON(w, code, body)
}

// GET /v1/definitions: status of every monitored definition.
func (h *Handler) listDefinitions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"definitions": h.mon.Statuses()})
}

// GET /v1/definitions/{name}
func (h *Handler) getDefinition(w http.ResponseWriter, r *http.Request) {
	st, ok := h.mon.Status(chi.URLParam(r, "name"))
	if !ok {
		writeError(w, r, http.StatusNotFound, "unknown event definition")
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// GET /v1/definitions/{name}/snapshots: last observed state per entity.
func (h *Handler) listSnapshots(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if _, ok := h.mon.Status(name); !ok {
		writeError(w, r, http.StatusNotFound, "unknown event definition")
		return
	}
	snaps, err := h.mon.Store().List(r.Context(), name)
	if err != nil {
		h.logger.Error("list snapshots failed", "definition", name, "err", err)
		writeError(w, r, http.StatusInternalServerError, err.Error())
		return
	}
	if snaps == nil {
		snaps = []event.Snapshot{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"definition": name, "snapshots": snaps})
}

// POST /v1/reload: re-read the configuration file and swap definitions.
func (h *Handler) reloadConfig(w http.ResponseWriter, r *http.Request) {
	if h.reload == nil {
		writeError(w, r, http.StatusNotImplemented, "reload is not available")
		return
	}
	if err := h.reload.Reload(); err != nil {
		writeError(w, r, http.StatusUnprocessableEntity, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"reloaded": true, "definitions": len(h.mon.Statuses())})
}
