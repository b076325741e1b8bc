// Package http is the gateway's thin front door: it validates a reading
// syntactically and enqueues it. Everything past the intake queue is
// asynchronous; pipeline failures are never surfaced here.
package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"coldchain-monitor/pipeline/internal/domain"
	"coldchain-monitor/pipeline/internal/metrics"
	"coldchain-monitor/pipeline/internal/queue"
)

type Handler struct {
	intake queue.Sink
	log    *zap.Logger
}

func NewHandler(intake queue.Sink, log *zap.Logger) *Handler {
	return &Handler{intake: intake, log: log}
}

func NewRouter(h *Handler, authMW *AuthMiddleware) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Method(http.MethodPost, "/readings", authMW.Wrap(http.HandlerFunc(h.PostReading)))
	r.Get("/metrics", metrics.HandleMetrics)
	r.Get("/healthz", handleHealthz)

	return r
}

type readingRequest struct {
	EntityID   string  `json:"entity_id"`
	SensorID   string  `json:"sensor_id"`
	Value      float64 `json:"value"`
	ObservedAt string  `json:"observed_at"`
}

func (h *Handler) PostReading(w http.ResponseWriter, r *http.Request) {
	var req readingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	observedAt, err := time.Parse(time.RFC3339, req.ObservedAt)
	if err != nil {
		writeError(w, http.StatusBadRequest, "observed_at must be RFC3339")
		return
	}

	reading := domain.Reading{
		EntityID:   req.EntityID,
		SensorID:   req.SensorID,
		Value:      req.Value,
		ObservedAt: observedAt,
	}
	if err := reading.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	body, err := json.Marshal(reading)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "encode failed")
		return
	}

	if err := h.intake.Publish(r.Context(), body); err != nil {
		h.log.Error("intake enqueue failed",
			zap.String("entity_id", reading.EntityID),
			zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, "intake unavailable")
		return
	}

	metrics.ReadingsReceived.Add(1)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	fmt.Fprintf(w, `{"status":"accepted","entity_id":%q}`, reading.EntityID)
}

func handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func writeError(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
