package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/notifyhub/pipeline/internal/queue"
)

// MetricsHandler serves a human-readable JSON queue-depth snapshot.
// Raw Prometheus metrics (counters, histograms) are available at /metrics
// via promhttp.HandlerFor and are separate from this endpoint.
type MetricsHandler struct {
	broker queue.Broker
}

func NewMetricsHandler(broker queue.Broker) *MetricsHandler {
	return &MetricsHandler{broker: broker}
}

// GetMetrics handles GET /api-notify/v1/metrics
//
// @Summary  Real-time queue depth snapshot
// @Tags     metrics
// @Produce  json
// @Success  200  {object}  map[string]any
// @Router   /api-notify/v1/metrics [get]
func (h *MetricsHandler) GetMetrics(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	depths, err := h.broker.Depths(ctx)
	if err != nil {
		mapError(w, err)
		return
	}

	byQueue := make(map[string]int, len(depths))
	total := 0
	for q, n := range depths {
		byQueue[string(q)] = n
		total += n
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"queue_depth": byQueue,
		"total":       total,
	})
}
