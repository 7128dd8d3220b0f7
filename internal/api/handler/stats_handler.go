package handler

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/ricirt/updatesvc/internal/metrics"
)

// StatsHandler serves a human-readable JSON snapshot of the pipeline counters.
// Raw Prometheus metrics are available at /metrics via promhttp.
type StatsHandler struct {
	gatherer prometheus.Gatherer
	logger   *zap.Logger
}

func NewStatsHandler(gatherer prometheus.Gatherer, logger *zap.Logger) *StatsHandler {
	return &StatsHandler{gatherer: gatherer, logger: logger}
}

// GetStats handles GET /api/v1/stats
//
// @Summary  Pipeline counters snapshot
// @Tags     metrics
// @Produce  json
// @Success  200  {object}  metrics.Stats
// @Router   /api/v1/stats [get]
func (h *StatsHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := metrics.Snapshot(h.gatherer)
	if err != nil {
		h.logger.Error("stats snapshot failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to gather stats")
		return
	}
	respondJSON(w, http.StatusOK, stats)
}
