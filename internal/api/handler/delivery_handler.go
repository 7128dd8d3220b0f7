package handler

import (
	"net/http"
	"strconv"

	"go.uber.org/zap"

	apimw "github.com/ricirt/updatesvc/internal/api/middleware"
	"github.com/ricirt/updatesvc/internal/domain"
	"github.com/ricirt/updatesvc/internal/service"
)

// DeliveryHandler serves the delivery log.
type DeliveryHandler struct {
	svc    *service.DeliveryService
	logger *zap.Logger
}

func NewDeliveryHandler(svc *service.DeliveryService, logger *zap.Logger) *DeliveryHandler {
	return &DeliveryHandler{svc: svc, logger: logger}
}

// List handles GET /api/v1/deliveries
//
// @Summary  Recent delivery outcomes, newest first
// @Tags     deliveries
// @Produce  json
// @Param    status     query     string  false  "done, failed, skipped or dropped"
// @Param    ticket_id  query     string  false  "Filter by ticket"
// @Param    limit      query     int     false  "Max rows (default 50, max 500)"
// @Success  200        {object}  map[string]any
// @Failure  422        {object}  map[string]string
// @Router   /api/v1/deliveries [get]
func (h *DeliveryHandler) List(w http.ResponseWriter, r *http.Request) {
	filter, err := parseDeliveryFilter(r)
	if err != nil {
		respondError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	deliveries, err := h.svc.List(r.Context(), filter)
	if err != nil {
		h.logger.Warn("list deliveries failed",
			zap.String("correlation_id", apimw.GetCorrelationID(r.Context())),
			zap.Error(err),
		)
		mapError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"data":  deliveries,
		"count": len(deliveries),
	})
}

func parseDeliveryFilter(r *http.Request) (domain.DeliveryFilter, error) {
	q := r.URL.Query()
	var filter domain.DeliveryFilter

	if s := q.Get("status"); s != "" {
		st := domain.DeliveryStatus(s)
		filter.Status = &st
	}
	if id := q.Get("ticket_id"); id != "" {
		filter.TicketID = &id
	}
	if l := q.Get("limit"); l != "" {
		n, err := strconv.Atoi(l)
		if err != nil {
			return filter, domain.ErrInvalidFilter
		}
		filter.Limit = n
	}
	return filter, nil
}
