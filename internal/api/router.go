package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/ricirt/updatesvc/internal/api/handler"
	apimw "github.com/ricirt/updatesvc/internal/api/middleware"
	"github.com/ricirt/updatesvc/internal/service"
)

// NewRouter wires the chi router, attaches all middleware, and registers
// every route of the ops surface.
func NewRouter(
	svc *service.DeliveryService,
	reg prometheus.Gatherer,
	checks map[string]handler.Check,
	logger *zap.Logger,
) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)
	r.Use(apimw.CorrelationID)
	r.Use(apimw.RequestLogger(logger))

	dh := handler.NewDeliveryHandler(svc, logger)
	sh := handler.NewStatsHandler(reg, logger)
	hh := handler.NewHealthHandler(checks)

	r.Get("/health", hh.Health)
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/deliveries", dh.List)
		r.Get("/stats", sh.GetStats)
	})

	return r
}
