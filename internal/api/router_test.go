package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/ricirt/updatesvc/internal/api"
	"github.com/ricirt/updatesvc/internal/api/handler"
	"github.com/ricirt/updatesvc/internal/domain"
	"github.com/ricirt/updatesvc/internal/metrics"
	"github.com/ricirt/updatesvc/internal/repository"
	"github.com/ricirt/updatesvc/internal/service"
)

func newTestRouter(t *testing.T) (http.Handler, *repository.MemoryDeliveryRepository, *metrics.Metrics) {
	t.Helper()
	return newTestRouterWithChecks(t, nil)
}

func newTestRouterWithChecks(t *testing.T, checks map[string]handler.Check) (http.Handler, *repository.MemoryDeliveryRepository, *metrics.Metrics) {
	t.Helper()
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	repo := repository.NewMemoryDeliveryRepository(0)
	svc := service.NewDeliveryService(repo, zap.NewNop())
	return api.NewRouter(svc, reg, checks, zap.NewNop()), repo, m
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRouter_Health(t *testing.T) {
	h, _, _ := newTestRouter(t)

	rec := get(t, h, "/health")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec.Header().Get("X-Correlation-ID") == "" {
		t.Fatal("expected a correlation id on the response")
	}
}

func TestRouter_HealthDegraded(t *testing.T) {
	h, _, _ := newTestRouterWithChecks(t, map[string]handler.Check{
		"broker":   func(context.Context) error { return errors.New("connection closed") },
		"database": func(context.Context) error { return nil },
	})

	rec := get(t, h, "/health")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
	var body struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Status != "degraded" || body.Checks["broker"] != "connection closed" || body.Checks["database"] != "ok" {
		t.Fatalf("unexpected body: %+v", body)
	}
}

func TestRouter_Deliveries(t *testing.T) {
	h, repo, _ := newTestRouter(t)
	ticketID := "T1"
	_ = repo.Record(context.Background(), &domain.Delivery{
		ID: "d1", TicketID: &ticketID, Status: domain.DeliveryDone, CreatedAt: time.Now(),
	})
	_ = repo.Record(context.Background(), &domain.Delivery{
		ID: "d2", Status: domain.DeliveryDropped, CreatedAt: time.Now(),
	})

	rec := get(t, h, "/api/v1/deliveries?status=done&ticket_id=T1")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var body struct {
		Data  []domain.Delivery `json:"data"`
		Count int               `json:"count"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Count != 1 || body.Data[0].ID != "d1" {
		t.Fatalf("unexpected body: %+v", body)
	}
}

func TestRouter_DeliveriesRejectsBadFilters(t *testing.T) {
	h, _, _ := newTestRouter(t)

	for _, path := range []string{
		"/api/v1/deliveries?status=sent",
		"/api/v1/deliveries?limit=abc",
		"/api/v1/deliveries?limit=100000",
	} {
		if rec := get(t, h, path); rec.Code != http.StatusUnprocessableEntity {
			t.Errorf("%s: expected 422, got %d", path, rec.Code)
		}
	}
}

type failingRepo struct{}

func (failingRepo) Record(context.Context, *domain.Delivery) error { return context.DeadlineExceeded }
func (failingRepo) List(context.Context, domain.DeliveryFilter) ([]*domain.Delivery, error) {
	return nil, context.DeadlineExceeded
}

func TestRouter_DeliveriesRepositoryFailure(t *testing.T) {
	svc := service.NewDeliveryService(failingRepo{}, zap.NewNop())
	h := api.NewRouter(svc, prometheus.NewRegistry(), nil, zap.NewNop())

	if rec := get(t, h, "/api/v1/deliveries"); rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
}

func TestRouter_StatsAndMetrics(t *testing.T) {
	h, _, m := newTestRouter(t)
	onReceived, _, onJob := m.PipelineHooks()
	onReceived(domain.TopicTicketUpdate)
	onJob(domain.TopicTicketUpdate, domain.JobDone, "", time.Millisecond)

	rec := get(t, h, "/api/v1/stats")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var stats metrics.Stats
	if err := json.Unmarshal(rec.Body.Bytes(), &stats); err != nil {
		t.Fatalf("decode stats: %v", err)
	}
	if stats.Received["ticket-update"] != 1 || stats.Jobs["done"] != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}

	rec = get(t, h, "/metrics")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "updatesvc_jobs_total") {
		t.Fatalf("expected prometheus exposition, got %d", rec.Code)
	}
}
