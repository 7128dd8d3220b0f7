package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/ricirt/updatesvc/internal/domain"
	"github.com/ricirt/updatesvc/internal/repository"
	"github.com/ricirt/updatesvc/internal/service"
)

type failingRepo struct{ err error }

func (f failingRepo) Record(context.Context, *domain.Delivery) error { return f.err }
func (f failingRepo) List(context.Context, domain.DeliveryFilter) ([]*domain.Delivery, error) {
	return nil, f.err
}

func newService(t *testing.T, n int) (*service.DeliveryService, *repository.MemoryDeliveryRepository) {
	t.Helper()
	repo := repository.NewMemoryDeliveryRepository(0)
	base := time.Now().UTC()
	for i := 0; i < n; i++ {
		status := domain.DeliveryDone
		if i%2 == 1 {
			status = domain.DeliveryFailed
		}
		ticketID := "T" + string(rune('a'+i%26))
		_ = repo.Record(context.Background(), &domain.Delivery{
			ID:        string(rune('A' + i%26)),
			TicketID:  &ticketID,
			Status:    status,
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		})
	}
	return service.NewDeliveryService(repo, zap.NewNop()), repo
}

func TestDeliveryService_List_DefaultLimit(t *testing.T) {
	svc, _ := newService(t, 60)

	got, err := svc.List(context.Background(), domain.DeliveryFilter{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != service.DefaultListLimit {
		t.Fatalf("expected %d rows, got %d", service.DefaultListLimit, len(got))
	}
}

func TestDeliveryService_List_FilterByStatus(t *testing.T) {
	svc, _ := newService(t, 6)
	failed := domain.DeliveryFailed

	got, err := svc.List(context.Background(), domain.DeliveryFilter{Status: &failed, Limit: 10})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 failed rows, got %d", len(got))
	}
}

func TestDeliveryService_List_InvalidFilter(t *testing.T) {
	svc, _ := newService(t, 1)
	bogus := domain.DeliveryStatus("sent")

	cases := map[string]domain.DeliveryFilter{
		"unknown status": {Status: &bogus},
		"negative limit": {Limit: -1},
		"limit too big":  {Limit: service.MaxListLimit + 1},
	}
	for name, f := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.List(context.Background(), f)
			if !errors.Is(err, domain.ErrInvalidFilter) {
				t.Fatalf("expected ErrInvalidFilter, got %v", err)
			}
		})
	}
}

func TestDeliveryService_List_RepositoryError(t *testing.T) {
	svc := service.NewDeliveryService(failingRepo{err: errors.New("connection reset")}, zap.NewNop())

	_, err := svc.List(context.Background(), domain.DeliveryFilter{})
	if err == nil || errors.Is(err, domain.ErrInvalidFilter) {
		t.Fatalf("expected a wrapped repository error, got %v", err)
	}
}
