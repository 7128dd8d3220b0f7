package repository_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/ricirt/updatesvc/internal/domain"
	"github.com/ricirt/updatesvc/internal/repository"
)

func ptr[T any](v T) *T { return &v }

func TestMemoryDeliveryRepository_ListFiltersAndOrders(t *testing.T) {
	repo := repository.NewMemoryDeliveryRepository(0)
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	rows := []*domain.Delivery{
		{ID: "1", TicketID: ptr("T1"), Status: domain.DeliveryDone, CreatedAt: base},
		{ID: "2", TicketID: ptr("T2"), Status: domain.DeliveryFailed, CreatedAt: base.Add(time.Minute)},
		{ID: "3", Status: domain.DeliveryDropped, CreatedAt: base.Add(2 * time.Minute)},
		{ID: "4", TicketID: ptr("T1"), Status: domain.DeliveryFailed, CreatedAt: base.Add(3 * time.Minute)},
	}
	for _, d := range rows {
		if err := repo.Record(ctx, d); err != nil {
			t.Fatalf("record: %v", err)
		}
	}

	all, _ := repo.List(ctx, domain.DeliveryFilter{Limit: 10})
	if len(all) != 4 || all[0].ID != "4" || all[3].ID != "1" {
		t.Fatalf("expected newest first, got %v", ids(all))
	}

	failed, _ := repo.List(ctx, domain.DeliveryFilter{Status: ptr(domain.DeliveryFailed), Limit: 10})
	if len(failed) != 2 {
		t.Fatalf("expected 2 failed, got %v", ids(failed))
	}

	t1, _ := repo.List(ctx, domain.DeliveryFilter{TicketID: ptr("T1"), Limit: 1})
	if len(t1) != 1 || t1[0].ID != "4" {
		t.Fatalf("expected latest T1 row only, got %v", ids(t1))
	}
}

func TestMemoryDeliveryRepository_EvictsOldest(t *testing.T) {
	repo := repository.NewMemoryDeliveryRepository(3)
	base := time.Now()
	for i := 0; i < 5; i++ {
		_ = repo.Record(context.Background(), &domain.Delivery{
			ID: fmt.Sprint(i), Status: domain.DeliveryDone, CreatedAt: base.Add(time.Duration(i) * time.Second),
		})
	}

	if repo.Len() != 3 {
		t.Fatalf("expected 3 retained rows, got %d", repo.Len())
	}
	all, _ := repo.List(context.Background(), domain.DeliveryFilter{})
	if got := ids(all); got[0] != "4" || got[2] != "2" {
		t.Fatalf("expected rows 4..2, got %v", got)
	}
}

func TestMemoryDeliveryRepository_RecordCopies(t *testing.T) {
	repo := repository.NewMemoryDeliveryRepository(0)
	d := &domain.Delivery{ID: "1", Status: domain.DeliveryDone}
	_ = repo.Record(context.Background(), d)
	d.Status = domain.DeliveryFailed

	all, _ := repo.List(context.Background(), domain.DeliveryFilter{})
	if all[0].Status != domain.DeliveryDone {
		t.Fatal("stored row must not alias the caller's value")
	}
}

func ids(ds []*domain.Delivery) []string {
	out := make([]string, len(ds))
	for i, d := range ds {
		out[i] = d.ID
	}
	return out
}
