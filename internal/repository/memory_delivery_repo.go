package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/ricirt/updatesvc/internal/domain"
)

// MemoryDeliveryRepository keeps the most recent deliveries in process. It
// backs the delivery log when no database is configured, and unit tests.
type MemoryDeliveryRepository struct {
	mu         sync.RWMutex
	deliveries []*domain.Delivery
	capacity   int
}

// NewMemoryDeliveryRepository keeps at most capacity rows, evicting the
// oldest first. A capacity of 0 keeps everything.
func NewMemoryDeliveryRepository(capacity int) *MemoryDeliveryRepository {
	return &MemoryDeliveryRepository{capacity: capacity}
}

func (m *MemoryDeliveryRepository) Record(_ context.Context, d *domain.Delivery) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	clone := *d
	m.deliveries = append(m.deliveries, &clone)
	if m.capacity > 0 && len(m.deliveries) > m.capacity {
		m.deliveries = m.deliveries[len(m.deliveries)-m.capacity:]
	}
	return nil
}

// List mirrors the pg ordering: newest first, at most f.Limit rows.
func (m *MemoryDeliveryRepository) List(_ context.Context, f domain.DeliveryFilter) ([]*domain.Delivery, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := []*domain.Delivery{}
	for _, d := range m.deliveries {
		if f.Status != nil && d.Status != *f.Status {
			continue
		}
		if f.TicketID != nil && (d.TicketID == nil || *d.TicketID != *f.TicketID) {
			continue
		}
		clone := *d
		result = append(result, &clone)
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	if f.Limit > 0 && len(result) > f.Limit {
		result = result[:f.Limit]
	}
	return result, nil
}

// Len returns the number of retained deliveries.
func (m *MemoryDeliveryRepository) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.deliveries)
}
