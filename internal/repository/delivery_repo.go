package repository

import (
	"context"

	"github.com/ricirt/updatesvc/internal/domain"
)

// DeliveryRepository is the append-only delivery log.
// The pgx implementation is in pg_delivery_repo.go.
// Tests use a hand-written mock (mock_delivery_repo.go).
type DeliveryRepository interface {
	Record(ctx context.Context, d *domain.Delivery) error
	List(ctx context.Context, filter domain.DeliveryFilter) ([]*domain.Delivery, error)
}
