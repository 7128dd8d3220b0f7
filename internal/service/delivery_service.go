package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/ricirt/updatesvc/internal/domain"
	"github.com/ricirt/updatesvc/internal/repository"
)

const (
	DefaultListLimit = 50
	MaxListLimit     = 500
)

// DeliveryService is the read side of the delivery log used by the HTTP API.
// The write side is the pipeline's Recorder, which talks to the repository
// directly.
type DeliveryService struct {
	repo   repository.DeliveryRepository
	logger *zap.Logger
}

func NewDeliveryService(repo repository.DeliveryRepository, logger *zap.Logger) *DeliveryService {
	return &DeliveryService{repo: repo, logger: logger}
}

// List validates the filter, applies the default limit and returns the most
// recent matching deliveries.
func (s *DeliveryService) List(ctx context.Context, filter domain.DeliveryFilter) ([]*domain.Delivery, error) {
	if filter.Status != nil && !filter.Status.IsValid() {
		return nil, fmt.Errorf("%w: unknown status %q", domain.ErrInvalidFilter, *filter.Status)
	}
	if filter.TicketID != nil && *filter.TicketID == "" {
		filter.TicketID = nil
	}
	switch {
	case filter.Limit < 0, filter.Limit > MaxListLimit:
		return nil, fmt.Errorf("%w: limit must be between 1 and %d", domain.ErrInvalidFilter, MaxListLimit)
	case filter.Limit == 0:
		filter.Limit = DefaultListLimit
	}

	deliveries, err := s.repo.List(ctx, filter)
	if err != nil {
		s.logger.Error("list deliveries failed", zap.Error(err))
		return nil, fmt.Errorf("list deliveries: %w", err)
	}
	return deliveries, nil
}
