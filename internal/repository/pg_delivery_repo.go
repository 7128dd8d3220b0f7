package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ricirt/updatesvc/internal/domain"
)

type pgDeliveryRepository struct {
	pool *pgxpool.Pool
}

// NewPgDeliveryRepository returns a DeliveryRepository backed by PostgreSQL.
func NewPgDeliveryRepository(pool *pgxpool.Pool) DeliveryRepository {
	return &pgDeliveryRepository{pool: pool}
}

func (r *pgDeliveryRepository) Record(ctx context.Context, d *domain.Delivery) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO deliveries
			(id, message_id, topic, flight_id, ticket_id, recipient,
			 status, reason, error_message, latency_ms, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		d.ID, d.MessageID, d.Topic, d.FlightID, d.TicketID, d.Recipient,
		d.Status, d.Reason, d.Error, d.LatencyMS, d.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert delivery: %w", err)
	}
	return nil
}

func (r *pgDeliveryRepository) List(ctx context.Context, f domain.DeliveryFilter) ([]*domain.Delivery, error) {
	where, args := buildListWhere(f)
	args = append(args, f.Limit)

	query := fmt.Sprintf(`
		SELECT id, message_id, topic, flight_id, ticket_id, recipient,
		       status, reason, error_message, latency_ms, created_at
		FROM deliveries%s
		ORDER BY created_at DESC
		LIMIT $%d`, where, len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list deliveries: %w", err)
	}
	defer rows.Close()

	result := []*domain.Delivery{}
	for rows.Next() {
		d, err := scanDelivery(rows)
		if err != nil {
			return nil, fmt.Errorf("scan delivery: %w", err)
		}
		result = append(result, d)
	}
	return result, rows.Err()
}

// ---- helpers ----

func scanDelivery(row pgx.Row) (*domain.Delivery, error) {
	var d domain.Delivery
	err := row.Scan(
		&d.ID, &d.MessageID, &d.Topic, &d.FlightID, &d.TicketID, &d.Recipient,
		&d.Status, &d.Reason, &d.Error, &d.LatencyMS, &d.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// buildListWhere builds a parameterised WHERE clause from a DeliveryFilter.
func buildListWhere(f domain.DeliveryFilter) (string, []any) {
	var conditions []string
	var args []any

	add := func(condition string, val any) {
		args = append(args, val)
		conditions = append(conditions, fmt.Sprintf(condition, len(args)))
	}

	if f.Status != nil {
		add("status = $%d", string(*f.Status))
	}
	if f.TicketID != nil {
		add("ticket_id = $%d", *f.TicketID)
	}

	if len(conditions) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}
