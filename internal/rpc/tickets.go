package rpc

import (
	"context"
	"time"

	"google.golang.org/grpc"

	"github.com/ricirt/updatesvc/internal/domain"
)

const listTicketsMethod = "/ticketsrvc.Tickets/ListTickets"

// TicketsClient resolves the tickets of a flight through the ticket service.
type TicketsClient struct {
	conn *Conn
}

// NewTicketsClient dials the ticket service lazily.
func NewTicketsClient(target string, timeout time.Duration, opts ...grpc.DialOption) (*TicketsClient, error) {
	conn, err := Dial("ticketsrvc", target, timeout, opts...)
	if err != nil {
		return nil, err
	}
	return &TicketsClient{conn: conn}, nil
}

// ResolveTickets returns the valid tickets of a flight. Cancelled or
// withdrawn tickets are excluded by the service, not filtered here.
// A flight without tickets yields an empty slice and no error.
func (c *TicketsClient) ResolveTickets(ctx context.Context, flightID string) ([]domain.Ticket, error) {
	req := &ListTicketsRequest{FlightID: flightID, IncludeInvalid: false}
	var resp ListTicketsResponse
	if err := c.conn.invoke(ctx, listTicketsMethod, req, &resp); err != nil {
		return nil, err
	}
	if resp.Tickets == nil {
		return []domain.Ticket{}, nil
	}
	return resp.Tickets, nil
}

// Close tears down the underlying connection.
func (c *TicketsClient) Close() error { return c.conn.Close() }
