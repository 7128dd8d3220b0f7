package domain

import "time"

// DeliveryStatus is the outcome stored in the delivery log.
type DeliveryStatus string

const (
	DeliveryDone    DeliveryStatus = "done"
	DeliveryFailed  DeliveryStatus = "failed"
	DeliverySkipped DeliveryStatus = "skipped"
	DeliveryDropped DeliveryStatus = "dropped"
)

func (s DeliveryStatus) IsValid() bool {
	switch s {
	case DeliveryDone, DeliveryFailed, DeliverySkipped, DeliveryDropped:
		return true
	}
	return false
}

// Delivery is one row of the append-only delivery log. Dropped messages have
// no TicketID; ticket-level outcomes carry the ticket and recipient.
type Delivery struct {
	ID        string         `json:"id"`
	MessageID string         `json:"message_id"`
	Topic     Topic          `json:"topic"`
	FlightID  *string        `json:"flight_id,omitempty"`
	TicketID  *string        `json:"ticket_id,omitempty"`
	Recipient *string        `json:"recipient,omitempty"`
	Status    DeliveryStatus `json:"status"`
	Reason    *string        `json:"reason,omitempty"`
	Error     *string        `json:"error,omitempty"`
	LatencyMS int64          `json:"latency_ms"`
	CreatedAt time.Time      `json:"created_at"`
}

// DeliveryFilter holds query parameters for listing the delivery log.
type DeliveryFilter struct {
	Status   *DeliveryStatus
	TicketID *string
	Limit    int
}
