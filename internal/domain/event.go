package domain

// Topic identifies the queue a message arrived on. The topic decides how the
// payload is decoded.
type Topic string

const (
	TopicFlightUpdate Topic = "flight-update"
	TopicTicketUpdate Topic = "ticket-update"
)

func (t Topic) IsValid() bool {
	switch t {
	case TopicFlightUpdate, TopicTicketUpdate:
		return true
	}
	return false
}

// TicketStatus mirrors the ticket service's validity enum.
type TicketStatus int32

const (
	TicketStatusUnspecified TicketStatus = 0
	TicketStatusValid       TicketStatus = 1
	TicketStatusInvalid     TicketStatus = 2
)

// Passenger is the holder of a ticket.
type Passenger struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Ticket is supplied by the ticket service or embedded in a ticket update.
// Passenger is nil when the ticket has not been assigned to anyone yet.
type Ticket struct {
	ID        string       `json:"id"`
	FlightID  string       `json:"flight_id"`
	URL       string       `json:"url"`
	Passenger *Passenger   `json:"passenger,omitempty"`
	Status    TicketStatus `json:"status"`
}

// Event is a decoded queue message. The set of variants is closed:
// FlightUpdated and TicketUpdated are the only implementations.
type Event interface {
	Topic() Topic
	isEvent()
}

// FlightUpdated fans out to every valid ticket on the flight.
type FlightUpdated struct {
	FlightID string
}

func (FlightUpdated) Topic() Topic { return TopicFlightUpdate }
func (FlightUpdated) isEvent()     {}

// TicketUpdated carries the updated ticket itself; no lookup is needed.
type TicketUpdated struct {
	Ticket Ticket
}

func (TicketUpdated) Topic() Topic { return TopicTicketUpdate }
func (TicketUpdated) isEvent()     {}
