// Package codec translates queue payloads and RPC messages between the
// protobuf wire format agreed with the producing services and domain types.
//
// Field numbers:
//
//	Flight:    1 id
//	Ticket:    1 id, 2 flight_id, 3 passenger, 4 url, 5 status
//	Passenger: 1 name, 2 email
//
// Unknown fields are skipped so producers can add fields without breaking
// this consumer.
package codec

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/ricirt/updatesvc/internal/domain"
)

const (
	flightIDField protowire.Number = 1

	ticketIDField        protowire.Number = 1
	ticketFlightIDField  protowire.Number = 2
	ticketPassengerField protowire.Number = 3
	ticketURLField       protowire.Number = 4
	ticketStatusField    protowire.Number = 5

	passengerNameField  protowire.Number = 1
	passengerEmailField protowire.Number = 2
)

// Decode parses payload into the event type carried by topic.
// Every failure wraps domain.ErrDecode.
func Decode(topic domain.Topic, payload []byte) (domain.Event, error) {
	switch topic {
	case domain.TopicFlightUpdate:
		return DecodeFlight(payload)
	case domain.TopicTicketUpdate:
		t, err := DecodeTicket(payload)
		if err != nil {
			return nil, err
		}
		return domain.TicketUpdated{Ticket: t}, nil
	}
	return nil, fmt.Errorf("%w: unknown topic %q", domain.ErrDecode, topic)
}

// Encode is the inverse of Decode.
func Encode(ev domain.Event) ([]byte, error) {
	switch e := ev.(type) {
	case domain.FlightUpdated:
		return EncodeFlight(e), nil
	case domain.TicketUpdated:
		return AppendTicket(nil, e.Ticket), nil
	}
	return nil, fmt.Errorf("unsupported event %T", ev)
}

// DecodeFlight parses a Flight message. The flight id is required.
func DecodeFlight(b []byte) (domain.FlightUpdated, error) {
	var f domain.FlightUpdated
	err := Walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if num != flightIDField {
			return 0, nil
		}
		v, n, err := ConsumeString(num, typ, b)
		f.FlightID = v
		return n, err
	})
	if err != nil {
		return domain.FlightUpdated{}, err
	}
	if f.FlightID == "" {
		return domain.FlightUpdated{}, fmt.Errorf("%w: flight id is required", domain.ErrDecode)
	}
	return f, nil
}

// EncodeFlight serialises a flight update.
func EncodeFlight(f domain.FlightUpdated) []byte {
	return appendString(nil, flightIDField, f.FlightID)
}

// DecodeTicket parses a Ticket message. The ticket id is required.
func DecodeTicket(b []byte) (domain.Ticket, error) {
	var t domain.Ticket
	err := Walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		var (
			n   int
			err error
		)
		switch num {
		case ticketIDField:
			t.ID, n, err = ConsumeString(num, typ, b)
		case ticketFlightIDField:
			t.FlightID, n, err = ConsumeString(num, typ, b)
		case ticketURLField:
			t.URL, n, err = ConsumeString(num, typ, b)
		case ticketStatusField:
			var v uint64
			v, n, err = ConsumeVarint(num, typ, b)
			t.Status = domain.TicketStatus(int32(v))
		case ticketPassengerField:
			var raw []byte
			raw, n, err = ConsumeBytes(num, typ, b)
			if err != nil {
				return 0, err
			}
			p, perr := decodePassenger(raw)
			if perr != nil {
				return 0, perr
			}
			t.Passenger = &p
		}
		return n, err
	})
	if err != nil {
		return domain.Ticket{}, err
	}
	if t.ID == "" {
		return domain.Ticket{}, fmt.Errorf("%w: ticket id is required", domain.ErrDecode)
	}
	return t, nil
}

// AppendTicket appends the wire encoding of t to b.
func AppendTicket(b []byte, t domain.Ticket) []byte {
	b = appendString(b, ticketIDField, t.ID)
	b = appendString(b, ticketFlightIDField, t.FlightID)
	if t.Passenger != nil {
		var p []byte
		p = appendString(p, passengerNameField, t.Passenger.Name)
		p = appendString(p, passengerEmailField, t.Passenger.Email)
		b = protowire.AppendTag(b, ticketPassengerField, protowire.BytesType)
		b = protowire.AppendBytes(b, p)
	}
	b = appendString(b, ticketURLField, t.URL)
	if t.Status != domain.TicketStatusUnspecified {
		b = protowire.AppendTag(b, ticketStatusField, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(int64(t.Status)))
	}
	return b
}

func decodePassenger(b []byte) (domain.Passenger, error) {
	var p domain.Passenger
	err := Walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case passengerNameField:
			v, n, err := ConsumeString(num, typ, b)
			p.Name = v
			return n, err
		case passengerEmailField:
			v, n, err := ConsumeString(num, typ, b)
			p.Email = v
			return n, err
		}
		return 0, nil
	})
	return p, err
}

func appendString(b []byte, num protowire.Number, s string) []byte {
	if s == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, s)
}
