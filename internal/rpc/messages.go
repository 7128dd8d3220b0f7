package rpc

import (
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/ricirt/updatesvc/internal/codec"
	"github.com/ricirt/updatesvc/internal/domain"
)

// ListTicketsRequest asks the ticket service for the tickets of one flight.
//
//	1 flight_id, 2 include_invalid
type ListTicketsRequest struct {
	FlightID       string
	IncludeInvalid bool
}

func (r *ListTicketsRequest) MarshalWire() ([]byte, error) {
	var b []byte
	if r.FlightID != "" {
		b = protowire.AppendTag(b, 1, protowire.BytesType)
		b = protowire.AppendString(b, r.FlightID)
	}
	if r.IncludeInvalid {
		b = protowire.AppendTag(b, 2, protowire.VarintType)
		b = protowire.AppendVarint(b, protowire.EncodeBool(true))
	}
	return b, nil
}

func (r *ListTicketsRequest) UnmarshalWire(b []byte) error {
	*r = ListTicketsRequest{}
	return codec.Walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			v, n, err := codec.ConsumeString(num, typ, b)
			r.FlightID = v
			return n, err
		case 2:
			v, n, err := codec.ConsumeVarint(num, typ, b)
			r.IncludeInvalid = protowire.DecodeBool(v)
			return n, err
		}
		return 0, nil
	})
}

// ListTicketsResponse carries the matching tickets.
//
//	1 repeated Ticket
type ListTicketsResponse struct {
	Tickets []domain.Ticket
}

func (r *ListTicketsResponse) MarshalWire() ([]byte, error) {
	var b []byte
	for _, t := range r.Tickets {
		b = protowire.AppendTag(b, 1, protowire.BytesType)
		b = protowire.AppendBytes(b, codec.AppendTicket(nil, t))
	}
	return b, nil
}

func (r *ListTicketsResponse) UnmarshalWire(b []byte) error {
	*r = ListTicketsResponse{}
	return codec.Walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if num != 1 {
			return 0, nil
		}
		raw, n, err := codec.ConsumeBytes(num, typ, b)
		if err != nil {
			return 0, err
		}
		t, err := codec.DecodeTicket(raw)
		if err != nil {
			return 0, err
		}
		r.Tickets = append(r.Tickets, t)
		return n, nil
	})
}

// QRCodeRequest asks the validation service to sign one ticket.
//
//	1 ticket
type QRCodeRequest struct {
	Ticket domain.Ticket
}

func (r *QRCodeRequest) MarshalWire() ([]byte, error) {
	b := protowire.AppendTag(nil, 1, protowire.BytesType)
	return protowire.AppendBytes(b, codec.AppendTicket(nil, r.Ticket)), nil
}

func (r *QRCodeRequest) UnmarshalWire(b []byte) error {
	*r = QRCodeRequest{}
	return codec.Walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if num != 1 {
			return 0, nil
		}
		raw, n, err := codec.ConsumeBytes(num, typ, b)
		if err != nil {
			return 0, err
		}
		t, err := codec.DecodeTicket(raw)
		if err != nil {
			return 0, err
		}
		r.Ticket = t
		return n, nil
	})
}

// QRCodeResponse carries the signed code, an opaque image payload.
//
//	1 qr
type QRCodeResponse struct {
	QR []byte
}

func (r *QRCodeResponse) MarshalWire() ([]byte, error) {
	if len(r.QR) == 0 {
		return nil, nil
	}
	b := protowire.AppendTag(nil, 1, protowire.BytesType)
	return protowire.AppendBytes(b, r.QR), nil
}

func (r *QRCodeResponse) UnmarshalWire(b []byte) error {
	*r = QRCodeResponse{}
	return codec.Walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if num != 1 {
			return 0, nil
		}
		v, n, err := codec.ConsumeBytes(num, typ, b)
		if err != nil {
			return 0, err
		}
		// the transport may reuse its receive buffer
		r.QR = append([]byte(nil), v...)
		return n, nil
	})
}
