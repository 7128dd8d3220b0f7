package codec_test

import (
	"errors"
	"reflect"
	"testing"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/ricirt/updatesvc/internal/codec"
	"github.com/ricirt/updatesvc/internal/domain"
)

func TestDecode_RoundTrip(t *testing.T) {
	events := []domain.Event{
		domain.FlightUpdated{FlightID: "F1"},
		domain.FlightUpdated{FlightID: "LH-4021/2026-10-15"},
		domain.TicketUpdated{Ticket: domain.Ticket{ID: "T1"}},
		domain.TicketUpdated{Ticket: domain.Ticket{
			ID:        "T2",
			FlightID:  "F1",
			URL:       "/tickets/T2",
			Passenger: &domain.Passenger{Name: "Ann", Email: "ann@x.com"},
			Status:    domain.TicketStatusValid,
		}},
		domain.TicketUpdated{Ticket: domain.Ticket{
			ID:        "T3",
			Passenger: &domain.Passenger{},
			Status:    domain.TicketStatusInvalid,
		}},
		domain.TicketUpdated{Ticket: domain.Ticket{ID: "Tü", URL: "/t/ü"}},
	}

	for _, want := range events {
		payload, err := codec.Encode(want)
		if err != nil {
			t.Fatalf("encode %+v: %v", want, err)
		}

		got, err := codec.Decode(want.Topic(), payload)
		if err != nil {
			t.Fatalf("decode %+v: %v", want, err)
		}
		if !reflect.DeepEqual(got, want) {
			t.Fatalf("round trip mismatch: got %+v want %+v", got, want)
		}
	}
}

func TestDecode_SkipsUnknownFields(t *testing.T) {
	var b []byte
	b = protowire.AppendTag(b, 9, protowire.VarintType)
	b = protowire.AppendVarint(b, 42)
	b = protowire.AppendTag(b, 1, protowire.BytesType)
	b = protowire.AppendString(b, "F7")
	b = protowire.AppendTag(b, 10, protowire.BytesType)
	b = protowire.AppendString(b, "departure gate changed")

	ev, err := codec.Decode(domain.TopicFlightUpdate, b)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ev != (domain.FlightUpdated{FlightID: "F7"}) {
		t.Fatalf("unexpected event: %+v", ev)
	}
}

func TestDecode_Malformed(t *testing.T) {
	valid := codec.AppendTicket(nil, domain.Ticket{
		ID:        "T1",
		Passenger: &domain.Passenger{Name: "Ann", Email: "ann@x.com"},
	})

	wrongType := protowire.AppendTag(nil, 1, protowire.VarintType)
	wrongType = protowire.AppendVarint(wrongType, 7)

	badUTF8 := protowire.AppendTag(nil, 1, protowire.BytesType)
	badUTF8 = protowire.AppendBytes(badUTF8, []byte{0xff, 0xfe})

	badPassenger := protowire.AppendTag(nil, 1, protowire.BytesType)
	badPassenger = protowire.AppendString(badPassenger, "T9")
	badPassenger = protowire.AppendTag(badPassenger, 3, protowire.BytesType)
	badPassenger = protowire.AppendBytes(badPassenger, []byte{0x0a, 0x05, 'A'})

	tests := []struct {
		name    string
		topic   domain.Topic
		payload []byte
	}{
		{"empty flight", domain.TopicFlightUpdate, nil},
		{"empty ticket", domain.TopicTicketUpdate, []byte{}},
		{"truncated ticket", domain.TopicTicketUpdate, valid[:len(valid)-3]},
		{"garbage", domain.TopicFlightUpdate, []byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff}},
		{"wrong wire type", domain.TopicFlightUpdate, wrongType},
		{"invalid utf-8", domain.TopicTicketUpdate, badUTF8},
		{"truncated passenger", domain.TopicTicketUpdate, badPassenger},
		{"ticket on flight topic without id", domain.TopicFlightUpdate, protowire.AppendVarint(protowire.AppendTag(nil, 5, protowire.VarintType), 1)},
		{"unknown topic", domain.Topic("seat-update"), valid},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := codec.Decode(tc.topic, tc.payload)
			if !errors.Is(err, domain.ErrDecode) {
				t.Fatalf("expected ErrDecode, got %v", err)
			}
		})
	}
}

func FuzzDecode(f *testing.F) {
	f.Add(codec.EncodeFlight(domain.FlightUpdated{FlightID: "F1"}))
	f.Add(codec.AppendTicket(nil, domain.Ticket{ID: "T1", Passenger: &domain.Passenger{Name: "Ann"}}))
	f.Add([]byte{0x1a, 0xff})

	f.Fuzz(func(t *testing.T, payload []byte) {
		for _, topic := range []domain.Topic{domain.TopicFlightUpdate, domain.TopicTicketUpdate} {
			ev, err := codec.Decode(topic, payload)
			if err != nil {
				if !errors.Is(err, domain.ErrDecode) {
					t.Fatalf("error does not wrap ErrDecode: %v", err)
				}
				continue
			}
			if ev.Topic() != topic {
				t.Fatalf("decoded %s event from %s payload", ev.Topic(), topic)
			}
		}
	})
}
