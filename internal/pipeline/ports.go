package pipeline

import (
	"context"
	"time"

	"github.com/ricirt/updatesvc/internal/domain"
)

// TicketResolver lists the valid tickets of a flight.
type TicketResolver interface {
	ResolveTickets(ctx context.Context, flightID string) ([]domain.Ticket, error)
}

// CodeSigner obtains a fresh signed code for one ticket.
type CodeSigner interface {
	Sign(ctx context.Context, t domain.Ticket) ([]byte, error)
}

// Composer renders a notification. It cannot fail.
type Composer interface {
	Compose(recipientName, recipientAddress, subject, reasonText, ticketURL string, signedCode []byte) domain.Message
}

// Sender transmits a composed notification.
type Sender interface {
	Send(ctx context.Context, msg domain.Message) error
}

// Recorder appends outcomes to the delivery log.
type Recorder interface {
	Record(ctx context.Context, d *domain.Delivery) error
}

// Deps is the bundle of long-lived collaborator handles. Every field except
// Recorder is required; all of them must be safe for concurrent use.
type Deps struct {
	Resolver TicketResolver
	Signer   CodeSigner
	Composer Composer
	Sender   Sender
	Recorder Recorder
}

// Content holds the default subject and body text per event type.
type Content struct {
	FlightSubject string
	FlightBody    string
	TicketSubject string
	TicketBody    string
}

// Hooks carries the metric callbacks injected by main.
// Nil hooks are no-ops, keeping the pipeline metrics-agnostic.
type Hooks struct {
	OnReceived func(topic domain.Topic)
	OnDropped  func(topic domain.Topic, reason string)
	OnJob      func(topic domain.Topic, state domain.JobState, reason string, latency time.Duration)
}

type nopRecorder struct{}

func (nopRecorder) Record(context.Context, *domain.Delivery) error { return nil }
