package pipeline

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ricirt/updatesvc/internal/domain"
)

const (
	reasonNoPassenger = "no_passenger"
	reasonPanic       = "panic"
)

// runJob drives one ticket through sign → compose → send. It always returns
// a terminal result and records it exactly once.
func (d *Dispatcher) runJob(ctx context.Context, job domain.NotificationJob, parent *zap.Logger) domain.JobResult {
	start := time.Now()
	log := parent.With(zap.String("ticket_id", job.Ticket.ID))

	state, reason, err := d.attempt(ctx, job, log)
	return d.finish(ctx, job, log, start, state, reason, err)
}

// attempt calls the collaborators. A panic inside one of them fails only this
// job.
func (d *Dispatcher) attempt(ctx context.Context, job domain.NotificationJob, log *zap.Logger) (state domain.JobState, reason string, err error) {
	defer func() {
		if r := recover(); r != nil {
			state, reason, err = domain.JobFailed, reasonPanic, fmt.Errorf("job panicked: %v", r)
		}
	}()

	t := job.Ticket
	if t.Passenger == nil {
		log.Info("ticket has no passenger, skipping notification")
		return domain.JobSkipped, reasonNoPassenger, nil
	}

	log.Debug("sending update", zap.String("ticket_url", t.URL))

	code, err := d.deps.Signer.Sign(ctx, t)
	if err != nil {
		log.Error("failed to get signed code", zap.Error(err))
		return domain.JobFailed, domain.Reason(err), err
	}

	p := t.Passenger
	msg := d.deps.Composer.Compose(p.Name, p.Email, job.Subject, job.Reason, t.URL, code)

	if err := d.deps.Sender.Send(ctx, msg); err != nil {
		log.Error("error sending email", zap.Error(err))
		return domain.JobFailed, domain.Reason(err), err
	}

	return domain.JobDone, "", nil
}

func (d *Dispatcher) finish(
	ctx context.Context,
	job domain.NotificationJob,
	log *zap.Logger,
	start time.Time,
	state domain.JobState,
	reason string,
	jobErr error,
) domain.JobResult {
	elapsed := time.Since(start)
	res := domain.JobResult{
		TicketID: job.Ticket.ID,
		State:    state,
		Reason:   reason,
		Err:      jobErr,
		Latency:  elapsed,
	}

	if state == domain.JobDone {
		log.Info("notification sent", zap.Duration("latency", elapsed))
	} else if state == domain.JobFailed && reason == reasonPanic {
		log.Error("notification job panicked", zap.Error(jobErr))
	}

	d.observe(job.Topic, state, reason, elapsed, log)
	d.record(ctx, jobDelivery(job, res))
	return res
}

func jobDelivery(job domain.NotificationJob, res domain.JobResult) *domain.Delivery {
	rec := newDelivery(job.MessageID, job.Topic, domain.DeliveryStatus(res.State))
	ticketID := job.Ticket.ID
	rec.TicketID = &ticketID
	if job.Ticket.FlightID != "" {
		flightID := job.Ticket.FlightID
		rec.FlightID = &flightID
	}
	if p := job.Ticket.Passenger; p != nil && p.Email != "" {
		email := p.Email
		rec.Recipient = &email
	}
	if res.Reason != "" {
		reason := res.Reason
		rec.Reason = &reason
	}
	if res.Err != nil {
		msg := res.Err.Error()
		rec.Error = &msg
	}
	rec.LatencyMS = res.Latency.Milliseconds()
	return rec
}

func (d *Dispatcher) observe(topic domain.Topic, state domain.JobState, reason string, elapsed time.Duration, log *zap.Logger) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("job hook panicked", zap.Any("panic", r))
		}
	}()
	d.hooks.OnJob(topic, state, reason, elapsed)
}
