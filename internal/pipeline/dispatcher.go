// Package pipeline turns one inbound queue message into independent,
// failure-isolated notification jobs.
//
// Per message: Received → Decoded → Expanded → jobs → Acknowledged, or
// Dropped when decoding or ticket resolution fails. Each job runs
// sign → compose → send and ends Done, Failed or Skipped without affecting
// its siblings.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ricirt/updatesvc/internal/codec"
	"github.com/ricirt/updatesvc/internal/domain"
)

// DefaultRecordTimeout bounds a single delivery log write.
const DefaultRecordTimeout = 5 * time.Second

// Dispatcher processes messages. One Dispatcher is shared by all consumers.
type Dispatcher struct {
	deps          Deps
	content       Content
	concurrency   int
	hooks         Hooks
	logger        *zap.Logger
	recordTimeout time.Duration
}

// Option customises a Dispatcher.
type Option func(*Dispatcher)

// WithRecordTimeout bounds each delivery log write. Non-positive values keep
// DefaultRecordTimeout.
func WithRecordTimeout(timeout time.Duration) Option {
	return func(d *Dispatcher) {
		if timeout > 0 {
			d.recordTimeout = timeout
		}
	}
}

// NewDispatcher wires the pipeline. concurrency bounds the number of jobs of
// one message running at once; values below 1 run jobs sequentially.
func NewDispatcher(deps Deps, content Content, concurrency int, hooks Hooks, logger *zap.Logger, opts ...Option) *Dispatcher {
	if deps.Recorder == nil {
		deps.Recorder = nopRecorder{}
	}
	if concurrency < 1 {
		concurrency = 1
	}
	if hooks.OnReceived == nil {
		hooks.OnReceived = func(domain.Topic) {}
	}
	if hooks.OnDropped == nil {
		hooks.OnDropped = func(domain.Topic, string) {}
	}
	if hooks.OnJob == nil {
		hooks.OnJob = func(domain.Topic, domain.JobState, string, time.Duration) {}
	}
	d := &Dispatcher{
		deps:          deps,
		content:       content,
		concurrency:   concurrency,
		hooks:         hooks,
		logger:        logger,
		recordTimeout: DefaultRecordTimeout,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Handle processes one message to completion and never returns an error:
// every failure is logged, recorded and reflected in the report.
// Cancelling ctx does not interrupt a message that has been received.
func (d *Dispatcher) Handle(ctx context.Context, topic domain.Topic, messageID string, payload []byte) domain.Report {
	ctx = context.WithoutCancel(ctx)
	if messageID == "" {
		messageID = uuid.NewString()
	}
	log := d.logger.With(
		zap.String("message_id", messageID),
		zap.String("topic", string(topic)),
	)
	report := domain.Report{MessageID: messageID, Topic: topic}
	d.hooks.OnReceived(topic)

	ev, err := codec.Decode(topic, payload)
	if err != nil {
		log.Error("could not decode message", zap.Int("payload_bytes", len(payload)), zap.Error(err))
		return d.drop(ctx, report, err)
	}

	if f, ok := ev.(domain.FlightUpdated); ok {
		report.FlightID = f.FlightID
	}

	jobs, err := d.expand(ctx, messageID, ev, log)
	if err != nil {
		return d.drop(ctx, report, err)
	}

	report.Jobs = d.runAll(ctx, jobs, log)
	report.State = domain.MessageAcknowledged

	log.Info("message processed",
		zap.Int("jobs", len(report.Jobs)),
		zap.Int("done", report.Count(domain.JobDone)),
		zap.Int("failed", report.Count(domain.JobFailed)),
		zap.Int("skipped", report.Count(domain.JobSkipped)),
	)
	return report
}

// expand turns an event into jobs. Flight updates fan out through the
// resolver; ticket updates are a single job and never touch the resolver.
func (d *Dispatcher) expand(ctx context.Context, messageID string, ev domain.Event, log *zap.Logger) ([]domain.NotificationJob, error) {
	switch e := ev.(type) {
	case domain.FlightUpdated:
		tickets, err := d.deps.Resolver.ResolveTickets(ctx, e.FlightID)
		if err != nil {
			log.Error("could not obtain tickets", zap.String("flight_id", e.FlightID), zap.Error(err))
			return nil, err
		}
		log.Info("received flight update",
			zap.String("flight_id", e.FlightID),
			zap.Int("tickets", len(tickets)),
		)

		jobs := make([]domain.NotificationJob, len(tickets))
		for i, t := range tickets {
			jobs[i] = domain.NotificationJob{
				MessageID: messageID,
				Topic:     domain.TopicFlightUpdate,
				Ticket:    t,
				Subject:   d.content.FlightSubject,
				Reason:    d.content.FlightBody,
			}
		}
		return jobs, nil

	case domain.TicketUpdated:
		log.Info("received ticket update", zap.String("ticket_id", e.Ticket.ID))
		return []domain.NotificationJob{{
			MessageID: messageID,
			Topic:     domain.TopicTicketUpdate,
			Ticket:    e.Ticket,
			Subject:   d.content.TicketSubject,
			Reason:    d.content.TicketBody,
		}}, nil
	}

	err := fmt.Errorf("%w: unsupported event %T", domain.ErrDecode, ev)
	log.Error("could not decode message", zap.Error(err))
	return nil, err
}

// runAll runs every job and waits for all of them. Jobs report through their
// own slot of the result slice, so no locking is needed.
func (d *Dispatcher) runAll(ctx context.Context, jobs []domain.NotificationJob, log *zap.Logger) []domain.JobResult {
	results := make([]domain.JobResult, len(jobs))

	var g errgroup.Group
	g.SetLimit(d.concurrency)
	for i, job := range jobs {
		g.Go(func() error {
			results[i] = d.runJob(ctx, job, log)
			return nil
		})
	}
	_ = g.Wait() // jobs never return errors

	return results
}

func (d *Dispatcher) drop(ctx context.Context, report domain.Report, err error) domain.Report {
	report.State = domain.MessageDropped
	report.Reason = domain.Reason(err)
	d.hooks.OnDropped(report.Topic, report.Reason)

	rec := newDelivery(report.MessageID, report.Topic, domain.DeliveryDropped)
	if report.FlightID != "" {
		rec.FlightID = &report.FlightID
	}
	rec.Reason = &report.Reason
	msg := err.Error()
	rec.Error = &msg
	d.record(ctx, rec)

	return report
}

// record writes one delivery log row. A slow, failing or panicking recorder
// is logged and never holds up or breaks the job.
func (d *Dispatcher) record(ctx context.Context, rec *domain.Delivery) {
	ctx, cancel := context.WithTimeout(ctx, d.recordTimeout)
	defer cancel()

	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("recorder panicked: %v", r)
			}
		}()
		return d.deps.Recorder.Record(ctx, rec)
	}()
	if err != nil {
		d.logger.Warn("failed to record delivery",
			zap.String("message_id", rec.MessageID),
			zap.String("status", string(rec.Status)),
			zap.Error(err),
		)
	}
}

func newDelivery(messageID string, topic domain.Topic, status domain.DeliveryStatus) *domain.Delivery {
	return &domain.Delivery{
		ID:        uuid.NewString(),
		MessageID: messageID,
		Topic:     topic,
		Status:    status,
		CreatedAt: time.Now().UTC(),
	}
}
