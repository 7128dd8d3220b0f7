// Package consumer binds the update queues on RabbitMQ and feeds every
// delivery to the dispatch pipeline.
package consumer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/ricirt/updatesvc/internal/domain"
)

// ErrNotConnected is returned by Healthy before Start or after Close.
var ErrNotConnected = errors.New("broker connection is not open")

// Handler processes one message to completion.
type Handler interface {
	Handle(ctx context.Context, topic domain.Topic, messageID string, payload []byte) domain.Report
}

// Binding ties a topic to the exchange it is published on and the durable
// queue this service consumes it from.
type Binding struct {
	Topic    domain.Topic
	Exchange string
	Queue    string
	Tag      string
}

// Config holds the broker settings.
type Config struct {
	URL      string
	Bindings []Binding

	// AckAfterProcessing switches from automatic acknowledgment to an explicit
	// ack once every job of a message is terminal. Messages are never nacked.
	AckAfterProcessing bool
	// Prefetch bounds unacknowledged deliveries per queue. Only used with
	// AckAfterProcessing.
	Prefetch int
}

// Hooks carries the metric callbacks injected by main.
type Hooks struct {
	OnMessageStart func()
	OnMessageDone  func()
}

// Consumer runs one goroutine per binding. Messages of one queue are handled
// sequentially.
type Consumer struct {
	cfg     Config
	handler Handler
	hooks   Hooks
	logger  *zap.Logger

	mu       sync.Mutex
	conn     *amqp.Connection
	channels []*amqp.Channel
	stopped  map[string]error // by queue, "" for the connection
	wg       sync.WaitGroup

	closing atomic.Bool
	failed  chan error
}

func New(cfg Config, handler Handler, hooks Hooks, logger *zap.Logger) *Consumer {
	if hooks.OnMessageStart == nil {
		hooks.OnMessageStart = func() {}
	}
	if hooks.OnMessageDone == nil {
		hooks.OnMessageDone = func() {}
	}
	return &Consumer{
		cfg:     cfg,
		handler: handler,
		hooks:   hooks,
		logger:  logger,
		stopped: make(map[string]error),
		failed:  make(chan error, 1),
	}
}

// Failed receives the first error that stopped consumption without Close
// being called: a lost connection, a closed channel, or a queue whose
// delivery stream ended.
func (c *Consumer) Failed() <-chan error {
	return c.failed
}

// Start connects, declares and binds every queue, and starts consuming.
// Unexpected closures are reported on Failed.
func (c *Consumer) Start() error {
	conn, err := amqp.DialConfig(c.cfg.URL, amqp.Config{
		Properties: amqp.Table{"connection_name": "updatesvc"},
	})
	if err != nil {
		return fmt.Errorf("connect to broker: %w", err)
	}
	connClosed := conn.NotifyClose(make(chan *amqp.Error, 1))
	go func() {
		if amqpErr, ok := <-connClosed; ok && amqpErr != nil {
			c.fail("", fmt.Errorf("broker connection closed: %w", amqpErr))
		}
	}()

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	for _, b := range c.cfg.Bindings {
		deliveries, err := c.declareBindConsume(conn, b)
		if err != nil {
			_ = c.Close()
			return err
		}

		c.wg.Add(1)
		go func() {
			defer c.wg.Done()
			c.consume(b, deliveries)
		}()
	}

	return nil
}

func (c *Consumer) declareBindConsume(conn *amqp.Connection, b Binding) (<-chan amqp.Delivery, error) {
	log := c.logger.With(zap.String("queue", b.Queue), zap.String("exchange", b.Exchange))

	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open channel for %s: %w", b.Queue, err)
	}
	c.mu.Lock()
	c.channels = append(c.channels, ch)
	c.mu.Unlock()

	chClosed := ch.NotifyClose(make(chan *amqp.Error, 1))
	go func() {
		if amqpErr, ok := <-chClosed; ok && amqpErr != nil {
			c.fail(b.Queue, fmt.Errorf("channel for %s closed: %w", b.Queue, amqpErr))
		}
	}()

	if c.cfg.AckAfterProcessing && c.cfg.Prefetch > 0 {
		if err := ch.Qos(c.cfg.Prefetch, 0, false); err != nil {
			return nil, fmt.Errorf("set prefetch on %s: %w", b.Queue, err)
		}
	}

	log.Info("declaring queue")
	q, err := ch.QueueDeclare(b.Queue, true, false, false, false, nil)
	if err != nil {
		return nil, fmt.Errorf("declare queue %s: %w", b.Queue, err)
	}

	log.Info("binding queue to exchange")
	if err := ch.QueueBind(q.Name, "", b.Exchange, false, nil); err != nil {
		return nil, fmt.Errorf("bind queue %s to %s: %w", q.Name, b.Exchange, err)
	}

	log.Info("consuming messages", zap.String("consumer_tag", b.Tag), zap.Bool("auto_ack", !c.cfg.AckAfterProcessing))
	deliveries, err := ch.Consume(q.Name, b.Tag, !c.cfg.AckAfterProcessing, false, false, false, nil)
	if err != nil {
		return nil, fmt.Errorf("consume %s: %w", q.Name, err)
	}
	return deliveries, nil
}

// consume handles deliveries one at a time until the channel is closed by
// Close or by the broker.
func (c *Consumer) consume(b Binding, deliveries <-chan amqp.Delivery) {
	log := c.logger.With(zap.String("queue", b.Queue), zap.String("topic", string(b.Topic)))

	for d := range deliveries {
		c.hooks.OnMessageStart()
		report := c.handler.Handle(context.Background(), b.Topic, d.MessageId, d.Body)
		c.hooks.OnMessageDone()

		if !c.cfg.AckAfterProcessing {
			continue
		}
		if err := d.Ack(false); err != nil {
			log.Error("failed to acknowledge message",
				zap.String("message_id", report.MessageID),
				zap.Uint64("delivery_tag", d.DeliveryTag),
				zap.Error(err),
			)
		}
	}

	if c.closing.Load() {
		log.Info("delivery channel closed, consumer stopped")
		return
	}
	c.fail(b.Queue, fmt.Errorf("queue %s stopped consuming: delivery channel closed by broker", b.Queue))
}

// fail records why a queue (or, with an empty queue, the connection) stopped
// and reports the first such error on Failed. Failures after Close are
// expected and ignored.
func (c *Consumer) fail(queue string, err error) {
	if c.closing.Load() {
		return
	}
	c.logger.Error("consumer stopped unexpectedly", zap.String("queue", queue), zap.Error(err))

	c.mu.Lock()
	if _, seen := c.stopped[queue]; !seen {
		c.stopped[queue] = err
	}
	c.mu.Unlock()

	select {
	case c.failed <- err:
	default:
	}
}

// Close stops consuming, waits for the message in progress on every queue to
// finish, then closes the connection.
func (c *Consumer) Close() error {
	c.closing.Store(true)

	c.mu.Lock()
	channels := c.channels
	conn := c.conn
	c.mu.Unlock()

	for i, ch := range channels {
		if i < len(c.cfg.Bindings) {
			if err := ch.Cancel(c.cfg.Bindings[i].Tag, false); err != nil {
				c.logger.Warn("failed to cancel consumer",
					zap.String("consumer_tag", c.cfg.Bindings[i].Tag),
					zap.Error(err),
				)
			}
		}
	}

	c.wg.Wait()

	var errs []error
	for _, ch := range channels {
		if err := ch.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
			errs = append(errs, err)
		}
	}
	if conn != nil {
		if err := conn.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
			errs = append(errs, err)
		}
	}

	c.mu.Lock()
	c.conn = nil
	c.channels = nil
	c.mu.Unlock()

	return errors.Join(errs...)
}

// Healthy reports whether the broker connection is open and every queue is
// still consuming.
func (c *Consumer) Healthy(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.stopped) > 0 {
		errs := make([]error, 0, len(c.stopped))
		for _, err := range c.stopped {
			errs = append(errs, err)
		}
		return errors.Join(errs...)
	}
	if c.conn == nil || c.conn.IsClosed() {
		return ErrNotConnected
	}
	return nil
}

// URL builds an AMQP URL with the vhost escaped.
func URL(host string, port int, username, password, vhost string) string {
	return amqp.URI{
		Scheme:   "amqp",
		Host:     host,
		Port:     port,
		Username: username,
		Password: password,
		Vhost:    vhost,
	}.String()
}
