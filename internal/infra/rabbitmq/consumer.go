package rabbitmq

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Fastpacer/Dance-Movement-Analysis/internal/infra/metrics"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type MessageHandler func(ctx context.Context, body []byte) error

// Consumer feeds analysis requests to a fixed pool of workers. A delivery is
// acked when the handler returns nil and nacked without requeue otherwise;
// dead-lettering is the handler's job.
type Consumer struct {
	conn     *amqp.Connection
	channel  *amqp.Channel
	queue    string
	workers  int
	handler  MessageHandler
	logger   *zap.Logger
	inFlight sync.WaitGroup
}

type ConsumerConfig struct {
	URL         string
	Topology    Topology
	Prefetch    int
	WorkerCount int
}

func NewConsumer(cfg ConsumerConfig, handler MessageHandler, logger *zap.Logger) (*Consumer, error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open consumer channel: %w", err)
	}
	if err := cfg.Topology.Declare(ch); err != nil {
		conn.Close()
		return nil, err
	}

	// Analyses are long; prefetch never exceeds what the pool can run.
	workers := max(cfg.WorkerCount, 1)
	prefetch := cfg.Prefetch
	if prefetch < 1 || prefetch > workers {
		prefetch = workers
	}
	if err := ch.Qos(prefetch, 0, false); err != nil {
		conn.Close()
		return nil, fmt.Errorf("set qos: %w", err)
	}

	return &Consumer{
		conn:    conn,
		channel: ch,
		queue:   cfg.Topology.RequestQueue,
		workers: workers,
		handler: handler,
		logger:  logger.With(zap.String("queue", cfg.Topology.RequestQueue)),
	}, nil
}

// Start consumes until ctx is cancelled, then waits for the analyses in
// flight to finish.
func (c *Consumer) Start(ctx context.Context) error {
	deliveries, err := c.channel.ConsumeWithContext(ctx, c.queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume %s: %w", c.queue, err)
	}

	c.logger.Info("starting analysis workers", zap.Int("workers", c.workers))
	for i := range c.workers {
		c.inFlight.Add(1)
		go c.serve(ctx, i, deliveries)
	}

	<-ctx.Done()
	c.logger.Info("stopping, waiting for analyses in flight")
	c.inFlight.Wait()
	return nil
}

func (c *Consumer) serve(ctx context.Context, id int, deliveries <-chan amqp.Delivery) {
	defer c.inFlight.Done()
	log := c.logger.With(zap.Int("worker_id", id))

	for {
		select {
		case <-ctx.Done():
			return
		case d, ok := <-deliveries:
			if !ok {
				log.Info("delivery channel closed")
				return
			}
			c.handle(ctx, d, log)
		}
	}
}

// handle runs the handler to completion even after shutdown starts: a
// cancelled analysis would be dead-lettered as failed.
func (c *Consumer) handle(ctx context.Context, d amqp.Delivery, log *zap.Logger) {
	ctx, span := otel.Tracer("rabbitmq").Start(extractTrace(context.WithoutCancel(ctx), d.Headers), "consume "+c.queue,
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			attribute.String("messaging.destination", c.queue),
			attribute.Bool("messaging.redelivered", d.Redelivered),
		),
	)
	defer span.End()

	log = log.With(zap.Uint64("delivery_tag", d.DeliveryTag))
	if d.Redelivered {
		// A worker died mid-analysis; the request runs again once.
		log.Warn("analysis request redelivered")
	}

	start := time.Now()
	if err := c.handler(ctx, d.Body); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		log.Warn("analysis request dropped", zap.Error(err))
		metrics.QueueDeliveriesTotal.WithLabelValues("nack").Inc()
		if nerr := d.Nack(false, false); nerr != nil {
			log.Error("nack delivery", zap.Error(nerr))
		}
		return
	}

	metrics.QueueDeliveriesTotal.WithLabelValues("ack").Inc()
	if aerr := d.Ack(false); aerr != nil {
		log.Error("ack delivery", zap.Error(aerr))
	}
	log.Debug("analysis request handled", zap.Duration("took", time.Since(start)))
}

func (c *Consumer) Close() error {
	var errs []error
	if c.channel != nil {
		errs = append(errs, c.channel.Close())
	}
	if c.conn != nil {
		errs = append(errs, c.conn.Close())
	}
	return errors.Join(errs...)
}
