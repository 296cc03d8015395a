package rabbitmq

import (
	"context"
	"errors"
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type recordingAck struct {
	acked   []uint64
	nacked  []uint64
	requeue []bool
}

func (r *recordingAck) Ack(tag uint64, _ bool) error {
	r.acked = append(r.acked, tag)
	return nil
}

func (r *recordingAck) Nack(tag uint64, _ bool, requeue bool) error {
	r.nacked = append(r.nacked, tag)
	r.requeue = append(r.requeue, requeue)
	return nil
}

func (r *recordingAck) Reject(tag uint64, requeue bool) error {
	return r.Nack(tag, false, requeue)
}

func newTestConsumer(handler MessageHandler) *Consumer {
	return &Consumer{queue: "analysis.requested", handler: handler, logger: zap.NewNop()}
}

func TestHandleAcksOnSuccess(t *testing.T) {
	ack := &recordingAck{}
	c := newTestConsumer(func(context.Context, []byte) error { return nil })

	c.handle(context.Background(), amqp.Delivery{Acknowledger: ack, DeliveryTag: 7, Body: []byte(`{}`)}, zap.NewNop())

	assert.Equal(t, []uint64{7}, ack.acked)
	assert.Empty(t, ack.nacked)
}

func TestHandleNeverRequeues(t *testing.T) {
	ack := &recordingAck{}
	c := newTestConsumer(func(context.Context, []byte) error { return errors.New("boom") })

	c.handle(context.Background(), amqp.Delivery{Acknowledger: ack, DeliveryTag: 3, Redelivered: true}, zap.NewNop())

	assert.Empty(t, ack.acked)
	assert.Equal(t, []uint64{3}, ack.nacked)
	assert.Equal(t, []bool{false}, ack.requeue)
}

func TestHandleOutlivesShutdown(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var handlerErr error
	ack := &recordingAck{}
	c := newTestConsumer(func(ctx context.Context, _ []byte) error {
		handlerErr = ctx.Err()
		return nil
	})

	c.handle(ctx, amqp.Delivery{Acknowledger: ack, DeliveryTag: 9}, zap.NewNop())

	assert.NoError(t, handlerErr)
	assert.Equal(t, []uint64{9}, ack.acked)
}

func TestServeStopsWhenDeliveriesClose(t *testing.T) {
	ack := &recordingAck{}
	handled := 0
	c := newTestConsumer(func(context.Context, []byte) error { handled++; return nil })

	deliveries := make(chan amqp.Delivery, 2)
	deliveries <- amqp.Delivery{Acknowledger: ack, DeliveryTag: 1}
	deliveries <- amqp.Delivery{Acknowledger: ack, DeliveryTag: 2}
	close(deliveries)

	c.inFlight.Add(1)
	c.serve(context.Background(), 0, deliveries)

	assert.Equal(t, 2, handled)
	assert.Equal(t, []uint64{1, 2}, ack.acked)
}

func TestHandlerSeesPublisherTrace(t *testing.T) {
	traceID := trace.TraceID{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16}
	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     trace.SpanID{1, 2, 3, 4, 5, 6, 7, 8},
		TraceFlags: trace.FlagsSampled,
	})
	headers := injectTrace(trace.ContextWithSpanContext(context.Background(), sc), nil)
	require.Contains(t, headers, "traceparent")

	var seen trace.SpanContext
	c := newTestConsumer(func(ctx context.Context, _ []byte) error {
		seen = trace.SpanContextFromContext(ctx)
		return nil
	})
	c.handle(context.Background(), amqp.Delivery{Acknowledger: &recordingAck{}, Headers: headers}, zap.NewNop())

	// With the no-op provider the consumer span carries the remote parent.
	assert.Equal(t, traceID, seen.TraceID())
}

func TestExtractTraceWithoutHeaders(t *testing.T) {
	ctx := context.Background()
	assert.Equal(t, ctx, extractTrace(ctx, nil))
}
