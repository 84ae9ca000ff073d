package openmq

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/chris-alexander-pop/openmq-client/pkg/logger"
)

// InstrumentedProducer wraps a Producer with logging and tracing.
type InstrumentedProducer struct {
	next   *Producer
	tracer trace.Tracer
}

// NewInstrumentedProducer creates a new InstrumentedProducer wrapping the given producer.
func NewInstrumentedProducer(next *Producer) *InstrumentedProducer {
	return &InstrumentedProducer{
		next:   next,
		tracer: otel.Tracer("pkg/openmq"),
	}
}

func (p *InstrumentedProducer) Send(ctx context.Context, msg *Message) error {
	dest := ""
	if p.next.Destination() != nil {
		dest = p.next.Destination().Name()
	}
	ctx, span := p.tracer.Start(ctx, "openmq.Send", trace.WithAttributes(
		attribute.String("messaging.destination", dest),
	))
	defer span.End()

	err := p.next.Send(msg)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.L().ErrorContext(ctx, "failed to send message", "destination", dest, "error", err)
		return err
	}

	span.SetStatus(codes.Ok, "message sent")
	return nil
}

func (p *InstrumentedProducer) Close() error {
	logger.L().Info("closing producer")
	return p.next.Close()
}

// InstrumentedConsumer wraps a Consumer with logging and tracing.
type InstrumentedConsumer struct {
	next   *Consumer
	tracer trace.Tracer
}

// NewInstrumentedConsumer creates a new InstrumentedConsumer wrapping the given consumer.
func NewInstrumentedConsumer(next *Consumer) *InstrumentedConsumer {
	return &InstrumentedConsumer{
		next:   next,
		tracer: otel.Tracer("pkg/openmq"),
	}
}

func (c *InstrumentedConsumer) Receive(ctx context.Context, timeout time.Duration) (*Message, error) {
	ctx, span := c.tracer.Start(ctx, "openmq.Receive", trace.WithAttributes(
		attribute.String("messaging.destination", c.next.Destination().Name()),
	))
	defer span.End()

	msg, err := c.next.ReceiveTimeout(timeout)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.L().ErrorContext(ctx, "failed to receive message",
			"destination", c.next.Destination().Name(), "error", err)
		return nil, err
	}

	span.SetAttributes(attribute.String("messaging.message_id", msg.SystemMessageID().String()))
	span.SetStatus(codes.Ok, "message received")
	return msg, nil
}

func (c *InstrumentedConsumer) Close() error {
	logger.L().Info("closing consumer", "destination", c.next.Destination().Name())
	return c.next.Close()
}
