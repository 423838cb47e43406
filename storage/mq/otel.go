package mq

import (
	"context"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "lunacare.rabbitmq"

func publishWithTracing(ctx context.Context, ch *amqp.Channel, exchange, routingKey string, msg amqp.Publishing) error {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "rabbitmq.publish "+exchange,
		trace.WithSpanKind(trace.SpanKindProducer),
		trace.WithAttributes(
			semconv.MessagingSystem("rabbitmq"),
			semconv.MessagingDestinationName(exchange),
			semconv.MessagingRabbitmqDestinationRoutingKey(routingKey),
			semconv.MessagingMessageID(msg.MessageId),
		),
	)
	defer span.End()

	headers := make(amqp.Table, len(msg.Headers))
	for k, v := range msg.Headers {
		headers[k] = v
	}
	otel.GetTextMapPropagator().Inject(ctx, &HeaderCarrier{Headers: headers})
	msg.Headers = headers

	err := ch.PublishWithContext(ctx, exchange, routingKey, false, false, msg)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.RecordError(err)
	}
	return err
}

func startConsumeSpan(ctx context.Context, queue string, msg amqp.Delivery) (context.Context, trace.Span) {
	ctx = otel.GetTextMapPropagator().Extract(ctx, &HeaderCarrier{Headers: msg.Headers})
	return otel.Tracer(tracerName).Start(ctx, "rabbitmq.process "+queue,
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			semconv.MessagingSystem("rabbitmq"),
			semconv.MessagingMessageID(msg.MessageId),
			attribute.String("messaging.rabbitmq.queue", queue),
			attribute.Bool("messaging.rabbitmq.redelivered", msg.Redelivered),
		),
	)
}

func endConsumeSpan(span trace.Span, err error) {
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.RecordError(err)
	}
	span.End()
}

// HeaderCarrier 实现 propagation.TextMapCarrier，在消息头中传递追踪上下文
type HeaderCarrier struct {
	Headers amqp.Table
}

func (m *HeaderCarrier) Get(key string) string {
	if val, ok := m.Headers[key]; ok {
		if str, ok := val.(string); ok {
			return str
		}
	}
	return ""
}

func (m *HeaderCarrier) Set(key, value string) {
	if m.Headers == nil {
		m.Headers = make(amqp.Table)
	}
	m.Headers[key] = value
}

func (m *HeaderCarrier) Keys() []string {
	keys := make([]string, 0, len(m.Headers))
	for k := range m.Headers {
		keys = append(keys, k)
	}
	return keys
}
