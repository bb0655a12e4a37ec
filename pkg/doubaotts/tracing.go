package doubaotts

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/haivivi/doubaotts/pkg/doubaotts"

// WithTracerProvider sets the OpenTelemetry provider for handshake and
// teardown spans. Default: otel.GetTracerProvider().
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(c *clientConfig) {
		c.tracerProvider = tp
	}
}

func newTracer(tp trace.TracerProvider) trace.Tracer {
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	return tp.Tracer(tracerName)
}

// startSpan opens a client span carrying the current stream ids.
func (c *Client) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return c.tracer.Start(ctx, name,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("doubaotts.app_id", c.config.appID)),
	)
}

// endSpan records the stream ids and err, then ends span.
func (c *Client) endSpan(span trace.Span, err error) {
	span.SetAttributes(
		attribute.String("doubaotts.connection_id", c.ConnectionID()),
		attribute.String("doubaotts.session_id", c.SessionID()),
		attribute.String("doubaotts.state", c.State().String()),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
