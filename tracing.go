package rdata

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TracerName is the instrumentation name used for the default tracer.
const TracerName = "github.com/goliatone/go-rendererdata"

func defaultTracer() trace.Tracer {
	return otel.Tracer(TracerName)
}

func (m *Model) startSpan(ctx context.Context, op string, index int, typeName string) (context.Context, trace.Span) {
	attrs := []attribute.KeyValue{
		attribute.String("rdata.asset", assetName(m.asset)),
		attribute.Int("rdata.features", len(m.asset.Features)),
	}
	if index >= 0 {
		attrs = append(attrs, attribute.Int("rdata.index", index))
	}
	if typeName != "" {
		attrs = append(attrs, attribute.String("rdata.type", typeName))
	}
	return m.cfg.tracer.Start(ctx, "rdata."+op,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attrs...),
	)
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// endNoopSpan closes the span of an operation that changed nothing.
func endNoopSpan(span trace.Span) {
	span.SetAttributes(attribute.Bool("rdata.noop", true))
	span.SetStatus(codes.Ok, "")
	span.End()
}
