// Package tracing holds the process tracer. Spans are no-ops until Install or SetTracer runs.
package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

var tracer trace.Tracer

// SetTracer swaps the process tracer; tests pass one backed by tracetest
func SetTracer(t trace.Tracer) {
	tracer = t
}

// Install registers a batching tracer provider exporting to exporter as the
// global provider and returns it so the caller can shut it down.
func Install(serviceName string, exporter sdktrace.SpanExporter) *sdktrace.TracerProvider {
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(resource.NewSchemaless(attribute.String("service.name", serviceName))),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))
	SetTracer(tp.Tracer(serviceName))
	return tp
}

// GetActiveSpan returns the recording span on ctx, or nil when there is none
func GetActiveSpan(ctx context.Context) trace.Span {
	if tracer == nil {
		return nil
	}
	span := trace.SpanFromContext(ctx)
	// a no-op span carries an invalid span context
	if !span.SpanContext().IsValid() {
		return nil
	}
	return span
}

// StartSpan starts a span named pkg.Type.Method. Without an installed tracer it returns the
// span already on ctx.
func StartSpan(ctx context.Context, spanName string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	if tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return tracer.Start(ctx, spanName, trace.WithAttributes(attrs...))
}

// Tenant tags a span with the tenant it works for
func Tenant(tenantID string) attribute.KeyValue {
	return attribute.String("clover.tenant_id", tenantID)
}

// GetTraceID is empty outside a traced request
func GetTraceID(ctx context.Context) string {
	span := GetActiveSpan(ctx)
	if span == nil {
		return ""
	}
	return span.SpanContext().TraceID().String()
}
