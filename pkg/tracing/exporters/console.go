package exporters

import (
	"context"

	"github.com/Gobusters/ectologger"
	"go.opentelemetry.io/otel/sdk/trace"
)

// ConsoleExporter writes finished spans to the service log
type ConsoleExporter struct {
	logger ectologger.Logger
}

func NewConsoleExporter(logger ectologger.Logger) *ConsoleExporter {
	return &ConsoleExporter{logger: logger}
}

func (c *ConsoleExporter) ExportSpans(ctx context.Context, spans []trace.ReadOnlySpan) error {
	for _, s := range spans {
		c.logger.WithContext(ctx).WithFields(map[string]any{
			"span":     s.Name(),
			"trace_id": s.SpanContext().TraceID().String(),
			"span_id":  s.SpanContext().SpanID().String(),
			"duration": s.EndTime().Sub(s.StartTime()).String(),
			"status":   s.Status().Code.String(),
		}).Debug("Span finished")
	}
	return nil
}

func (c *ConsoleExporter) Shutdown(ctx context.Context) error {
	return nil
}
