package exporters

import (
	"context"
	"fmt"
	"time"

	"github.com/Gobusters/ectologger"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// Exporter names accepted by New
const (
	KindNone     = "none"
	KindConsole  = "console"
	KindOTLPGRPC = "otlp-grpc"
	KindOTLPHTTP = "otlp-http"
)

// Config selects and configures a span exporter
type Config struct {
	Kind string
	// Endpoint is the collector address, e.g. localhost:4317 for gRPC or localhost:4318 for HTTP
	Endpoint string
	Insecure bool
	Timeout  time.Duration
}

// New builds the configured exporter. KindNone returns nil.
func New(ctx context.Context, cfg Config, logger ectologger.Logger) (sdktrace.SpanExporter, error) {
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}

	switch cfg.Kind {
	case "", KindNone:
		return nil, nil
	case KindConsole:
		return NewConsoleExporter(logger), nil
	case KindOTLPGRPC:
		return newGRPCExporter(ctx, cfg)
	case KindOTLPHTTP:
		return newHTTPExporter(ctx, cfg)
	}
	return nil, fmt.Errorf("unsupported trace exporter: %s", cfg.Kind)
}

func newGRPCExporter(ctx context.Context, cfg Config) (sdktrace.SpanExporter, error) {
	opts := []otlptracegrpc.Option{
		otlptracegrpc.WithEndpoint(cfg.Endpoint),
		otlptracegrpc.WithTimeout(cfg.Timeout),
	}
	if cfg.Insecure {
		opts = append(opts,
			otlptracegrpc.WithDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
			otlptracegrpc.WithInsecure(),
		)
	}
	return otlptracegrpc.New(ctx, opts...)
}

func newHTTPExporter(ctx context.Context, cfg Config) (sdktrace.SpanExporter, error) {
	opts := []otlptracehttp.Option{
		otlptracehttp.WithEndpoint(cfg.Endpoint),
		otlptracehttp.WithTimeout(cfg.Timeout),
	}
	if cfg.Insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}
	return otlptracehttp.New(ctx, opts...)
}
