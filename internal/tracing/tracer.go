package tracing

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/allaspectsdev/legalsmart"

// Tracer returns the global tracer for LegalSmart instrumentation.
func Tracer() trace.Tracer {
	return otel.Tracer(tracerName)
}

// DefaultServiceName is reported when Options.ServiceName is empty.
const DefaultServiceName = "legalsmart"

// Options configures the global TracerProvider.
type Options struct {
	ServiceName string
	Version     string
	// Exporter is one of "stdout", "otlp-grpc", "otlp-http".
	Exporter   string
	Endpoint   string
	SampleRate float64
	Insecure   bool
}

// sampler maps SampleRate onto a parent-based sampler. Rates at or above 1
// sample everything and rates at or below 0 drop every root span.
func (o Options) sampler() sdktrace.Sampler {
	switch {
	case o.SampleRate >= 1:
		return sdktrace.ParentBased(sdktrace.AlwaysSample())
	case o.SampleRate <= 0:
		return sdktrace.ParentBased(sdktrace.NeverSample())
	default:
		return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(o.SampleRate))
	}
}

// Init installs a batching TracerProvider and the W3C propagator globally.
// Callers defer the returned shutdown to flush spans on exit.
func Init(ctx context.Context, opts Options) (shutdown func(context.Context) error, err error) {
	if opts.ServiceName == "" {
		opts.ServiceName = DefaultServiceName
	}

	exp, err := newExporter(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("tracing: exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(opts.ServiceName),
			semconv.ServiceVersion(opts.Version),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("tracing: resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(opts.sampler()),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	return tp.Shutdown, nil
}

func newExporter(ctx context.Context, opts Options) (sdktrace.SpanExporter, error) {
	switch opts.Exporter {
	case "stdout":
		return stdouttrace.New(stdouttrace.WithPrettyPrint())
	case "otlp-grpc":
		var grpcOpts []otlptracegrpc.Option
		if opts.Endpoint != "" {
			grpcOpts = append(grpcOpts, otlptracegrpc.WithEndpoint(opts.Endpoint))
		}
		if opts.Insecure {
			grpcOpts = append(grpcOpts, otlptracegrpc.WithInsecure())
		}
		return otlptracegrpc.New(ctx, grpcOpts...)
	case "otlp-http":
		var httpOpts []otlptracehttp.Option
		if opts.Endpoint != "" {
			httpOpts = append(httpOpts, otlptracehttp.WithEndpoint(opts.Endpoint))
		}
		if opts.Insecure {
			httpOpts = append(httpOpts, otlptracehttp.WithInsecure())
		}
		return otlptracehttp.New(ctx, httpOpts...)
	}
	return nil, fmt.Errorf("unknown exporter %q (want stdout, otlp-grpc or otlp-http)", opts.Exporter)
}
