// Package telemetry wires the compiler's own self-instrumentation: traces,
// metrics, and logs describing forge's own pipeline runs (one fetch, one
// resolution pass, one generation run), as opposed to pkg/resolve/pkg/gen's
// subject matter which is semantic-convention telemetry definitions.
//
// The provider-construction shape — one constructor per signal, returning a
// ready-to-use provider plus a shutdown func, switched on protocol and an
// optional stdout/debug exporter — is generalised directly from
// cmd/motel/main.go's createTraceProviders/createMetricProviders/
// createLogProviders. The teacher builds one provider per simulated
// *service*; forge has exactly one "service" (itself), so the per-service
// resource map collapses to a single resource.Resource built from the
// process's own identity.
package telemetry

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploghttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutlog"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/log"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/resource"

	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

const (
	shutdownTimeout = 5 * time.Second
	instrumentation = "forge"
)

// Options configures self-instrumentation export, mirroring the teacher's
// runOptions fields that control OTLP endpoint/protocol/stdout selection.
type Options struct {
	// Enabled gates emission entirely; when false every constructor below
	// returns no-op providers, matching the teacher's disabled-signal path
	// in createTraceProviders.
	Enabled bool
	// Endpoint is the OTLP collector address; empty uses exporter defaults.
	Endpoint string
	// Protocol is "http/protobuf" (default) or "grpc".
	Protocol string
	// Stdout emits telemetry as JSON to stderr instead of OTLP, for local
	// debugging of the compiler's own pipeline.
	Stdout bool
	// Version is stamped onto the self-instrumentation resource.
	Version string
}

// Providers bundles the constructed tracer/meter/logger and a combined
// shutdown func, the self-instrumentation analogue of spec.md's compiler
// pipeline components.
type Providers struct {
	Tracer trace.Tracer
	Meter  metric.Meter
	Logger log.Logger

	shutdown func()
}

// Shutdown flushes and closes every underlying provider. Safe to call once;
// callers should defer it immediately after Setup returns, exactly as
// cmd/motel/main.go defers each createXProviders shutdown func.
func (p *Providers) Shutdown() {
	if p.shutdown != nil {
		p.shutdown()
	}
}

// Setup builds traces/metrics/logs providers for the compiler's own
// pipeline per opts. When opts.Enabled is false, every signal is backed by
// a no-op provider so instrumented code paths never need nil checks.
func Setup(ctx context.Context, opts Options) (*Providers, error) {
	res, err := resource.Merge(resource.Default(), resource.NewSchemaless(
		attribute.String("service.name", instrumentation),
		attribute.String("service.version", opts.Version),
	))
	if err != nil {
		return nil, fmt.Errorf("telemetry: building resource: %w", err)
	}

	if !opts.Enabled {
		tp := sdktrace.NewTracerProvider()
		mp := sdkmetric.NewMeterProvider()
		lp := sdklog.NewLoggerProvider()
		return &Providers{
			Tracer: tp.Tracer(instrumentation),
			Meter:  mp.Meter(instrumentation),
			Logger: lp.Logger(instrumentation),
			shutdown: func() {
				_ = tp.Shutdown(context.Background())
				_ = mp.Shutdown(context.Background())
				_ = lp.Shutdown(context.Background())
			},
		}, nil
	}

	tp, shutdownTrace, err := newTracerProvider(ctx, opts, res)
	if err != nil {
		return nil, fmt.Errorf("telemetry: tracer provider: %w", err)
	}
	mp, shutdownMetric, err := newMeterProvider(ctx, opts, res)
	if err != nil {
		shutdownTrace()
		return nil, fmt.Errorf("telemetry: meter provider: %w", err)
	}
	lp, shutdownLog, err := newLoggerProvider(ctx, opts, res)
	if err != nil {
		shutdownTrace()
		shutdownMetric()
		return nil, fmt.Errorf("telemetry: logger provider: %w", err)
	}

	return &Providers{
		Tracer: tp.Tracer(instrumentation),
		Meter:  mp.Meter(instrumentation),
		Logger: lp.Logger(instrumentation),
		shutdown: func() {
			var wg sync.WaitGroup
			for _, fn := range []func(){shutdownTrace, shutdownMetric, shutdownLog} {
				wg.Go(fn)
			}
			wg.Wait()
		},
	}, nil
}

func newTracerProvider(ctx context.Context, opts Options, res *resource.Resource) (*sdktrace.TracerProvider, func(), error) {
	exporter, err := newTraceExporter(ctx, opts)
	if err != nil {
		return nil, nil, err
	}

	var sp sdktrace.SpanProcessor
	if opts.Stdout {
		sp = sdktrace.NewSimpleSpanProcessor(exporter)
	} else {
		sp = sdktrace.NewBatchSpanProcessor(exporter)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSpanProcessor(sp),
		sdktrace.WithResource(res),
	)
	shutdown := func() {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "telemetry: shutting down tracer provider: %v\n", err)
		}
	}
	return tp, shutdown, nil
}

func newTraceExporter(ctx context.Context, opts Options) (sdktrace.SpanExporter, error) {
	if opts.Stdout {
		return stdouttrace.New(stdouttrace.WithWriter(os.Stderr))
	}
	switch opts.Protocol {
	case "grpc":
		var o []otlptracegrpc.Option
		if opts.Endpoint != "" {
			o = append(o, otlptracegrpc.WithEndpoint(opts.Endpoint), otlptracegrpc.WithInsecure())
		}
		return otlptracegrpc.New(ctx, o...)
	case "http/protobuf", "":
		var o []otlptracehttp.Option
		if opts.Endpoint != "" {
			o = append(o, otlptracehttp.WithEndpoint(opts.Endpoint), otlptracehttp.WithInsecure())
		}
		return otlptracehttp.New(ctx, o...)
	default:
		return nil, fmt.Errorf("unsupported protocol %q, supported: http/protobuf, grpc", opts.Protocol)
	}
}

// noopShutdownMetricExporter ignores Shutdown so the PeriodicReader's own
// shutdown doesn't prematurely close the exporter out from under it, the
// same one-exporter-shared-by-many-readers concern the teacher documents
// on its own wrapper type.
type noopShutdownMetricExporter struct {
	sdkmetric.Exporter
}

func (e *noopShutdownMetricExporter) Shutdown(context.Context) error { return nil }

func newMeterProvider(ctx context.Context, opts Options, res *resource.Resource) (*sdkmetric.MeterProvider, func(), error) {
	exporter, err := newMetricExporter(ctx, opts)
	if err != nil {
		return nil, nil, err
	}
	wrapped := &noopShutdownMetricExporter{exporter}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(wrapped)),
		sdkmetric.WithResource(res),
	)
	shutdown := func() {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := mp.Shutdown(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "telemetry: shutting down meter provider: %v\n", err)
		}
		if err := exporter.Shutdown(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "telemetry: shutting down metric exporter: %v\n", err)
		}
	}
	return mp, shutdown, nil
}

func newMetricExporter(ctx context.Context, opts Options) (sdkmetric.Exporter, error) {
	if opts.Stdout {
		return stdoutmetric.New(stdoutmetric.WithWriter(os.Stderr))
	}
	switch opts.Protocol {
	case "grpc":
		var o []otlpmetricgrpc.Option
		if opts.Endpoint != "" {
			o = append(o, otlpmetricgrpc.WithEndpoint(opts.Endpoint), otlpmetricgrpc.WithInsecure())
		}
		return otlpmetricgrpc.New(ctx, o...)
	case "http/protobuf", "":
		var o []otlpmetrichttp.Option
		if opts.Endpoint != "" {
			o = append(o, otlpmetrichttp.WithEndpoint(opts.Endpoint), otlpmetrichttp.WithInsecure())
		}
		return otlpmetrichttp.New(ctx, o...)
	default:
		return nil, fmt.Errorf("unsupported protocol %q for metrics", opts.Protocol)
	}
}

func newLoggerProvider(ctx context.Context, opts Options, res *resource.Resource) (*sdklog.LoggerProvider, func(), error) {
	exporter, err := newLogExporter(ctx, opts)
	if err != nil {
		return nil, nil, err
	}

	var processor sdklog.Processor
	if opts.Stdout {
		processor = sdklog.NewSimpleProcessor(exporter)
	} else {
		processor = sdklog.NewBatchProcessor(exporter)
	}

	lp := sdklog.NewLoggerProvider(
		sdklog.WithProcessor(processor),
		sdklog.WithResource(res),
	)
	shutdown := func() {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := lp.Shutdown(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "telemetry: shutting down logger provider: %v\n", err)
		}
	}
	return lp, shutdown, nil
}

func newLogExporter(ctx context.Context, opts Options) (sdklog.Exporter, error) {
	if opts.Stdout {
		return stdoutlog.New(stdoutlog.WithWriter(os.Stderr))
	}
	switch opts.Protocol {
	case "grpc":
		var o []otlploggrpc.Option
		if opts.Endpoint != "" {
			o = append(o, otlploggrpc.WithEndpoint(opts.Endpoint), otlploggrpc.WithInsecure())
		}
		return otlploggrpc.New(ctx, o...)
	case "http/protobuf", "":
		var o []otlploghttp.Option
		if opts.Endpoint != "" {
			o = append(o, otlploghttp.WithEndpoint(opts.Endpoint), otlploghttp.WithInsecure())
		}
		return otlploghttp.New(ctx, o...)
	default:
		return nil, fmt.Errorf("unsupported protocol %q for logs", opts.Protocol)
	}
}
