package telemetry

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"runtime"
	"time"

	otelpyroscope "github.com/grafana/otel-profiling-go"
	"github.com/grafana/pyroscope-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	otelprometheus "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdkresource "go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"golang.org/x/xerrors"
)

// Telemetry bundles the process wide profiler, tracer and meter of a server.
type Telemetry struct {
	Logger                           *slog.Logger
	Meter                            metric.Meter
	HTTPRequestsDurationMicroSeconds metric.Int64Histogram

	profiler      *pyroscope.Profiler
	traceProvider *sdktrace.TracerProvider
}

func Start(ctx context.Context, name string, debug bool) (*Telemetry, error) {
	runtime.SetMutexProfileFraction(1)
	runtime.SetBlockProfileRate(1)

	profiler, err := pyroscope.Start(pyroscope.Config{
		ApplicationName: name,
		ServerAddress:   os.Getenv("PYROSCOPE_ENDPOINT"),
		UploadRate:      60 * time.Second,
		ProfileTypes: []pyroscope.ProfileType{
			pyroscope.ProfileCPU,
			pyroscope.ProfileAllocObjects,
			pyroscope.ProfileAllocSpace,
			pyroscope.ProfileInuseObjects,
			pyroscope.ProfileInuseSpace,
			pyroscope.ProfileGoroutines,
			pyroscope.ProfileMutexCount,
			pyroscope.ProfileMutexDuration,
			pyroscope.ProfileBlockCount,
			pyroscope.ProfileBlockDuration,
		},
	})
	if err != nil {
		return nil, xerrors.Errorf("failed to create profiler: %w", err)
	}

	otel.SetTextMapPropagator(propagation.TraceContext{})

	r, err := sdkresource.Merge(
		sdkresource.Default(),
		sdkresource.NewWithAttributes(semconv.SchemaURL, semconv.ServiceName(name)),
	)
	if err != nil {
		return nil, xerrors.Errorf("failed to create resource: %w", err)
	}
	traceExporter, err := otlptracegrpc.New(ctx)
	if err != nil {
		return nil, xerrors.Errorf("failed to create trace exporter: %w", err)
	}
	traceProvider := sdktrace.NewTracerProvider(
		sdktrace.WithResource(r),
		sdktrace.WithBatcher(traceExporter),
	)
	otel.SetTracerProvider(otelpyroscope.NewTracerProvider(traceProvider))

	exporter, err := otelprometheus.New()
	if err != nil {
		return nil, xerrors.Errorf("failed to create exporter: %w", err)
	}
	// NOTE: Gauge(UpDownCounter), Summary or Untyped does not support exemplars
	// https://github.com/prometheus/client_golang/blob/v1.20.4/prometheus/metric.go#L200
	meter := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter)).Meter(name)
	httpRequestsDurationMicroSeconds, err := meter.Int64Histogram("http_requests_duration_micro_seconds")
	if err != nil {
		return nil, xerrors.Errorf("failed to create histogram: %w", err)
	}

	logger, err := NewLogger(debug)
	if err != nil {
		return nil, err
	}

	return &Telemetry{
		Logger:                           logger,
		Meter:                            meter,
		HTTPRequestsDurationMicroSeconds: httpRequestsDurationMicroSeconds,
		profiler:                         profiler,
		traceProvider:                    traceProvider,
	}, nil
}

// NewLogger returns a JSON logger following the OpenTelemetry log data model,
// or a text logger in debug mode. The level is read from GO_LOG.
func NewLogger(debug bool) (*slog.Logger, error) {
	logLevel := slog.LevelInfo
	if v, ok := os.LookupEnv("GO_LOG"); ok {
		if err := logLevel.UnmarshalText([]byte(v)); err != nil {
			return nil, xerrors.Errorf("failed to parse log level: %w", err)
		}
	}
	handlerOpts := &slog.HandlerOptions{
		Level: logLevel,
		// https://opentelemetry.io/docs/specs/otel/logs/data-model/
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			switch a.Key {
			case slog.LevelKey:
				a.Key = "severitytext"
			case slog.MessageKey:
				a.Key = "body"
			}
			return a
		},
	}
	if debug {
		return slog.New(slog.NewTextHandler(os.Stderr, handlerOpts)), nil
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, handlerOpts)), nil
}

func (t *Telemetry) Shutdown(ctx context.Context) error {
	var errs []error
	if err := t.traceProvider.Shutdown(ctx); err != nil {
		errs = append(errs, xerrors.Errorf("failed to shutdown trace provider: %w", err))
	}
	if err := t.profiler.Stop(); err != nil {
		errs = append(errs, xerrors.Errorf("failed to shutdown profiler: %w", err))
	}
	return errors.Join(errs...)
}
