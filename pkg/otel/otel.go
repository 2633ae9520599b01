package otel

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"time"

	"go.opentelemetry.io/otel/attribute"

	sdkresource "go.opentelemetry.io/otel/sdk/resource"
)

const instrumentationName = "github.com/menta2k/layout-viewer"

type Observable interface {
	otelSetup()
}

// Options select what Setup turns on
type Options struct {
	ServiceName    string
	ServiceVersion string

	// Debug lowers the stderr log level
	Debug bool

	// Telemetry enables the OTLP exporters for traces, metrics and logs
	Telemetry bool

	// Protocol is "grpc" or "http"; empty reads OTEL_EXPORTER_OTLP_*_PROTOCOL
	Protocol string

	// SampleRatio of traces kept, 1 keeps all
	SampleRatio float64

	// MetricInterval between metric exports, 0 uses 10s
	MetricInterval time.Duration
}

// Shutdown flushes and stops whatever Setup started
type Shutdown func(context.Context) error

// Setup configures the default slog logger and, with Telemetry set, the
// OTLP providers. The returned Shutdown is never nil.
func Setup(ctx context.Context, opts Options) (Shutdown, error) {
	level := slog.LevelInfo

	if opts.Debug {
		level = slog.LevelDebug
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	if !opts.Telemetry {
		return func(context.Context) error { return nil }, nil
	}

	attrs := []attribute.KeyValue{
		attribute.String("service.name", opts.ServiceName),
	}

	if opts.ServiceVersion != "" {
		attrs = append(attrs, attribute.String("service.version", opts.ServiceVersion))
	}

	resource := sdkresource.NewSchemaless(attrs...)

	var shutdowns []Shutdown

	shutdown := func(ctx context.Context) error {
		var errs []error

		// reverse order of setup
		for i := len(shutdowns) - 1; i >= 0; i-- {
			errs = append(errs, shutdowns[i](ctx))
		}

		return errors.Join(errs...)
	}

	for _, setup := range []func(context.Context, *sdkresource.Resource, Options) (Shutdown, error){
		setupTracer,
		setupMeter,
		setupLogger,
	} {
		s, err := setup(ctx, resource, opts)

		if err != nil {
			return shutdown, errors.Join(err, shutdown(ctx))
		}

		shutdowns = append(shutdowns, s)
	}

	return shutdown, nil
}
