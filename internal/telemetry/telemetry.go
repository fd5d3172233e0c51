package telemetry

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/alexanderramin/strata/internal/config"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

const serviceName = "strata"

// Telemetry owns the tracer provider and metric registry for one process.
type Telemetry struct {
	TracerProvider trace.TracerProvider
	Registry       *prometheus.Registry

	textfile string
	shutdown []func(context.Context) error
}

// Options carries the pieces of Setup that are not part of the config file.
type Options struct {
	Version string
	// TraceOut receives stdout-exporter spans; nil means discard.
	TraceOut io.Writer
}

// Setup builds tracing and metrics from cfg. Shutdown must be called before
// exit so spans flush and the metrics textfile is written.
func Setup(cfg config.Config, opts Options) (*Telemetry, error) {
	t := &Telemetry{
		TracerProvider: noop.NewTracerProvider(),
		Registry:       prometheus.NewRegistry(),
		textfile:       cfg.Metrics.Textfile,
	}

	switch cfg.Trace.Exporter {
	case "", config.ExporterNone:
	case config.ExporterStdout:
		out := opts.TraceOut
		if out == nil {
			out = io.Discard
		}
		exp, err := stdouttrace.New(stdouttrace.WithWriter(out))
		if err != nil {
			return nil, fmt.Errorf("creating trace exporter: %w", err)
		}
		tp := sdktrace.NewTracerProvider(
			sdktrace.WithBatcher(exp),
			sdktrace.WithResource(newResource(cfg, opts.Version)),
			sdktrace.WithSampler(sdktrace.AlwaysSample()),
		)
		t.TracerProvider = tp
		t.shutdown = append(t.shutdown, tp.Shutdown)
	default:
		return nil, fmt.Errorf("unknown trace exporter %q", cfg.Trace.Exporter)
	}

	return t, nil
}

func newResource(cfg config.Config, version string) *resource.Resource {
	if version == "" {
		version = "dev"
	}
	return resource.NewWithAttributes(
		"",
		attribute.String("service.name", serviceName),
		attribute.String("service.version", version),
		attribute.String("strata.tenant", cfg.Tenant),
	)
}

// Shutdown flushes spans and dumps the registry when a textfile is configured.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	var errs []error
	for _, fn := range t.shutdown {
		if err := fn(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if t.textfile != "" {
		if err := prometheus.WriteToTextfile(t.textfile, t.Registry); err != nil {
			errs = append(errs, fmt.Errorf("writing metrics textfile: %w", err))
		}
	}
	return errors.Join(errs...)
}
