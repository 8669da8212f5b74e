package restadmin

import (
	"context"

	"github.com/evergreen-ci/utility"
	"github.com/mongodb/grip"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.20.0"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
)

// TracerConfig configures the OpenTelemetry tracer provider. If not enabled
// traces will not be sent.
type TracerConfig struct {
	Enabled           bool   `yaml:"enabled"`
	CollectorEndpoint string `yaml:"collector_endpoint"`
	// Insecure disables TLS to the collector, e.g. for a local sidecar.
	Insecure bool `yaml:"insecure"`
}

// ValidateAndDefault validates the tracer configuration.
func (c *TracerConfig) ValidateAndDefault() error {
	if c.Enabled && c.CollectorEndpoint == "" {
		return errors.New("tracer can't be enabled without a collector endpoint")
	}
	return nil
}

func (c *TracerConfig) transportCredentials() credentials.TransportCredentials {
	if c.Insecure {
		return insecure.NewCredentials()
	}
	return credentials.NewTLS(nil)
}

// initTracer installs a batching tracer provider exporting to the
// collector. The request spans started by the HTTP middleware go through
// the global provider, so nothing changes when tracing is disabled.
func (e *envState) initTracer(ctx context.Context) error {
	conf := e.settings.Tracer
	if !conf.Enabled {
		return nil
	}

	conn, err := grpc.NewClient(conf.CollectorEndpoint, grpc.WithTransportCredentials(conf.transportCredentials()))
	if err != nil {
		return errors.Wrapf(err, "opening gRPC connection to '%s'", conf.CollectorEndpoint)
	}

	exporter, err := otlptrace.New(ctx, otlptracegrpc.NewClient(otlptracegrpc.WithGRPCConn(conn)))
	if err != nil {
		grip.Warning(errors.Wrap(conn.Close(), "closing gRPC connection"))
		return errors.Wrap(err, "initializing otel exporter")
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(Namespace),
			semconv.ServiceVersion(BuildRevision),
		)),
	)
	tp.RegisterSpanProcessor(utility.NewAttributeSpanProcessor())
	otel.SetTracerProvider(tp)
	otel.SetErrorHandler(otel.ErrorHandlerFunc(func(err error) {
		grip.Error(errors.Wrap(err, "otel error"))
	}))

	e.closers["tracer"] = func(ctx context.Context) error {
		catcher := grip.NewBasicCatcher()
		catcher.Wrap(tp.Shutdown(ctx), "trace provider shutdown")
		catcher.Wrap(exporter.Shutdown(ctx), "trace exporter shutdown")
		catcher.Wrap(conn.Close(), "closing gRPC connection")

		return catcher.Resolve()
	}

	return nil
}
