// Package o11y wires up the gateway's observability stack: a zerolog
// logger attached to the root context, and an OpenTelemetry tracer
// provider.
package o11y

import (
	"context"
	"os"
	"time"

	"github.com/optimade-org/optimade-gateway/internal/pkg/infrastructure/o11y/logging"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Init configures a service-wide logger and tracer, installs the logger
// into ctx, and returns a cleanup func that must run before the process
// exits (it flushes the tracer provider).
func Init(ctx context.Context, serviceName, serviceVersion string) (context.Context, zerolog.Logger, func()) {
	log := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", serviceVersion).
		Logger()

	if level, err := zerolog.ParseLevel(os.Getenv("LOG_LEVEL")); err == nil && level != zerolog.NoLevel {
		log = log.Level(level)
	} else {
		log = log.Level(zerolog.InfoLevel)
	}

	tp := sdktrace.NewTracerProvider()
	otel.SetTracerProvider(tp)

	ctx = logging.NewContextWithLogger(ctx, log)

	cleanup := func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = tp.Shutdown(shutdownCtx)
	}

	return ctx, log, cleanup
}
