// Package logging attaches a zerolog.Logger to a context.Context and
// retrieves it back out (o11y.Init installs one into the root context;
// presentation.NewAPI and the orchestrator's per-upstream fetch read it
// back with GetFromContext, while request handlers receive their logger
// as a constructor argument).
package logging

import (
	"context"

	"github.com/rs/zerolog"
)

type loggerKey struct{}

// NewContextWithLogger returns a copy of ctx carrying log, retrievable
// with GetFromContext.
func NewContextWithLogger(ctx context.Context, log zerolog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, log)
}

// GetFromContext returns the logger ctx carries. If ctx carries none,
// it falls back to zerolog.Ctx(ctx), which is a disabled logger unless
// a logger was attached with zerolog's own WithContext or
// zerolog.DefaultContextLogger is set.
func GetFromContext(ctx context.Context) zerolog.Logger {
	if log, ok := ctx.Value(loggerKey{}).(zerolog.Logger); ok {
		return log
	}
	return zerolog.Ctx(ctx).With().Logger()
}
