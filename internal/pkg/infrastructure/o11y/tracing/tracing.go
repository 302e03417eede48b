// Package tracing carries the handful of OpenTelemetry span helpers
// shared between HTTP handlers and the orchestrator's per-upstream
// spans.
package tracing

import (
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// RecordAnyErrorAndEndSpan records err on span (if non-nil) and ends it.
// err is taken by value: a plain `defer RecordAnyErrorAndEndSpan(err,
// span)` records err as it was when the defer statement ran, so to
// record a function's final outcome call it from a deferred closure
// that reads the named error return value.
func RecordAnyErrorAndEndSpan(err error, span trace.Span) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
