package trace

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// InstrumentSessionStart creates a span for session creation
func InstrumentSessionStart(ctx context.Context, sessionID string) (context.Context, trace.Span) {
	return StartSpan(ctx, "session.start",
		trace.WithAttributes(
			SessionAttrs(sessionID)...,
		),
	)
}

// InstrumentSessionClosed creates a span for session teardown
func InstrumentSessionClosed(ctx context.Context, sessionID string, segments int) (context.Context, trace.Span) {
	attrs := SessionAttrs(sessionID)
	attrs = append(attrs,
		attribute.Int("session.segments", segments),
	)

	return StartSpan(ctx, "session.closed",
		trace.WithAttributes(attrs...),
	)
}

// InstrumentUtterance creates a span covering one committed utterance from
// commit through transcription and event emission
func InstrumentUtterance(ctx context.Context, sessionID string, samples int, durationMs float64) (context.Context, trace.Span) {
	attrs := SessionAttrs(sessionID)
	attrs = append(attrs, UtteranceAttrs(16000, samples, durationMs)...)

	return StartSpan(ctx, "session.utterance",
		trace.WithAttributes(attrs...),
	)
}

// InstrumentSessionError creates a span for session errors
func InstrumentSessionError(ctx context.Context, sessionID string, err error) (context.Context, trace.Span) {
	ctx, span := StartSpan(ctx, "session.error",
		trace.WithAttributes(
			SessionAttrs(sessionID)...,
		),
	)

	RecordError(span, err)
	return ctx, span
}
