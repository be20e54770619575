package trace

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// InstrumentASRRequest creates a span for a transcription request
func InstrumentASRRequest(ctx context.Context, engine, language string, samples int) (context.Context, trace.Span) {
	attrs := ASRAttrs(engine, language)
	attrs = append(attrs,
		attribute.Int(AttrAudioSamples, samples),
	)

	return StartSpan(ctx, "asr.transcribe",
		trace.WithAttributes(attrs...),
	)
}

// InstrumentASRResult creates a span for a finished transcription
func InstrumentASRResult(ctx context.Context, engine string, segments, textLen int) (context.Context, trace.Span) {
	return StartSpan(ctx, "asr.result",
		trace.WithAttributes(
			attribute.String(AttrASREngine, engine),
			attribute.Int("asr.segments", segments),
			attribute.Int("text.length", textLen),
		),
	)
}

// InstrumentLLMRequest creates a span for LLM requests. mode is "correct"
// or "translate" and becomes part of the span name.
func InstrumentLLMRequest(ctx context.Context, mode, provider, model string) (context.Context, trace.Span) {
	attrs := LLMAttrs(provider, model)
	attrs = append(attrs,
		attribute.String(AttrLLMMode, mode),
	)

	return StartSpan(ctx, fmt.Sprintf("llm.%s", mode),
		trace.WithAttributes(attrs...),
	)
}
