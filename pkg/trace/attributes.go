package trace

import (
	"go.opentelemetry.io/otel/attribute"
)

// Common attribute keys used throughout the application
const (
	// Session attributes
	AttrSessionID = "session.id"
	AttrSegmentID = "segment.id"

	// Audio attributes
	AttrAudioSampleRate = "audio.sample_rate"
	AttrAudioSamples    = "audio.samples"
	AttrAudioDurationMs = "audio.duration_ms"

	// ASR attributes
	AttrASREngine   = "asr.engine"
	AttrASRLanguage = "asr.language"

	// LLM attributes
	AttrLLMProvider = "llm.provider"
	AttrLLMModel    = "llm.model"
	AttrLLMMode     = "llm.mode"

	// Translation attributes
	AttrTargetLanguage = "translate.target_language"

	// Error attributes
	AttrErrorType    = "error.type"
	AttrErrorMessage = "error.message"
)

// Helper functions to create common attributes

// SessionAttrs creates attributes for session information
func SessionAttrs(sessionID string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrSessionID, sessionID),
	}
}

// UtteranceAttrs creates attributes for one committed utterance
func UtteranceAttrs(sampleRate, samples int, durationMs float64) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Int(AttrAudioSampleRate, sampleRate),
		attribute.Int(AttrAudioSamples, samples),
		attribute.Float64(AttrAudioDurationMs, durationMs),
	}
}

// ASRAttrs creates attributes for transcription operations
func ASRAttrs(engine, language string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrASREngine, engine),
		attribute.String(AttrASRLanguage, language),
	}
}

// LLMAttrs creates attributes for LLM operations
func LLMAttrs(provider, model string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrLLMProvider, provider),
		attribute.String(AttrLLMModel, model),
	}
}

// ErrorAttrs creates attributes for errors
func ErrorAttrs(errType, errMsg string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrErrorType, errType),
		attribute.String(AttrErrorMessage, errMsg),
	}
}
