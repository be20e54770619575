// Package asr provides speech recognition for committed utterances. Two
// engines are available: a local whisper.cpp engine and a hosted OpenAI
// Whisper engine. Both consume 16 kHz mono 16-bit PCM and return
// timestamped segments.
package asr

import "context"

// Segment is one contiguous span of recognized speech within an utterance.
type Segment struct {
	// Text is the recognized text as produced by the engine, surrounding
	// whitespace included.
	Text string

	// Start and End are offsets from the beginning of the utterance,
	// in seconds.
	Start float64
	End   float64
}

// Engine is the transcription surface the session pipeline drives.
type Engine interface {
	// Name returns the engine name (e.g. "whisper-cpp", "openai-whisper").
	Name() string

	// Transcribe recognizes speech in one complete utterance. languageHint
	// names the expected source language; "" or "auto" requests detection.
	// Every call is independent: no text or state from earlier utterances
	// conditions the result.
	Transcribe(ctx context.Context, samples []int16, languageHint string) ([]Segment, error)

	// Close releases engine resources. The engine must not be used after
	// calling Close.
	Close() error
}

// Error types for ASR operations
type Error struct {
	Code    ErrorCode
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

type ErrorCode int

const (
	ErrCodeUnknown ErrorCode = iota
	ErrCodeInvalidConfig
	ErrCodeInvalidAudio
	ErrCodeAuthenticationFailed
	ErrCodeNetworkError
	ErrCodeProviderError
)
