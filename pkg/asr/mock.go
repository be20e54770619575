package asr

import (
	"context"
	"sync"

	"github.com/livetranslate/livetranslate/pkg/audio"
)

// TranscribeCall records one invocation of MockEngine.Transcribe.
type TranscribeCall struct {
	Samples      []int16
	LanguageHint string
}

// MockEngine is a mock implementation of Engine for testing. Behavior is
// customized through the TranscribeFunc field.
type MockEngine struct {
	// TranscribeFunc is called when Transcribe is invoked.
	// If nil, no segments are returned.
	TranscribeFunc func(ctx context.Context, samples []int16, languageHint string) ([]Segment, error)

	// Calls records all invocations for verification.
	Calls []TranscribeCall

	// CloseCalled tracks if Close was called.
	CloseCalled bool

	mu sync.Mutex
}

// NewMockEngine creates a MockEngine with default behavior.
func NewMockEngine() *MockEngine {
	return &MockEngine{
		Calls: make([]TranscribeCall, 0),
	}
}

// NewMockEngineWithTexts creates a MockEngine whose successive calls each
// return a single segment carrying the next text, spanning the utterance.
// Calls beyond the list return no segments.
func NewMockEngineWithTexts(texts ...string) *MockEngine {
	var idx int
	var seqMu sync.Mutex
	return &MockEngine{
		TranscribeFunc: func(ctx context.Context, samples []int16, languageHint string) ([]Segment, error) {
			seqMu.Lock()
			defer seqMu.Unlock()
			if idx >= len(texts) {
				return nil, nil
			}
			text := texts[idx]
			idx++
			return []Segment{{
				Text:  text,
				Start: 0,
				End:   audio.DurationMs(len(samples)) / 1000.0,
			}}, nil
		},
		Calls: make([]TranscribeCall, 0),
	}
}

// Name implements Engine.
func (m *MockEngine) Name() string {
	return "mock"
}

// Transcribe implements Engine.
func (m *MockEngine) Transcribe(ctx context.Context, samples []int16, languageHint string) ([]Segment, error) {
	m.mu.Lock()
	samplesCopy := make([]int16, len(samples))
	copy(samplesCopy, samples)
	m.Calls = append(m.Calls, TranscribeCall{Samples: samplesCopy, LanguageHint: languageHint})
	m.mu.Unlock()

	if m.TranscribeFunc != nil {
		return m.TranscribeFunc(ctx, samples, languageHint)
	}
	return nil, nil
}

// Close implements Engine.
func (m *MockEngine) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CloseCalled = true
	return nil
}

// GetCallCount returns the number of times Transcribe was called.
func (m *MockEngine) GetCallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}

// GetCalls returns a copy of the recorded calls.
func (m *MockEngine) GetCalls() []TranscribeCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]TranscribeCall(nil), m.Calls...)
}

// Ensure MockEngine implements Engine at compile time.
var _ Engine = (*MockEngine)(nil)
