package vad

import (
	"fmt"

	"github.com/livetranslate/livetranslate/pkg/audio"
)

// EventType identifies a sequencer event.
type EventType string

const (
	// EventStart marks the transition from silence into speech.
	EventStart EventType = "start"
	// EventCommit marks the end of an utterance and carries its audio.
	EventCommit EventType = "commit"
)

// Event is emitted by the sequencer as the speech state machine advances.
type Event struct {
	Type EventType
	// Audio holds the complete utterance for commit events, trailing
	// silence included. Nil for start events.
	Audio []int16
}

// SequencerConfig holds the speech segmentation parameters.
type SequencerConfig struct {
	// Threshold is the speech probability at or above which a window
	// counts as speech.
	Threshold float32
	// MinSilenceMs is the trailing silence that ends an utterance.
	MinSilenceMs int
	// MinSpeechMs is the minimum speech run to qualify as an utterance.
	// Accepted for parity with upstream Silero options but not enforced.
	MinSpeechMs int
}

// DefaultSequencerConfig returns the segmentation parameters used for
// live sessions.
func DefaultSequencerConfig() SequencerConfig {
	return SequencerConfig{
		Threshold:    0.5,
		MinSilenceMs: 500,
		MinSpeechMs:  250,
	}
}

// Sequencer turns per-window speech probabilities into utterance events.
// It buffers speech windows while triggered and commits the utterance once
// enough trailing silence accumulates. Windows observed during silence
// before any speech are dropped.
//
// A Sequencer is driven from a single goroutine; it is not safe for
// concurrent use.
type Sequencer struct {
	cfg      SequencerConfig
	detector DetectorInterface

	triggered bool
	// silenceSec accumulates trailing silence inside the current utterance.
	silenceSec float64
	speech     [][]int16
	speechLen  int
}

// NewSequencer creates a sequencer that scores windows with the given
// detector. The detector's lifetime stays with the caller.
func NewSequencer(detector DetectorInterface, cfg SequencerConfig) *Sequencer {
	return &Sequencer{
		cfg:      cfg,
		detector: detector,
	}
}

// ProcessWindow scores one 512-sample window and advances the state
// machine. At most one event is returned per window. Committed audio spans
// every buffered window of the utterance, the silent tail included. The
// window slice is retained until the utterance commits, so callers must not
// reuse it.
func (s *Sequencer) ProcessWindow(window []int16) (*Event, error) {
	prob, err := s.detector.Infer(audio.Int16ToFloat32(window))
	if err != nil {
		return nil, fmt.Errorf("vad inference failed: %w", err)
	}

	if prob >= s.cfg.Threshold {
		var ev *Event
		if !s.triggered {
			s.triggered = true
			ev = &Event{Type: EventStart}
		}
		s.buffer(window)
		s.silenceSec = 0
		return ev, nil
	}

	if !s.triggered {
		return nil, nil
	}

	// Trailing silence stays with the utterance until the cutoff; speech
	// resuming before then keeps the whole run as one utterance.
	s.buffer(window)
	s.silenceSec += audio.WindowSeconds

	if s.silenceSec >= float64(s.cfg.MinSilenceMs)/1000.0 {
		s.triggered = false
		s.silenceSec = 0
		if len(s.speech) == 0 {
			return nil, nil
		}
		return &Event{Type: EventCommit, Audio: s.drain()}, nil
	}

	return nil, nil
}

// Reset clears the utterance state and the detector's model state.
func (s *Sequencer) Reset() error {
	s.triggered = false
	s.silenceSec = 0
	s.speech = nil
	s.speechLen = 0
	if err := s.detector.Reset(); err != nil {
		return fmt.Errorf("detector reset failed: %w", err)
	}
	return nil
}

// Triggered reports whether the sequencer is inside an utterance.
func (s *Sequencer) Triggered() bool {
	return s.triggered
}

func (s *Sequencer) buffer(window []int16) {
	s.speech = append(s.speech, window)
	s.speechLen += len(window)
}

// drain concatenates and clears the buffered utterance.
func (s *Sequencer) drain() []int16 {
	utterance := make([]int16, 0, s.speechLen)
	for _, w := range s.speech {
		utterance = append(utterance, w...)
	}
	s.speech = nil
	s.speechLen = 0
	return utterance
}
