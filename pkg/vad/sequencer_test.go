package vad

import (
	"errors"
	"fmt"
	"testing"

	"github.com/livetranslate/livetranslate/pkg/audio"
)

const (
	speechProb  = float32(0.9)
	silenceProb = float32(0.1)

	// 16 windows of 32ms reach the 500ms trailing-silence cutoff.
	commitSilenceWindows = 16
)

func makeWindow(val int16) []int16 {
	w := make([]int16, audio.WindowSamples)
	for i := range w {
		w[i] = val
	}
	return w
}

func repeatProbs(p float32, n int) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = p
	}
	return out
}

// feedProbs drives a fresh sequencer with one window per probability.
// Window i is filled with the value i+1 so commit audio composition can be
// checked. The returned slice has one entry per window, nil when that
// window produced no event.
func feedProbs(t *testing.T, probs []float32) []*Event {
	t.Helper()

	seq := NewSequencer(NewMockDetectorWithSequence(probs), DefaultSequencerConfig())
	events := make([]*Event, len(probs))
	for i := range probs {
		ev, err := seq.ProcessWindow(makeWindow(int16(i + 1)))
		if err != nil {
			t.Fatalf("ProcessWindow(%d) error = %v", i, err)
		}
		events[i] = ev
	}
	return events
}

func TestSequencer_SilenceOnly(t *testing.T) {
	events := feedProbs(t, repeatProbs(silenceProb, 40))

	for i, ev := range events {
		if ev != nil {
			t.Errorf("Window %d: expected no event during silence, got %v", i, ev.Type)
		}
	}
}

func TestSequencer_StartOnFirstSpeechWindow(t *testing.T) {
	probs := append(repeatProbs(silenceProb, 3), speechProb)
	events := feedProbs(t, probs)

	for i := 0; i < 3; i++ {
		if events[i] != nil {
			t.Errorf("Window %d: expected no event before speech, got %v", i, events[i].Type)
		}
	}
	if events[3] == nil || events[3].Type != EventStart {
		t.Fatalf("Window 3: expected start event, got %v", events[3])
	}
	if events[3].Audio != nil {
		t.Error("Start event should carry no audio")
	}
}

func TestSequencer_CommitAfterMinSilence(t *testing.T) {
	speechWindows := 2
	probs := append(repeatProbs(speechProb, speechWindows), repeatProbs(silenceProb, commitSilenceWindows)...)
	events := feedProbs(t, probs)

	if events[0] == nil || events[0].Type != EventStart {
		t.Fatalf("Expected start on first speech window, got %v", events[0])
	}

	// No event until the silence run reaches the cutoff.
	for i := 1; i < len(events)-1; i++ {
		if events[i] != nil {
			t.Errorf("Window %d: expected no event, got %v", i, events[i].Type)
		}
	}

	commit := events[len(events)-1]
	if commit == nil || commit.Type != EventCommit {
		t.Fatalf("Expected commit on final silence window, got %v", commit)
	}

	// The utterance spans every buffered window, trailing silence included.
	wantSamples := (speechWindows + commitSilenceWindows) * audio.WindowSamples
	if len(commit.Audio) != wantSamples {
		t.Fatalf("Expected %d samples in commit, got %d", wantSamples, len(commit.Audio))
	}
	if commit.Audio[0] != 1 {
		t.Errorf("Expected commit to begin with window 0, got sample %d", commit.Audio[0])
	}
	lastVal := int16(speechWindows + commitSilenceWindows)
	if commit.Audio[len(commit.Audio)-1] != lastVal {
		t.Errorf("Expected commit to end with window value %d, got %d", lastVal, commit.Audio[len(commit.Audio)-1])
	}
}

func TestSequencer_ThresholdIsInclusive(t *testing.T) {
	events := feedProbs(t, []float32{0.5})

	if events[0] == nil || events[0].Type != EventStart {
		t.Fatalf("Probability exactly at threshold should count as speech, got %v", events[0])
	}
}

func TestSequencer_BriefPauseDoesNotSplit(t *testing.T) {
	// Speech, a pause one window short of the cutoff, then more speech.
	probs := repeatProbs(speechProb, 2)
	probs = append(probs, repeatProbs(silenceProb, commitSilenceWindows-1)...)
	probs = append(probs, speechProb)
	probs = append(probs, repeatProbs(silenceProb, commitSilenceWindows)...)
	events := feedProbs(t, probs)

	var starts, commits int
	for _, ev := range events {
		if ev == nil {
			continue
		}
		switch ev.Type {
		case EventStart:
			starts++
		case EventCommit:
			commits++
			// One continuous utterance: pause windows stay in the audio.
			if want := len(probs) * audio.WindowSamples; len(ev.Audio) != want {
				t.Errorf("Expected %d samples in commit, got %d", want, len(ev.Audio))
			}
		}
	}

	if starts != 1 {
		t.Errorf("Expected 1 start event, got %d", starts)
	}
	if commits != 1 {
		t.Errorf("Expected 1 commit event, got %d", commits)
	}
}

func TestSequencer_LeadingSilenceDropped(t *testing.T) {
	leading := 5
	probs := append(repeatProbs(silenceProb, leading), speechProb)
	probs = append(probs, repeatProbs(silenceProb, commitSilenceWindows)...)
	events := feedProbs(t, probs)

	commit := events[len(events)-1]
	if commit == nil || commit.Type != EventCommit {
		t.Fatalf("Expected commit on final window, got %v", commit)
	}

	wantSamples := (1 + commitSilenceWindows) * audio.WindowSamples
	if len(commit.Audio) != wantSamples {
		t.Fatalf("Expected %d samples in commit, got %d", wantSamples, len(commit.Audio))
	}
	// First sample comes from the first speech window, not the dropped lead-in.
	if commit.Audio[0] != int16(leading+1) {
		t.Errorf("Expected commit to begin with window value %d, got %d", leading+1, commit.Audio[0])
	}
}

func TestSequencer_MultipleUtterances(t *testing.T) {
	utterance := append(repeatProbs(speechProb, 3), repeatProbs(silenceProb, commitSilenceWindows)...)
	probs := append(append([]float32{}, utterance...), repeatProbs(silenceProb, 4)...)
	probs = append(probs, utterance...)
	events := feedProbs(t, probs)

	var sequence []EventType
	for _, ev := range events {
		if ev != nil {
			sequence = append(sequence, ev.Type)
		}
	}

	want := []EventType{EventStart, EventCommit, EventStart, EventCommit}
	if len(sequence) != len(want) {
		t.Fatalf("Expected event sequence %v, got %v", want, sequence)
	}
	for i := range want {
		if sequence[i] != want[i] {
			t.Fatalf("Expected event sequence %v, got %v", want, sequence)
		}
	}
}

func TestSequencer_InferError(t *testing.T) {
	inferErr := errors.New("model exploded")
	det := NewMockDetector()
	det.InferFunc = func(samples []float32) (float32, error) {
		return 0, inferErr
	}

	seq := NewSequencer(det, DefaultSequencerConfig())
	_, err := seq.ProcessWindow(makeWindow(1))
	if err == nil {
		t.Fatal("Expected error from failing detector")
	}
	if !errors.Is(err, inferErr) {
		t.Errorf("Expected wrapped detector error, got %v", err)
	}
}

func TestSequencer_Reset(t *testing.T) {
	det := NewMockDetectorWithProb(speechProb)
	seq := NewSequencer(det, DefaultSequencerConfig())

	if _, err := seq.ProcessWindow(makeWindow(1)); err != nil {
		t.Fatalf("ProcessWindow() error = %v", err)
	}
	if !seq.Triggered() {
		t.Fatal("Expected sequencer to be triggered after speech")
	}

	if err := seq.Reset(); err != nil {
		t.Fatalf("Reset() error = %v", err)
	}
	if seq.Triggered() {
		t.Error("Expected sequencer to be idle after reset")
	}
	if !det.ResetCalled {
		t.Error("Expected detector reset to be invoked")
	}

	// A fresh utterance after reset emits a new start.
	ev, err := seq.ProcessWindow(makeWindow(2))
	if err != nil {
		t.Fatalf("ProcessWindow() error = %v", err)
	}
	if ev == nil || ev.Type != EventStart {
		t.Fatalf("Expected start after reset, got %v", ev)
	}
}

func TestSequencer_NormalizesWindowsForDetector(t *testing.T) {
	det := NewMockDetectorWithProb(silenceProb)
	seq := NewSequencer(det, DefaultSequencerConfig())

	if _, err := seq.ProcessWindow(makeWindow(16384)); err != nil {
		t.Fatalf("ProcessWindow() error = %v", err)
	}

	if det.GetInferCallCount() != 1 {
		t.Fatalf("Expected 1 inference, got %d", det.GetInferCallCount())
	}
	call := det.InferCalls[0]
	if len(call) != audio.WindowSamples {
		t.Fatalf("Expected %d samples forwarded, got %d", audio.WindowSamples, len(call))
	}
	if call[0] != 0.5 {
		t.Errorf("Expected normalized sample 0.5, got %v", call[0])
	}
}

func ExampleSequencer() {
	det := NewMockDetectorWithSequence(append(repeatProbs(0.9, 2), repeatProbs(0.1, 16)...))
	seq := NewSequencer(det, DefaultSequencerConfig())

	for i := 0; i < 18; i++ {
		ev, err := seq.ProcessWindow(make([]int16, audio.WindowSamples))
		if err != nil {
			fmt.Println("error:", err)
			return
		}
		if ev != nil {
			fmt.Println(ev.Type)
		}
	}
	// Output:
	// start
	// commit
}
