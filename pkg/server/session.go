package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/livetranslate/livetranslate/pkg/asr"
	"github.com/livetranslate/livetranslate/pkg/audio"
	"github.com/livetranslate/livetranslate/pkg/history"
	"github.com/livetranslate/livetranslate/pkg/llm"
	"github.com/livetranslate/livetranslate/pkg/trace"
	"github.com/livetranslate/livetranslate/pkg/vad"
)

// Session owns one client connection: it frames inbound PCM, drives the
// VAD, transcribes committed utterances, and streams events back.
//
// Three goroutines cooperate per session. The read loop (run) owns the
// framer and sequencer. The ASR worker consumes committed utterances in
// order, which keeps transcript events and segment ids monotonic while the
// read loop stays responsive. The write loop is the only goroutine that
// touches the outbound side of the socket. Correction and translation run
// as fire-and-forget tasks per segment; their sends funnel through the
// same outbound channel.
type Session struct {
	ID string

	conn      *websocket.Conn
	framer    *audio.Framer
	sequencer *vad.Sequencer
	detector  vad.DetectorInterface

	// engine may be nil; the session then runs VAD-only.
	engine     asr.Engine
	translator *llm.Client

	history *history.Store

	// Session configuration, mutable via config frames at any time.
	cfgMu          sync.Mutex
	language       string
	targetLanguage string
	extraContext   string

	// segmentID is owned by the ASR worker goroutine.
	segmentID int

	outbound chan any
	asrJobs  chan utteranceJob

	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
	wg        sync.WaitGroup

	vadOnlyOnce sync.Once

	onClose func(*Session)
}

// utteranceJob is one committed utterance queued for transcription. The
// language hint is captured at commit time, so a config change applies to
// the next commit, not to utterances already in the queue.
type utteranceJob struct {
	samples    []int16
	language   string
	durationMs float64
}

// sessionConfig carries the per-session wiring resolved by the server.
type sessionConfig struct {
	Detector       vad.DetectorInterface
	Engine         asr.Engine
	Translator     *llm.Client
	TargetLanguage string
	OnClose        func(*Session)
}

func newSession(ctx context.Context, conn *websocket.Conn, cfg sessionConfig) *Session {
	if cfg.TargetLanguage == "" {
		cfg.TargetLanguage = llm.DefaultTargetLanguage
	}

	sessionCtx, cancel := context.WithCancel(ctx)

	s := &Session{
		ID:             "sess_" + uuid.New().String()[:12],
		conn:           conn,
		framer:         audio.NewFramer(),
		sequencer:      vad.NewSequencer(cfg.Detector, vad.DefaultSequencerConfig()),
		detector:       cfg.Detector,
		engine:         cfg.Engine,
		translator:     cfg.Translator,
		history:        history.NewStore(),
		language:       "auto",
		targetLanguage: cfg.TargetLanguage,
		outbound:       make(chan any, 100),
		asrJobs:        make(chan utteranceJob, 16),
		ctx:            sessionCtx,
		cancel:         cancel,
		onClose:        cfg.OnClose,
	}

	s.wg.Add(2)
	go s.writeLoop()
	go s.asrLoop()

	return s
}

// run reads client frames until disconnect or a fatal error, then tears
// the session down. Text frames carry configuration, binary frames carry
// PCM; anything else is ignored.
func (s *Session) run() {
	defer s.close()

	for {
		msgType, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
				log.Printf("[session %s] client disconnected", s.ID)
			} else {
				log.Printf("[session %s] websocket error: %v", s.ID, err)
			}
			return
		}

		switch msgType {
		case websocket.TextMessage:
			s.handleConfig(data)
		case websocket.BinaryMessage:
			if err := s.handleAudio(data); err != nil {
				log.Printf("[session %s] VAD error: %v", s.ID, err)
				return
			}
		}
	}
}

// handleConfig applies a config frame. Unparseable frames are logged and
// ignored; non-config frames are ignored silently. Keys absent from the
// frame keep their current values.
func (s *Session) handleConfig(data []byte) {
	var msg configMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		log.Printf("[session %s] ignoring unparseable text frame: %v", s.ID, err)
		return
	}
	if msg.Type != "config" {
		return
	}

	s.cfgMu.Lock()
	if msg.Language != nil {
		s.language = *msg.Language
	}
	if msg.TargetLanguage != nil {
		s.targetLanguage = *msg.TargetLanguage
	}
	if msg.ExtraContext != nil {
		s.extraContext = *msg.ExtraContext
	}
	language, target := s.language, s.targetLanguage
	s.cfgMu.Unlock()

	log.Printf("[session %s] config: language=%q target=%q", s.ID, language, target)
}

// handleAudio frames a binary chunk into analysis windows and advances the
// VAD. A detector failure is fatal to the session.
func (s *Session) handleAudio(data []byte) error {
	for _, window := range s.framer.Push(data) {
		event, err := s.sequencer.ProcessWindow(window)
		if err != nil {
			return err
		}
		if event == nil {
			continue
		}

		switch event.Type {
		case vad.EventStart:
			log.Printf("[session %s] VAD: speech start", s.ID)
			s.sendEvent(VadStartEvent{Type: EventVadStart})
		case vad.EventCommit:
			durationMs := audio.DurationMs(len(event.Audio))
			log.Printf("[session %s] VAD: speech commit (%.0f ms)", s.ID, durationMs)
			s.sendEvent(VadCommitEvent{Type: EventVadCommit, DurationMs: durationMs})
			s.enqueueUtterance(event.Audio, durationMs)
		}
	}
	return nil
}

// enqueueUtterance hands a committed utterance to the ASR worker. The
// queue applies backpressure: if transcription falls far behind, reading
// slows down rather than buffering unboundedly.
func (s *Session) enqueueUtterance(samples []int16, durationMs float64) {
	s.cfgMu.Lock()
	language := s.language
	s.cfgMu.Unlock()

	select {
	case s.asrJobs <- utteranceJob{samples: samples, language: language, durationMs: durationMs}:
	case <-s.ctx.Done():
	}
}

func (s *Session) asrLoop() {
	defer s.wg.Done()

	for {
		select {
		case <-s.ctx.Done():
			return
		case job := <-s.asrJobs:
			s.processUtterance(job)
		}
	}
}

// pendingSegment is a transcript that has been sent and awaits its
// correction+translation task.
type pendingSegment struct {
	id       int
	text     string
	start    float64
	end      float64
	snapshot []string
}

// processUtterance transcribes one utterance and emits its events. All
// transcript events of the utterance go out, in order, before any
// follow-up task is spawned, so corrections can never overtake a later
// segment's transcript on the wire.
func (s *Session) processUtterance(job utteranceJob) {
	if s.engine == nil {
		s.vadOnlyOnce.Do(func() {
			log.Printf("[session %s] no ASR engine configured; running VAD-only", s.ID)
		})
		return
	}

	ctx, span := trace.InstrumentUtterance(s.ctx, s.ID, len(job.samples), job.durationMs)
	defer span.End()

	asrCtx, asrSpan := trace.InstrumentASRRequest(ctx, s.engine.Name(), job.language, len(job.samples))
	segments, err := s.engine.Transcribe(asrCtx, job.samples, job.language)
	if err != nil {
		trace.RecordError(asrSpan, err)
		asrSpan.End()
		log.Printf("[session %s] ASR error: %v", s.ID, err)
		return
	}
	asrSpan.End()

	textLen := 0
	for _, seg := range segments {
		textLen += len(seg.Text)
	}
	_, resultSpan := trace.InstrumentASRResult(ctx, s.engine.Name(), len(segments), textLen)
	resultSpan.End()

	pending := make([]pendingSegment, 0, len(segments))
	for _, seg := range segments {
		text := strings.TrimSpace(seg.Text)
		s.segmentID++
		id := s.segmentID

		log.Print(trace.LogWithTrace(ctx, fmt.Sprintf("[session %s] ASR #%d: %s", s.ID, id, text)))
		if !s.sendEvent(TranscriptEvent{
			Type:       EventTranscript,
			SegmentID:  id,
			Text:       text,
			Start:      seg.Start,
			End:        seg.End,
			DurationMs: job.durationMs,
		}) {
			return
		}

		// Snapshot before spawning so overlapping tasks see a stable
		// history prefix.
		pending = append(pending, pendingSegment{
			id:       id,
			text:     text,
			start:    seg.Start,
			end:      seg.End,
			snapshot: s.history.Snapshot(),
		})
	}

	for _, p := range pending {
		go s.finalizeSegment(ctx, p, job.durationMs)
	}
}

// finalizeSegment runs the correction+translation chain for one segment.
// Failures degrade: a failed correction keeps the raw text, a failed
// translation emits nothing. The corrected-or-raw text is what enters the
// history and what gets translated.
func (s *Session) finalizeSegment(ctx context.Context, p pendingSegment, durationMs float64) {
	correctCtx, correctSpan := trace.InstrumentLLMRequest(ctx, "correct", "openai", s.translator.ChatModel())
	corrected := s.translator.Correct(correctCtx, p.text, p.snapshot)
	correctSpan.End()

	if corrected != "" && corrected != p.text {
		if !s.sendEvent(TranscriptCorrectedEvent{
			Type:       EventTranscriptCorrected,
			SegmentID:  p.id,
			Text:       corrected,
			SourceText: p.text,
			Start:      p.start,
			End:        p.end,
			DurationMs: durationMs,
		}) {
			return
		}
	}

	final := corrected
	if final == "" {
		final = p.text
	}
	s.history.Append(final)

	s.cfgMu.Lock()
	target, extra := s.targetLanguage, s.extraContext
	s.cfgMu.Unlock()

	translateCtx, translateSpan := trace.InstrumentLLMRequest(ctx, "translate", "openai", s.translator.ChatModel())
	translated, ok := s.translator.Translate(translateCtx, final, p.snapshot, target, extra)
	translateSpan.End()
	if !ok {
		return
	}

	s.sendEvent(TranslationEvent{
		Type:       EventTranslation,
		SegmentID:  p.id,
		Text:       translated,
		SourceText: final,
		Start:      p.start,
		End:        p.end,
		DurationMs: durationMs,
	})
}

// sendEvent queues one outbound event. It returns false when the session
// is shutting down and the event was dropped.
func (s *Session) sendEvent(event any) bool {
	select {
	case s.outbound <- event:
		return true
	case <-s.ctx.Done():
		return false
	}
}

// writeLoop is the sole writer on the socket; funneling every event
// through it keeps frames from interleaving. A write failure terminates
// the whole session.
func (s *Session) writeLoop() {
	defer s.wg.Done()

	for {
		select {
		case <-s.ctx.Done():
			return
		case event := <-s.outbound:
			data, err := json.Marshal(event)
			if err != nil {
				log.Printf("[session %s] failed to marshal event: %v", s.ID, err)
				continue
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Printf("[session %s] failed to write event: %v", s.ID, err)
				s.terminate()
				return
			}
		}
	}
}

// terminate signals shutdown: it cancels the session context and closes
// the socket so the read loop unblocks. Safe to call from any goroutine,
// any number of times.
func (s *Session) terminate() {
	s.closeOnce.Do(func() {
		s.cancel()
		s.conn.Close()
	})
}

// close tears the session down and releases its detector. Called once,
// from the read loop's defer.
func (s *Session) close() {
	s.terminate()
	s.wg.Wait()

	if s.detector != nil {
		if err := s.detector.Destroy(); err != nil {
			log.Printf("[session %s] failed to destroy detector: %v", s.ID, err)
		}
	}

	_, span := trace.InstrumentSessionClosed(context.Background(), s.ID, s.segmentID)
	span.End()

	if s.onClose != nil {
		s.onClose(s)
	}
	log.Printf("[session %s] closed", s.ID)
}
