// Package server hosts the live translation relay: an HTTP surface with a
// health endpoint and one WebSocket audio endpoint, and a session per
// connection wiring framer, VAD, ASR, and the LLM client together.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/livetranslate/livetranslate/pkg/asr"
	"github.com/livetranslate/livetranslate/pkg/llm"
	"github.com/livetranslate/livetranslate/pkg/trace"
	"github.com/livetranslate/livetranslate/pkg/vad"
)

// DetectorFactory creates one VAD detector per session. Detectors hold
// inference state and are not shared.
type DetectorFactory func() (vad.DetectorInterface, error)

// EngineFactory creates the process-wide ASR engine. A nil engine with a
// nil error means no transcription backend is configured; sessions then
// run VAD-only.
type EngineFactory func() (asr.Engine, error)

// TranslatorFactory creates the process-wide LLM client.
type TranslatorFactory func() *llm.Client

// Server accepts client connections on the audio endpoint and runs one
// Session per connection. The ASR engine and LLM client are shared across
// sessions and initialized lazily on first use.
type Server struct {
	config *Config

	// Session management
	sessions   map[string]*Session
	sessionsMu sync.RWMutex

	// Lazily initialized shared backends
	engineOnce sync.Once
	engine     asr.Engine
	engineErr  error

	translatorOnce sync.Once
	translator     *llm.Client

	detectorFactory   DetectorFactory
	engineFactory     EngineFactory
	translatorFactory TranslatorFactory

	// HTTP server
	httpServer *http.Server
	mux        *http.ServeMux
	routesOnce sync.Once

	// WebSocket upgrader
	upgrader websocket.Upgrader

	// Context for shutdown
	ctx    context.Context
	cancel context.CancelFunc
}

// NewServer creates a relay server. A nil config loads ConfigFromEnv.
func NewServer(config *Config) *Server {
	if config == nil {
		config = ConfigFromEnv()
	}

	ctx, cancel := context.WithCancel(context.Background())

	s := &Server{
		config:   config,
		sessions: make(map[string]*Session),
		mux:      http.NewServeMux(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin: func(r *http.Request) bool {
				return true // Allow all origins; customize for production
			},
		},
		ctx:    ctx,
		cancel: cancel,
	}

	s.detectorFactory = s.defaultDetectorFactory
	s.engineFactory = s.defaultEngineFactory
	s.translatorFactory = s.defaultTranslatorFactory

	return s
}

// SetDetectorFactory overrides how per-session detectors are created.
// Must be called before the first connection.
func (s *Server) SetDetectorFactory(factory DetectorFactory) {
	s.detectorFactory = factory
}

// SetEngineFactory overrides how the shared ASR engine is created.
// Must be called before the first connection.
func (s *Server) SetEngineFactory(factory EngineFactory) {
	s.engineFactory = factory
}

// SetTranslatorFactory overrides how the shared LLM client is created.
// Must be called before the first connection.
func (s *Server) SetTranslatorFactory(factory TranslatorFactory) {
	s.translatorFactory = factory
}

// Handler returns the HTTP handler serving the health and audio endpoints.
func (s *Server) Handler() http.Handler {
	s.routesOnce.Do(func() {
		s.mux.HandleFunc("/", s.handleHealth)
		s.mux.HandleFunc(s.config.Path, s.handleWebSocket)
	})
	return s.mux
}

// Start starts the server.
func (s *Server) Start(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:    s.config.Addr,
		Handler: s.Handler(),
	}

	log.Printf("[Server] listening on %s (audio endpoint %s)", s.config.Addr, s.config.Path)

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-time.After(100 * time.Millisecond):
		// Server started successfully
		return nil
	}
}

// Stop stops the server gracefully, closing every live session.
func (s *Server) Stop(ctx context.Context) error {
	s.cancel()

	s.sessionsMu.Lock()
	for _, session := range s.sessions {
		session.terminate()
	}
	s.sessionsMu.Unlock()

	if s.translator != nil {
		s.translator.Close()
	}
	if s.engine != nil {
		s.engine.Close()
	}

	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}

// healthResponse is the GET / body.
type healthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(healthResponse{
		Status:  "ok",
		Service: "Live Translator Server",
	})
}

// handleWebSocket upgrades a client connection and runs its session to
// completion. A detector that fails to initialize closes the socket with
// 1011 before any session exists.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[Server] WebSocket upgrade failed: %v", err)
		return
	}

	detector, err := s.detectorFactory()
	if err != nil {
		log.Printf("[Server] VAD initialization failed: %v", err)
		deadline := time.Now().Add(time.Second)
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "VAD initialization failed"),
			deadline)
		conn.Close()
		return
	}

	engine := s.sharedEngine()
	translator := s.sharedTranslator()

	clientIP := getClientIP(r)
	session := newSession(s.ctx, conn, sessionConfig{
		Detector:       detector,
		Engine:         engine,
		Translator:     translator,
		TargetLanguage: s.config.TargetLanguage,
		OnClose: func(sess *Session) {
			s.unregisterSession(sess)
		},
	})
	s.registerSession(session, clientIP)

	_, span := trace.InstrumentSessionStart(s.ctx, session.ID)
	span.End()

	session.run()
}

// sharedEngine returns the process-wide ASR engine, initializing it on
// first use. Initialization failure is logged once and degrades sessions
// to VAD-only rather than refusing connections.
func (s *Server) sharedEngine() asr.Engine {
	s.engineOnce.Do(func() {
		s.engine, s.engineErr = s.engineFactory()
		switch {
		case s.engineErr != nil:
			log.Printf("[Server] ASR engine unavailable, sessions will run VAD-only: %v", s.engineErr)
		case s.engine != nil:
			log.Printf("[Server] ASR engine ready: %s", s.engine.Name())
		}
	})
	return s.engine
}

// sharedTranslator returns the process-wide LLM client, initializing it on
// first use.
func (s *Server) sharedTranslator() *llm.Client {
	s.translatorOnce.Do(func() {
		s.translator = s.translatorFactory()
	})
	return s.translator
}

func (s *Server) defaultDetectorFactory() (vad.DetectorInterface, error) {
	detector, err := vad.NewDetector(vad.DetectorConfig{
		ModelPath:  s.config.VADModelPath,
		SampleRate: 16000,
	})
	if err != nil {
		return nil, err
	}
	return detector, nil
}

func (s *Server) defaultEngineFactory() (asr.Engine, error) {
	name := s.config.ASREngine
	if name == "" {
		switch {
		case s.config.WhisperModelPath != "":
			name = "whisper-cpp"
		case s.config.APIKey != "":
			name = "openai"
		default:
			return nil, nil
		}
	}

	switch name {
	case "whisper-cpp":
		engine, err := asr.NewWhisperCppEngine(s.config.WhisperModelPath)
		if err != nil {
			return nil, err
		}
		return engine, nil
	case "openai":
		engine, err := asr.NewWhisperEngine(s.config.APIKey, s.config.ASRModel)
		if err != nil {
			return nil, err
		}
		return engine, nil
	default:
		return nil, fmt.Errorf("unknown ASR engine: %q", name)
	}
}

func (s *Server) defaultTranslatorFactory() *llm.Client {
	return llm.New(llm.Config{
		APIKey:         s.config.APIKey,
		ChatModel:      s.config.ChatModel,
		RealtimeModel:  s.config.RealtimeModel,
		TargetLanguage: s.config.TargetLanguage,
		UseRealtime:    s.config.UseRealtime,
	})
}

// registerSession adds a session to the server.
func (s *Server) registerSession(session *Session, clientIP string) {
	s.sessionsMu.Lock()
	s.sessions[session.ID] = session
	s.sessionsMu.Unlock()

	log.Printf("[Server] [session %s] connected from %s", session.ID, clientIP)
}

// unregisterSession removes a session from the server.
func (s *Server) unregisterSession(session *Session) {
	s.sessionsMu.Lock()
	delete(s.sessions, session.ID)
	s.sessionsMu.Unlock()

	log.Printf("[Server] [session %s] disconnected", session.ID)
}

// GetSession returns a session by ID.
func (s *Server) GetSession(sessionID string) *Session {
	s.sessionsMu.RLock()
	defer s.sessionsMu.RUnlock()
	return s.sessions[sessionID]
}

// SessionCount returns the number of active sessions.
func (s *Server) SessionCount() int {
	s.sessionsMu.RLock()
	defer s.sessionsMu.RUnlock()
	return len(s.sessions)
}

func getClientIP(r *http.Request) string {
	// Check X-Forwarded-For header
	xff := r.Header.Get("X-Forwarded-For")
	if xff != "" {
		parts := strings.Split(xff, ",")
		return strings.TrimSpace(parts[0])
	}

	// Check X-Real-IP header
	xri := r.Header.Get("X-Real-IP")
	if xri != "" {
		return xri
	}

	// Fall back to RemoteAddr
	return strings.Split(r.RemoteAddr, ":")[0]
}
