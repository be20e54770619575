package server

import (
	"os"
	"strings"

	"github.com/livetranslate/livetranslate/pkg/llm"
)

// Config holds the relay server configuration. ConfigFromEnv reads it from
// the environment; zero fields fall back to the documented defaults.
type Config struct {
	// Addr is the address to listen on (e.g., ":8001").
	Addr string

	// Path is the WebSocket audio endpoint path.
	Path string

	// APIKey is the OpenAI credential shared by the LLM client and the
	// hosted ASR engine. Empty disables correction and translation.
	APIKey string

	// TargetLanguage is the default translation target for new sessions.
	TargetLanguage string

	// ChatModel is the request/response model for correction and translation.
	ChatModel string

	// RealtimeModel serves realtime turns when UseRealtime is set.
	RealtimeModel string

	// UseRealtime prefers the realtime LLM path over Chat Completions.
	UseRealtime bool

	// ASREngine selects the transcription engine: "whisper-cpp" or
	// "openai". Empty picks whisper-cpp when WhisperModelPath is set,
	// openai when APIKey is set, and otherwise leaves sessions VAD-only.
	ASREngine string

	// WhisperModelPath is the local whisper.cpp model file.
	WhisperModelPath string

	// ASRModel is the hosted transcription model (default "whisper-1").
	ASRModel string

	// VADModelPath is the Silero VAD ONNX model file.
	VADModelPath string

	// ReadBufferSize is the WebSocket read buffer size.
	ReadBufferSize int

	// WriteBufferSize is the WebSocket write buffer size.
	WriteBufferSize int
}

// ConfigFromEnv builds a Config from environment variables.
func ConfigFromEnv() *Config {
	return &Config{
		Addr:             getEnv("LISTEN_ADDR", ":8001"),
		Path:             "/ws/audio",
		APIKey:           os.Getenv("OPENAI_API_KEY"),
		TargetLanguage:   getEnv("TARGET_LANGUAGE", llm.DefaultTargetLanguage),
		ChatModel:        getEnv("TRANSLATION_MODEL", llm.DefaultChatModel),
		RealtimeModel:    getEnv("REALTIME_MODEL", llm.DefaultRealtimeModel),
		UseRealtime:      isTruthy(getEnv("USE_REALTIME", "true")),
		ASREngine:        os.Getenv("ASR_ENGINE"),
		WhisperModelPath: os.Getenv("WHISPER_MODEL_PATH"),
		ASRModel:         os.Getenv("ASR_MODEL"),
		VADModelPath:     os.Getenv("VAD_MODEL_PATH"),
		ReadBufferSize:   4096,
		WriteBufferSize:  4096,
	}
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func isTruthy(value string) bool {
	switch strings.ToLower(value) {
	case "1", "true", "yes":
		return true
	}
	return false
}
