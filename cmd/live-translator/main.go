// Live translation relay server.
//
// Accepts 16 kHz mono PCM over WebSocket, segments speech with Silero VAD,
// transcribes each utterance, and streams transcript, correction, and
// translation events back to the client.
//
// Usage:
//
//	go run ./cmd/live-translator
//
// Then connect via WebSocket:
//
//	wscat -c "ws://localhost:8001/ws/audio"
//
// Configuration comes from the environment (or a .env file):
//
//   - LISTEN_ADDR: listen address (default ":8001")
//   - VAD_MODEL_PATH: path to the Silero VAD ONNX model (required)
//   - ONNXRUNTIME_LIB: path to libonnxruntime if not in a standard location
//   - OPENAI_API_KEY: enables transcription, correction, and translation
//   - WHISPER_MODEL_PATH: use a local whisper.cpp model for transcription
//   - TARGET_LANGUAGE: default translation target (default "zh-TW")
//   - USE_REALTIME: prefer the Realtime API for LLM turns (default "true")
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/livetranslate/livetranslate/pkg/server"
	"github.com/livetranslate/livetranslate/pkg/trace"
	"github.com/livetranslate/livetranslate/pkg/vad"
)

func main() {
	// Load environment variables from .env file
	godotenv.Load()

	ctx := context.Background()

	if err := trace.Initialize(ctx, trace.DefaultConfig()); err != nil {
		log.Fatalf("Failed to initialize tracing: %v", err)
	}
	defer func() {
		if err := trace.Shutdown(ctx); err != nil {
			log.Printf("Failed to shutdown tracing: %v", err)
		}
	}()

	// Bring the ONNX runtime up before accepting connections so a broken
	// environment fails at startup, not on the first client.
	if err := vad.InitRuntime(""); err != nil {
		log.Fatalf("Failed to initialize ONNX runtime: %v", err)
	}
	defer vad.DestroyRuntime()

	srv := server.NewServer(server.ConfigFromEnv())

	if err := srv.Start(ctx); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
	log.Println("Press Ctrl+C to stop")

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Println("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Stop(shutdownCtx); err != nil {
		log.Printf("Error during shutdown: %v", err)
	}
	log.Println("Server stopped")
}
