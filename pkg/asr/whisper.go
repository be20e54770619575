package asr

import (
	"bytes"
	"context"
	"log"
	"os"

	openai "github.com/sashabaranov/go-openai"

	"github.com/livetranslate/livetranslate/pkg/audio"
)

// WhisperEngine implements Engine using OpenAI's hosted Whisper API.
// It is the fallback for deployments without a local whisper.cpp build.
type WhisperEngine struct {
	client *openai.Client
	model  string
}

// NewWhisperEngine creates a hosted Whisper engine. model may be empty to
// use whisper-1. OPENAI_BASE_URL overrides the API endpoint for gateways
// and tests.
func NewWhisperEngine(apiKey, model string) (*WhisperEngine, error) {
	if apiKey == "" {
		return nil, &Error{
			Code:    ErrCodeInvalidConfig,
			Message: "OpenAI API key is required",
		}
	}

	clientConfig := openai.DefaultConfig(apiKey)
	if baseURL := os.Getenv("OPENAI_BASE_URL"); baseURL != "" {
		clientConfig.BaseURL = baseURL
		log.Printf("[Whisper] Using BaseURL: %s", clientConfig.BaseURL)
	}

	if model == "" {
		model = openai.Whisper1
	}

	return &WhisperEngine{
		client: openai.NewClientWithConfig(clientConfig),
		model:  model,
	}, nil
}

// Name returns the engine name.
func (e *WhisperEngine) Name() string {
	return "openai-whisper"
}

// Transcribe uploads the utterance as WAV and requests verbose JSON so the
// response carries per-segment timestamps.
func (e *WhisperEngine) Transcribe(ctx context.Context, samples []int16, languageHint string) ([]Segment, error) {
	if len(samples) == 0 {
		return nil, &Error{
			Code:    ErrCodeInvalidAudio,
			Message: "utterance is empty",
		}
	}

	req := openai.AudioRequest{
		Model:    e.model,
		FilePath: "audio.wav", // filename hint for the multipart upload
		Reader:   bytes.NewReader(audio.SamplesToWAV(samples)),
		Format:   openai.AudioResponseFormatVerboseJSON,
	}
	if languageHint != "" && languageHint != "auto" {
		req.Language = languageHint
	}

	resp, err := e.client.CreateTranscription(ctx, req)
	if err != nil {
		return nil, &Error{
			Code:    ErrCodeProviderError,
			Message: "Whisper API request failed",
			Err:     err,
		}
	}

	if len(resp.Segments) == 0 {
		if resp.Text == "" {
			return nil, nil
		}
		// Some gateways drop segment detail; treat the whole utterance as
		// one span.
		return []Segment{{
			Text:  resp.Text,
			Start: 0,
			End:   audio.DurationMs(len(samples)) / 1000.0,
		}}, nil
	}

	segments := make([]Segment, 0, len(resp.Segments))
	for _, s := range resp.Segments {
		segments = append(segments, Segment{
			Text:  s.Text,
			Start: s.Start,
			End:   s.End,
		})
	}
	return segments, nil
}

// Close implements Engine. The hosted engine holds no local resources.
func (e *WhisperEngine) Close() error {
	return nil
}

// Ensure WhisperEngine implements Engine at compile time.
var _ Engine = (*WhisperEngine)(nil)
