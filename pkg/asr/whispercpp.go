package asr

import (
	"context"
	"errors"
	"io"

	whisperlib "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"

	"github.com/livetranslate/livetranslate/pkg/audio"
)

// WhisperCppEngine implements Engine with the whisper.cpp CGO bindings.
// The whisper.cpp static library (libwhisper.a) and headers must be
// available at link time via LIBRARY_PATH and C_INCLUDE_PATH.
//
// The model is loaded once and shared; inference contexts are created per
// utterance because they are not thread-safe.
type WhisperCppEngine struct {
	model whisperlib.Model
}

// NewWhisperCppEngine loads the whisper.cpp model from the given file path.
// The caller must call Close when the engine is no longer needed.
func NewWhisperCppEngine(modelPath string) (*WhisperCppEngine, error) {
	if modelPath == "" {
		return nil, &Error{
			Code:    ErrCodeInvalidConfig,
			Message: "whisper model path is required",
		}
	}

	model, err := whisperlib.New(modelPath)
	if err != nil {
		return nil, &Error{
			Code:    ErrCodeInvalidConfig,
			Message: "failed to load whisper model " + modelPath,
			Err:     err,
		}
	}

	return &WhisperCppEngine{model: model}, nil
}

// Name returns the engine name.
func (e *WhisperCppEngine) Name() string {
	return "whisper-cpp"
}

// Transcribe runs whisper.cpp inference over the utterance. A fresh context
// per call keeps utterances independent: no text from earlier segments can
// condition the decode.
func (e *WhisperCppEngine) Transcribe(ctx context.Context, samples []int16, languageHint string) ([]Segment, error) {
	if len(samples) == 0 {
		return nil, &Error{
			Code:    ErrCodeInvalidAudio,
			Message: "utterance is empty",
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	wctx, err := e.model.NewContext()
	if err != nil {
		return nil, &Error{
			Code:    ErrCodeProviderError,
			Message: "failed to create whisper context",
			Err:     err,
		}
	}

	lang := languageHint
	if lang == "" {
		lang = "auto"
	}
	if err := wctx.SetLanguage(lang); err != nil {
		return nil, &Error{
			Code:    ErrCodeInvalidConfig,
			Message: "unsupported language hint " + lang,
			Err:     err,
		}
	}
	wctx.SetBeamSize(1)

	if err := wctx.Process(audio.Int16ToFloat32(samples), nil, nil, nil); err != nil {
		return nil, &Error{
			Code:    ErrCodeProviderError,
			Message: "whisper inference failed",
			Err:     err,
		}
	}

	var segments []Segment
	for {
		seg, err := wctx.NextSegment()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, &Error{
				Code:    ErrCodeProviderError,
				Message: "failed to read whisper segment",
				Err:     err,
			}
		}
		segments = append(segments, Segment{
			Text:  seg.Text,
			Start: seg.Start.Seconds(),
			End:   seg.End.Seconds(),
		})
	}

	return segments, nil
}

// Close releases the whisper model. The engine must not be used afterwards.
func (e *WhisperCppEngine) Close() error {
	if e.model != nil {
		if err := e.model.Close(); err != nil {
			return err
		}
		e.model = nil
	}
	return nil
}

// Ensure WhisperCppEngine implements Engine at compile time.
var _ Engine = (*WhisperCppEngine)(nil)
