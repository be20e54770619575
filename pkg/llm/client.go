package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
)

// Defaults applied when the corresponding Config fields are empty.
const (
	DefaultChatModel      = "gpt-4o-mini"
	DefaultRealtimeModel  = "gpt-realtime"
	DefaultTargetLanguage = "zh-TW"
)

// cacheSize bounds the correction/translation memo.
const cacheSize = 200

const (
	modeCorrect   = "correct"
	modeTranslate = "translate"
)

const (
	correctionInstructions = "You correct ASR transcripts using context. " +
		"Do NOT repeat the history. " +
		"Only return the corrected version of the current transcript. " +
		"Output JSON only: {\"corrected_text\": \"...\"}."

	translationInstructions = "You translate text using context. " +
		"Do NOT repeat the history. " +
		"Only return the translation of the current text. " +
		"Output JSON only: {\"translated_text\": \"...\"}."
)

// correctionPayload is the user message for a correction turn. Field order
// is the wire order.
type correctionPayload struct {
	History           []string `json:"history"`
	CurrentTranscript string   `json:"current_transcript"`
}

// translationPayload is the user message for a translation turn.
type translationPayload struct {
	TargetLanguage string   `json:"target_language"`
	History        []string `json:"history"`
	ExtraContext   string   `json:"extra_context"`
	CurrentText    string   `json:"current_text"`
}

// cacheKeyPayload canonicalizes a request for memoization. Fields are
// alphabetical so the encoded form is stable across call sites. Model is
// always the chat model, even for turns served by the realtime API.
type cacheKeyPayload struct {
	ExtraContext   string   `json:"extra_context"`
	History        []string `json:"history"`
	Mode           string   `json:"mode"`
	Model          string   `json:"model"`
	TargetLanguage string   `json:"target_language"`
	Text           string   `json:"text"`
}

// Config holds the client configuration.
type Config struct {
	// APIKey enables the client. When empty, Correct passes text through
	// and Translate reports unavailable.
	APIKey string
	// ChatModel serves Chat Completions fallback turns.
	ChatModel string
	// RealtimeModel serves realtime turns when UseRealtime is set.
	RealtimeModel string
	// TargetLanguage is the translation target used when a request does
	// not name one.
	TargetLanguage string
	// UseRealtime prefers the realtime API over Chat Completions.
	UseRealtime bool
	// BaseURL overrides the Chat Completions endpoint (gateways, tests).
	BaseURL string
	// RealtimeURL overrides the realtime endpoint (tests).
	RealtimeURL string
}

// Client corrects and translates finalized transcripts. Both operations
// prefer a shared realtime session and fall back to Chat Completions, with
// results memoized in an LRU cache.
//
// Client is safe for concurrent use.
type Client struct {
	cfg      Config
	enabled  bool
	chat     *openai.Client
	realtime *RealtimeClient
	cache    *lru.Cache[string, string]
}

// New creates a client. A missing API key yields a disabled client rather
// than an error, so sessions degrade to raw transcripts.
func New(cfg Config) *Client {
	if cfg.ChatModel == "" {
		cfg.ChatModel = DefaultChatModel
	}
	if cfg.RealtimeModel == "" {
		cfg.RealtimeModel = DefaultRealtimeModel
	}
	if cfg.TargetLanguage == "" {
		cfg.TargetLanguage = DefaultTargetLanguage
	}

	cache, _ := lru.New[string, string](cacheSize)
	c := &Client{cfg: cfg, cache: cache}

	log.Printf("[LLM] Target language: %s", cfg.TargetLanguage)
	log.Printf("[LLM] Chat model: %s", cfg.ChatModel)
	log.Printf("[LLM] Realtime enabled: %v", cfg.UseRealtime)
	log.Printf("[LLM] Realtime model: %s", cfg.RealtimeModel)

	if cfg.APIKey == "" {
		log.Printf("[LLM] OPENAI_API_KEY not set. Correction and translation disabled.")
		return c
	}

	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	} else if baseURL := os.Getenv("OPENAI_BASE_URL"); baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	chat := openai.NewClient(opts...)
	c.chat = &chat
	c.enabled = true

	if cfg.UseRealtime {
		c.realtime = NewRealtimeClient(RealtimeConfig{
			APIKey: cfg.APIKey,
			Model:  cfg.RealtimeModel,
			URL:    cfg.RealtimeURL,
		})
	}

	log.Printf("[LLM] Client enabled.")
	return c
}

// ChatModel returns the configured request/response model name.
func (c *Client) ChatModel() string {
	return c.cfg.ChatModel
}

// Enabled reports whether an API key was configured.
func (c *Client) Enabled() bool {
	return c.enabled
}

// TargetLanguage returns the default translation target.
func (c *Client) TargetLanguage() string {
	return c.cfg.TargetLanguage
}

// Close tears down the realtime connection if one is open.
func (c *Client) Close() error {
	if c.realtime != nil {
		return c.realtime.Close()
	}
	return nil
}

// Correct returns the transcript with recognition errors fixed, using the
// history snapshot as context. All-whitespace input returns "". When the
// client is disabled or every backend fails, the raw text comes back
// unchanged so the pipeline can proceed with it.
func (c *Client) Correct(ctx context.Context, text string, history []string) string {
	if strings.TrimSpace(text) == "" {
		return ""
	}
	if !c.enabled {
		return text
	}

	key := c.makeCacheKey(modeCorrect, text, history, "", "")
	if cached, ok := c.cache.Get(key); ok {
		return cached
	}

	payload, err := marshalNoEscape(correctionPayload{
		History:           nonNil(history),
		CurrentTranscript: text,
	})
	if err != nil {
		log.Printf("[LLM] Correction error: %v", err)
		return text
	}

	if c.realtime != nil {
		result, err := c.realtime.Request(ctx, correctionInstructions, payload)
		if err == nil {
			corrected, perr := parseCorrected(result, text)
			if perr == nil {
				c.cache.Add(key, corrected)
				return corrected
			}
			err = perr
		}
		log.Printf("[LLM] Realtime correction error: %v", err)
	}

	raw, err := c.chatTurn(ctx, correctionInstructions, payload)
	if err == nil {
		corrected, perr := parseCorrected(raw, text)
		if perr == nil {
			c.cache.Add(key, corrected)
			return corrected
		}
		err = perr
	}
	log.Printf("[LLM] Correction error: %v", err)
	return text
}

// Translate renders text into targetLanguage, or the configured default
// when targetLanguage is empty. The second return is false when
// translation is unavailable or failed; callers suppress their event in
// that case. Empty input translates to "".
func (c *Client) Translate(ctx context.Context, text string, history []string, targetLanguage, extraContext string) (string, bool) {
	if !c.enabled {
		return "", false
	}
	if strings.TrimSpace(text) == "" {
		return "", true
	}

	target := targetLanguage
	if target == "" {
		target = c.cfg.TargetLanguage
	}

	key := c.makeCacheKey(modeTranslate, text, history, extraContext, target)
	if cached, ok := c.cache.Get(key); ok {
		return cached, true
	}

	payload, err := marshalNoEscape(translationPayload{
		TargetLanguage: target,
		History:        nonNil(history),
		ExtraContext:   extraContext,
		CurrentText:    text,
	})
	if err != nil {
		log.Printf("[LLM] Translation error: %v", err)
		return "", false
	}

	if c.realtime != nil {
		result, err := c.realtime.Request(ctx, translationInstructions, payload)
		if err == nil {
			translated, perr := parseTranslated(result)
			if perr == nil {
				c.cache.Add(key, translated)
				return translated, true
			}
			err = perr
		}
		log.Printf("[LLM] Realtime translation error: %v", err)
	}

	raw, err := c.chatTurn(ctx, translationInstructions, payload)
	if err == nil {
		translated, perr := parseTranslated(raw)
		if perr == nil {
			c.cache.Add(key, translated)
			return translated, true
		}
		err = perr
	}
	log.Printf("[LLM] Translation error: %v", err)
	return "", false
}

// chatTurn performs one Chat Completions request in JSON-object mode and
// returns the raw message content.
func (c *Client) chatTurn(ctx context.Context, instructions, payload string) (string, error) {
	params := openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(instructions),
			openai.UserMessage(payload),
		},
		Model: shared.ChatModel(c.cfg.ChatModel),
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		},
	}

	completion, err := c.chat.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("completion error: %w", err)
	}
	if len(completion.Choices) == 0 {
		return "", fmt.Errorf("no response from model")
	}
	return completion.Choices[0].Message.Content, nil
}

// parseCorrected extracts corrected_text from a model result. A missing or
// empty value falls back to the raw transcript; malformed JSON is an error
// so the caller can try the next backend.
func parseCorrected(result, fallback string) (string, error) {
	if result == "" {
		return fallback, nil
	}
	var parsed struct {
		CorrectedText string `json:"corrected_text"`
	}
	if err := json.Unmarshal([]byte(result), &parsed); err != nil {
		return "", fmt.Errorf("unparseable correction result: %w", err)
	}
	if parsed.CorrectedText == "" {
		return fallback, nil
	}
	return parsed.CorrectedText, nil
}

// parseTranslated extracts translated_text from a model result. A missing
// value yields "", which is a valid (cached) outcome.
func parseTranslated(result string) (string, error) {
	if result == "" {
		return "", nil
	}
	var parsed struct {
		TranslatedText string `json:"translated_text"`
	}
	if err := json.Unmarshal([]byte(result), &parsed); err != nil {
		return "", fmt.Errorf("unparseable translation result: %w", err)
	}
	return parsed.TranslatedText, nil
}

func (c *Client) makeCacheKey(mode, text string, history []string, extraContext, targetLanguage string) string {
	// Strings and string slices cannot fail to encode.
	key, _ := marshalNoEscape(cacheKeyPayload{
		ExtraContext:   extraContext,
		History:        nonNil(history),
		Mode:           mode,
		Model:          c.cfg.ChatModel,
		TargetLanguage: targetLanguage,
		Text:           text,
	})
	return key
}

// marshalNoEscape encodes v as JSON without HTML escaping, keeping CJK
// text and punctuation literal on the wire.
func marshalNoEscape(v any) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return "", err
	}
	return strings.TrimRight(buf.String(), "\n"), nil
}

// nonNil substitutes an empty slice so history marshals as [], never null.
func nonNil(history []string) []string {
	if history == nil {
		return []string{}
	}
	return history
}
