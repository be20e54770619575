package server

// Client and server wire messages for the audio endpoint. Everything is a
// JSON text frame; audio itself arrives as binary frames and never appears
// here.

// Server event types.
const (
	EventVadStart            = "vad_start"
	EventVadCommit           = "vad_commit"
	EventTranscript          = "transcript"
	EventTranscriptCorrected = "transcript_corrected"
	EventTranslation         = "translation"
)

// configMessage is the client's session configuration frame. Fields are
// pointers so an omitted key is distinguishable from an explicit empty
// string; omitted keys retain the session's prior values.
type configMessage struct {
	Type           string  `json:"type"`
	Language       *string `json:"language"`
	TargetLanguage *string `json:"target_language"`
	ExtraContext   *string `json:"extra_context"`
}

// VadStartEvent announces that speech onset was detected.
type VadStartEvent struct {
	Type string `json:"type"`
}

// VadCommitEvent announces a finished utterance. DurationMs covers the
// whole committed buffer including trailing silence.
type VadCommitEvent struct {
	Type       string  `json:"type"`
	DurationMs float64 `json:"duration_ms"`
}

// TranscriptEvent carries one raw ASR segment. Start and End are seconds
// relative to the utterance buffer; DurationMs is the whole utterance's.
type TranscriptEvent struct {
	Type       string  `json:"type"`
	SegmentID  int     `json:"segment_id"`
	Text       string  `json:"text"`
	Start      float64 `json:"start"`
	End        float64 `json:"end"`
	DurationMs float64 `json:"duration_ms"`
}

// TranscriptCorrectedEvent carries the corrected text for an earlier
// segment; SourceText is the raw transcript it replaces.
type TranscriptCorrectedEvent struct {
	Type       string  `json:"type"`
	SegmentID  int     `json:"segment_id"`
	Text       string  `json:"text"`
	SourceText string  `json:"source_text"`
	Start      float64 `json:"start"`
	End        float64 `json:"end"`
	DurationMs float64 `json:"duration_ms"`
}

// TranslationEvent carries the translation of a segment's final text.
type TranslationEvent struct {
	Type       string  `json:"type"`
	SegmentID  int     `json:"segment_id"`
	Text       string  `json:"text"`
	SourceText string  `json:"source_text"`
	Start      float64 `json:"start"`
	End        float64 `json:"end"`
	DurationMs float64 `json:"duration_ms"`
}
