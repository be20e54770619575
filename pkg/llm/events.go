// Package llm provides transcript correction and translation backed by
// OpenAI models. A realtime WebSocket session is preferred for latency;
// the Chat Completions API is the fallback. Results are memoized in an
// LRU cache keyed by the full request context.
package llm

import "fmt"

// Event type identifiers on the realtime wire.
const (
	EventTypeSessionUpdate  = "session.update"
	EventTypeResponseCreate = "response.create"
	EventTypeResponseDone   = "response.done"
	EventTypeError          = "error"
)

// SessionConfig is the session-scoped configuration sent after connecting.
type SessionConfig struct {
	Type             string   `json:"type"`
	OutputModalities []string `json:"output_modalities"`
}

// SessionUpdateEvent switches the realtime session to text-only output.
type SessionUpdateEvent struct {
	Type    string        `json:"type"`
	Session SessionConfig `json:"session"`
}

// NewSessionUpdate builds the session.update sent once per connection.
func NewSessionUpdate() SessionUpdateEvent {
	return SessionUpdateEvent{
		Type: EventTypeSessionUpdate,
		Session: SessionConfig{
			Type:             "realtime",
			OutputModalities: []string{"text"},
		},
	}
}

// ContentPart is one piece of message content on the realtime wire.
type ContentPart struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// InputItem is one conversation item attached to a response request.
type InputItem struct {
	Type    string        `json:"type"`
	Role    string        `json:"role"`
	Content []ContentPart `json:"content"`
}

// ResponseConfig parameterizes a response.create request.
type ResponseConfig struct {
	// Conversation "none" keeps the turn out of the session's implicit
	// conversation, so requests cannot leak context into each other.
	Conversation     string            `json:"conversation,omitempty"`
	Metadata         map[string]string `json:"metadata,omitempty"`
	OutputModalities []string          `json:"output_modalities,omitempty"`
	Instructions     string            `json:"instructions,omitempty"`
	Input            []InputItem       `json:"input,omitempty"`
}

// ResponseCreateEvent asks the realtime API for one model turn.
type ResponseCreateEvent struct {
	Type     string         `json:"type"`
	Response ResponseConfig `json:"response"`
}

// NewTextRequest builds an isolated single-turn text request. requestID is
// echoed back in response metadata and is the only way to pair a
// response.done with its request on the shared socket.
func NewTextRequest(requestID, instructions, inputText string) ResponseCreateEvent {
	return ResponseCreateEvent{
		Type: EventTypeResponseCreate,
		Response: ResponseConfig{
			Conversation:     "none",
			Metadata:         map[string]string{"request_id": requestID},
			OutputModalities: []string{"text"},
			Instructions:     instructions,
			Input: []InputItem{
				{
					Type: "message",
					Role: "user",
					Content: []ContentPart{
						{Type: "input_text", Text: inputText},
					},
				},
			},
		},
	}
}

// ErrorDetail describes a server-reported error event.
type ErrorDetail struct {
	Type    string `json:"type,omitempty"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

func (e *ErrorDetail) String() string {
	if e == nil {
		return "realtime error"
	}
	return fmt.Sprintf("type=%s code=%s message=%s", e.Type, e.Code, e.Message)
}

// OutputItem is one generated conversation item in a completed response.
type OutputItem struct {
	Type    string        `json:"type,omitempty"`
	Role    string        `json:"role,omitempty"`
	Content []ContentPart `json:"content,omitempty"`
}

// Response is the payload of a response.done event.
type Response struct {
	ID       string            `json:"id,omitempty"`
	Status   string            `json:"status,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
	Output   []OutputItem      `json:"output,omitempty"`
}

// Text returns the first text content part in the response output, or ""
// when the response produced none.
func (r *Response) Text() string {
	if r == nil {
		return ""
	}
	for _, item := range r.Output {
		for _, part := range item.Content {
			if part.Text != "" {
				return part.Text
			}
		}
	}
	return ""
}

// RequestID returns the request correlation id from response metadata.
func (r *Response) RequestID() string {
	if r == nil {
		return ""
	}
	return r.Metadata["request_id"]
}

// ServerEvent is the envelope for every event read from the realtime
// socket. Only the fields the relay inspects are modeled; unknown event
// types are skipped by the reader.
type ServerEvent struct {
	Type     string       `json:"type"`
	EventID  string       `json:"event_id,omitempty"`
	Error    *ErrorDetail `json:"error,omitempty"`
	Response *Response    `json:"response,omitempty"`
}
