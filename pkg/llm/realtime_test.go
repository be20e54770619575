package llm

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeUpstream is a minimal realtime API endpoint. Each response.create is
// handed to respond, which decides what events to write back.
type fakeUpstream struct {
	server   *httptest.Server
	upgrader websocket.Upgrader

	// respond handles one response.create. Required.
	respond func(conn *websocket.Conn, ev ResponseCreateEvent)

	mu           sync.Mutex
	dials        int
	auth         string
	model        string
	sessionSetup []SessionUpdateEvent
	requests     []ResponseCreateEvent
}

func newFakeUpstream(t *testing.T, respond func(conn *websocket.Conn, ev ResponseCreateEvent)) *fakeUpstream {
	t.Helper()

	f := &fakeUpstream{respond: respond}
	f.server = httptest.NewServer(http.HandlerFunc(f.handle))
	t.Cleanup(f.server.Close)
	return f
}

// URL returns the ws:// form of the server address.
func (f *fakeUpstream) URL() string {
	return "ws" + strings.TrimPrefix(f.server.URL, "http")
}

func (f *fakeUpstream) handle(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.dials++
	f.auth = r.Header.Get("Authorization")
	f.model = r.URL.Query().Get("model")
	f.mu.Unlock()

	conn, err := f.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	// The first frame after connecting is always session.update.
	var setup SessionUpdateEvent
	if err := conn.ReadJSON(&setup); err != nil {
		return
	}
	f.mu.Lock()
	f.sessionSetup = append(f.sessionSetup, setup)
	f.mu.Unlock()

	for {
		var ev ResponseCreateEvent
		if err := conn.ReadJSON(&ev); err != nil {
			return
		}
		f.mu.Lock()
		f.requests = append(f.requests, ev)
		f.mu.Unlock()
		f.respond(conn, ev)
	}
}

func (f *fakeUpstream) dialCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.dials
}

func (f *fakeUpstream) handshake() (auth, model string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.auth, f.model
}

func (f *fakeUpstream) setups() []SessionUpdateEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]SessionUpdateEvent(nil), f.sessionSetup...)
}

func (f *fakeUpstream) recorded() []ResponseCreateEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]ResponseCreateEvent(nil), f.requests...)
}

// respondDone writes a completed response.done carrying the given text,
// correlated to requestID.
func respondDone(conn *websocket.Conn, requestID, text string) {
	conn.WriteJSON(ServerEvent{
		Type: EventTypeResponseDone,
		Response: &Response{
			Status:   "completed",
			Metadata: map[string]string{"request_id": requestID},
			Output: []OutputItem{
				{
					Type: "message",
					Role: "assistant",
					Content: []ContentPart{
						{Type: "output_text", Text: text},
					},
				},
			},
		},
	})
}

func newTestClient(f *fakeUpstream) *RealtimeClient {
	return NewRealtimeClient(RealtimeConfig{
		APIKey: "test-key",
		Model:  "gpt-realtime",
		URL:    f.URL(),
	})
}

// echoInput extracts the input_text of the request so responses can prove
// which request they answered.
func echoInput(ev ResponseCreateEvent) string {
	for _, item := range ev.Response.Input {
		for _, part := range item.Content {
			if part.Type == "input_text" {
				return part.Text
			}
		}
	}
	return ""
}

func TestRealtimeClient_RequestResponse(t *testing.T) {
	f := newFakeUpstream(t, func(conn *websocket.Conn, ev ResponseCreateEvent) {
		respondDone(conn, ev.Response.Metadata["request_id"], "echo:"+echoInput(ev))
	})
	c := newTestClient(f)
	defer c.Close()

	text, err := c.Request(context.Background(), "fix things", "payload-1")
	require.NoError(t, err)
	assert.Equal(t, "echo:payload-1", text)

	// Connection handshake carried auth and model.
	auth, model := f.handshake()
	assert.Equal(t, "Bearer test-key", auth)
	assert.Equal(t, "gpt-realtime", model)

	// The session was switched to text-only output before any request.
	setups := f.setups()
	require.Len(t, setups, 1)
	assert.Equal(t, EventTypeSessionUpdate, setups[0].Type)
	assert.Equal(t, "realtime", setups[0].Session.Type)
	assert.Equal(t, []string{"text"}, setups[0].Session.OutputModalities)

	// The request is an isolated, correlated, text-only turn.
	recorded := f.recorded()
	require.Len(t, recorded, 1)
	req := recorded[0].Response
	assert.Equal(t, "none", req.Conversation)
	assert.Equal(t, []string{"text"}, req.OutputModalities)
	assert.Equal(t, "fix things", req.Instructions)
	assert.Regexp(t, regexp.MustCompile(`^[0-9a-f]{32}$`), req.Metadata["request_id"])
	require.Len(t, req.Input, 1)
	assert.Equal(t, "message", req.Input[0].Type)
	assert.Equal(t, "user", req.Input[0].Role)
	require.Len(t, req.Input[0].Content, 1)
	assert.Equal(t, "input_text", req.Input[0].Content[0].Type)
}

func TestRealtimeClient_ReusesConnection(t *testing.T) {
	f := newFakeUpstream(t, func(conn *websocket.Conn, ev ResponseCreateEvent) {
		respondDone(conn, ev.Response.Metadata["request_id"], "ok")
	})
	c := newTestClient(f)
	defer c.Close()

	for i := 0; i < 3; i++ {
		_, err := c.Request(context.Background(), "i", fmt.Sprintf("p%d", i))
		require.NoError(t, err)
	}

	assert.Equal(t, 1, f.dialCount(), "every request should share one socket")

	// Distinct requests carry distinct correlation ids.
	ids := map[string]bool{}
	for _, req := range f.recorded() {
		ids[req.Response.Metadata["request_id"]] = true
	}
	assert.Len(t, ids, 3)
}

func TestRealtimeClient_SkipsForeignResponses(t *testing.T) {
	f := newFakeUpstream(t, func(conn *websocket.Conn, ev ResponseCreateEvent) {
		// A stale turn from some earlier, abandoned exchange arrives first.
		respondDone(conn, "ffffffffffffffffffffffffffffffff", "wrong answer")
		respondDone(conn, ev.Response.Metadata["request_id"], "right answer")
	})
	c := newTestClient(f)
	defer c.Close()

	text, err := c.Request(context.Background(), "i", "p")
	require.NoError(t, err)
	assert.Equal(t, "right answer", text)
}

func TestRealtimeClient_ErrorEventFailsRequestKeepsSocket(t *testing.T) {
	var failFirst sync.Once
	f := newFakeUpstream(t, func(conn *websocket.Conn, ev ResponseCreateEvent) {
		failed := false
		failFirst.Do(func() {
			conn.WriteJSON(ServerEvent{
				Type:  EventTypeError,
				Error: &ErrorDetail{Type: "invalid_request_error", Message: "bad turn"},
			})
			failed = true
		})
		if !failed {
			respondDone(conn, ev.Response.Metadata["request_id"], "recovered")
		}
	})
	c := newTestClient(f)
	defer c.Close()

	_, err := c.Request(context.Background(), "i", "p1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad turn")

	// The socket survived the protocol error and serves the next request.
	assert.True(t, c.Connected())

	text, err := c.Request(context.Background(), "i", "p2")
	require.NoError(t, err)
	assert.Equal(t, "recovered", text)
	assert.Equal(t, 1, f.dialCount(), "protocol errors must not burn the connection")
}

func TestRealtimeClient_RedialsAfterIOError(t *testing.T) {
	var killFirst sync.Once
	f := newFakeUpstream(t, func(conn *websocket.Conn, ev ResponseCreateEvent) {
		killed := false
		killFirst.Do(func() {
			conn.Close()
			killed = true
		})
		if !killed {
			respondDone(conn, ev.Response.Metadata["request_id"], "after redial")
		}
	})
	c := newTestClient(f)
	defer c.Close()

	_, err := c.Request(context.Background(), "i", "p1")
	require.Error(t, err)
	assert.False(t, c.Connected(), "dead sockets must be discarded")

	text, err := c.Request(context.Background(), "i", "p2")
	require.NoError(t, err)
	assert.Equal(t, "after redial", text)
	assert.Equal(t, 2, f.dialCount())
}

func TestRealtimeClient_ConcurrentCallersGetOwnResponses(t *testing.T) {
	f := newFakeUpstream(t, func(conn *websocket.Conn, ev ResponseCreateEvent) {
		respondDone(conn, ev.Response.Metadata["request_id"], "echo:"+echoInput(ev))
	})
	c := newTestClient(f)
	defer c.Close()

	const callers = 8
	results := make([]string, callers)
	errs := make([]error, callers)

	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			results[n], errs[n] = c.Request(context.Background(), "i", fmt.Sprintf("payload-%d", n))
		}(i)
	}
	wg.Wait()

	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, fmt.Sprintf("echo:payload-%d", i), results[i],
			"caller %d must receive its own response", i)
	}
	assert.Equal(t, 1, f.dialCount())
}

func TestRealtimeClient_ContextDeadline(t *testing.T) {
	f := newFakeUpstream(t, func(conn *websocket.Conn, ev ResponseCreateEvent) {
		// Never answer; the caller's deadline has to fire.
	})
	c := newTestClient(f)
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	_, err := c.Request(ctx, "i", "p")
	require.Error(t, err)
	assert.False(t, c.Connected())
}

func TestRealtimeClient_NoAPIKey(t *testing.T) {
	c := NewRealtimeClient(RealtimeConfig{Model: "gpt-realtime"})

	_, err := c.Request(context.Background(), "i", "p")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "OPENAI_API_KEY")
}

func TestNewRequestID_Format(t *testing.T) {
	seen := map[string]bool{}
	hex := regexp.MustCompile(`^[0-9a-f]{32}$`)
	for i := 0; i < 100; i++ {
		id := newRequestID()
		assert.Regexp(t, hex, id)
		assert.False(t, seen[id], "request ids must not repeat")
		seen[id] = true
	}
}
