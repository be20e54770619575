package llm

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// DefaultRealtimeURL is the production realtime API endpoint.
const DefaultRealtimeURL = "wss://api.openai.com/v1/realtime"

// RealtimeConfig configures the realtime transport.
type RealtimeConfig struct {
	APIKey string
	Model  string
	// URL overrides the realtime endpoint, mainly for tests and gateways.
	// Defaults to DefaultRealtimeURL.
	URL string
}

// RealtimeClient multiplexes independent single-turn text requests over one
// realtime API socket. A mutex makes requests single-flight: the whole
// send/receive exchange holds the connection, so responses can never be
// attributed to the wrong caller even though the socket is shared.
//
// The connection is dialed lazily and redialed after I/O failures. A
// server-reported error event fails only the request that hit it; the
// socket stays usable.
type RealtimeClient struct {
	cfg RealtimeConfig

	mu   sync.Mutex
	conn *websocket.Conn
}

// NewRealtimeClient creates a client for the given model. No connection is
// opened until the first request.
func NewRealtimeClient(cfg RealtimeConfig) *RealtimeClient {
	if cfg.URL == "" {
		cfg.URL = DefaultRealtimeURL
	}
	return &RealtimeClient{cfg: cfg}
}

// Request performs one isolated model turn and returns the response text.
// Requests are serialized; concurrent callers queue on the internal mutex.
func (c *RealtimeClient) Request(ctx context.Context, instructions, inputText string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.ensureConnection(ctx); err != nil {
		return "", err
	}

	if deadline, ok := ctx.Deadline(); ok {
		c.conn.SetReadDeadline(deadline)
		c.conn.SetWriteDeadline(deadline)
	} else {
		c.conn.SetReadDeadline(time.Time{})
		c.conn.SetWriteDeadline(time.Time{})
	}

	requestID := newRequestID()
	event := NewTextRequest(requestID, instructions, inputText)

	data, err := marshalNoEscape(event)
	if err != nil {
		return "", fmt.Errorf("encode realtime request: %w", err)
	}
	if err := c.conn.WriteMessage(websocket.TextMessage, []byte(data)); err != nil {
		c.dropConnection()
		return "", fmt.Errorf("realtime send failed: %w", err)
	}

	for {
		var ev ServerEvent
		if err := c.conn.ReadJSON(&ev); err != nil {
			c.dropConnection()
			return "", fmt.Errorf("realtime read failed: %w", err)
		}

		switch ev.Type {
		case EventTypeError:
			// Protocol-level failure of this request; the socket survives.
			return "", fmt.Errorf("realtime api error: %s", ev.Error.String())
		case EventTypeResponseDone:
			if ev.Response.RequestID() != requestID {
				// A turn some earlier caller abandoned; skip it.
				continue
			}
			return ev.Response.Text(), nil
		}
	}
}

// Close tears down the connection if one is open.
func (c *RealtimeClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dropConnection()
	return nil
}

// Connected reports whether a socket is currently open.
func (c *RealtimeClient) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

// ensureConnection dials and configures the realtime session if no socket
// is open. Callers must hold c.mu.
func (c *RealtimeClient) ensureConnection(ctx context.Context) error {
	if c.conn != nil {
		return nil
	}

	if c.cfg.APIKey == "" {
		return fmt.Errorf("OPENAI_API_KEY not set for realtime")
	}

	endpoint := fmt.Sprintf("%s?model=%s", c.cfg.URL, url.QueryEscape(c.cfg.Model))
	header := http.Header{}
	header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, endpoint, header)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("realtime dial failed (status %d): %w", resp.StatusCode, err)
		}
		return fmt.Errorf("realtime dial failed: %w", err)
	}

	// Text-only output for every turn on this session.
	if err := conn.WriteJSON(NewSessionUpdate()); err != nil {
		conn.Close()
		return fmt.Errorf("realtime session setup failed: %w", err)
	}

	c.conn = conn
	log.Printf("[Realtime] Connected (model=%s)", c.cfg.Model)
	return nil
}

// dropConnection closes and forgets the socket so the next request
// redials. Callers must hold c.mu.
func (c *RealtimeClient) dropConnection() {
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
}

// newRequestID returns a 128-bit random id as 32 hex characters.
func newRequestID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}
