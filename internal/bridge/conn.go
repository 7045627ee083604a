// Package bridge speaks the interview WebSocket protocol with the
// browser. The browser acts as the audio peripheral: it runs speech
// recognition and audio playback on command and reports results back.
// A Conn adapts that protocol to the capture.Recognizer and
// playback.Player interfaces so the rest of the server never touches
// the socket.
package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/ejanovitz/Rehearse/internal/capture"
	"github.com/ejanovitz/Rehearse/internal/interview"
	"github.com/ejanovitz/Rehearse/internal/tts"
)

// wsMessage is the single frame format used in both directions.
// Server to client types: "listen-start", "listen-stop", "play",
// "play-stop", "state", "navigate".
// Client to server types: "result", "listen-ended", "listen-error",
// "play-ended", "play-error", "stop-answer", "exit", "mute".
type wsMessage struct {
	Type string `json:"type"`
	// listen-start
	Lang string `json:"lang,omitempty"`
	// play / play-stop / play-ended / play-error
	ID    string `json:"id,omitempty"`
	MIME  string `json:"mime,omitempty"`
	Audio []byte `json:"audio,omitempty"`
	// state
	State *interview.Snapshot `json:"state,omitempty"`
	// navigate
	To string `json:"to,omitempty"`
	// result
	Text  string `json:"text,omitempty"`
	Final bool   `json:"final,omitempty"`
	// listen-error
	Code string `json:"code,omitempty"`
	// play-error
	Error string `json:"error,omitempty"`
	// mute
	Muted bool `json:"muted,omitempty"`
}

var errConnClosed = errors.New("connection closed")

// Conn wraps one upgraded interview socket. All writes go through a
// single mutex because the orchestrator, the playback session and the
// capture session write concurrently.
type Conn struct {
	ws   *websocket.Conn
	lang string

	writeMu sync.Mutex

	events chan capture.Event

	mu           sync.Mutex
	waiters      map[string]chan error
	onStopAnswer func()
	onExit       func()
	onMute       func(bool)

	closeOnce sync.Once
	closed    chan struct{}
}

func New(ws *websocket.Conn, lang string) *Conn {
	return &Conn{
		ws:      ws,
		lang:    lang,
		events:  make(chan capture.Event, 32),
		waiters: make(map[string]chan error),
		closed:  make(chan struct{}),
	}
}

// Bind registers the control callbacks invoked from the read loop.
// Must be called before ReadLoop.
func (c *Conn) Bind(onStopAnswer, onExit func(), onMute func(bool)) {
	c.mu.Lock()
	c.onStopAnswer = onStopAnswer
	c.onExit = onExit
	c.onMute = onMute
	c.mu.Unlock()
}

// ReadLoop consumes client frames until the socket closes. It must run
// in its own goroutine; teardown fails pending play waiters and closes
// the recognition event channel so downstream consumers unblock.
func (c *Conn) ReadLoop() {
	defer c.teardown()
	for {
		mt, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Printf("[bridge] read error: %v", err)
			}
			return
		}
		if mt != websocket.TextMessage {
			continue
		}
		var m wsMessage
		if err := json.Unmarshal(data, &m); err != nil {
			continue
		}
		c.handle(m)
	}
}

func (c *Conn) handle(m wsMessage) {
	switch strings.ToLower(m.Type) {
	case "result":
		c.pushEvent(capture.Event{Type: capture.EventResult, Text: m.Text, Final: m.Final})
	case "listen-ended":
		c.pushEvent(capture.Event{Type: capture.EventEnd})
	case "listen-error":
		c.pushEvent(capture.Event{Type: capture.EventError, Code: m.Code})
	case "play-ended":
		c.resolvePlay(m.ID, nil)
	case "play-error":
		c.resolvePlay(m.ID, fmt.Errorf("client playback: %s", m.Error))
	case "stop-answer":
		c.mu.Lock()
		fn := c.onStopAnswer
		c.mu.Unlock()
		if fn != nil {
			fn()
		}
	case "exit":
		c.mu.Lock()
		fn := c.onExit
		c.mu.Unlock()
		if fn != nil {
			fn()
		}
	case "mute":
		c.mu.Lock()
		fn := c.onMute
		c.mu.Unlock()
		if fn != nil {
			fn(m.Muted)
		}
	}
}

// Start implements capture.Recognizer by asking the browser to begin
// speech recognition.
func (c *Conn) Start() error {
	if err := c.send(wsMessage{Type: "listen-start", Lang: c.lang}); err != nil {
		return fmt.Errorf("send listen-start: %w", err)
	}
	return nil
}

// Stop implements capture.Recognizer. The browser answers with a
// listen-ended frame once recognition has wound down.
func (c *Conn) Stop() {
	if err := c.send(wsMessage{Type: "listen-stop"}); err != nil {
		log.Printf("[bridge] listen-stop send failed: %v", err)
	}
}

// Events implements capture.Recognizer.
func (c *Conn) Events() <-chan capture.Event { return c.events }

// Play implements playback.Player. The clip travels to the browser in
// one frame (audio is base64 inside the JSON) and Play blocks until
// the client reports play-ended or play-error, the context is
// cancelled, or the socket closes. On cancellation a play-stop frame
// tells the client to cut the audio.
func (c *Conn) Play(ctx context.Context, clip *tts.Clip) error {
	id := uuid.NewString()
	done := make(chan error, 1)
	c.mu.Lock()
	c.waiters[id] = done
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.waiters, id)
		c.mu.Unlock()
	}()

	if err := c.send(wsMessage{Type: "play", ID: id, MIME: clip.MIME, Audio: clip.Audio}); err != nil {
		return fmt.Errorf("send play frame: %w", err)
	}
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		if err := c.send(wsMessage{Type: "play-stop", ID: id}); err != nil {
			log.Printf("[bridge] play-stop send failed: %v", err)
		}
		return ctx.Err()
	case <-c.closed:
		return errConnClosed
	}
}

// PushState sends the current interview snapshot so the client can
// render door, state and transcript changes.
func (c *Conn) PushState(s interview.Snapshot) {
	if err := c.send(wsMessage{Type: "state", State: &s}); err != nil {
		log.Printf("[bridge] state push failed: %v", err)
	}
}

// Navigate tells the client to leave the interview screen.
func (c *Conn) Navigate(to string) {
	if err := c.send(wsMessage{Type: "navigate", To: to}); err != nil {
		log.Printf("[bridge] navigate send failed: %v", err)
	}
}

// Close shuts the socket. ReadLoop notices and runs teardown.
func (c *Conn) Close() {
	_ = c.ws.Close()
}

func (c *Conn) send(m wsMessage) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.ws.WriteJSON(m)
}

func (c *Conn) pushEvent(ev capture.Event) {
	select {
	case c.events <- ev:
	default:
		log.Printf("[bridge] dropping recognizer event, consumer is behind")
	}
}

func (c *Conn) resolvePlay(id string, err error) {
	c.mu.Lock()
	done, ok := c.waiters[id]
	if ok {
		delete(c.waiters, id)
	}
	c.mu.Unlock()
	if !ok {
		return
	}
	done <- err
}

func (c *Conn) teardown() {
	c.closeOnce.Do(func() { close(c.closed) })
	c.mu.Lock()
	for id, done := range c.waiters {
		delete(c.waiters, id)
		done <- errConnClosed
	}
	c.mu.Unlock()
	close(c.events)
}
