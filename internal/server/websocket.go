package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/livetemplate/signup/internal/runtime"
	"github.com/livetemplate/signup/internal/view"
	"github.com/sirupsen/logrus"
)

const (
	writeWait      = 10 * time.Second
	maxMessageSize = 64 << 10
	maxQueuedErrs  = 16
)

// Outbound actions.
const (
	ActionRender = "render"
	ActionError  = "error"
)

// CheckOrigin is left nil so the upgrader rejects cross-origin sockets.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
}

// MessageEnvelope is a message from the page script.
type MessageEnvelope struct {
	Action string          `json:"action"`
	Data   json.RawMessage `json:"data,omitempty"`
}

// ServerMessage is a message to the page script.
type ServerMessage struct {
	Action   string `json:"action"`
	Revision uint64 `json:"revision"`
	HTML     string `json:"html,omitempty"`
	Error    string `json:"error,omitempty"`
}

// WebSocketHandler connects a browser to its mounted page.
type WebSocketHandler struct {
	server *Server
}

// ServeHTTP claims the page named by ?session=, or mounts a fresh one when
// the session is unknown or expired, and serves it until the socket closes.
func (h *WebSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s := h.server
	id := r.URL.Query().Get("session")
	page, ok := s.sessions.Claim(id)
	if !ok {
		page = s.NewPage()
		id = uuid.NewString()
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		page.Close()
		s.log.WithError(err).Debug("websocket upgrade failed")
		return
	}

	pc := newPageConn(conn, id, page, s.log.WithFields(logrus.Fields{
		"component": "ws",
		"session":   id,
	}))
	s.registerConnection(pc)
	defer s.unregisterConnection(pc)

	pc.serve()
}

// pageConn is one live page bound to one socket. Snapshots are coalesced
// into a single pending slot and written by one goroutine, so a slow client
// never holds up a transition and writes are never concurrent.
type pageConn struct {
	conn    *websocket.Conn
	session string
	page    *runtime.Controller
	log     *logrus.Entry

	mu      sync.Mutex
	pending *runtime.Snapshot
	errs    []string

	wake      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

func newPageConn(conn *websocket.Conn, session string, page *runtime.Controller, log *logrus.Entry) *pageConn {
	return &pageConn{
		conn:    conn,
		session: session,
		page:    page,
		log:     log,
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
}

func (c *pageConn) serve() {
	c.log.Debug("client connected")

	unsubscribe := c.page.Subscribe(c.offer)
	c.offer(c.page.Snapshot())

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		c.writeLoop()
	}()

	c.readLoop()

	unsubscribe()
	if err := c.page.Close(); err != nil {
		c.log.WithError(err).Warn("failed to close page")
	}
	c.close()
	<-writerDone
	c.log.Debug("client disconnected")
}

// close ends the connection. Safe to call more than once.
func (c *pageConn) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.conn.Close()
	})
}

func (c *pageConn) signal() {
	select {
	case c.wake <- struct{}{}:
	default:
	}
}

// offer queues snap for sending unless a newer one is already queued.
func (c *pageConn) offer(snap runtime.Snapshot) {
	c.mu.Lock()
	if c.pending == nil || snap.Revision > c.pending.Revision {
		c.pending = &snap
	}
	c.mu.Unlock()
	c.signal()
}

func (c *pageConn) reportError(msg string) {
	c.mu.Lock()
	if len(c.errs) < maxQueuedErrs {
		c.errs = append(c.errs, msg)
	}
	c.mu.Unlock()
	c.signal()
}

func (c *pageConn) readLoop() {
	c.conn.SetReadLimit(maxMessageSize)
	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				c.log.WithError(err).Warn("unexpected close")
			}
			return
		}
		c.handleMessage(message)
	}
}

func (c *pageConn) handleMessage(message []byte) {
	var envelope MessageEnvelope
	if err := json.Unmarshal(message, &envelope); err != nil {
		c.log.WithError(err).Warn("failed to parse message")
		c.reportError("malformed message")
		return
	}

	data := make(map[string]interface{})
	if len(envelope.Data) > 0 {
		if err := json.Unmarshal(envelope.Data, &data); err != nil {
			c.log.WithError(err).Warn("failed to parse action data")
			c.reportError(fmt.Sprintf("malformed data for %q", envelope.Action))
			return
		}
	}

	err := c.page.HandleAction(envelope.Action, data)
	switch {
	case err == nil:
	case errors.Is(err, runtime.ErrSubmitDisabled):
		c.log.Debug("submit ignored while disabled")
	default:
		c.log.WithError(err).WithField("action", envelope.Action).Warn("action failed")
		c.reportError(err.Error())
	}
}

func (c *pageConn) writeLoop() {
	var sent uint64
	first := true
	for {
		select {
		case <-c.done:
			return
		case <-c.wake:
		}

		c.mu.Lock()
		snap := c.pending
		errs := c.errs
		c.pending = nil
		c.errs = nil
		c.mu.Unlock()

		for _, e := range errs {
			if err := c.write(ServerMessage{Action: ActionError, Revision: sent, Error: e}); err != nil {
				c.close()
				return
			}
		}
		if snap == nil || (!first && snap.Revision <= sent) {
			continue
		}

		html, err := view.FragmentString(c.session, *snap)
		if err != nil {
			c.log.WithError(err).Error("failed to render page")
			continue
		}
		if err := c.write(ServerMessage{Action: ActionRender, Revision: snap.Revision, HTML: html}); err != nil {
			c.close()
			return
		}
		sent = snap.Revision
		first = false
	}
}

func (c *pageConn) write(msg ServerMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		c.log.WithError(err).Debug("failed to send message")
		return err
	}
	if c.log.Logger.IsLevelEnabled(logrus.TraceLevel) {
		c.log.Tracef("sent %s rev=%d", msg.Action, msg.Revision)
	}
	return nil
}
