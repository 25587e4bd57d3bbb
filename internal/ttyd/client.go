package ttyd

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Wire protocol command bytes, grounded on protocol.c's callback_tty
// (LWS_CALLBACK_RECEIVE switch and send_initial_message). The client-to-
// server and server-to-client code spaces overlap numerically but are
// never ambiguous because each direction only ever parses its own bytes.
const (
	cmdInput          byte = '0' // client -> server: raw bytes for the PTY
	cmdResizeTerminal byte = '1' // client -> server: {"columns":N,"rows":N}
	cmdJSONData       byte = '{' // client -> server: {"AuthToken":...,"ServicePath":...}

	cmdOutput         byte = '0' // server -> client: raw PTY bytes follow
	cmdSetWindowTitle byte = '1' // server -> client: window title string
	cmdSetPreferences byte = '2' // server -> client: JSON preferences blob
	cmdSetReconnect   byte = '3' // server -> client: reconnect interval seconds
)

// connState is the handshake/connection lifecycle, independent of the PTY
// slab state tracked by ptyState. Named after spec.md §4.3.
type connState int

const (
	connEstablished connState = iota
	connInitializing
	connAuthWait
	connReady
	connClosed
)

// ptyState mirrors the original's STATE_INIT/STATE_READY/STATE_DONE PTY
// handoff states. With the channel-based handoff in ptysession.go there is
// no STATE_INIT distinction to track here beyond "not yet spawned".
type ptyState int

const (
	ptyNotSpawned ptyState = iota
	ptySpawned
)

// resizeMessage is the JSON payload of a RESIZE_TERMINAL frame.
type resizeMessage struct {
	Columns int `json:"columns"`
	Rows    int `json:"rows"`
}

// jsonDataMessage is the JSON payload of a JSON_DATA frame.
type jsonDataMessage struct {
	AuthToken   string `json:"AuthToken"`
	ServicePath string `json:"ServicePath"`
}

// Client is one accepted WebSocket connection and its associated PTY
// session. One goroutine (run) owns a Client end to end.
type Client struct {
	ID      string
	conn    *websocket.Conn
	server  *Server
	address string

	connState connState
	ptyState  ptyState

	authenticated bool
	session       *ptySession
	service       Service

	// pendingFragments carries the query-string fragments captured at
	// upgrade time (see http.go), since gorilla/websocket does not expose
	// the original request's raw URI args once the connection is
	// upgraded.
	pendingFragments []Fragment

	// pendingRows, pendingCols hold a RESIZE_TERMINAL seen before the PTY
	// session exists, so the client's initial size is honored at spawn
	// instead of discarded.
	pendingRows, pendingCols uint16

	writeMu chan struct{} // single-slot mutex so writer goroutines don't interleave frames

	logger *slog.Logger
}

func newClient(conn *websocket.Conn, address string, srv *Server) *Client {
	id := uuid.NewString()
	return &Client{
		ID:        id,
		conn:      conn,
		server:    srv,
		address:   address,
		connState: connEstablished,
		ptyState:  ptyNotSpawned,
		writeMu:   make(chan struct{}, 1),
		logger:    srv.logger.With("session_id", id, "address", address),
	}
}

// run drives the client's entire lifecycle: send the initial message
// sequence, then read and dispatch frames until the connection closes.
// Grounded on callback_tty's ESTABLISHED -> SERVER_WRITEABLE (initial_cmds)
// -> RECEIVE progression, reshaped from libwebsockets' callback re-arming
// into a single straight-line goroutine.
func (c *Client) run() {
	defer c.teardown()

	if err := c.sendInitialMessages(); err != nil {
		c.logger.Warn("failed to send initial messages", "error", err)
		return
	}
	c.connState = connInitializing

	if c.server.config.Credential != "" {
		c.connState = connAuthWait
	} else {
		c.authenticated = true
	}

	for {
		msgType, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		if msgType != websocket.BinaryMessage && msgType != websocket.TextMessage {
			continue
		}
		if len(data) == 0 {
			continue
		}
		if err := c.dispatch(data); err != nil {
			c.closeWithError(err)
			return
		}
	}
}

// sendInitialMessages writes SET_RECONNECT and SET_PREFERENCES. Unlike
// those two, SET_WINDOW_TITLE is not sent here: protocol.c's
// SERVER_WRITEABLE case only emits the title once client->argv != NULL,
// i.e. after JSON_DATA has resolved the command to run, so that send is
// deferred to sendWindowTitle, called from handleJSONData.
func (c *Client) sendInitialMessages() error {
	if err := c.writeFrame(cmdSetReconnect, []byte(strconv.Itoa(c.server.config.ReconnectSeconds))); err != nil {
		return err
	}
	prefs := c.server.config.Preferences
	if prefs == nil {
		prefs = json.RawMessage("{}")
	}
	return c.writeFrame(cmdSetPreferences, prefs)
}

// sendWindowTitle sends SET_WINDOW_TITLE once argv has been resolved,
// payload "<argv joined by spaces> (<hostname>)".
func (c *Client) sendWindowTitle(argv []string) error {
	host, err := os.Hostname()
	if err != nil {
		host = "ttyhub"
	}
	title := strings.Join(argv, " ") + " (" + host + ")"
	return c.writeFrame(cmdSetWindowTitle, []byte(title))
}

// dispatch handles one client-to-server frame, grounded on callback_tty's
// switch(command) in LWS_CALLBACK_RECEIVE.
func (c *Client) dispatch(data []byte) error {
	command := data[0]
	payload := data[1:]

	if c.server.config.Credential != "" && !c.authenticated && command != cmdJSONData {
		return policyViolationError(websocket.ClosePolicyViolation)
	}

	switch command {
	case cmdInput:
		return c.handleInput(payload)
	case cmdResizeTerminal:
		return c.handleResize(payload)
	case cmdJSONData:
		return c.handleJSONData(payload)
	default:
		c.logger.Warn("ignored unknown message type", "command", string(command))
		return nil
	}
}

func (c *Client) handleInput(payload []byte) error {
	if c.session == nil {
		return nil
	}
	if c.server.config.Readonly {
		return nil
	}
	if _, err := c.session.write(payload); err != nil {
		return fmt.Errorf("write input to pty: %w", err)
	}
	return nil
}

func (c *Client) handleResize(payload []byte) error {
	var msg resizeMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		c.logger.Warn("malformed resize message", "error", err)
		return nil
	}
	if msg.Rows <= 0 || msg.Columns <= 0 {
		return nil
	}
	if c.session == nil {
		// No PTY yet: remember the size and apply it at spawn time,
		// matching protocol.c's parse_window_size writing client->size
		// unconditionally ahead of thread_run_command.
		c.pendingRows = uint16(msg.Rows)
		c.pendingCols = uint16(msg.Columns)
		return nil
	}
	return c.session.resize(uint16(msg.Rows), uint16(msg.Columns))
}

// handleJSONData authenticates (if required), resolves the requested
// service, spawns the PTY and starts the writer loop. Grounded on
// protocol.c's JSON_DATA case.
func (c *Client) handleJSONData(payload []byte) error {
	if c.session != nil {
		// Already spawned; a second JSON_DATA is a no-op, matching the
		// original's "if (client->pid > 0) break;" guard.
		return nil
	}

	var msg jsonDataMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return missingFieldError("ServicePath", websocket.CloseUnsupportedData)
	}

	if c.server.config.Credential != "" {
		if CheckAuthToken(msg.AuthToken, c.server.config.Credential) {
			c.authenticated = true
		}
		if !c.authenticated {
			return policyViolationError(websocket.ClosePolicyViolation)
		}
	}

	if msg.ServicePath == "" {
		return blankFieldError("ServicePath", websocket.CloseUnsupportedData)
	}

	svc, ok := c.server.services.Resolve(msg.ServicePath)
	if !ok {
		return unknownServiceError(msg.ServicePath, websocket.CloseUnsupportedData)
	}
	c.service = svc
	c.connState = connReady

	fragments := c.pendingFragments
	argv := Substitute(svc.Argv, fragments)

	if err := c.sendWindowTitle(argv); err != nil {
		return err
	}

	rows, cols := uint16(24), uint16(80)
	if c.pendingRows > 0 && c.pendingCols > 0 {
		rows, cols = c.pendingRows, c.pendingCols
	}

	session := newPTYSession(rows, cols, c.logger)
	if err := session.spawn(spawnConfig{
		Argv:       argv,
		TermType:   c.server.config.TermType,
		ExitSignal: syscall.Signal(c.server.config.ExitSignalNum),
	}); err != nil {
		c.logger.Error("failed to spawn service", "error", err, "service", svc.Path)
		return unknownServiceError(msg.ServicePath, websocket.CloseInternalServerErr)
	}
	c.session = session
	c.ptyState = ptySpawned

	if c.server.config.TranscriptDir != "" {
		startTranscript(c.server.config.TranscriptDir, c.ID, session, c.logger)
	}

	go c.writeLoop()
	return nil
}

// writeLoop forwards PTY output to the client as OUTPUT frames until the
// session's output channel closes (child exited) or the connection drops.
func (c *Client) writeLoop() {
	for chunk := range c.session.output() {
		if err := c.writeFrame(cmdOutput, chunk); err != nil {
			return
		}
	}
	// Child exited: close normally, matching protocol.c's pty_len<=0 branch.
	c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(2*time.Second))
	c.conn.Close()
}

// writeFrame writes a single command byte followed by payload as one
// WebSocket binary message, serializing concurrent writers (writeLoop and
// the initial-message sender never run concurrently in practice, but the
// slot guards future callers).
func (c *Client) writeFrame(cmd byte, payload []byte) error {
	c.writeMu <- struct{}{}
	defer func() { <-c.writeMu }()

	frame := make([]byte, 0, len(payload)+1)
	frame = append(frame, cmd)
	frame = append(frame, payload...)
	return c.conn.WriteMessage(websocket.BinaryMessage, frame)
}

func (c *Client) closeWithError(err error) {
	code := websocket.CloseUnsupportedData
	if ce, ok := err.(*CloseError); ok {
		code = ce.Code
	}
	c.logger.Warn("closing client", "reason", err)
	c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(code, ""),
		time.Now().Add(2*time.Second))
}

func (c *Client) teardown() {
	c.connState = connClosed
	if c.session != nil {
		c.session.kill()
	}
	c.conn.Close()
	c.server.onClientClosed(c)
}
