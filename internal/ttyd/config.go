// Package ttyd implements a server that shares a terminal session with
// browser clients over WebSocket: it authenticates connections, spawns a
// configured command under a PTY per client, and bridges bytes between the
// PTY and the client in both directions.
package ttyd

import "encoding/json"

// Config holds the server's runtime configuration. It is built by the CLI
// layer (cmd/ttyhub) from internal/config plus flags; the core package never
// loads a file or reads the environment itself.
type Config struct {
	// Credential is the pre-encoded base64 "user:pass" string compared
	// against both the HTTP Basic header and the in-band AuthToken field.
	// Empty disables authentication entirely.
	Credential string

	// WSPath is the single, server-wide fixed path at which the
	// bidirectional message connection is upgraded; registered service
	// paths never serve the upgrade directly (a client selects a service
	// via JSON_DATA.ServicePath once connected). Defaults to "/ws" when
	// empty, set by NewServer.
	WSPath string

	// TermType is the value exported as TERM in the spawned command's
	// environment (e.g. "xterm-256color").
	TermType string

	// ExitSignalNum is the signal sent to the child process on session
	// teardown. ExitSignalName is its human-readable form for logging.
	ExitSignalNum  int
	ExitSignalName string

	// ReconnectSeconds is advertised to the client as the SET_RECONNECT
	// initial message payload.
	ReconnectSeconds int

	// Readonly rejects INPUT frames from the client without closing the
	// connection.
	Readonly bool

	// CheckOrigin enables the Origin-header admission check.
	CheckOrigin bool

	// Once closes the listener after the first client disconnects.
	Once bool

	// MaxClients caps concurrent connections; 0 means unlimited.
	MaxClients int

	// IndexPath, if set, is served as the index page instead of the
	// embedded default.
	IndexPath string

	// Preferences is forwarded verbatim as the SET_PREFERENCES initial
	// message payload.
	Preferences json.RawMessage

	// TranscriptDir, if set, enables the supplemental plain-text
	// transcript recorder: each session's rendered screen is appended to
	// TranscriptDir/<session-id>.log.
	TranscriptDir string
}
