package ttyd

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"
)

const defaultIndexHTML = `<!DOCTYPE html>
<html>
<head><title>ttyhub</title></head>
<body><div id="terminal"></div><script src="auth_token.js"></script></body>
</html>`

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true }, // origin is enforced in CheckAdmission
}

// routes wires the handlers named in SPEC_FULL.md §2 C6, one per branch of
// the original's callback_http in http.c.
func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleRoot)
	return mux
}

// handleRoot is the single entry point for every request, mirroring
// callback_http's single LWS_CALLBACK_HTTP case which dispatches on the
// request path internally rather than via separate registered routes.
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if !CheckAuth(r, s.config.Credential) {
		writeUnauthorized(w)
		return
	}

	path := r.URL.Path

	switch {
	case strings.HasSuffix(path, "/auth_token.js") && s.services.MatchesDirectory(path):
		s.serveAuthTokenJS(w)
		return
	case strings.HasSuffix(path, "/qr.png"):
		s.serveQRCode(w, r, path)
		return
	case path == s.config.WSPath:
		if !websocket.IsWebSocketUpgrade(r) {
			http.NotFound(w, r)
			return
		}
		s.serveWebSocket(w, r)
		return
	}

	if _, ok := s.services.Resolve(path); !ok {
		http.NotFound(w, r)
		return
	}

	if r.URL.Query().Get("q") == "config" || strings.Contains(r.URL.RawQuery, "q=config") {
		s.serveConfigJSON(w, path)
		return
	}

	s.serveIndex(w, r)
}

// serveAuthTokenJS matches http.c's n = server->credential != NULL ?
// sprintf(...) : 0 branch: an empty body when no credential is set, the
// token literal otherwise.
func (s *Server) serveAuthTokenJS(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/javascript")
	if s.config.Credential == "" {
		return
	}
	fmt.Fprintf(w, "var tty_auth_token = '%s';", s.config.Credential)
}

// serveConfigJSON matches http.c's "?q=config" branch: a JSON object with
// the WS path relative to the requesting page (get_ws_relative_path) and
// the service path itself.
func (s *Server) serveConfigJSON(w http.ResponseWriter, requestPath string) {
	body, _ := json.Marshal(map[string]string{
		"socketPath": relativeWSPath(requestPath, s.config.WSPath),
		"service":    requestPath,
	})
	w.Header().Set("Content-Type", "application/json")
	w.Write(body)
}

// relativeWSPath computes wsPath relative to requestPath, matching
// get_ws_relative_path in http.c: one "../" per path segment after the
// first, then the fixed WS path itself - the WS endpoint lives at its own
// path, not at the service path requestPath names.
func relativeWSPath(requestPath, wsPath string) string {
	depth := strings.Count(strings.TrimPrefix(requestPath, "/"), "/")
	trimmedWS := strings.TrimPrefix(wsPath, "/")
	var b strings.Builder
	for i := 0; i < depth; i++ {
		b.WriteString("../")
	}
	b.WriteString(trimmedWS)
	return b.String()
}

func (s *Server) serveIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html")
	if s.config.IndexPath != "" {
		http.ServeFile(w, r, s.config.IndexPath)
		return
	}
	w.Write([]byte(defaultIndexHTML))
}

// serveQRCode renders a QR code of this service's absolute URL, the
// headless-server counterpart of the teacher's terminal QR rendering (see
// internal/qr and DESIGN.md).
func (s *Server) serveQRCode(w http.ResponseWriter, r *http.Request, path string) {
	servicePath := strings.TrimSuffix(strings.TrimSuffix(path, "qr.png"), "/")
	if _, ok := s.services.Resolve(servicePath); !ok {
		http.NotFound(w, r)
		return
	}

	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	url := fmt.Sprintf("%s://%s%s", scheme, r.Host, servicePath)

	png, err := qrPNG(url, 256)
	if err != nil {
		http.Error(w, "failed to render qr code", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Write(png)
}

// serveWebSocket runs the admission checks (once/max-clients/origin, plus
// the path-equals-WSPath check already guaranteed by the caller) and, on
// success, upgrades the connection and hands it to a new Client goroutine.
// Service selection happens later, via JSON_DATA.ServicePath.
func (s *Server) serveWebSocket(w http.ResponseWriter, r *http.Request) {
	var everServed bool
	var clientCount int
	s.clients.WithRead(func(reg *clientRegistry) {
		clientCount = reg.count()
	})
	s.mu.Lock()
	everServed = s.everServed
	s.mu.Unlock()

	st := admissionState{
		once:        s.config.Once,
		everServed:  everServed,
		maxClients:  s.config.MaxClients,
		clientCount: clientCount,
		checkOrigin: s.config.CheckOrigin,
		path:        r.URL.Path,
		wsPath:      s.config.WSPath,
	}
	if err := CheckAdmission(r, st, s.logger); err != nil {
		http.Error(w, err.Error(), http.StatusForbidden)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	// Cap the inbound buffer so a malicious peer cannot grow a single
	// message without bound; the C original has no such cap.
	conn.SetReadLimit(16 << 20)

	client := newClient(conn, r.RemoteAddr, s)
	client.pendingFragments = ParseFragments(r.URL.RawQuery)

	s.mu.Lock()
	s.everServed = true
	s.mu.Unlock()

	s.clients.WithWrite(func(reg *clientRegistry) {
		reg.add(client.ID, client)
	})

	go client.run()
}
