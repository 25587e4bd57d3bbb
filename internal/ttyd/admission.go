package ttyd

import (
	"log/slog"
	"net"
	"net/http"
	"strings"
)

// admissionState is the per-server counters CheckAdmission reads. It is a
// narrow view onto Server so admission logic can be tested without a full
// Server.
type admissionState struct {
	once        bool
	everServed  bool
	maxClients  int
	clientCount int
	checkOrigin bool

	// path is the request path being admitted; it must equal wsPath, the
	// server's single fixed WebSocket endpoint. Service selection happens
	// later, via JSON_DATA.ServicePath, not via the upgrade path.
	path   string
	wsPath string
}

// CheckAdmission runs the ordered refusal checks from callback_tty's
// LWS_CALLBACK_FILTER_PROTOCOL_CONNECTION case in protocol.c: once-mode
// already-served, then max-clients, then unknown path, then (if enabled)
// origin mismatch. Each check short-circuits and logs its reason, matching
// the original's per-branch lwsl_warn before refusing the upgrade.
func CheckAdmission(r *http.Request, st admissionState, logger *slog.Logger) error {
	if st.once && st.everServed {
		logger.Warn("refusing connection: once mode already served a client")
		return admissionRefusedError("once", http.StatusForbidden)
	}
	if st.maxClients > 0 && st.clientCount >= st.maxClients {
		logger.Warn("refusing connection: max clients reached", "max_clients", st.maxClients)
		return admissionRefusedError("max_clients", http.StatusServiceUnavailable)
	}
	if st.path != st.wsPath {
		logger.Warn("refusing connection: request path is not the websocket path", "path", st.path, "ws_path", st.wsPath)
		return admissionRefusedError("path", http.StatusNotFound)
	}
	if st.checkOrigin {
		if err := checkOrigin(r); err != nil {
			logger.Warn("refusing connection: origin mismatch", "origin", r.Header.Get("Origin"))
			return admissionRefusedError("origin", http.StatusForbidden)
		}
	}
	return nil
}

// checkOrigin compares the Origin header's host[:port] against the
// request's Host, grounded on protocol.c's check_host_origin: ports 80 and
// 443 are implicit and omitted from the comparison.
func checkOrigin(r *http.Request) error {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return admissionRefusedError("missing origin", http.StatusForbidden)
	}

	u, err := splitOrigin(origin)
	if err != nil {
		return admissionRefusedError("unparseable origin", http.StatusForbidden)
	}

	if !strings.EqualFold(u, r.Host) {
		return admissionRefusedError("host mismatch", http.StatusForbidden)
	}
	return nil
}

func splitOrigin(origin string) (string, error) {
	rest := origin
	if i := strings.Index(rest, "://"); i >= 0 {
		rest = rest[i+3:]
	}
	if i := strings.IndexByte(rest, '/'); i >= 0 {
		rest = rest[:i]
	}

	host, port, err := net.SplitHostPort(rest)
	if err != nil {
		// No explicit port: the whole remainder is the host.
		return rest, nil
	}
	if port == "80" || port == "443" {
		return host, nil
	}
	return net.JoinHostPort(host, port), nil
}

// CheckAuth enforces HTTP Basic authentication, grounded on http.c's
// check_auth: if no credential is configured, every request passes; else
// the base64 text following "Basic " in the Authorization header must
// match the configured credential exactly.
func CheckAuth(r *http.Request, credential string) bool {
	if credential == "" {
		return true
	}
	hdr := r.Header.Get("Authorization")
	if hdr == "" {
		return false
	}
	fields := strings.Fields(hdr)
	if len(fields) != 2 || !strings.EqualFold(fields[0], "Basic") {
		return false
	}
	return fields[1] == credential
}

// writeUnauthorized sends the 401 + WWW-Authenticate challenge, grounded on
// http.c's check_auth failure branch.
func writeUnauthorized(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", `Basic realm="ttyhub"`)
	w.WriteHeader(http.StatusUnauthorized)
}

// CheckAuthToken validates the in-band AuthToken JSON field sent with
// JSON_DATA, grounded on protocol.c's JSON_DATA handling: when a credential
// is configured, the token must match it exactly before any service may be
// started.
func CheckAuthToken(token, credential string) bool {
	if credential == "" {
		return true
	}
	return token == credential
}
