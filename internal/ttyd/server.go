package ttyd

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Server is the top-level object: it owns the HTTP listener, the service
// registry, and the set of currently connected clients. There is no 10ms
// poll-and-dispatch loop here - accepting a connection spawns a goroutine
// for it and the stdlib's net/http accept loop does the rest, the pure
// event-driven design spec.md's own Design Notes §9 says is equally
// correct to the original's libwebsockets service loop.
type Server struct {
	config   Config
	services *ServiceRegistry
	clients  *safeClientRegistry
	logger   *slog.Logger

	httpServer *http.Server

	mu           sync.Mutex
	everServed   bool
	shuttingDown bool
}

// NewServer builds a Server ready to ListenAndServe. logger may be nil, in
// which case slog.Default() is used.
func NewServer(cfg Config, services *ServiceRegistry, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.WSPath == "" {
		cfg.WSPath = "/ws"
	}
	s := &Server{
		config:   cfg,
		services: services,
		clients:  newSafeClientRegistry(),
		logger:   logger,
	}
	s.httpServer = &http.Server{
		Handler: s.routes(),
	}
	return s
}

// ListenAndServe starts serving on addr (host:port, or a path prefixed with
// "unix:" for a UNIX domain socket).
func (s *Server) ListenAndServe(addr string) error {
	ln, err := s.listen(addr)
	if err != nil {
		return fmt.Errorf("ttyd: listen on %s: %w", addr, err)
	}
	s.logger.Info("listening", "address", addr)
	err = s.httpServer.Serve(ln)
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

func (s *Server) listen(addr string) (net.Listener, error) {
	if len(addr) > 5 && addr[:5] == "unix:" {
		return net.Listen("unix", addr[5:])
	}
	return net.Listen("tcp", addr)
}

// Shutdown marks the server as shutting down, stops accepting new
// connections, and force-closes every connected client with a going-away
// frame, matching server.c's shutdown path (iterate clients, close each)
// per SPEC_FULL.md §6.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.shuttingDown = true
	s.mu.Unlock()

	for _, client := range s.clients.Snapshot() {
		client.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(time.Second))
		client.conn.Close()
	}

	return s.httpServer.Shutdown(ctx)
}

// onClientClosed is called by Client.teardown to remove itself from the
// registry and, under --once, trigger a shutdown once the last client has
// disconnected - matching protocol.c's LWS_CALLBACK_CLOSED handling of
// server->once.
func (s *Server) onClientClosed(c *Client) {
	s.clients.WithWrite(func(reg *clientRegistry) {
		reg.remove(c.ID)
	})

	if s.config.Once {
		var remaining int
		s.clients.WithRead(func(reg *clientRegistry) { remaining = reg.count() })
		if remaining == 0 {
			s.logger.Info("exiting due to --once option")
			go s.Shutdown(context.Background())
		}
	}
}
