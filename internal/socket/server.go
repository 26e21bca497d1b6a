package socket

import (
	"io"
	"log/slog"
	"net"
	"os"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/shellrig/shellrig/internal/errors"
)

// Server listens on a named local socket and hands every accepted
// connection to a fresh handler channel produced by its factory.
//
// The server enables only when all five conditions hold: no existing
// listener, the post-startup phase has been reached (Ready), activation
// has been requested (SetActive), the path is non-empty, and a handler
// factory is set. The conditions are re-evaluated after every relevant
// property change; any unmet condition keeps the server dormant.
type Server struct {
	log *slog.Logger

	mu           sync.Mutex
	path         string
	activeTarget bool
	ready        bool
	handler      func() *Channel
	listener     net.Listener
	conns        []*Channel

	onActiveChanged func()
	onError         func(err error)
}

// NewServer creates a dormant server. A nil logger disables logging.
func NewServer(log *slog.Logger) *Server {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Server{log: log.With("component", "socket_server")}
}

// OnActiveChanged registers the callback fired when the listener comes
// up or goes down.
func (s *Server) OnActiveChanged(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.onActiveChanged = fn
}

// OnError registers the callback for listen failures and rejected
// handler factory output.
func (s *Server) OnError(fn func(err error)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.onError = fn
}

// Active reports whether the listener is up.
func (s *Server) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.listener != nil
}

// Connections returns the number of currently accepted handler channels.
func (s *Server) Connections() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.conns)
}

// Path returns the endpoint path.
func (s *Server) Path() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.path
}

// Ready marks the post-startup phase as reached. It is idempotent and
// may enable the server when it was the last unmet condition.
func (s *Server) Ready() {
	s.mu.Lock()

	if s.ready {
		s.mu.Unlock()

		return
	}

	s.ready = true
	s.maybeEnableLocked()
}

// SetPath sets the endpoint path and re-evaluates enablement.
func (s *Server) SetPath(path string) {
	s.mu.Lock()

	if s.path == path {
		s.mu.Unlock()

		return
	}

	s.path = path
	s.maybeEnableLocked()
}

// SetHandler sets the handler factory and re-evaluates enablement. The
// factory must produce a fresh, unconnected Channel per call; ownership
// of the produced channel transfers to the server on successful use.
func (s *Server) SetHandler(factory func() *Channel) {
	s.mu.Lock()

	s.handler = factory
	s.maybeEnableLocked()
}

// SetActive sets the activation target. True enables the server once
// all other conditions hold; false disables it, tearing down all
// accepted handlers and deleting the backing socket file.
func (s *Server) SetActive(active bool) {
	s.mu.Lock()

	s.activeTarget = active

	if active == (s.listener != nil) {
		s.mu.Unlock()

		return
	}

	if active {
		s.maybeEnableLocked()

		return
	}

	s.disableLocked()
}

// activatableLocked checks the five enablement conditions.
func (s *Server) activatableLocked() bool {
	return s.listener == nil && s.ready && s.activeTarget && s.path != "" && s.handler != nil
}

// maybeEnableLocked enables the server if all conditions hold. It
// releases the lock in every path.
func (s *Server) maybeEnableLocked() {
	if !s.activatableLocked() {
		s.mu.Unlock()

		return
	}

	path := s.path

	listener, err := net.Listen("unix", path)
	if err != nil && staleSocketFile(path) {
		// A leftover socket file from a crashed server blocks the bind.
		// Nothing is accepting on it, so reclaim the path.
		s.log.Debug("removing stale socket file", "path", path)

		if rmErr := os.Remove(path); rmErr == nil {
			listener, err = net.Listen("unix", path)
		}
	}

	if err != nil {
		// The activation request is consumed; the server stays dormant
		// until the caller requests activation again.
		s.activeTarget = false
		onError := s.onError
		s.mu.Unlock()

		s.log.Warn("could not start socket server", "path", path, "error", err)

		if onError != nil {
			onError(&errors.TransientIOError{Op: "listen " + path, Err: err})
		}

		return
	}

	s.listener = listener
	s.activeTarget = false
	onActive := s.onActiveChanged
	s.mu.Unlock()

	s.log.Info("socket server listening", "path", path)

	if onActive != nil {
		onActive()
	}

	go s.acceptLoop(listener)
}

// disableLocked closes the listener, schedules all accepted handlers
// for teardown, and deletes the backing socket file if present. It
// releases the lock.
func (s *Server) disableLocked() {
	wasActive := s.listener != nil
	listener := s.listener
	conns := s.conns
	path := s.path
	s.listener = nil
	s.conns = nil
	onActive := s.onActiveChanged
	s.mu.Unlock()

	if listener != nil {
		_ = listener.Close()
	}

	for _, ch := range conns {
		ch.SetTargetConnected(false)
	}

	if path != "" {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			s.log.Warn("failed to delete socket file", "path", path, "error", err)
		}
	}

	if wasActive {
		s.log.Info("socket server stopped", "path", path)

		if onActive != nil {
			onActive()
		}
	}
}

// staleSocketFile reports whether path is a socket file no server is
// accepting on. A live server answers the probe dial; a file left
// behind by a crash refuses it.
func staleSocketFile(path string) bool {
	info, err := os.Stat(path)
	if err != nil || info.Mode()&os.ModeSocket == 0 {
		return false
	}

	conn, err := net.DialTimeout("unix", path, time.Second)
	if err == nil {
		_ = conn.Close()

		return false
	}

	return true
}

// acceptLoop accepts inbound connections until the listener closes.
func (s *Server) acceptLoop(listener net.Listener) {
	for {
		conn, err := listener.Accept()
		if err != nil {
			s.log.Debug("accept loop ended", "error", err)

			return
		}

		s.handleConnection(conn)
	}
}

// handleConnection asks the factory for a handler channel and hands it
// the accepted connection. Invalid factory output is a configuration
// error: the connection is dropped and the object discarded, but the
// server keeps listening.
func (s *Server) handleConnection(conn net.Conn) {
	id := ulid.Make().String()

	s.mu.Lock()
	factory := s.handler
	onError := s.onError
	s.mu.Unlock()

	var ch *Channel
	if factory != nil {
		ch = factory()
	}

	if ch == nil {
		s.log.Warn("handler factory returned nil, dropping connection", "conn", id)
		_ = conn.Close()

		if onError != nil {
			onError(&errors.ConfigurationError{Err: errors.ErrNilHandler})
		}

		return
	}

	if err := ch.Adopt(conn); err != nil {
		s.log.Warn("handler channel rejected connection, dropping it", "conn", id, "error", err)
		_ = conn.Close()

		if onError != nil {
			onError(&errors.ConfigurationError{Err: errors.ErrHandlerConnected})
		}

		return
	}

	s.mu.Lock()

	if s.listener == nil {
		// Disabled while this connection was being accepted.
		s.mu.Unlock()
		ch.SetTargetConnected(false)

		return
	}

	s.conns = append(s.conns, ch)
	s.mu.Unlock()

	s.log.Debug("accepted connection", "conn", id)
}
