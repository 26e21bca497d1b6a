package shellrig

import "github.com/shellrig/shellrig/internal/socket"

// Socket is one client-side connection to a named local socket. It
// tracks caller intent (SetTargetConnected, SetPath) separately from
// actual connection state, reconciling asynchronously.
type Socket = socket.Channel

// SocketServer listens on a named local socket and spawns a handler
// Socket per accepted peer. It enables only once all five conditions
// hold: no existing listener, Ready called, activation requested,
// non-empty path, and a handler factory set.
type SocketServer = socket.Server

// NewSocket creates a disconnected socket.
func NewSocket(opts ...Option) *Socket {
	return socket.NewChannel(applyOptions(opts).logger)
}

// NewSocketServer creates a dormant socket server.
func NewSocketServer(opts ...Option) *SocketServer {
	return socket.NewServer(applyOptions(opts).logger)
}
