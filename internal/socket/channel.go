package socket

import (
	"io"
	"log/slog"
	"net"
	"sync"

	"github.com/shellrig/shellrig/internal/errors"
	"github.com/shellrig/shellrig/internal/stream"
)

// readChunkSize is the scratch buffer size for a single socket read.
const readChunkSize = 8 * 1024

// Channel is one client-side connection to a named local socket.
//
// The caller expresses intent through SetTargetConnected and SetPath;
// actual state is reconciled asynchronously and observed through the
// connection-state callback. A channel holds at most one live
// connection.
type Channel struct {
	log *slog.Logger

	mu              sync.Mutex
	path            string
	conn            net.Conn
	connected       bool
	targetConnected bool
	disconnecting   bool
	dialing         bool

	// gen invalidates in-flight dials when intent changes underneath them.
	gen uint64

	parser       stream.Parser
	parserClosed bool

	onConnectionStateChanged func()
	onError                  func(err error)
}

// NewChannel creates a disconnected channel. A nil logger disables logging.
func NewChannel(log *slog.Logger) *Channel {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Channel{log: log.With("component", "socket")}
}

// SetParser attaches the byte-stream parser. Detaching (passing nil)
// while a connection is live permanently closes the read stream for
// that connection; attaching a new parser afterward does not resume
// reads. A later connection starts with a fresh read stream.
func (c *Channel) SetParser(p stream.Parser) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if p == nil && c.parser != nil {
		c.parserClosed = true
	}

	c.parser = p
}

// OnConnectionStateChanged registers the callback fired after every
// connect and disconnect, once channel state is fully consistent.
func (c *Channel) OnConnectionStateChanged(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.onConnectionStateChanged = fn
}

// OnError registers the callback for dial and read failures.
func (c *Channel) OnError(fn func(err error)) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.onError = fn
}

// Path returns the endpoint path.
func (c *Channel) Path() string {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.path
}

// SetPath records the endpoint path. It is a no-op while connected and
// not disconnecting, and when the path is unchanged. If the caller
// wants a connection and none is live, a connect is attempted
// immediately.
func (c *Channel) SetPath(path string) {
	c.mu.Lock()

	if (c.connected && !c.disconnecting) || path == c.path {
		c.mu.Unlock()

		return
	}

	c.path = path
	needConnect := c.targetConnected && c.conn == nil && !c.dialing
	c.mu.Unlock()

	if needConnect {
		c.connect()
	}
}

// Connected reports whether a connection is currently live.
func (c *Channel) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.connected
}

// SetTargetConnected sets the caller's connection intent. True connects
// immediately when no connection is live; false requests an
// asynchronous graceful close of the live connection.
//
// While target-connected remains true, every disconnect triggers exactly
// one immediate reconnect attempt. There is no backoff and no attempt
// cap, so a peer that accepts and immediately drops connections will be
// redialed on every drop.
func (c *Channel) SetTargetConnected(target bool) {
	c.mu.Lock()

	c.targetConnected = target

	if !target {
		// Invalidate any in-flight dial.
		c.gen++

		if c.conn != nil && !c.disconnecting {
			c.disconnecting = true
			conn := c.conn
			c.mu.Unlock()

			// The pump observes the close and completes the teardown.
			_ = conn.Close()

			return
		}

		c.mu.Unlock()

		return
	}

	needConnect := c.conn == nil && !c.dialing
	c.mu.Unlock()

	if needConnect {
		c.connect()
	}
}

// Write sends data on the live connection. It is a no-op without one.
func (c *Channel) Write(data []byte) {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()

	if conn == nil {
		return
	}

	if _, err := conn.Write(data); err != nil {
		c.log.Debug("socket write failed", "error", err)
	}
}

// Adopt installs an accepted connection as this channel's live
// connection. It is used by SocketServer to hand inbound peers to
// handler channels and fails if a connection is already live.
func (c *Channel) Adopt(conn net.Conn) error {
	c.mu.Lock()

	if c.conn != nil || c.connected {
		c.mu.Unlock()

		return errors.ErrAlreadyConnected
	}

	c.establishLocked(conn)

	return nil
}

// connect dials the configured path in the background. Dial failures
// are reported through OnError and leave the channel dormant; the only
// automatic retry is the single post-disconnect reconnect.
func (c *Channel) connect() {
	c.mu.Lock()

	if c.conn != nil || c.dialing || c.path == "" {
		c.mu.Unlock()

		return
	}

	c.dialing = true
	c.gen++
	gen := c.gen
	path := c.path
	c.mu.Unlock()

	c.log.Debug("connecting", "path", path)

	go func() {
		conn, err := net.Dial("unix", path)

		c.mu.Lock()
		c.dialing = false

		if err != nil {
			onError := c.onError
			c.mu.Unlock()

			c.log.Warn("connect failed", "path", path, "error", err)

			if onError != nil {
				onError(&errors.TransientIOError{Op: "connect " + path, Err: err})
			}

			return
		}

		if gen != c.gen {
			// Intent changed while the dial was in flight.
			c.mu.Unlock()
			_ = conn.Close()

			return
		}

		c.establishLocked(conn)
	}()
}

// establishLocked installs conn as the live connection, releases the
// lock, emits the connection-state event, and starts the read pump.
func (c *Channel) establishLocked(conn net.Conn) {
	c.conn = conn
	c.connected = true
	c.targetConnected = false
	c.disconnecting = false
	c.parserClosed = false
	path := c.path
	onState := c.onConnectionStateChanged
	c.mu.Unlock()

	c.log.Debug("connected", "path", path)

	if onState != nil {
		onState()
	}

	go c.pump(conn)
}

// pump reads the connection to exhaustion, accumulating bytes and
// repeatedly handing the buffer to the attached parser until it can
// extract no further complete unit. The remainder stays buffered for
// the next read. When the connection drops, pump completes the
// disconnect transition.
func (c *Channel) pump(conn net.Conn) {
	var buf []byte

	scratch := make([]byte, readChunkSize)

	for {
		n, readErr := conn.Read(scratch)

		if n > 0 {
			buf = append(buf, scratch[:n]...)

			c.mu.Lock()
			parser, closed := c.parser, c.parserClosed
			c.mu.Unlock()

			if closed {
				buf = buf[:0]
			} else if parser != nil {
				if consumed := parser.Parse(buf); consumed > 0 {
					buf = append(buf[:0], buf[consumed:]...)
				}
			}
		}

		if readErr != nil {
			c.disconnected(conn)

			return
		}
	}
}

// disconnected releases the connection, emits the connection-state
// event, and performs the single immediate reconnect when the caller
// still wants a connection.
func (c *Channel) disconnected(conn net.Conn) {
	_ = conn.Close()

	c.mu.Lock()

	if c.conn != conn {
		// A newer connection already took over.
		c.mu.Unlock()

		return
	}

	c.conn = nil
	c.connected = false
	c.disconnecting = false
	parser, closed := c.parser, c.parserClosed
	reconnect := c.targetConnected
	onState := c.onConnectionStateChanged
	c.mu.Unlock()

	if !closed {
		if f, ok := parser.(stream.Finisher); ok {
			f.Finish()
		}
	}

	c.log.Debug("disconnected")

	if onState != nil {
		onState()
	}

	if reconnect {
		c.connect()
	}
}
