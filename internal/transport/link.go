// Package transport implements the one-shot local server link shared by
// the updater link and the agent link: listen on a local endpoint,
// accept exactly one connection, run a frame read/write loop against
// it, and reject any further connection attempt immediately. The
// accept-loop-plus-teardown shape follows juju's uniter run listener
// (internal/worker/uniter/runlistener.go), generalized from an RPC
// server to a raw frame stream and narrowed from "many connections
// forever" to "one connection, ever."
package transport

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"

	"gopkg.in/tomb.v2"

	"github.com/atomikpanda/Sparkle/internal/protocol"
)

// ErrAlreadyConnected is returned to a second peer that attempts to
// connect to a Link that has already accepted its one connection.
var ErrAlreadyConnected = errors.New("transport: link already has a peer connected")

// Handler reacts to frames and lifecycle events on a Link. All methods
// are invoked from the Link's own goroutine; implementations must not
// block indefinitely.
type Handler interface {
	// Connected is called once, when the single permitted peer connects.
	Connected()
	// Frame is called for each frame read from the peer.
	Frame(f protocol.Frame)
	// Invalidated is called once the connection is gone, whether from a
	// clean close, a read error, or Link.Close. err is nil when the link
	// is closed by us; a peer hang-up is reported with the read error,
	// typically io.EOF.
	Invalidated(err error)
}

// Link listens on a single local endpoint and services at most one
// connection for its entire lifetime. A second dialer is accepted and
// immediately closed (spec.md's "reject a second concurrent connection").
type Link struct {
	name     string
	listener net.Listener
	logger   *slog.Logger
	handler  Handler

	t tomb.Tomb

	mu        sync.Mutex
	conn      net.Conn
	connected bool
}

// Listen binds name (a filesystem path used as a unix domain socket —
// Go 1.21+'s net package supports AF_UNIX on Windows 10 and later, so a
// single code path covers every platform this daemon targets) and
// returns a Link that has not yet started accepting.
func Listen(name string, logger *slog.Logger, handler Handler) (*Link, error) {
	ln, err := net.Listen("unix", name)
	if err != nil {
		return nil, fmt.Errorf("transport: listen %s: %w", name, err)
	}
	return &Link{
		name:     name,
		listener: ln,
		logger:   logger,
		handler:  handler,
	}, nil
}

// Start begins accepting connections in a background goroutine managed
// by a tomb.Tomb. Call Wait to block until the link's single connection
// has run to completion (or Close has been called).
func (l *Link) Start() {
	l.t.Go(l.run)
}

// Wait blocks until the link's goroutine has exited, returning any
// terminal error.
func (l *Link) Wait() error {
	return l.t.Wait()
}

// Close stops accepting new connections and closes the active
// connection, if any. It is safe to call more than once.
func (l *Link) Close() error {
	l.t.Kill(nil)
	err := l.listener.Close()
	l.mu.Lock()
	conn := l.conn
	l.mu.Unlock()
	if conn != nil {
		_ = conn.Close()
	}
	return err
}

// IsConnected reports whether a peer is currently connected.
func (l *Link) IsConnected() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.connected && l.conn != nil
}

// Send writes a frame to the connected peer. It returns an error if no
// peer is currently connected.
func (l *Link) Send(f protocol.Frame) error {
	l.mu.Lock()
	conn := l.conn
	l.mu.Unlock()
	if conn == nil {
		return fmt.Errorf("transport: %s: no peer connected", l.name)
	}
	return protocol.WriteFrame(conn, f)
}

func (l *Link) run() error {
	for {
		conn, err := l.listener.Accept()
		if err != nil {
			select {
			case <-l.t.Dying():
				return nil
			default:
				return fmt.Errorf("transport: %s: accept: %w", l.name, err)
			}
		}

		l.mu.Lock()
		alreadyHasPeer := l.connected
		if !alreadyHasPeer {
			l.connected = true
			l.conn = conn
		}
		l.mu.Unlock()

		if alreadyHasPeer {
			l.logger.Warn("rejecting second connection attempt", "link", l.name)
			_ = conn.Close()
			continue
		}

		l.handler.Connected()
		err = l.serve(conn)
		l.mu.Lock()
		l.connected = false
		l.mu.Unlock()
		l.handler.Invalidated(err)
		return nil
	}
}

func (l *Link) serve(conn net.Conn) error {
	defer conn.Close()
	for {
		f, err := protocol.ReadFrame(conn)
		if err != nil {
			select {
			case <-l.t.Dying():
				return nil
			default:
			}
			return err
		}
		l.handler.Frame(f)
	}
}
