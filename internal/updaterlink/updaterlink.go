// Package updaterlink implements C3, the Updater Link: the server
// endpoint that accepts exactly one connection from the updater
// process and forwards framed messages in both directions.
package updaterlink

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/atomikpanda/Sparkle/internal/protocol"
	"github.com/atomikpanda/Sparkle/internal/transport"
)

// Callbacks receives lifecycle and message events from the link. All
// methods run on the link's own goroutine.
type Callbacks struct {
	// OnMessage is called for every inbound frame, matching spec.md
	// §4.3's on_message(identifier, payload) dispatched to the Stage
	// Controller.
	OnMessage func(id protocol.Identifier, payload []byte)
	// OnInvalidated is called once the connection is gone. willComplete
	// reports whether will_complete_installation had already been set
	// when the drop happened — spec.md §4.3: invalidation before that
	// point is fatal, after it is tolerated.
	OnInvalidated func(err error, willComplete bool)
}

// Link is the Updater Link. It listens on the local socket path that
// EndpointName derives: "<identifier>.installer", per spec.md §6.
type Link struct {
	link *transport.Link

	mu                        sync.Mutex
	willCompleteInstallation  bool

	callbacks Callbacks
}

// EndpointName derives the deterministic local endpoint name for the
// updater link from the host bundle identifier, per spec.md §6's
// "<identifier>.installer" example.
func EndpointName(socketDir, hostBundleIdentifier string) string {
	return socketDir + "/" + hostBundleIdentifier + ".installer"
}

// New listens on the endpoint derived from hostBundleIdentifier under
// socketDir and wires callbacks. The link does not accept connections
// until Start is called.
func New(socketDir, hostBundleIdentifier string, logger *slog.Logger, cb Callbacks) (*Link, error) {
	l := &Link{callbacks: cb}
	tl, err := transport.Listen(EndpointName(socketDir, hostBundleIdentifier), logger, l)
	if err != nil {
		return nil, fmt.Errorf("updaterlink: %w", err)
	}
	l.link = tl
	return l, nil
}

// Start begins accepting the updater's single connection.
func (l *Link) Start() { l.link.Start() }

// Wait blocks until the link's connection has run to completion.
func (l *Link) Wait() error { return l.link.Wait() }

// Close tears the link down unconditionally; part of C7 cleanup.
func (l *Link) Close() error { return l.link.Close() }

// SetWillCompleteInstallation records that stage 1 execution has begun,
// per spec.md §4.3's will_complete_installation flag: from this point an
// unexpected drop is tolerated rather than fatal.
func (l *Link) SetWillCompleteInstallation() {
	l.mu.Lock()
	l.willCompleteInstallation = true
	l.mu.Unlock()
}

// Send writes a framed message to the updater.
func (l *Link) Send(id protocol.Identifier, payload []byte) error {
	return l.link.Send(protocol.Frame{Identifier: id, Payload: payload})
}

// Alive reports whether the updater is still connected, one half of
// spec.md §4.6's "no pong received, or updater link is gone" check
// that decides whether the daemon shows its own progress UI.
func (l *Link) Alive() bool {
	return l.link.IsConnected()
}

// Connected implements transport.Handler. The updater link has no
// connect-time action of its own; Stage Controller wiring happens via
// the message/invalidation callbacks.
func (l *Link) Connected() {}

// Frame implements transport.Handler.
func (l *Link) Frame(f protocol.Frame) {
	if l.callbacks.OnMessage != nil {
		l.callbacks.OnMessage(f.Identifier, f.Payload)
	}
}

// Invalidated implements transport.Handler.
func (l *Link) Invalidated(err error) {
	l.mu.Lock()
	willComplete := l.willCompleteInstallation
	l.mu.Unlock()
	if l.callbacks.OnInvalidated != nil {
		l.callbacks.OnInvalidated(err, willComplete)
	}
}
