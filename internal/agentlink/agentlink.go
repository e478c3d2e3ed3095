// Package agentlink implements C2, the Agent Link: the server endpoint
// the UI agent connects to, exposing register_relaunch_bundle_path,
// register_installation_info, show_progress, stop_progress, and
// relaunch, plus the agent_did_connect / agent_did_invalidate
// callbacks into the Stage Controller.
//
// The link's transport is a plain frame stream with no inherent
// request/response correlation, so the async
// register_relaunch_bundle_path call (spec.md §4.2) is layered on top
// with a correlation id, the same way net/rpc-style servers pair a
// sequence number with each call — the pattern juju's run listener
// gets for free from net/rpc is reproduced here by hand because the
// wire format is the shared protocol.Frame, not an RPC codec.
package agentlink

import (
	"encoding/binary"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/atomikpanda/Sparkle/internal/protocol"
	"github.com/atomikpanda/Sparkle/internal/transport"
)

// Callbacks receives lifecycle events from the link.
type Callbacks struct {
	// OnConnect fires once the agent has connected.
	OnConnect func()
	// OnInvalidate fires once the connection is gone.
	OnInvalidate func(err error)
}

// pendingCall tracks one outstanding register_relaunch_bundle_path
// call awaiting its process identifier reply.
type pendingCall struct {
	resultCh chan uint64
}

// Link is the Agent Link.
type Link struct {
	link *transport.Link

	mu      sync.Mutex
	pending map[string]*pendingCall

	callbacks Callbacks
}

// EndpointName derives the deterministic local endpoint name for the
// agent link. The updater link owns "<identifier>.installer" (spec.md
// §6); the agent link is namespaced under it rather than collide with
// it or with any other process on the same host bundle identifier.
func EndpointName(socketDir, hostBundleIdentifier string) string {
	return socketDir + "/" + hostBundleIdentifier + ".installer.agent"
}

// New listens on the agent endpoint under socketDir.
func New(socketDir, hostBundleIdentifier string, logger *slog.Logger, cb Callbacks) (*Link, error) {
	l := &Link{
		pending:   make(map[string]*pendingCall),
		callbacks: cb,
	}
	tl, err := transport.Listen(EndpointName(socketDir, hostBundleIdentifier), logger, l)
	if err != nil {
		return nil, fmt.Errorf("agentlink: %w", err)
	}
	l.link = tl
	return l, nil
}

func (l *Link) Start() { l.link.Start() }

func (l *Link) Wait() error { return l.link.Wait() }

func (l *Link) Close() error { return l.link.Close() }

// RegisterRelaunchBundlePath asks the agent to resolve a process
// identifier for path and blocks until it replies, per spec.md §4.2's
// "async; the agent resolves a PID that the daemon will later watch
// for termination." The Stage Controller arms its own deadline around
// this call (spec.md §4.6); this method itself does not time out.
func (l *Link) RegisterRelaunchBundlePath(path string) (uint64, error) {
	correlationID := uuid.NewString()
	call := &pendingCall{resultCh: make(chan uint64, 1)}

	l.mu.Lock()
	l.pending[correlationID] = call
	l.mu.Unlock()

	if err := l.sendCall(registerRelaunchBundlePathOp, correlationID, []byte(path)); err != nil {
		l.mu.Lock()
		delete(l.pending, correlationID)
		l.mu.Unlock()
		return 0, err
	}

	pid, ok := <-call.resultCh
	if !ok {
		return 0, fmt.Errorf("agentlink: connection invalidated before reply to register_relaunch_bundle_path")
	}
	return pid, nil
}

// RegisterInstallationInfo publishes info to the agent.
func (l *Link) RegisterInstallationInfo(info []byte) error {
	return l.sendCall(registerInstallationInfoOp, "", info)
}

// ShowProgress asks the agent to present its progress UI.
func (l *Link) ShowProgress() error {
	return l.sendCall(showProgressOp, "", nil)
}

// StopProgress asks the agent to dismiss its progress UI.
func (l *Link) StopProgress() error {
	return l.sendCall(stopProgressOp, "", nil)
}

// Relaunch asks the agent to relaunch the host application at path.
func (l *Link) Relaunch(path string) error {
	return l.sendCall(relaunchOp, "", []byte(path))
}

// agentOp distinguishes the small set of agent-link operations. These
// are internal to this package, not part of the shared closed
// protocol.Identifier set — the agent link has its own independent
// message vocabulary, per spec.md §4.2.
type agentOp byte

const (
	registerRelaunchBundlePathOp agentOp = iota + 1
	registerInstallationInfoOp
	showProgressOp
	stopProgressOp
	relaunchOp
	relaunchPIDReplyOp
)

func (l *Link) sendCall(op agentOp, correlationID string, body []byte) error {
	idBytes := []byte(correlationID)
	payload := make([]byte, 1+2+len(idBytes)+len(body))
	payload[0] = byte(op)
	binary.LittleEndian.PutUint16(payload[1:3], uint16(len(idBytes)))
	copy(payload[3:3+len(idBytes)], idBytes)
	copy(payload[3+len(idBytes):], body)
	return l.link.Send(protocol.Frame{Identifier: 0, Payload: payload})
}

func (l *Link) Connected() {
	if l.callbacks.OnConnect != nil {
		l.callbacks.OnConnect()
	}
}

func (l *Link) Frame(f protocol.Frame) {
	if len(f.Payload) < 3 {
		return
	}
	op := agentOp(f.Payload[0])
	idLen := int(binary.LittleEndian.Uint16(f.Payload[1:3]))
	if 3+idLen > len(f.Payload) {
		return
	}
	correlationID := string(f.Payload[3 : 3+idLen])
	body := f.Payload[3+idLen:]

	if op != relaunchPIDReplyOp {
		return
	}
	if len(body) != 8 {
		return
	}
	pid := binary.LittleEndian.Uint64(body)

	l.mu.Lock()
	call, ok := l.pending[correlationID]
	if ok {
		delete(l.pending, correlationID)
	}
	l.mu.Unlock()
	if ok {
		call.resultCh <- pid
	}
}

func (l *Link) Invalidated(err error) {
	l.mu.Lock()
	pending := l.pending
	l.pending = make(map[string]*pendingCall)
	l.mu.Unlock()
	for _, call := range pending {
		close(call.resultCh)
	}
	if l.callbacks.OnInvalidate != nil {
		l.callbacks.OnInvalidate(err)
	}
}
