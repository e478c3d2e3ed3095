// Package session implements DaemonSession, the per-process singleton
// of spec.md §3: the host bundle identifier, interaction flag, and
// current phase, created at startup and destroyed only through C7
// cleanup.
package session

import (
	"sync"
)

// Phase enumerates the Stage Controller's states, spec.md §4.6:
// Idle -> AwaitingInputs -> Extracting -> Validating -> Stage1Running ->
// AwaitingHostTermination -> Stage2Pending/Stage2Running -> Stage3Running
// -> Finalizing -> Exiting.
type Phase int

const (
	Idle Phase = iota
	AwaitingInputs
	Extracting
	Validating
	Stage1Running
	AwaitingHostTermination
	Stage2Pending
	Stage2Running
	Stage3Running
	Finalizing
	Exiting
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case AwaitingInputs:
		return "awaiting-inputs"
	case Extracting:
		return "extracting"
	case Validating:
		return "validating"
	case Stage1Running:
		return "stage1-running"
	case AwaitingHostTermination:
		return "awaiting-host-termination"
	case Stage2Pending:
		return "stage2-pending"
	case Stage2Running:
		return "stage2-running"
	case Stage3Running:
		return "stage3-running"
	case Finalizing:
		return "finalizing"
	case Exiting:
		return "exiting"
	default:
		return "unknown"
	}
}

// Session is DaemonSession: the singleton per installer process. The
// staging directory is not this type's to invent: spec.md §6's
// persisted-state layout calls it "the staging directory (path
// supplied by the updater)" — it arrives on InstallationInput and is
// absent (empty) until then, matching spec.md §8's timeout scenario
// ("staging untouched because it was never received").
type Session struct {
	HostBundleIdentifier string
	AllowInteraction     bool

	mu      sync.Mutex
	phase   Phase
	staging string
}

// New creates a Session with no staging directory yet assigned.
func New(hostBundleIdentifier string, allowInteraction bool) *Session {
	return &Session{
		HostBundleIdentifier: hostBundleIdentifier,
		AllowInteraction:     allowInteraction,
		phase:                Idle,
	}
}

// Phase returns the session's current phase.
func (s *Session) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// SetPhase transitions the session to phase.
func (s *Session) SetPhase(phase Phase) {
	s.mu.Lock()
	s.phase = phase
	s.mu.Unlock()
}

// StagingDirectory returns the path supplied by the updater on
// InstallationInput, or "" if none has been received yet.
func (s *Session) StagingDirectory() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.staging
}

// SetStagingDirectory records the staging directory path carried by an
// InstallationInput. Called once per accepted input; a replacement
// input after an extraction failure calls it again.
func (s *Session) SetStagingDirectory(path string) {
	s.mu.Lock()
	s.staging = path
	s.mu.Unlock()
}
