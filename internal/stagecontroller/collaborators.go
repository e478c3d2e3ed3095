package stagecontroller

import "github.com/atomikpanda/Sparkle/internal/protocol"

// updaterSender is the subset of *updaterlink.Link the Stage Controller
// drives. Declaring it as an interface (rather than holding the
// concrete type) lets tests substitute a fake in place of a real
// socket-backed link.
type updaterSender interface {
	Start()
	Send(id protocol.Identifier, payload []byte) error
	SetWillCompleteInstallation()
	Alive() bool
	Close() error
}

// agentCaller is the subset of *agentlink.Link the Stage Controller
// drives, for the same reason as updaterSender.
type agentCaller interface {
	Start()
	RegisterRelaunchBundlePath(path string) (uint64, error)
	RegisterInstallationInfo(payload []byte) error
	ShowProgress() error
	StopProgress() error
	Relaunch(path string) error
	Close() error
}
