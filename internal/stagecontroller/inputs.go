package stagecontroller

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/atomikpanda/Sparkle/internal/hostbundle"
	"github.com/atomikpanda/Sparkle/internal/protocol"
	"github.com/atomikpanda/Sparkle/internal/session"
)

// archiveResidesUnderStagingDirectory implements spec.md §3's
// InstallationInput invariant "archive file must reside under staging
// directory": name is always joined onto the staging directory
// (extraction.go), so this only needs to reject a relative path that
// climbs out of it.
func archiveResidesUnderStagingDirectory(name string) bool {
	if name == "" || filepath.IsAbs(name) {
		return false
	}
	rel := filepath.Clean(name)
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// onUpdaterMessage is protocol.Identifier dispatch for every inbound
// frame on the Updater Link (spec.md §4.3).
func (c *Controller) onUpdaterMessage(id protocol.Identifier, payload []byte) {
	switch id {
	case protocol.InstallationInputMessage:
		c.handleInstallationInput(payload)
	case protocol.SentUpdateAppcastItemData:
		c.handleAppcastItem(payload)
	case protocol.ResumeToStage2:
		c.handleResumeToStage2(payload)
	case protocol.UpdaterAlivePong:
		c.handleUpdaterAlivePong()
	default:
		c.logger.Warn("ignoring unexpected updater message", "identifier", id)
	}
}

// onUpdaterInvalidated implements spec.md §4.3's will_complete_installation
// policy: a drop before stage 1 has begun is fatal, a drop after is
// merely logged.
func (c *Controller) onUpdaterInvalidated(err error, willComplete bool) {
	if willComplete {
		c.logger.Info("updater link dropped after stage 1 began, continuing", "error", err)
		return
	}
	c.fatal(fmt.Errorf("stagecontroller: updater link dropped before installation began: %w", err))
}

// onAgentConnected is the agent_did_connect event of spec.md §4.2,
// one of the two events bootstrapgate.Gate latches on.
func (c *Controller) onAgentConnected() {
	c.mu.Lock()
	c.agentConnected = true
	c.gate.AgentConnected()
	c.mu.Unlock()
	c.tryBeginStage1()
}

// onAgentInvalidated treats a lost agent connection as fatal until
// stage 3 has completed — the agent's cooperation (PID registration,
// progress display, relaunch) is required for every stage up to that
// point, same tolerance boundary as the updater link's
// will_complete_installation flag, gated here on performedStage3
// instead since the agent has no equivalent wire message to set it
// explicitly.
func (c *Controller) onAgentInvalidated(err error) {
	c.mu.Lock()
	done := c.performedStage3
	c.mu.Unlock()
	if done {
		c.logger.Info("agent link dropped after stage 3 completed", "error", err)
		return
	}
	c.fatal(fmt.Errorf("stagecontroller: agent link dropped before installation completed: %w", err))
}

// handleInstallationInput implements spec.md §4.6's AwaitingInputs phase:
// decode the opaque object, resolve host metadata, custody the optional
// decryption password, and move to Extracting. A replacement input sent
// after an extraction failure is accepted the same way — the phase guard
// is what makes retry safe.
func (c *Controller) handleInstallationInput(payload []byte) {
	in, err := protocol.DecodeInstallationInput(payload)
	if err != nil {
		c.fatal(fmt.Errorf("stagecontroller: decoding installation input: %w", err))
		return
	}

	c.mu.Lock()
	phase := c.cfg.Session.Phase()
	if phase != session.AwaitingInputs {
		c.mu.Unlock()
		c.logger.Warn("ignoring installation input outside AwaitingInputs", "phase", phase)
		return
	}
	c.mu.Unlock()

	if in.RelaunchPath == "" {
		c.fatal(fmt.Errorf("stagecontroller: installation input is missing a relaunch path"))
		return
	}
	if !archiveResidesUnderStagingDirectory(in.ArchiveFileName) {
		c.fatal(fmt.Errorf("stagecontroller: archive file name %q does not resolve under the staging directory", in.ArchiveFileName))
		return
	}

	host, err := c.readHostInfo(in.HostBundlePath)
	if err != nil {
		c.fatal(fmt.Errorf("stagecontroller: reading host bundle metadata: %w", err))
		return
	}
	if got := hostbundle.ResolveIdentifier(in.HostBundlePath); got != c.cfg.Session.HostBundleIdentifier {
		c.fatal(fmt.Errorf("stagecontroller: host bundle identifier %q does not match session identifier %q", got, c.cfg.Session.HostBundleIdentifier))
		return
	}

	if err := c.cfg.Password.Store(in.DecryptionPassword); err != nil {
		c.logger.Warn("storing decryption password failed, continuing with in-memory copy", "error", err)
	}

	c.mu.Lock()
	c.receivedInstallationInput = true
	c.input = in
	c.hostInfo = host
	c.cfg.Session.SetStagingDirectory(in.StagingDirectory)
	c.cfg.Session.SetPhase(session.Extracting)
	c.mu.Unlock()

	if err := c.updaterLink.Send(protocol.ExtractionStarted, nil); err != nil {
		c.logger.Warn("sending EXTRACTION_STARTED failed", "error", err)
	}

	go c.runExtraction(in, host)
}

func (c *Controller) readHostInfo(bundlePath string) (hostbundle.HostInfo, error) {
	if c.cfg.MetadataReader != nil {
		return c.cfg.MetadataReader.ReadHostInfo(bundlePath)
	}
	return hostbundle.ManifestReader{}.ReadHostInfo(bundlePath)
}

func (c *Controller) handleUpdaterAlivePong() {
	c.mu.Lock()
	c.receivedUpdaterPong = true
	c.mu.Unlock()
}
