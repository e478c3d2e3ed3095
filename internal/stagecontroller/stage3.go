package stagecontroller

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/atomikpanda/Sparkle/internal/protocol"
	"github.com/atomikpanda/Sparkle/internal/session"
)

// tryBeginStage3 is the only path into stage 3, dispatched by
// onHostTerminated once the Termination Watcher observes the host
// process exit — spec.md §2's "host death releases stage 3" — and also
// retried from the RESUME_TO_STAGE_2 handler, in case host termination
// fired first. resumeStage2Received gates it because perform_stage2_if_needed
// needs should_show_ui/should_relaunch, which only that command
// supplies; stage3Started is the idempotence latch, since both callers
// may reach here once their respective condition becomes true.
func (c *Controller) tryBeginStage3() {
	c.mu.Lock()
	if !c.hostTerminated || !c.resumeStage2Received || c.stage3Started {
		c.mu.Unlock()
		return
	}
	c.stage3Started = true
	c.mu.Unlock()

	c.submit(func() {
		if !c.performStage2IfNeeded() {
			return
		}
		c.runThirdStage()
	})
}

// runThirdStage runs perform_third_stage on the worker sequence, after
// tryBeginStage3's queued closure has confirmed perform_stage2_if_needed
// succeeded.
func (c *Controller) runThirdStage() {
	c.mu.Lock()
	backend := c.backend
	c.mu.Unlock()

	c.cfg.Session.SetPhase(session.Stage3Running)
	err := backend.PerformThirdStage(c.ctx)
	c.stage3Result(err)
}

// stage3Result implements spec.md §4.6 stage 3's finish sequence:
// dismiss the agent's progress UI unconditionally, report
// INSTALLATION_FINISHED_STAGE_3, compute the relaunch path's precedence
// (the backend's own installation path wins whenever it differs from
// the host's current bundle path, or whenever the updater's relaunch
// path was never customized away from the host's bundle path),
// optionally relaunch, clean up the backend, and exit after the 0.5s
// delay.
func (c *Controller) stage3Result(err error) {
	if err != nil {
		c.fatal(fmt.Errorf("stagecontroller: stage 3 failed: %w", err))
		return
	}

	c.mu.Lock()
	c.performedStage3 = true
	shouldRelaunch := c.shouldRelaunch
	backend := c.backend
	relaunchPath := c.input.RelaunchPath
	host := c.hostInfo
	c.shouldLaunchInstallerProgress = false
	c.mu.Unlock()

	if err := c.agentLink.StopProgress(); err != nil {
		c.logger.Warn("asking agent to stop progress failed", "error", err)
	}

	if err := c.updaterLink.Send(protocol.InstallationFinishedStage3, nil); err != nil {
		c.logger.Warn("sending INSTALLATION_FINISHED_STAGE_3 failed", "error", err)
	}

	installPath := backend.InstallationPathFor(host)
	if filepath.Clean(installPath) != filepath.Clean(host.BundlePath) || filepath.Clean(relaunchPath) == filepath.Clean(host.BundlePath) {
		relaunchPath = installPath
	}
	if shouldRelaunch {
		if err := c.agentLink.Relaunch(relaunchPath); err != nil {
			c.logger.Warn("asking agent to relaunch failed", "error", err)
		}
	}

	if err := backend.Cleanup(); err != nil {
		c.logger.Warn("installer backend cleanup failed", "error", err)
	}

	c.cfg.Session.SetPhase(session.Finalizing)
	time.AfterFunc(exitDelay, c.succeed)
}
