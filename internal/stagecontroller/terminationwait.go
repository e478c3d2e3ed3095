package stagecontroller

import (
	"time"

	"github.com/atomikpanda/Sparkle/internal/protocol"
	"github.com/atomikpanda/Sparkle/internal/session"
	"github.com/atomikpanda/Sparkle/internal/termination"
)

// armHostTerminationWait implements spec.md §4.7's Updater-Alive
// Ping/Pong alongside §4.6's host-termination wait: ping the updater to
// confirm it is still alive and watching, arm the 0.7-second
// progress-deferral timer, and begin blocking for the host process to
// exit.
func (c *Controller) armHostTerminationWait(handle *termination.Handle) {
	c.mu.Lock()
	c.receivedUpdaterPong = false
	c.mu.Unlock()

	if err := c.updaterLink.Send(protocol.UpdaterAlivePing, nil); err != nil {
		c.logger.Warn("sending UPDATER_ALIVE_PING failed", "error", err)
	}

	time.AfterFunc(progressDeferral, c.checkProgressDeferral)

	go func() {
		terminated := handle.Wait()
		c.onHostTerminated(terminated)
	}()
}

// checkProgressDeferral re-checks its precondition on fire rather than
// being cancelled, per spec.md §5's cancellation policy. Per spec.md
// §4.6: only if should_show_ui is true and the installer has no
// progress UI of its own does the daemon even consider showing one —
// and then only if, at the deadline, the updater is no longer known
// alive (no pong received, or its link is gone). Otherwise the updater
// is presumed to still be presenting its own UI and the daemon stays
// silent.
func (c *Controller) checkProgressDeferral() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.shouldShowUI || !c.cfg.Session.AllowInteraction {
		return
	}
	if c.backend != nil && c.backend.DisplaysUserProgress() {
		return
	}
	updaterKnownAlive := c.receivedUpdaterPong && c.updaterLink.Alive()
	if updaterKnownAlive {
		return
	}
	if err := c.agentLink.ShowProgress(); err != nil {
		c.logger.Warn("asking agent to show progress failed", "error", err)
		return
	}
	c.shouldLaunchInstallerProgress = true
}

// onHostTerminated fires once the termination watcher's goroutine
// observes the host process exit or times out. Either way the Stage
// Controller moves to Stage2Pending; only the success branch — the host
// was actually observed to exit — releases stage 3 (spec.md §2: "host
// death releases stage 3"; §4.6: "When termination fires (success
// branch of watcher), dispatch to the installer queue").
func (c *Controller) onHostTerminated(terminated bool) {
	c.logger.Info("host termination wait resolved", "terminated", terminated)
	c.cfg.Session.SetPhase(session.Stage2Pending)
	if !terminated {
		return
	}
	c.mu.Lock()
	c.hostTerminated = true
	c.mu.Unlock()
	c.tryBeginStage3()
}
