package stagecontroller

import (
	"errors"
	"fmt"

	"github.com/atomikpanda/Sparkle/internal/installerbackend"
	"github.com/atomikpanda/Sparkle/internal/protocol"
	"github.com/atomikpanda/Sparkle/internal/session"
)

// handleResumeToStage2 decodes RESUME_TO_STAGE_2 and stores its flags.
// resumeStage2Received makes repeated delivery of the same command
// idempotent. Per spec.md §8's boundary property, a command arriving
// before performedStage1 is stored but not executed — tryBeginStage2
// fires it immediately once stage 1 completes, from whichever side
// reaches the gate second.
func (c *Controller) handleResumeToStage2(payload []byte) {
	cmd, err := protocol.DecodeStage2Command(payload)
	if err != nil {
		c.fatal(fmt.Errorf("stagecontroller: decoding RESUME_TO_STAGE_2: %w", err))
		return
	}

	c.mu.Lock()
	if c.resumeStage2Received {
		c.mu.Unlock()
		return
	}
	c.resumeStage2Received = true
	c.shouldRelaunch = cmd.Relaunch
	c.shouldShowUI = cmd.ShowUI
	c.mu.Unlock()

	c.tryBeginStage2()
	c.tryBeginStage3()
}

// tryBeginStage2 schedules perform_stage2_if_needed once both
// RESUME_TO_STAGE_2 has been received and stage 1 has completed, and
// only once ever — stage2Started is the idempotence latch, separate
// from resumeStage2Received so a command stored early does not race the
// backend becoming available. This is the "Stage 2 trigger" of spec.md
// §4.6, independent of host termination: stage 2 is free to run while
// the host is still alive.
func (c *Controller) tryBeginStage2() {
	c.mu.Lock()
	if !c.resumeStage2Received || !c.performedStage1 || c.stage2Started {
		c.mu.Unlock()
		return
	}
	c.stage2Started = true
	c.mu.Unlock()

	c.submit(func() {
		c.performStage2IfNeeded()
	})
}

// performStage2IfNeeded runs perform_second_stage unless performedStage2
// is already set. Two independent paths reach it on the worker
// sequence — the RESUME_TO_STAGE_2 trigger above, and stage 3's entry
// below, which relies on it to cover the race where host termination
// fires before RESUME_TO_STAGE_2 has been handled — so the
// performedStage2 latch, not a dispatch-time guard, is what keeps the
// backend call itself from running twice. Reports whether it is safe to
// proceed to stage 3; false means stage 2 failed or was cancelled and
// fatal has already been triggered.
func (c *Controller) performStage2IfNeeded() bool {
	c.mu.Lock()
	if c.performedStage2 {
		c.mu.Unlock()
		return true
	}
	backend := c.backend
	showUI := c.shouldShowUI
	c.mu.Unlock()

	c.cfg.Session.SetPhase(session.Stage2Running)
	err := backend.PerformSecondStage(c.ctx, showUI)
	return c.stage2Result(err)
}

// stage2Result implements spec.md §4.6's three stage-2 outcomes:
// success, installer-cancelled (reported, then treated as fatal), or
// any other failure (fatal immediately). It does not advance to stage 3
// itself — spec.md §2's "host death releases stage 3" ties that
// transition to the Termination Watcher, not to stage 2 completing.
func (c *Controller) stage2Result(err error) bool {
	cancelled := errors.Is(err, installerbackend.ErrInstallationCancelled)
	if err != nil && !cancelled {
		c.fatal(fmt.Errorf("stagecontroller: stage 2 failed: %w", err))
		return false
	}

	c.mu.Lock()
	c.performedStage2 = true
	terminated := c.terminationHandle != nil && c.terminationHandle.Terminated()
	c.mu.Unlock()

	result := protocol.Stage2Result{Cancelled: cancelled, TargetTerminated: terminated}
	if sendErr := c.updaterLink.Send(protocol.InstallationFinishedStage2, protocol.EncodeStage2Result(result)); sendErr != nil {
		c.logger.Warn("sending INSTALLATION_FINISHED_STAGE_2 failed", "error", sendErr)
	}

	if cancelled {
		c.fatal(fmt.Errorf("stagecontroller: installation cancelled during stage 2"))
		return false
	}

	return true
}
