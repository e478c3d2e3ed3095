package stagecontroller

import (
	"fmt"
	"time"

	"github.com/atomikpanda/Sparkle/internal/hostbundle"
	"github.com/atomikpanda/Sparkle/internal/protocol"
	"github.com/atomikpanda/Sparkle/internal/session"
	"github.com/atomikpanda/Sparkle/internal/termination"
)

// tryBeginStage1 is called after each of the two events bootstrapgate.Gate
// tracks (validator success, agent connection). It only actually starts
// stage 1 once the gate has observed both, and only once ever —
// stage1Started is the idempotence latch spec.md §9 asks for in place
// of the defective counter.
func (c *Controller) tryBeginStage1() {
	c.mu.Lock()
	if !c.gate.Open() || c.stage1Started {
		c.mu.Unlock()
		return
	}
	c.stage1Started = true
	host := c.hostInfo
	newBundle := c.newBundleInfo
	installSourcePath := c.installSourcePath
	isPackage := c.isPackage
	c.mu.Unlock()

	go c.runStage1(host, newBundle, installSourcePath, isPackage)
}

// runStage1 implements spec.md §4.6's "Stage 1 execution": build the
// installer backend, run perform_first_stage on the worker sequence,
// then record can_install_silently and report
// INSTALLATION_FINISHED_STAGE_1.
func (c *Controller) runStage1(host, newBundle hostbundle.HostInfo, installSourcePath string, isPackage bool) {
	backend, err := c.cfg.NewBackend(host, newBundle, installSourcePath, isPackage)
	if err != nil {
		c.fatal(fmt.Errorf("stagecontroller: constructing installer backend: %w", err))
		return
	}

	c.mu.Lock()
	c.backend = backend
	c.mu.Unlock()

	// From here on an updater-link drop is tolerated rather than fatal.
	c.updaterLink.SetWillCompleteInstallation()

	c.cfg.Session.SetPhase(session.Stage1Running)
	if err := c.updaterLink.Send(protocol.InstallationStartedStage1, nil); err != nil {
		c.logger.Warn("sending INSTALLATION_STARTED_STAGE_1 failed", "error", err)
	}

	c.submit(func() {
		err := backend.PerformFirstStage(c.ctx)
		c.stage1Result(backend, err)
	})
}

func (c *Controller) stage1Result(backend interface{ CanInstallSilently() bool }, err error) {
	if err != nil {
		c.fatal(fmt.Errorf("stagecontroller: stage 1 failed: %w", err))
		return
	}

	c.mu.Lock()
	c.performedStage1 = true
	c.canInstallSilently = backend.CanInstallSilently()
	c.mu.Unlock()

	go c.obtainTargetPID()
	c.tryBeginStage2()
}

// obtainTargetPID implements spec.md §4.6's "Obtaining the target PID":
// ask the agent to resolve a process identifier for the host bundle
// path, capped at a 5-second deadline. If the agent never replies in
// time, the installation is fatal — the daemon has no way to watch for
// host termination without a PID.
func (c *Controller) obtainTargetPID() {
	type result struct {
		pid uint64
		err error
	}
	resultCh := make(chan result, 1)
	go func() {
		pid, err := c.agentLink.RegisterRelaunchBundlePath(c.hostInfo.BundlePath)
		resultCh <- result{pid: pid, err: err}
	}()

	select {
	case r := <-resultCh:
		if r.err != nil {
			c.fatal(fmt.Errorf("stagecontroller: resolving target process identifier: %w", r.err))
			return
		}
		c.handlePIDObtained(r.pid)
	case <-time.After(pidRetrievalDeadline):
		c.fatal(fmt.Errorf("stagecontroller: target process identifier not obtained within %s", pidRetrievalDeadline))
	}
}

func (c *Controller) handlePIDObtained(pid uint64) {
	handle := termination.Watch(int(pid), targetTerminationTimeout)

	c.mu.Lock()
	c.terminationHandle = handle
	canInstallSilently := c.canInstallSilently
	c.cfg.Session.SetPhase(session.AwaitingHostTermination)
	c.mu.Unlock()

	result := protocol.Stage1Result{CanInstallSilently: canInstallSilently, TargetTerminated: handle.Terminated()}
	if err := c.updaterLink.Send(protocol.InstallationFinishedStage1, protocol.EncodeStage1Result(result)); err != nil {
		c.logger.Warn("sending INSTALLATION_FINISHED_STAGE_1 failed", "error", err)
	}

	c.armHostTerminationWait(handle)
}
