// Package stagecontroller implements C6, the core of the daemon: the
// installation state machine that synchronizes the Agent Link, Updater
// Link, Validator, and Termination Watcher against the external
// installer backend, enforcing the ordering, timeout, and cleanup
// guarantees of spec.md §4.6. Where the Stage Controller needs true
// single-threaded scheduling the teacher has no equivalent for (this is
// the "core" component spec.md §2 calls 40% of the budget) — state
// mutation is serialized under one mutex rather than literally
// single-goroutine, and a dedicated worker goroutine plays the role of
// spec.md §5's "one serial worker sequence dedicated to installer
// backend calls."
package stagecontroller

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/atomikpanda/Sparkle/internal/agentlink"
	"github.com/atomikpanda/Sparkle/internal/bootstrapgate"
	"github.com/atomikpanda/Sparkle/internal/cleanup"
	"github.com/atomikpanda/Sparkle/internal/hostbundle"
	"github.com/atomikpanda/Sparkle/internal/installerbackend"
	"github.com/atomikpanda/Sparkle/internal/password"
	"github.com/atomikpanda/Sparkle/internal/protocol"
	"github.com/atomikpanda/Sparkle/internal/session"
	"github.com/atomikpanda/Sparkle/internal/termination"
	"github.com/atomikpanda/Sparkle/internal/updaterlink"
	"github.com/atomikpanda/Sparkle/internal/validator"
)

const (
	firstMessageDeadline = 7 * time.Second
	pidRetrievalDeadline = 5 * time.Second
	progressDeferral     = 700 * time.Millisecond
	exitDelay            = 500 * time.Millisecond

	// targetTerminationTimeout bounds how long the termination watcher
	// waits for the host process to exit before giving up and reporting
	// it as still alive; stage 2 proceeds either way once the updater
	// resumes it (spec.md §4.6).
	targetTerminationTimeout = 10 * time.Minute
)

// Exit codes, spec.md §6: 0 on successful install, non-zero on any
// fatal path.
const (
	ExitSuccess = 0
	ExitFailure = 1
)

// BackendFactory constructs the external installer backend once
// extraction and validation have succeeded, per spec.md §4.6 stage 1's
// "create the installer backend from host_info and staging directory."
type BackendFactory func(host, newBundle hostbundle.HostInfo, installSourcePath string, isPackage bool) (installerbackend.Backend, error)

// Config wires a Controller's collaborators.
type Config struct {
	Session        *session.Session
	SocketDir      string
	Logger         *slog.Logger
	MetadataReader hostbundle.MetadataReader
	Validator      *validator.Validator
	NewBackend     BackendFactory
	Password       *password.Custody
	// OwnBundlePath is the daemon's own executable bundle directory,
	// removed unconditionally on every exit path (spec.md §9).
	OwnBundlePath string
}

// Controller is the Stage Controller.
type Controller struct {
	cfg    Config
	logger *slog.Logger
	ctx    context.Context

	updaterLink updaterSender
	agentLink   agentCaller

	workCh chan func()
	stopWk chan struct{}

	mu sync.Mutex

	gate *bootstrapgate.Gate

	receivedInstallationInput bool
	input                     protocol.InstallationInput
	hostInfo                  hostbundle.HostInfo
	newBundleInfo             hostbundle.HostInfo
	installSourcePath         string
	isPackage                 bool
	archiveBytes              []byte

	agentConnected bool

	stage1Started   bool
	performedStage1 bool
	stage2Started   bool
	performedStage2 bool
	hostTerminated  bool
	stage3Started   bool
	performedStage3 bool

	shouldShowUI   bool
	shouldRelaunch bool
	resumeStage2Received bool
	canInstallSilently   bool

	receivedUpdaterPong           bool
	shouldLaunchInstallerProgress bool

	backend            installerbackend.Backend
	terminationHandle  *termination.Handle

	exitCh   chan int
	exitOnce sync.Once
}

// New constructs a Controller. It does not yet listen; call Start.
func New(cfg Config) (*Controller, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.NewBackend == nil {
		cfg.NewBackend = defaultBackendFactory
	}
	if cfg.Password == nil && cfg.Session != nil {
		cfg.Password = password.New(cfg.Session.HostBundleIdentifier)
	}
	c := &Controller{
		cfg:    cfg,
		logger: cfg.Logger,
		ctx:    context.Background(),
		gate:   bootstrapgate.New(),
		workCh: make(chan func(), 16),
		stopWk: make(chan struct{}),
		exitCh: make(chan int, 1),
	}
	return c, nil
}

// Start begins listening on both endpoints concurrently (spec.md §4.6
// startup: "begin listening on the updater endpoint... begin listening
// on the agent endpoint"), arms the 7-second first-message deadline,
// and starts the backend worker sequence.
func (c *Controller) Start(ctx context.Context) error {
	c.ctx = ctx
	var g errgroup.Group
	g.Go(func() error {
		l, err := updaterlink.New(c.cfg.SocketDir, c.cfg.Session.HostBundleIdentifier, c.logger, updaterlink.Callbacks{
			OnMessage:     c.onUpdaterMessage,
			OnInvalidated: c.onUpdaterInvalidated,
		})
		if err != nil {
			return fmt.Errorf("stagecontroller: starting updater link: %w", err)
		}
		c.updaterLink = l
		return nil
	})
	g.Go(func() error {
		l, err := agentlink.New(c.cfg.SocketDir, c.cfg.Session.HostBundleIdentifier, c.logger, agentlink.Callbacks{
			OnConnect:    c.onAgentConnected,
			OnInvalidate: c.onAgentInvalidated,
		})
		if err != nil {
			return fmt.Errorf("stagecontroller: starting agent link: %w", err)
		}
		c.agentLink = l
		return nil
	})
	if err := g.Wait(); err != nil {
		return err
	}

	c.updaterLink.Start()
	c.agentLink.Start()
	go c.runWorker()

	c.cfg.Session.SetPhase(session.AwaitingInputs)
	time.AfterFunc(firstMessageDeadline, c.checkFirstMessageDeadline)

	return nil
}

// Wait blocks until the daemon has reached a terminal state and
// returns its exit code.
func (c *Controller) Wait() int {
	return <-c.exitCh
}

func (c *Controller) runWorker() {
	for {
		select {
		case fn := <-c.workCh:
			fn()
		case <-c.stopWk:
			return
		}
	}
}

// submit enqueues fn on the installer worker sequence.
func (c *Controller) submit(fn func()) {
	select {
	case c.workCh <- fn:
	case <-c.stopWk:
	}
}

func (c *Controller) checkFirstMessageDeadline() {
	c.mu.Lock()
	gotInput := c.receivedInstallationInput
	gotAgent := c.agentConnected
	c.mu.Unlock()
	if !gotInput || !gotAgent {
		c.fatal(fmt.Errorf("stagecontroller: first-message deadline elapsed (input received=%v, agent connected=%v)", gotInput, gotAgent))
	}
}

// fatal logs reason, tears everything down, and terminates with a
// non-zero exit code, per spec.md §7's fatal propagation policy.
func (c *Controller) fatal(reason error) {
	c.logger.Error("fatal", "reason", reason)
	c.terminate(ExitFailure)
}

// succeed terminates with ExitSuccess after the 0.5s exit delay armed
// by stage 3 completion.
func (c *Controller) succeed() {
	c.terminate(ExitSuccess)
}

func (c *Controller) terminate(code int) {
	c.exitOnce.Do(func() {
		c.cfg.Session.SetPhase(session.Exiting)
		td := &cleanup.Teardown{
			Logger:           c.logger,
			StagingDirectory: c.cfg.Session.StagingDirectory(),
			OwnBundlePath:    c.cfg.OwnBundlePath,
		}
		// Assigning through typed nils (a nil *updaterlink.Link, a nil
		// *password.Custody) would leave Teardown holding non-nil
		// interfaces wrapping nil pointers, so only wire collaborators
		// that actually exist.
		if c.updaterLink != nil {
			td.UpdaterLink = c.updaterLink
		}
		if c.agentLink != nil {
			td.AgentLink = c.agentLink
		}
		if c.cfg.Password != nil {
			td.Password = c.cfg.Password
		}
		_ = td.Run()
		close(c.stopWk)
		c.exitCh <- code
	})
}
