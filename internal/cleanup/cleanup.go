// Package cleanup implements C7: idempotent teardown of links,
// watchers, the staging directory, and the daemon's own transient
// files, run on every exit path (spec.md §4.7/§7).
package cleanup

import (
	"log/slog"
	"os"
	"sync"
)

// Closer is anything with idempotent-ish Close semantics — both
// transport.Link and agentlink/updaterlink satisfy this.
type Closer interface {
	Close() error
}

// PasswordClearer clears a custodied decryption password; satisfied by
// internal/password.Custody.
type PasswordClearer interface {
	Clear() error
}

// Teardown performs C7 exactly once, regardless of how many exit paths
// call it concurrently or sequentially — every fatal path in the Stage
// Controller is expected to call Run, and calling it more than once
// must be a no-op (spec.md §8: "after any fatal path, the staging
// directory is removed... idempotent").
type Teardown struct {
	Logger *slog.Logger

	UpdaterLink Closer
	AgentLink   Closer
	Password    PasswordClearer

	StagingDirectory string
	// OwnBundlePath is the daemon's own executable bundle directory,
	// removed unconditionally on every exit path per spec.md §9's
	// design note: mainBundle.bundlePath self-removal is intentional
	// and must be replicated, not treated as a bug.
	OwnBundlePath string

	once sync.Once
	err  error
}

// Run tears everything down. Subsequent calls return the first call's
// error without repeating any of the work.
func (t *Teardown) Run() error {
	t.once.Do(func() {
		t.err = t.run()
	})
	return t.err
}

func (t *Teardown) run() error {
	if t.UpdaterLink != nil {
		if err := t.UpdaterLink.Close(); err != nil {
			t.logWarn("closing updater link", err)
		}
	}
	if t.AgentLink != nil {
		if err := t.AgentLink.Close(); err != nil {
			t.logWarn("closing agent link", err)
		}
	}
	if t.Password != nil {
		if err := t.Password.Clear(); err != nil {
			t.logWarn("clearing decryption password", err)
		}
	}
	if t.StagingDirectory != "" {
		if err := os.RemoveAll(t.StagingDirectory); err != nil {
			t.logWarn("removing staging directory", err)
		}
	}
	if t.OwnBundlePath != "" {
		if err := os.RemoveAll(t.OwnBundlePath); err != nil {
			t.logWarn("removing own bundle path", err)
		}
	}
	return nil
}

func (t *Teardown) logWarn(action string, err error) {
	if t.Logger != nil {
		t.Logger.Warn("cleanup step failed", "action", action, "error", err)
	}
}
