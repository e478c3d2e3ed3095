package cleanup

import (
	"os"
	"path/filepath"
	"testing"
)

type countingCloser struct {
	calls int
	err   error
}

func (c *countingCloser) Close() error {
	c.calls++
	return c.err
}

type countingClearer struct {
	calls int
}

func (c *countingClearer) Clear() error {
	c.calls++
	return nil
}

func TestRunRemovesStagingAndOwnBundlePath(t *testing.T) {
	dir := t.TempDir()
	staging := filepath.Join(dir, "staging")
	ownBundle := filepath.Join(dir, "daemon-bundle")
	if err := os.MkdirAll(staging, 0o755); err != nil {
		t.Fatalf("mkdir staging: %v", err)
	}
	if err := os.MkdirAll(ownBundle, 0o755); err != nil {
		t.Fatalf("mkdir ownBundle: %v", err)
	}

	updater := &countingCloser{}
	agent := &countingCloser{}
	pw := &countingClearer{}

	td := &Teardown{
		UpdaterLink:      updater,
		AgentLink:        agent,
		Password:         pw,
		StagingDirectory: staging,
		OwnBundlePath:    ownBundle,
	}

	if err := td.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if _, err := os.Stat(staging); !os.IsNotExist(err) {
		t.Error("expected staging directory to be removed")
	}
	if _, err := os.Stat(ownBundle); !os.IsNotExist(err) {
		t.Error("expected own bundle path to be removed")
	}
	if updater.calls != 1 || agent.calls != 1 {
		t.Error("expected both links to be closed exactly once")
	}
	if pw.calls != 1 {
		t.Error("expected password to be cleared exactly once")
	}
}

func TestRunIsIdempotent(t *testing.T) {
	updater := &countingCloser{}
	td := &Teardown{UpdaterLink: updater}

	if err := td.Run(); err != nil {
		t.Fatalf("first Run: %v", err)
	}
	if err := td.Run(); err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if updater.calls != 1 {
		t.Errorf("expected exactly one Close call across repeated Run, got %d", updater.calls)
	}
}

func TestRunToleratesCloserErrors(t *testing.T) {
	updater := &countingCloser{err: os.ErrClosed}
	td := &Teardown{UpdaterLink: updater}
	if err := td.Run(); err != nil {
		t.Fatalf("expected Run to succeed despite a closer error, got %v", err)
	}
}
