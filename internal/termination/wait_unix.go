//go:build !windows

package termination

import (
	"bytes"
	"fmt"
	"os"
	"syscall"
	"time"
)

// waitForPIDExit polls syscall.Kill(pid, 0) until the process is gone
// or timeout elapses. Signal 0 sends nothing; it only probes whether
// the process exists. Signal 0 still succeeds against a zombie (exited
// but not yet reaped by its parent), so where /proc exists (Linux) the
// process state is read too and a zombie counts as exited.
func waitForPIDExit(pid int, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		if err := syscall.Kill(pid, 0); err == syscall.ESRCH {
			// ESRCH => process does not exist
			return nil
		}
		if stat, err := os.ReadFile(fmt.Sprintf("/proc/%d/stat", pid)); err == nil {
			// the state field follows the parenthesized command name
			if i := bytes.LastIndexByte(stat, ')'); i >= 0 && i+2 < len(stat) && stat[i+2] == 'Z' {
				return nil
			}
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("termination: pid %d still alive after %s", pid, timeout)
		}
		time.Sleep(pollInterval)
	}
}
