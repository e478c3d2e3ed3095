// Package termination implements C5, the Termination Watcher: observe
// a foreign process identifier obtained from the agent and notify when
// it exits. The per-platform polling/wait primitives are grounded on
// the teacher's cmd/rawrequest-updater/wait_unix.go and wait_windows.go
// (syscall.Kill(pid, 0) polling on unix, OpenProcess +
// WaitForSingleObject on Windows); this package wraps them in the
// async watch(pid) -> future<bool> shape spec.md §4.5 calls for.
package termination

import (
	"sync"
	"time"
)

// pollInterval is how often the unix backend re-checks liveness.
const pollInterval = 200 * time.Millisecond

// Handle is a TerminationHandle: it wraps a foreign PID and reports
// whether it has been observed to exit.
type Handle struct {
	pid int

	mu         sync.Mutex
	terminated bool
	done       chan struct{}
}

// Watch starts observing pid in a background goroutine and returns a
// Handle immediately. The goroutine polls until either the process is
// observed gone or timeout elapses; in the latter case Wait returns
// false. Watch has no start error: the platform primitives treat a
// process they cannot find or open as already gone, so that case
// completes at once with Wait reporting true. On Windows, a failed
// wait on an opened process also makes Wait report false.
func Watch(pid int, timeout time.Duration) *Handle {
	h := &Handle{pid: pid, done: make(chan struct{})}
	go func() {
		err := waitForPIDExit(pid, timeout)
		h.mu.Lock()
		h.terminated = err == nil
		h.mu.Unlock()
		close(h.done)
	}()
	return h
}

// Wait blocks until the watch completes and reports whether the
// process was observed to exit.
func (h *Handle) Wait() bool {
	<-h.done
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.terminated
}

// Terminated is the cheap probe read at message-handling time (spec.md
// §4.5): non-blocking, reflects the most recently completed watch.
func (h *Handle) Terminated() bool {
	select {
	case <-h.done:
		h.mu.Lock()
		defer h.mu.Unlock()
		return h.terminated
	default:
		return false
	}
}

// PID returns the process identifier this handle watches.
func (h *Handle) PID() int { return h.pid }
