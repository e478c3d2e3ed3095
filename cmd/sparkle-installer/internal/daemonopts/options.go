// Package daemonopts validates the daemon's command-line surface,
// grounded on the teacher's cmd/rawrequest-updater/internal/updaterlogic
// Options/ValidateOptions — the same shape (a flat struct plus a pure
// validation function the command layer calls before doing anything
// observable), narrowed from the teacher's download-an-artifact options
// to the daemon's actual inputs: which host bundle it is servicing and
// where its two peer endpoints live.
package daemonopts

import (
	"errors"
	"strings"
)

// Options is the daemon's command-line surface, per spec.md §6.
type Options struct {
	HostBundleIdentifier string
	SocketDir             string
	AllowInteraction      bool
	LogLevel              string
}

// ValidateOptions checks that Options is complete enough to start the
// Stage Controller. It does not touch the filesystem or network — that
// happens once the command layer has confirmed the options make sense.
func ValidateOptions(o Options) error {
	if strings.TrimSpace(o.HostBundleIdentifier) == "" {
		return errors.New("missing --host-bundle-id")
	}
	if strings.TrimSpace(o.SocketDir) == "" {
		return errors.New("missing --socket-dir")
	}
	switch strings.ToLower(strings.TrimSpace(o.LogLevel)) {
	case "", "debug", "info", "warn", "error":
	default:
		return errors.New("--log-level must be one of debug, info, warn, error")
	}
	return nil
}
