// Package password custodies the optional decryption password carried
// on InstallationInput (spec.md §3) in the OS keyring for the lifetime
// of one installation, without ever writing it to disk. The store/retrieve/clear shape is grounded
// on the teacher's secret_vault.go (readKeyring/writeKeyring/Reset),
// narrowed from a general secrets vault with a file fallback to a
// single transient runtime secret with no fallback — if the keyring is
// unavailable, the password is simply not persisted across the call
// that needs it.
package password

import (
	"fmt"

	"github.com/zalando/go-keyring"
)

const keyringService = "com.sparkle.installer"

// Custody stores and retrieves one session's decryption password under
// a keyring entry scoped to that session, so concurrent installer
// daemons (different host bundle identifiers) never collide.
type Custody struct {
	sessionKey string
}

// New scopes custody to sessionKey, typically the host bundle
// identifier of the installation being serviced.
func New(sessionKey string) *Custody {
	return &Custody{sessionKey: sessionKey}
}

// Store saves password in the OS keyring for later retrieval by Fetch.
// An empty password is a no-op — spec.md §3 marks it optional, and
// there's nothing to custody when the archive isn't encrypted.
func (c *Custody) Store(pw string) error {
	if pw == "" {
		return nil
	}
	if err := keyring.Set(keyringService, c.sessionKey, pw); err != nil {
		return fmt.Errorf("password: storing decryption password: %w", err)
	}
	return nil
}

// Fetch retrieves the password previously stored for this session.
// Returns "" with no error if nothing was ever stored.
func (c *Custody) Fetch() (string, error) {
	pw, err := keyring.Get(keyringService, c.sessionKey)
	if err != nil {
		if err == keyring.ErrNotFound {
			return "", nil
		}
		return "", fmt.Errorf("password: fetching decryption password: %w", err)
	}
	return pw, nil
}

// Clear removes the session's password from the keyring. Called
// unconditionally during C7 cleanup so no installation's password
// outlives its daemon process.
func (c *Custody) Clear() error {
	if err := keyring.Delete(keyringService, c.sessionKey); err != nil && err != keyring.ErrNotFound {
		return fmt.Errorf("password: clearing decryption password: %w", err)
	}
	return nil
}
