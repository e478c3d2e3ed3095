// Package hostbundle resolves HostInfo and ExtractedBundle metadata and
// the install-path and install-source conventions the Stage Controller and
// Validator need. Path resolution is grounded on the teacher's
// internal/updateapplylogic (DetermineInstallPath, DetermineUpdaterPath,
// InstallParentDir), generalized from RawRequest's own self-update path
// layout to an arbitrary host bundle.
package hostbundle

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// HostInfo is resolved from a host bundle path: its public verification
// key (may be absent), its own path, and its version. Per spec.md §3.
type HostInfo struct {
	BundlePath string
	Identifier string
	Version    string
	PublicKey  []byte // nil if the bundle carries no verification key
	CodeSigned bool
	CodeSigningIdentity string
}

// ExtractedBundle is the install source resolved inside a staging
// directory for a bundle update (not a package): its path, and the
// HostInfo of the new bundle found there (spec.md §3).
type ExtractedBundle struct {
	InstallSourcePath string
	Info              HostInfo
}

// MetadataReader resolves HostInfo for a bundle path. The concrete
// implementation reads the platform bundle metadata convention (e.g. an
// Info.plist-equivalent manifest); this interface exists so the Stage
// Controller and tests can be driven without touching a filesystem
// convention the daemon does not own (spec.md §1 lists "bundle metadata
// extraction" as an external collaborator).
type MetadataReader interface {
	ReadHostInfo(bundlePath string) (HostInfo, error)
}

// ResolveIdentifier derives the host bundle identifier from a bundle
// path, matching DaemonSession's invariant that host_bundle_path's
// identifier must equal the identifier set at construction (spec.md §3).
func ResolveIdentifier(bundlePath string) string {
	return strings.TrimSuffix(filepath.Base(filepath.Clean(bundlePath)), filepath.Ext(bundlePath))
}

// InstallParentDir returns the directory that should be probed for
// write access when installing to installPath — the parent of a .app
// bundle, or the path itself otherwise.
func InstallParentDir(installPath string) (string, error) {
	parent := installPath
	if strings.HasSuffix(strings.ToLower(strings.TrimSpace(installPath)), ".app") {
		parent = filepath.Dir(installPath)
	}
	if strings.TrimSpace(parent) == "" {
		return "", errors.New("hostbundle: could not determine install parent directory")
	}
	return parent, nil
}

// DetermineInstallPath resolves the host bundle's install path from the
// running executable's own path, by platform convention.
func DetermineInstallPath(goos, exePath string) (string, error) {
	switch goos {
	case "darwin":
		exeDir := filepath.Dir(exePath)
		contentsDir := filepath.Dir(exeDir)
		appPath := filepath.Dir(contentsDir)
		if !strings.HasSuffix(strings.ToLower(appPath), ".app") {
			return "", fmt.Errorf("hostbundle: could not determine app bundle path from %s", exePath)
		}
		return appPath, nil
	case "windows":
		return filepath.Dir(exePath), nil
	default:
		return "", fmt.Errorf("hostbundle: unsupported platform %s", goos)
	}
}

// ResolveInstallSource locates the install source within an extraction
// of an update archive at extractedPath: either a bundle (the first
// top-level entry whose name ends in .app, case-insensitively, on every
// platform) or, if none is found, a package (the first top-level entry
// whose name does not start with "."). Entries are matched by name
// only; whether an entry is a directory or a file is not checked. ok reports whether anything
// recognizable was found, per spec.md §4.4 step 1 ("resolve the install
// source ... and a boolean is_package. If none, reject.").
func ResolveInstallSource(extractedPath string, entries []string) (path string, isPackage bool, ok bool) {
	for _, name := range entries {
		if strings.HasSuffix(strings.ToLower(name), ".app") {
			return filepath.Join(extractedPath, name), false, true
		}
	}
	for _, name := range entries {
		if !strings.HasPrefix(name, ".") {
			return filepath.Join(extractedPath, name), true, true
		}
	}
	return "", false, false
}
