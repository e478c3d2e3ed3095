// Package installerbackend implements the external installer backend
// collaborator of spec.md §1: a three-stage interface the Stage
// Controller drives from its worker sequence (perform_first_stage,
// perform_second_stage, perform_third_stage, cleanup,
// installation_path_for, plus capability flags). The interface shape is
// grounded on aws-amazon-ssm-agent's Installer (Install/Uninstall/
// Validate, one call per lifecycle phase); the bundle implementation's
// atomic-rename-with-rollback swap is grounded on both the teacher's
// applyUpdate (cmd/rawrequest-updater/updater_main.go) and
// other_examples/gerrandonea-joobpay-joobpay-go-updater__script.go,
// which perform the identical rename-to-backup / rename-into-place /
// remove-backup-on-success sequence from a bash script.
package installerbackend

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/atomikpanda/Sparkle/internal/hostbundle"
)

// Backend is the InstallerHandle of spec.md §3: an opaque reference to
// the external installer backend, advanced through three stages.
type Backend interface {
	CanInstallSilently() bool
	DisplaysUserProgress() bool

	PerformFirstStage(ctx context.Context) error
	PerformSecondStage(ctx context.Context, allowingUI bool) error
	PerformThirdStage(ctx context.Context) error

	// InstallationPathFor returns where the host bundle will live once
	// installation completes, used to compute the relaunch path per
	// spec.md §4.6 stage 3.
	InstallationPathFor(host hostbundle.HostInfo) string

	Cleanup() error
}

// ErrInstallationCancelled signals the InstallationCancelled case of
// stage 2 (spec.md §4.6): the Stage Controller emits a courtesy
// cancelled result before treating it as fatal.
var ErrInstallationCancelled = fmt.Errorf("installerbackend: installation cancelled")

// LocalSwap is the bundle-update Backend: it performs an atomic
// rename-based swap of a new bundle into the host's install path, with
// rollback to a backup on failure. Package updates use PackageInstaller
// instead (spec.md §4.4 treats the two as mutually exclusive branches).
type LocalSwap struct {
	Host              hostbundle.HostInfo
	InstallSourcePath string // the new bundle, already validated, inside the staging directory
	InstallPath       string // where the host bundle currently lives and will live again

	silentlyCapable bool
	backupPath      string
}

// NewLocalSwap constructs a LocalSwap backend. canInstallSilently
// reflects whatever host-bundle convention (spec.md §1) determines
// whether this install can proceed without user interaction; it is
// supplied by the caller rather than recomputed here because deciding
// it is outside this package's scope.
func NewLocalSwap(host hostbundle.HostInfo, installSourcePath, installPath string, canInstallSilently bool) *LocalSwap {
	return &LocalSwap{
		Host:              host,
		InstallSourcePath: installSourcePath,
		InstallPath:       installPath,
		silentlyCapable:   canInstallSilently,
	}
}

func (b *LocalSwap) CanInstallSilently() bool   { return b.silentlyCapable }
func (b *LocalSwap) DisplaysUserProgress() bool { return false }

// PerformFirstStage validates preconditions: the new bundle must exist
// on disk. No filesystem mutation happens yet — the swap itself is
// deferred to stage 2, which the Stage Controller runs once the updater
// sends RESUME_TO_STAGE_2, whether or not the host has exited yet.
func (b *LocalSwap) PerformFirstStage(ctx context.Context) error {
	if _, err := os.Stat(b.InstallSourcePath); err != nil {
		return fmt.Errorf("installerbackend: new bundle missing at %s: %w", b.InstallSourcePath, err)
	}
	return nil
}

// PerformSecondStage performs the atomic swap: rename the current
// install path to a timestamped backup, then rename the new bundle
// into place. If the second rename fails, it rolls the backup back.
func (b *LocalSwap) PerformSecondStage(ctx context.Context, allowingUI bool) error {
	stamp := time.Now().UTC().Format("20060102T150405Z")
	b.backupPath = b.InstallPath + ".bak-" + stamp

	if _, err := os.Stat(b.InstallPath); err == nil {
		if err := os.Rename(b.InstallPath, b.backupPath); err != nil {
			return fmt.Errorf("installerbackend: backing up %s: %w", b.InstallPath, err)
		}
	} else {
		b.backupPath = ""
	}

	if err := os.Rename(b.InstallSourcePath, b.InstallPath); err != nil {
		if b.backupPath != "" {
			_ = os.Rename(b.backupPath, b.InstallPath)
		}
		return fmt.Errorf("installerbackend: moving new bundle into place: %w", err)
	}
	return nil
}

// PerformThirdStage removes the backup left by a successful swap.
// Removal is best-effort: a failure here does not unwind the swap,
// since the new bundle is already live.
func (b *LocalSwap) PerformThirdStage(ctx context.Context) error {
	if b.backupPath == "" {
		return nil
	}
	_ = os.RemoveAll(b.backupPath)
	b.backupPath = ""
	return nil
}

func (b *LocalSwap) InstallationPathFor(host hostbundle.HostInfo) string {
	return b.InstallPath
}

func (b *LocalSwap) Cleanup() error {
	if b.backupPath != "" {
		return os.RemoveAll(b.backupPath)
	}
	return nil
}

// PackageInstaller invokes a platform package installer (msiexec,
// installer(8), pkgutil, etc.) rather than swapping files directly.
// spec.md §4.4's package branch only verifies the archive itself
// against the host's public key — no bundle metadata or code-signing
// check applies — so this backend's responsibility is narrower than
// LocalSwap's: hand the package to the platform and report the result.
type PackageInstaller struct {
	PackagePath string
	InstallPath string

	// Run invokes the platform installer. Exposed as a field (not an
	// interface) so tests can substitute a fake without standing up a
	// real package manager — grounded on the same seam aws-ssm-agent's
	// trace.Tracer/context.T pair gives its Installer.Install calls.
	Run func(ctx context.Context, packagePath string) error
}

func NewPackageInstaller(packagePath, installPath string) *PackageInstaller {
	return &PackageInstaller{PackagePath: packagePath, InstallPath: installPath}
}

func (p *PackageInstaller) CanInstallSilently() bool   { return true }
func (p *PackageInstaller) DisplaysUserProgress() bool { return false }

func (p *PackageInstaller) PerformFirstStage(ctx context.Context) error {
	if _, err := os.Stat(p.PackagePath); err != nil {
		return fmt.Errorf("installerbackend: package missing at %s: %w", p.PackagePath, err)
	}
	return nil
}

func (p *PackageInstaller) PerformSecondStage(ctx context.Context, allowingUI bool) error {
	if p.Run == nil {
		return fmt.Errorf("installerbackend: no package runner configured")
	}
	return p.Run(ctx, p.PackagePath)
}

func (p *PackageInstaller) PerformThirdStage(ctx context.Context) error {
	return nil
}

func (p *PackageInstaller) InstallationPathFor(host hostbundle.HostInfo) string {
	return p.InstallPath
}

func (p *PackageInstaller) Cleanup() error {
	return os.Remove(p.PackagePath)
}
