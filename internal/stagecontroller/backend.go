package stagecontroller

import (
	"github.com/atomikpanda/Sparkle/internal/hostbundle"
	"github.com/atomikpanda/Sparkle/internal/installerbackend"
)

// defaultBackendFactory is used when Config.NewBackend is left unset: a
// package install source gets a PackageInstaller, a bundle install
// source gets a LocalSwap targeting the host's current install path —
// the two branches spec.md §4.4 treats as mutually exclusive.
func defaultBackendFactory(host, newBundle hostbundle.HostInfo, installSourcePath string, isPackage bool) (installerbackend.Backend, error) {
	if isPackage {
		return installerbackend.NewPackageInstaller(installSourcePath, host.BundlePath), nil
	}
	return installerbackend.NewLocalSwap(newBundle, installSourcePath, host.BundlePath, false), nil
}
