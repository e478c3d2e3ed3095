package stagecontroller

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/atomikpanda/Sparkle/internal/hostbundle"
	"github.com/atomikpanda/Sparkle/internal/protocol"
	"github.com/atomikpanda/Sparkle/internal/session"
	"github.com/atomikpanda/Sparkle/internal/unarchiver"
	"github.com/atomikpanda/Sparkle/internal/validator"
)

// runExtraction performs spec.md §4.6's Extracting phase: select an
// unarchiver by the archive's file name, optionally age-decrypt it, and
// extract into the updater-supplied staging directory, forwarding progress
// as EXTRACTED_WITH_PROGRESS frames. It always runs off the main
// scheduler, on its own goroutine — extraction is pure I/O with no
// backend side effects, so it does not need the serial worker sequence
// that installerbackend calls do.
func (c *Controller) runExtraction(in protocol.InstallationInput, host hostbundle.HostInfo) {
	unarch, err := unarchiver.Select(in.ArchiveFileName)
	if err != nil {
		c.extractionFailed(err)
		return
	}

	stagingDir := c.cfg.Session.StagingDirectory()
	if err := os.MkdirAll(stagingDir, 0o755); err != nil {
		c.extractionFailed(fmt.Errorf("creating staging directory: %w", err))
		return
	}

	archivePath := filepath.Join(stagingDir, in.ArchiveFileName)
	archiveBytes, err := os.ReadFile(archivePath)
	if err != nil {
		c.extractionFailed(fmt.Errorf("reading archive: %w", err))
		return
	}

	decryptionPassword, err := c.cfg.Password.Fetch()
	if err != nil || decryptionPassword == "" {
		decryptionPassword = in.DecryptionPassword
	}

	err = unarch.Extract(c.ctx, archivePath, stagingDir, decryptionPassword, c.reportExtractionProgress)
	if err != nil {
		c.extractionFailed(err)
		return
	}

	if fp, err := unarchiver.Fingerprint(stagingDir); err == nil {
		c.logger.Info("extraction complete", "fingerprint", fp)
	}

	c.runValidation(in, host, archiveBytes)
}

func (c *Controller) reportExtractionProgress(fraction float64) {
	if err := c.updaterLink.Send(protocol.ExtractedWithProgress, protocol.EncodeProgress(fraction)); err != nil {
		c.logger.Warn("sending EXTRACTED_WITH_PROGRESS failed", "error", err)
	}
}

// extractionFailed implements spec.md §4.6's failure branch: report
// ARCHIVE_EXTRACTION_FAILED and return to AwaitingInputs so the updater
// can retry with a fresh INSTALLATION_INPUT (spec.md §8 scenario:
// "extraction failure then retry").
func (c *Controller) extractionFailed(err error) {
	c.logger.Warn("archive extraction failed", "error", err)
	c.mu.Lock()
	c.receivedInstallationInput = false
	c.cfg.Session.SetPhase(session.AwaitingInputs)
	c.mu.Unlock()
	if sendErr := c.updaterLink.Send(protocol.ArchiveExtractionFailed, []byte(err.Error())); sendErr != nil {
		c.logger.Warn("sending ARCHIVE_EXTRACTION_FAILED failed", "error", sendErr)
	}
}

// runValidation implements spec.md §4.4: resolve the install source
// within the extraction, resolve the new bundle's metadata if it is a
// bundle rather than a package, and run the Validator's decision tree.
// A rejection never sends INSTALLATION_STARTED_STAGE_1 — the process
// exits fatally instead (spec.md §8 scenario: "signature mismatch: no
// stage-1 message, exit non-zero").
func (c *Controller) runValidation(in protocol.InstallationInput, host hostbundle.HostInfo, archiveBytes []byte) {
	c.cfg.Session.SetPhase(session.Validating)
	if err := c.updaterLink.Send(protocol.ValidationStarted, nil); err != nil {
		c.logger.Warn("sending VALIDATION_STARTED failed", "error", err)
	}

	stagingDir := c.cfg.Session.StagingDirectory()
	entries, err := os.ReadDir(stagingDir)
	if err != nil {
		c.fatal(fmt.Errorf("stagecontroller: listing staging directory: %w", err))
		return
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	installSourcePath, isPackage, ok := hostbundle.ResolveInstallSource(stagingDir, names)

	var newBundleInfo hostbundle.HostInfo
	if ok && !isPackage {
		newBundleInfo, err = c.readHostInfo(installSourcePath)
		if err != nil {
			c.fatal(fmt.Errorf("stagecontroller: reading new bundle metadata: %w", err))
			return
		}
	}

	v := c.cfg.Validator
	if v == nil {
		v = validator.New()
	}
	decision := v.Validate(validator.Input{
		Host:             host,
		ArchiveBytes:     archiveBytes,
		EncodedSignature: in.Signature,
		HasInstallSource: ok,
		IsPackage:        isPackage,
		NewBundle:        newBundleInfo,
	})
	if !decision.Valid {
		c.fatal(fmt.Errorf("stagecontroller: validation rejected: %s", decision.Reason))
		return
	}

	c.mu.Lock()
	c.archiveBytes = archiveBytes
	c.installSourcePath = installSourcePath
	c.isPackage = isPackage
	c.newBundleInfo = newBundleInfo
	c.gate.ValidatorSucceeded()
	c.mu.Unlock()

	c.tryBeginStage1()
}
