// Package validator implements C4: the signature + code-signing policy
// of spec.md §4.4, the asymmetric rule that anchors trust in the
// signing key when keys are stable and in code-signing identity when
// they rotate.
package validator

import (
	"github.com/atomikpanda/Sparkle/internal/codesign"
	"github.com/atomikpanda/Sparkle/internal/hostbundle"
	"github.com/atomikpanda/Sparkle/internal/signverify"
)

// Reason categorizes why a ValidationDecision came out the way it did,
// per spec.md §7's Validation error kind.
type Reason int

const (
	ReasonAccepted Reason = iota
	ReasonNoInstallSource
	ReasonMissingHostPublicKey
	ReasonSignatureMismatch
	ReasonMissingNewPublicKey
	ReasonCodeSigningBroken
	ReasonCodeSigningDiscontinuity
)

func (r Reason) String() string {
	switch r {
	case ReasonAccepted:
		return "accepted"
	case ReasonNoInstallSource:
		return "no install source found in archive"
	case ReasonMissingHostPublicKey:
		return "host has no public key"
	case ReasonSignatureMismatch:
		return "signature verification failed"
	case ReasonMissingNewPublicKey:
		return "new bundle has no public key"
	case ReasonCodeSigningBroken:
		return "new bundle's code signature is not intrinsically valid"
	case ReasonCodeSigningDiscontinuity:
		return "code-signing identity discontinuity across key rotation"
	default:
		return "unknown"
	}
}

// Decision is the ValidationDecision of spec.md §3.
type Decision struct {
	Valid  bool
	Reason Reason
}

// Validator applies the §4.4 policy.
type Validator struct {
	Signature signverify.Verifier
	CodeSign  codesign.Verifier
}

// New constructs a Validator with the default Ed25519/convention-based
// implementations.
func New() *Validator {
	return &Validator{
		Signature: signverify.Ed25519Verifier{},
		CodeSign:  codesign.ConventionVerifier{},
	}
}

// Input bundles everything the policy needs: the host's resolved
// metadata, the archive's raw bytes (signed directly, matching
// spec.md's "the archive itself must verify"), the resolved install
// source within the extraction, whether that source is a package, and
// the new bundle's metadata when the source is a bundle rather than a
// package.
type Input struct {
	Host             hostbundle.HostInfo
	ArchiveBytes     []byte
	EncodedSignature string
	HasInstallSource bool
	IsPackage        bool
	NewBundle        hostbundle.HostInfo // only meaningful when !IsPackage
}

// Validate runs the full §4.4 decision tree.
func (v *Validator) Validate(in Input) Decision {
	if !in.HasInstallSource {
		return Decision{Valid: false, Reason: ReasonNoInstallSource}
	}

	if in.IsPackage {
		return v.validatePackage(in)
	}
	return v.validateBundle(in)
}

func (v *Validator) validatePackage(in Input) Decision {
	if len(in.Host.PublicKey) == 0 {
		return Decision{Valid: false, Reason: ReasonMissingHostPublicKey}
	}
	ok, err := v.Signature.Verify(in.Host.PublicKey, in.ArchiveBytes, in.EncodedSignature)
	if err != nil || !ok {
		return Decision{Valid: false, Reason: ReasonSignatureMismatch}
	}
	return Decision{Valid: true, Reason: ReasonAccepted}
}

func (v *Validator) validateBundle(in Input) Decision {
	if len(in.NewBundle.PublicKey) == 0 {
		return Decision{Valid: false, Reason: ReasonMissingNewPublicKey}
	}

	ok, err := v.Signature.Verify(in.NewBundle.PublicKey, in.ArchiveBytes, in.EncodedSignature)
	if err != nil || !ok {
		return Decision{Valid: false, Reason: ReasonSignatureMismatch}
	}

	keysMatch := len(in.Host.PublicKey) > 0 &&
		len(in.NewBundle.PublicKey) > 0 &&
		string(in.Host.PublicKey) == string(in.NewBundle.PublicKey)

	if keysMatch {
		if in.NewBundle.CodeSigned {
			valid, err := v.CodeSign.IntrinsicallyValid(in.NewBundle.BundlePath)
			if err != nil || !valid {
				return Decision{Valid: false, Reason: ReasonCodeSigningBroken}
			}
		}
		return Decision{Valid: true, Reason: ReasonAccepted}
	}

	if !in.Host.CodeSigned || !in.NewBundle.CodeSigned {
		return Decision{Valid: false, Reason: ReasonCodeSigningDiscontinuity}
	}
	if !v.CodeSign.IdentitiesMatch(in.Host.CodeSigningIdentity, in.NewBundle.CodeSigningIdentity) {
		return Decision{Valid: false, Reason: ReasonCodeSigningDiscontinuity}
	}
	return Decision{Valid: true, Reason: ReasonAccepted}
}
