package validator

import (
	"crypto/ed25519"
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atomikpanda/Sparkle/internal/hostbundle"
)

func sign(t *testing.T, priv ed25519.PrivateKey, data []byte) string {
	t.Helper()
	return base64.StdEncoding.EncodeToString(ed25519.Sign(priv, data))
}

func TestValidateRejectsMissingInstallSource(t *testing.T) {
	v := New()
	d := v.Validate(Input{HasInstallSource: false})
	assert.False(t, d.Valid)
	assert.Equal(t, ReasonNoInstallSource, d.Reason)
}

func TestValidatePackageAcceptsValidSignature(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	archive := []byte("package contents")

	v := New()
	d := v.Validate(Input{
		HasInstallSource: true,
		IsPackage:        true,
		Host:             hostbundle.HostInfo{PublicKey: pub},
		ArchiveBytes:     archive,
		EncodedSignature: sign(t, priv, archive),
	})
	assert.True(t, d.Valid)
	assert.Equal(t, ReasonAccepted, d.Reason)
}

func TestValidatePackageRejectsMissingHostKey(t *testing.T) {
	v := New()
	d := v.Validate(Input{HasInstallSource: true, IsPackage: true})
	assert.False(t, d.Valid)
	assert.Equal(t, ReasonMissingHostPublicKey, d.Reason)
}

func TestValidatePackageRejectsBadSignature(t *testing.T) {
	pub, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	_, otherPriv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	archive := []byte("package contents")

	v := New()
	d := v.Validate(Input{
		HasInstallSource: true,
		IsPackage:        true,
		Host:             hostbundle.HostInfo{PublicKey: pub},
		ArchiveBytes:     archive,
		EncodedSignature: sign(t, otherPriv, archive),
	})
	assert.False(t, d.Valid)
	assert.Equal(t, ReasonSignatureMismatch, d.Reason)
}

func TestValidateBundleAcceptsMatchingKeysUnsignedNewBundle(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	archive := []byte("bundle contents")

	v := New()
	d := v.Validate(Input{
		HasInstallSource: true,
		IsPackage:        false,
		Host:             hostbundle.HostInfo{PublicKey: pub},
		NewBundle:        hostbundle.HostInfo{PublicKey: pub, CodeSigned: false},
		ArchiveBytes:     archive,
		EncodedSignature: sign(t, priv, archive),
	})
	assert.True(t, d.Valid)
}

func TestValidateBundleRejectsBrokenCodeSignatureWhenKeysMatch(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	archive := []byte("bundle contents")

	v := New()
	v.CodeSign = fakeCodeSign{intrinsicallyValid: false}
	d := v.Validate(Input{
		HasInstallSource: true,
		IsPackage:        false,
		Host:             hostbundle.HostInfo{PublicKey: pub},
		NewBundle:        hostbundle.HostInfo{PublicKey: pub, CodeSigned: true, BundlePath: "/staging/New.app"},
		ArchiveBytes:     archive,
		EncodedSignature: sign(t, priv, archive),
	})
	assert.False(t, d.Valid)
	assert.Equal(t, ReasonCodeSigningBroken, d.Reason)
}

func TestValidateBundleAcceptsKeyRotationWithMatchingCodeSigningIdentity(t *testing.T) {
	oldPub, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	newPub, newPriv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	archive := []byte("bundle contents")

	v := New()
	d := v.Validate(Input{
		HasInstallSource: true,
		IsPackage:        false,
		Host:             hostbundle.HostInfo{PublicKey: oldPub, CodeSigned: true, CodeSigningIdentity: "TEAMID.com.example.App"},
		NewBundle:        hostbundle.HostInfo{PublicKey: newPub, CodeSigned: true, CodeSigningIdentity: "TEAMID.com.example.App"},
		ArchiveBytes:     archive,
		EncodedSignature: sign(t, newPriv, archive),
	})
	assert.True(t, d.Valid)
}

func TestValidateBundleRejectsKeyRotationWithoutCodeSigning(t *testing.T) {
	oldPub, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	newPub, newPriv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	archive := []byte("bundle contents")

	v := New()
	d := v.Validate(Input{
		HasInstallSource: true,
		IsPackage:        false,
		Host:             hostbundle.HostInfo{PublicKey: oldPub},
		NewBundle:        hostbundle.HostInfo{PublicKey: newPub},
		ArchiveBytes:     archive,
		EncodedSignature: sign(t, newPriv, archive),
	})
	assert.False(t, d.Valid)
	assert.Equal(t, ReasonCodeSigningDiscontinuity, d.Reason)
}

func TestValidateBundleRejectsMismatchedSignature(t *testing.T) {
	newPub, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	archive := []byte("bundle contents")

	v := New()
	d := v.Validate(Input{
		HasInstallSource: true,
		IsPackage:        false,
		NewBundle:        hostbundle.HostInfo{PublicKey: newPub},
		ArchiveBytes:     archive,
		EncodedSignature: "not-a-real-signature",
	})
	assert.False(t, d.Valid)
	assert.Equal(t, ReasonSignatureMismatch, d.Reason)
}

func TestValidateBundleRejectsMissingNewPublicKey(t *testing.T) {
	v := New()
	d := v.Validate(Input{HasInstallSource: true, IsPackage: false})
	assert.False(t, d.Valid)
	assert.Equal(t, ReasonMissingNewPublicKey, d.Reason)
}

type fakeCodeSign struct {
	intrinsicallyValid bool
}

func (f fakeCodeSign) IntrinsicallyValid(string) (bool, error) { return f.intrinsicallyValid, nil }
func (f fakeCodeSign) IdentitiesMatch(a, b string) bool        { return a == b }
