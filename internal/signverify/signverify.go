// Package signverify implements the signature verifier primitive
// spec.md §1 lists as an external collaborator (described only by
// interface): verify an archive's detached signature against a public
// key. No repo in the retrieval pack reaches for a third-party ed25519
// library — crypto/ed25519 is the ecosystem default for this exact
// primitive, so it is used directly rather than introducing a
// dependency purely to avoid the standard library.
package signverify

import (
	"crypto/ed25519"
	"encoding/base64"
	"fmt"
)

// Verifier checks a detached signature over data against a public key.
type Verifier interface {
	Verify(publicKey []byte, data []byte, encodedSignature string) (bool, error)
}

// Ed25519Verifier is the default Verifier: signatures are ed25519,
// encoded as the "opaque printable string (e.g., base64)" of spec.md §6.
type Ed25519Verifier struct{}

// Verify decodes encodedSignature as standard base64 and checks it
// against data using publicKey.
func (Ed25519Verifier) Verify(publicKey []byte, data []byte, encodedSignature string) (bool, error) {
	if len(publicKey) != ed25519.PublicKeySize {
		return false, fmt.Errorf("signverify: public key must be %d bytes, got %d", ed25519.PublicKeySize, len(publicKey))
	}
	sig, err := base64.StdEncoding.DecodeString(encodedSignature)
	if err != nil {
		return false, fmt.Errorf("signverify: decoding signature: %w", err)
	}
	if len(sig) != ed25519.SignatureSize {
		return false, fmt.Errorf("signverify: signature must be %d bytes, got %d", ed25519.SignatureSize, len(sig))
	}
	return ed25519.Verify(ed25519.PublicKey(publicKey), data, sig), nil
}
