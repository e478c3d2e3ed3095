package signverify

import (
	"crypto/ed25519"
	"encoding/base64"
	"testing"
)

func TestEd25519VerifierAcceptsValidSignature(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	data := []byte("archive contents")
	sig := ed25519.Sign(priv, data)
	encoded := base64.StdEncoding.EncodeToString(sig)

	ok, err := Ed25519Verifier{}.Verify(pub, data, encoded)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if !ok {
		t.Error("expected signature to verify")
	}
}

func TestEd25519VerifierRejectsTamperedData(t *testing.T) {
	pub, priv, _ := ed25519.GenerateKey(nil)
	sig := ed25519.Sign(priv, []byte("archive contents"))
	encoded := base64.StdEncoding.EncodeToString(sig)

	ok, err := Ed25519Verifier{}.Verify(pub, []byte("different contents"), encoded)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if ok {
		t.Error("expected signature to fail verification against different data")
	}
}

func TestEd25519VerifierRejectsWrongKeySize(t *testing.T) {
	if _, err := (Ed25519Verifier{}).Verify([]byte("short"), []byte("data"), "AAAA"); err == nil {
		t.Error("expected error for wrong key size")
	}
}

func TestEd25519VerifierRejectsUndecodableSignature(t *testing.T) {
	pub, _, _ := ed25519.GenerateKey(nil)
	if _, err := (Ed25519Verifier{}).Verify(pub, []byte("data"), "not-base64!!"); err == nil {
		t.Error("expected error for undecodable signature")
	}
}
