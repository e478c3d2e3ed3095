package hostbundle

import (
	"encoding/base64"
	"os"
	"path/filepath"
	"testing"
)

func TestManifestReaderReadsBundleDirectory(t *testing.T) {
	dir := t.TempDir()
	bundlePath := filepath.Join(dir, "Example.app")
	if err := os.MkdirAll(bundlePath, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	key := []byte("0123456789abcdef0123456789abcdef")
	manifest := `{"identifier":"com.example.App","version":"2.0","public_key":"` +
		base64.StdEncoding.EncodeToString(key) + `","code_signed":true,"code_signing_identity":"com.example.App"}`
	if err := os.WriteFile(filepath.Join(bundlePath, manifestFileName), []byte(manifest), 0o644); err != nil {
		t.Fatalf("write manifest: %v", err)
	}

	info, err := ManifestReader{}.ReadHostInfo(bundlePath)
	if err != nil {
		t.Fatalf("ReadHostInfo: %v", err)
	}
	if info.Identifier != "com.example.App" || info.Version != "2.0" {
		t.Errorf("got %+v", info)
	}
	if string(info.PublicKey) != string(key) {
		t.Error("public key mismatch")
	}
	if !info.CodeSigned || info.CodeSigningIdentity != "com.example.App" {
		t.Errorf("got %+v", info)
	}
}

func TestManifestReaderReadsPackageSidecar(t *testing.T) {
	dir := t.TempDir()
	pkgPath := filepath.Join(dir, "Example.pkg")
	if err := os.WriteFile(pkgPath, []byte("fake package bytes"), 0o644); err != nil {
		t.Fatalf("write package: %v", err)
	}
	if err := os.WriteFile(pkgPath+"."+manifestFileName, []byte(`{"version":"2.0"}`), 0o644); err != nil {
		t.Fatalf("write manifest: %v", err)
	}

	info, err := ManifestReader{}.ReadHostInfo(pkgPath)
	if err != nil {
		t.Fatalf("ReadHostInfo: %v", err)
	}
	if info.Identifier != "Example" {
		t.Errorf("expected identifier derived from path, got %q", info.Identifier)
	}
	if info.Version != "2.0" {
		t.Errorf("got %+v", info)
	}
}

func TestManifestReaderMissingManifest(t *testing.T) {
	dir := t.TempDir()
	bundlePath := filepath.Join(dir, "Example.app")
	if err := os.MkdirAll(bundlePath, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if _, err := (ManifestReader{}).ReadHostInfo(bundlePath); err == nil {
		t.Fatal("expected error for missing manifest")
	}
}
