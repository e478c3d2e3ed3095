package protocol

import "testing"

func TestInstallationInputRoundTrip(t *testing.T) {
	want := InstallationInput{
		HostBundlePath:   "/Applications/Example.app",
		StagingDirectory: "/tmp/staging-abc",
		ArchiveFileName:  "Example-2.0.zip",
		Signature:        "base64sig==",
		RelaunchPath:     "/Applications/Example.app",
	}
	payload, err := EncodeInstallationInput(want)
	if err != nil {
		t.Fatalf("EncodeInstallationInput: %v", err)
	}
	got, err := DecodeInstallationInput(payload)
	if err != nil {
		t.Fatalf("DecodeInstallationInput: %v", err)
	}
	if got != want {
		t.Errorf("got %+v want %+v", got, want)
	}
}

func TestAppcastItemRoundTrip(t *testing.T) {
	want := AppcastItem{Version: "2.0", DisplayName: "Example 2.0"}
	payload, err := EncodeAppcastItem(want)
	if err != nil {
		t.Fatalf("EncodeAppcastItem: %v", err)
	}
	got, err := DecodeAppcastItem(payload)
	if err != nil {
		t.Fatalf("DecodeAppcastItem: %v", err)
	}
	if got != want {
		t.Errorf("got %+v want %+v", got, want)
	}
}

func TestInstallationInfoRoundTrip(t *testing.T) {
	want := InstallationInfo{
		Item:               AppcastItem{Version: "2.0"},
		CanInstallSilently: true,
	}
	payload, err := EncodeInstallationInfo(want)
	if err != nil {
		t.Fatalf("EncodeInstallationInfo: %v", err)
	}
	got, err := DecodeInstallationInfo(payload)
	if err != nil {
		t.Fatalf("DecodeInstallationInfo: %v", err)
	}
	if got != want {
		t.Errorf("got %+v want %+v", got, want)
	}
}

func TestDecodeRejectsMismatchedTag(t *testing.T) {
	payload, err := EncodeAppcastItem(AppcastItem{Version: "2.0"})
	if err != nil {
		t.Fatalf("EncodeAppcastItem: %v", err)
	}
	if _, err := DecodeInstallationInput(payload); err == nil {
		t.Fatal("expected tag mismatch error decoding an appcast item as an installation input")
	}
}

func TestDecodeRejectsGarbage(t *testing.T) {
	if _, err := DecodeInstallationInput([]byte{0xff, 0x00, 0x01}); err == nil {
		t.Fatal("expected decode error for garbage payload")
	}
}
