package protocol

import (
	"bytes"
	"testing"
)

func TestWriteReadFrameRoundTrip(t *testing.T) {
	cases := []Frame{
		{Identifier: ExtractionStarted, Payload: nil},
		{Identifier: ExtractedWithProgress, Payload: EncodeProgress(0.42)},
		{Identifier: InstallationFinishedStage1, Payload: EncodeStage1Result(Stage1Result{CanInstallSilently: true})},
	}
	for _, want := range cases {
		var buf bytes.Buffer
		if err := WriteFrame(&buf, want); err != nil {
			t.Fatalf("WriteFrame: %v", err)
		}
		got, err := ReadFrame(&buf)
		if err != nil {
			t.Fatalf("ReadFrame: %v", err)
		}
		if got.Identifier != want.Identifier {
			t.Errorf("identifier: got %v want %v", got.Identifier, want.Identifier)
		}
		if !bytes.Equal(got.Payload, want.Payload) {
			t.Errorf("payload: got %v want %v", got.Payload, want.Payload)
		}
	}
}

func TestReadFrameRejectsOversizedPayload(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteFrame(&buf, Frame{Identifier: ExtractionStarted, Payload: make([]byte, 16)}); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}
	header := buf.Bytes()[:8]
	header[4], header[5], header[6], header[7] = 0xff, 0xff, 0xff, 0x7f
	if _, err := ReadFrame(bytes.NewReader(header)); err == nil {
		t.Fatal("expected error for oversized payload length")
	}
}

func TestReadFrameTruncatedHeader(t *testing.T) {
	if _, err := ReadFrame(bytes.NewReader([]byte{1, 2, 3})); err == nil {
		t.Fatal("expected error for truncated header")
	}
}

func TestIdentifierKnown(t *testing.T) {
	if !ExtractionStarted.Known() {
		t.Error("ExtractionStarted should be known")
	}
	if !UpdaterAlivePong.Known() {
		t.Error("UpdaterAlivePong should be known")
	}
	if Identifier(0).Known() {
		t.Error("zero value should not be known")
	}
	if Identifier(999).Known() {
		t.Error("999 should not be known")
	}
}

func TestIdentifierString(t *testing.T) {
	if got := InstallationInputMessage.String(); got != "INSTALLATION_INPUT" {
		t.Errorf("got %q", got)
	}
	if got := Identifier(999).String(); got != "UNKNOWN" {
		t.Errorf("got %q", got)
	}
}
