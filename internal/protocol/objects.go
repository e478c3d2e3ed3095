package protocol

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// objectTag identifies the schema of an archived object envelope. The
// decoder refuses to decode an envelope whose tag does not match the
// type requested by the caller — this is the "authenticated,
// schema-tagged serialization rejecting unknown types" of spec.md §4.1.
// "Authenticated" here means type-checked, not cryptographically signed:
// the signature that actually authenticates the archive is the detached
// one verified by internal/validator.
type objectTag string

const (
	tagInstallationInput  objectTag = "installation-input"
	tagAppcastItem        objectTag = "appcast-item"
	tagInstallationInfo   objectTag = "installation-info"
)

type envelope struct {
	Tag  objectTag       `cbor:"tag"`
	Body cbor.RawMessage `cbor:"body"`
}

// InstallationInput is received once from the updater (possibly replaced
// after an extraction failure, per spec.md §3).
type InstallationInput struct {
	HostBundlePath    string `cbor:"host_bundle_path"`
	StagingDirectory  string `cbor:"staging_directory"`
	ArchiveFileName   string `cbor:"archive_file_name"`
	DecryptionPassword string `cbor:"decryption_password,omitempty"`
	Signature         string `cbor:"signature"`
	RelaunchPath      string `cbor:"relaunch_path"`
}

// AppcastItem is the inbound SENT_UPDATE_APPCAST_ITEM_DATA payload body.
// Its fields are opaque to the daemon beyond what InstallationInfo needs
// to re-derive from it (spec.md §4.8) — it is forwarded, not interpreted.
type AppcastItem struct {
	Version     string `cbor:"version"`
	DisplayName string `cbor:"display_name"`
	ReleaseNotesURL string `cbor:"release_notes_url,omitempty"`
}

// InstallationInfo is published to the agent so it can broadcast
// discovery (spec.md §4.8).
type InstallationInfo struct {
	Item               AppcastItem `cbor:"item"`
	CanInstallSilently bool        `cbor:"can_install_silently"`
}

func EncodeInstallationInput(v InstallationInput) ([]byte, error) {
	return encodeEnvelope(tagInstallationInput, v)
}

func DecodeInstallationInput(payload []byte) (InstallationInput, error) {
	var v InstallationInput
	err := decodeEnvelope(payload, tagInstallationInput, &v)
	return v, err
}

func EncodeAppcastItem(v AppcastItem) ([]byte, error) {
	return encodeEnvelope(tagAppcastItem, v)
}

func DecodeAppcastItem(payload []byte) (AppcastItem, error) {
	var v AppcastItem
	err := decodeEnvelope(payload, tagAppcastItem, &v)
	return v, err
}

func EncodeInstallationInfo(v InstallationInfo) ([]byte, error) {
	return encodeEnvelope(tagInstallationInfo, v)
}

func DecodeInstallationInfo(payload []byte) (InstallationInfo, error) {
	var v InstallationInfo
	err := decodeEnvelope(payload, tagInstallationInfo, &v)
	return v, err
}

func encodeEnvelope(tag objectTag, body any) ([]byte, error) {
	bodyBytes, err := cbor.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encoding %s body: %w", tag, err)
	}
	return cbor.Marshal(envelope{Tag: tag, Body: bodyBytes})
}

func decodeEnvelope(payload []byte, want objectTag, out any) error {
	var env envelope
	if err := cbor.Unmarshal(payload, &env); err != nil {
		return fmt.Errorf("decoding object envelope: %w", err)
	}
	if env.Tag != want {
		return fmt.Errorf("object envelope tag mismatch: want %s, got %s", want, env.Tag)
	}
	if err := cbor.Unmarshal(env.Body, out); err != nil {
		return fmt.Errorf("decoding %s body: %w", want, err)
	}
	return nil
}
