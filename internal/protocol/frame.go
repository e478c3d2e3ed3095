package protocol

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Frame is a decoded (identifier, payload) message, the unit exchanged
// over both peer links.
type Frame struct {
	Identifier Identifier
	Payload    []byte
}

// maxPayloadSize bounds a single frame's payload. The largest legitimate
// payload is an opaque archived object (an InstallationInput or an
// appcast item); this is generous for that while refusing to let a
// corrupt or hostile peer make the daemon allocate unbounded memory.
const maxPayloadSize = 64 << 20

// WriteFrame writes (identifier, len(payload), payload) to w. The length
// prefix is a little-endian uint32, matching the rest of the wire
// format's fixed-size little-endian encoding.
func WriteFrame(w io.Writer, f Frame) error {
	var header [8]byte
	binary.LittleEndian.PutUint32(header[0:4], uint32(f.Identifier))
	binary.LittleEndian.PutUint32(header[4:8], uint32(len(f.Payload)))
	if _, err := w.Write(header[:]); err != nil {
		return fmt.Errorf("writing frame header: %w", err)
	}
	if len(f.Payload) == 0 {
		return nil
	}
	if _, err := w.Write(f.Payload); err != nil {
		return fmt.Errorf("writing frame payload: %w", err)
	}
	return nil
}

// ReadFrame reads a single (identifier, payload) message from r. It does
// not validate that Identifier is Known() — callers dispatch on identity
// and decide for themselves whether an unknown id is fatal.
func ReadFrame(r io.Reader) (Frame, error) {
	var header [8]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return Frame{}, err
	}
	id := Identifier(binary.LittleEndian.Uint32(header[0:4]))
	length := binary.LittleEndian.Uint32(header[4:8])
	if length > maxPayloadSize {
		return Frame{}, fmt.Errorf("frame payload too large: %d bytes", length)
	}
	payload := make([]byte, length)
	if length > 0 {
		if _, err := io.ReadFull(r, payload); err != nil {
			return Frame{}, fmt.Errorf("reading frame payload: %w", err)
		}
	}
	return Frame{Identifier: id, Payload: payload}, nil
}
