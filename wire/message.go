// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import (
	"bytes"
	"crypto/sha256"
	"fmt"
	"io"

	"github.com/pkg/errors"
)

// MaxMessagePayload is the maximum bytes a message payload can be, regardless
// of other individual limits imposed by messages themselves.
const MaxMessagePayload = 32 * 1024 * 1024 // 32MB

// CommandSize is the fixed size in bytes of a message header's command
// field: a NUL-padded ASCII string.
const CommandSize = 12

// MessageHeaderSize is the number of bytes in a network message header:
// magic (4) + command (12) + payload length (4) + checksum (4).
const MessageHeaderSize = 4 + CommandSize + 4 + 4

// Commands used in message headers which describe the type of message.
const (
	CmdBlock = "block"
	CmdTx    = "tx"
)

// Message is the interface every network-serializable payload implements.
type Message interface {
	BtcDecode(r io.Reader) error
	BtcEncode(w io.Writer) error
	Command() string
	MaxPayloadLength() uint32
}

// messageHeader holds the header fields every message carries on the wire.
type messageHeader struct {
	magic    [4]byte
	command  [CommandSize]byte
	length   uint32
	checksum [4]byte
}

func commandToBytes(command string) ([CommandSize]byte, error) {
	var buf [CommandSize]byte
	if len(command) > CommandSize {
		return buf, errors.Errorf("command %q is too long", command)
	}
	copy(buf[:], command)
	return buf, nil
}

func commandFromBytes(buf [CommandSize]byte) string {
	i := bytes.IndexByte(buf[:], 0)
	if i == -1 {
		i = CommandSize
	}
	return string(buf[:i])
}

func checksum(payload []byte) [4]byte {
	first := sha256.Sum256(payload)
	second := sha256.Sum256(first[:])
	var out [4]byte
	copy(out[:], second[:4])
	return out
}

// WriteMessage writes a complete wire-format message (magic, command,
// length, checksum, payload) for msg to w, using the given network magic.
func WriteMessage(w io.Writer, msg Message, magic [4]byte) error {
	var payloadBuf bytes.Buffer
	if err := msg.BtcEncode(&payloadBuf); err != nil {
		return err
	}
	payload := payloadBuf.Bytes()

	lenp := uint32(len(payload))
	if lenp > msg.MaxPayloadLength() {
		return errors.Errorf("message payload of %d bytes exceeds max of %d bytes",
			lenp, msg.MaxPayloadLength())
	}

	cmd, err := commandToBytes(msg.Command())
	if err != nil {
		return err
	}

	hdr := messageHeader{
		magic:    magic,
		command:  cmd,
		length:   lenp,
		checksum: checksum(payload),
	}

	if _, err := w.Write(hdr.magic[:]); err != nil {
		return err
	}
	if _, err := w.Write(hdr.command[:]); err != nil {
		return err
	}
	if err := WriteElement(w, hdr.length); err != nil {
		return err
	}
	if _, err := w.Write(hdr.checksum[:]); err != nil {
		return err
	}
	_, err = w.Write(payload)
	return err
}

// ReadMessageHeader reads just the fixed-size message header from r.
func ReadMessageHeader(r io.Reader) (*messageHeader, error) {
	var hdr messageHeader
	if _, err := io.ReadFull(r, hdr.magic[:]); err != nil {
		return nil, err
	}
	if _, err := io.ReadFull(r, hdr.command[:]); err != nil {
		return nil, err
	}
	if err := ReadElement(r, &hdr.length); err != nil {
		return nil, err
	}
	if _, err := io.ReadFull(r, hdr.checksum[:]); err != nil {
		return nil, err
	}
	return &hdr, nil
}

// ReadMessage reads a complete wire-format message from r, verifying the
// network magic and checksum, and decodes the payload into msg.
func ReadMessage(r io.Reader, msg Message, magic [4]byte) error {
	hdr, err := ReadMessageHeader(r)
	if err != nil {
		return err
	}
	if hdr.magic != magic {
		return errors.Errorf("message magic %x does not match network magic %x",
			hdr.magic, magic)
	}
	gotCmd := commandFromBytes(hdr.command)
	if gotCmd != msg.Command() {
		return errors.Errorf("command mismatch: got %q, want %q", gotCmd, msg.Command())
	}
	if hdr.length > MaxMessagePayload || hdr.length > msg.MaxPayloadLength() {
		return errors.Errorf("message length %d exceeds maximum allowed", hdr.length)
	}

	payload := make([]byte, hdr.length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return err
	}
	if sum := checksum(payload); sum != hdr.checksum {
		return errors.Errorf("checksum mismatch: got %x, want %x", sum, hdr.checksum)
	}

	return msg.BtcDecode(bytes.NewReader(payload))
}

// String implements fmt.Stringer for debugging.
func (h *messageHeader) String() string {
	return fmt.Sprintf("%s (%d bytes)", commandFromBytes(h.command), h.length)
}
