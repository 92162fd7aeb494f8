package tftp

import (
	"bytes"
	"encoding/binary"
)

// PacketKind classifies a decoded inbound datagram.
type PacketKind int

const (
	KindRead PacketKind = iota
	KindAck
	KindError
	KindUnknown
)

// Packet is the result of parsing one inbound UDP datagram. Only the
// fields relevant to Kind are populated; the zero value for the rest
// is meaningless.
type Packet struct {
	Kind     PacketKind
	Filename string
	ModeText string
	Block    uint16
}

// ParsePacket classifies a received datagram, per spec.md §4.1. The
// codec never fails: malformed input decodes to KindUnknown rather
// than returning an error, mirroring the corpus's "opcode byte
// screening" approach (see jochenvg-go.tftp's packet.opcode()).
func ParsePacket(buf []byte) Packet {
	if len(buf) < 2 {
		return Packet{Kind: KindUnknown}
	}
	// A non-zero high byte can never be a valid TFTP opcode (all of
	// RFC 1350's opcodes fit in the low byte); treat it as unknown
	// before even looking at the low byte.
	if buf[0] != 0 {
		return Packet{Kind: KindUnknown}
	}

	switch OpCode(binary.BigEndian.Uint16(buf[0:2])) {
	case OpRRQ:
		filename, modeText, ok := parseRequestBody(buf[2:])
		if !ok {
			return Packet{Kind: KindUnknown}
		}
		return Packet{Kind: KindRead, Filename: filename, ModeText: modeText}
	case OpACK:
		if len(buf) < 4 {
			return Packet{Kind: KindUnknown}
		}
		return Packet{Kind: KindAck, Block: binary.BigEndian.Uint16(buf[2:4])}
	case OpERROR:
		return Packet{Kind: KindError}
	default:
		// Includes WRQ=2, DATA=3, and anything beyond 5: none of
		// these are accepted by a read-only server.
		return Packet{Kind: KindUnknown}
	}
}

// parseRequestBody splits "filename\x00mode\x00..." into its first two
// NUL-terminated fields. Trailing option fields (RFC 2347), if
// present, are ignored: this server never negotiates options. A
// well-formed request ends with a NUL, which splits into one trailing
// empty component; a body without that final NUL is rejected as
// incomplete. The trailing component is trimmed before counting
// fields, so a body that stops after the filename's NUL is seen as
// missing its mode rather than as carrying an empty mode string.
func parseRequestBody(body []byte) (filename, modeText string, ok bool) {
	parts := bytes.Split(body, []byte{0})
	if len(parts[len(parts)-1]) != 0 {
		return "", "", false
	}
	parts = parts[:len(parts)-1]
	if len(parts) < 2 {
		return "", "", false
	}
	return string(parts[0]), string(parts[1]), true
}

// EncodeData serializes a DATA packet: opcode 3, big-endian block
// number, then up to 512 bytes of payload.
func EncodeData(block uint16, data []byte) []byte {
	out := make([]byte, 4+len(data))
	binary.BigEndian.PutUint16(out[0:2], uint16(OpDATA))
	binary.BigEndian.PutUint16(out[2:4], block)
	copy(out[4:], data)
	return out
}

// EncodeError serializes an ERROR packet: opcode 5, big-endian error
// code, then the fixed NUL-terminated message for that code.
func EncodeError(code ErrorCode) []byte {
	msg := code.message()
	out := make([]byte, 4+len(msg)+1)
	binary.BigEndian.PutUint16(out[0:2], uint16(OpERROR))
	binary.BigEndian.PutUint16(out[2:4], uint16(code))
	copy(out[4:], msg)
	// out[4+len(msg)] is already 0 (NUL terminator).
	return out
}
