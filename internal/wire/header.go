package wire

import (
	"encoding/binary"
	"errors"
	"hash/crc32"
)

const (
	// Magic identifies a lichtenstein-client datagram on the wire.
	Magic uint32 = 0x4C494348 // "LICH"

	// Version is the protocol version this codec speaks.
	Version uint32 = 1

	// HeaderSize is the fixed, on-wire size of the header in bytes.
	HeaderSize = 24
)

// Header is the decoded form of the 24-byte wire header. All multi-byte
// wire fields are network (big-endian) byte order; ByteOrder is always
// binary.BigEndian in this package.
type Header struct {
	Magic         uint32
	Version       uint32
	Checksum      uint32
	Opcode        Opcode
	Flags         Flags
	Txn           uint32
	PayloadLength uint32
}

var ByteOrder = binary.BigEndian

var (
	ErrTooShort     = errors.New("wire: datagram shorter than header")
	ErrBadMagic     = errors.New("wire: bad magic")
	ErrBadVersion   = errors.New("wire: unsupported version")
	ErrBadChecksum  = errors.New("wire: checksum mismatch")
	ErrPayloadShort = errors.New("wire: payload shorter than declared length")
)

// BuildHeader populates magic/version/opcode and zeroes flags, txn,
// checksum and length, ready for a caller to fill in a payload and flags.
func BuildHeader(opcode Opcode) Header {
	return Header{
		Magic:   Magic,
		Version: Version,
		Opcode:  opcode,
	}
}

// Encode writes h into buf[0:HeaderSize]. buf must be at least HeaderSize
// bytes long.
func (h Header) Encode(buf []byte) {
	ByteOrder.PutUint32(buf[0:4], h.Magic)
	ByteOrder.PutUint32(buf[4:8], h.Version)
	ByteOrder.PutUint32(buf[8:12], h.Checksum)
	ByteOrder.PutUint16(buf[12:14], uint16(h.Opcode))
	ByteOrder.PutUint16(buf[14:16], uint16(h.Flags))
	ByteOrder.PutUint32(buf[16:20], h.Txn)
	ByteOrder.PutUint32(buf[20:24], h.PayloadLength)
}

// DecodeHeader reads a Header from the front of buf without validating it.
// Callers on the ingress path must call Validate first.
func DecodeHeader(buf []byte) (Header, error) {
	if len(buf) < HeaderSize {
		return Header{}, ErrTooShort
	}
	return Header{
		Magic:         ByteOrder.Uint32(buf[0:4]),
		Version:       ByteOrder.Uint32(buf[4:8]),
		Checksum:      ByteOrder.Uint32(buf[8:12]),
		Opcode:        Opcode(ByteOrder.Uint16(buf[12:14])),
		Flags:         Flags(ByteOrder.Uint16(buf[14:16])),
		Txn:           ByteOrder.Uint32(buf[16:20]),
		PayloadLength: ByteOrder.Uint32(buf[20:24]),
	}, nil
}

// checksum computes the IEEE 802.3 CRC-32 of buf with the checksum field
// (bytes 8:12) treated as zero, matching the on-wire checksum policy: it
// is computed over the datagram in network-order wire form, with the
// checksum field itself zeroed.
func checksum(buf []byte) uint32 {
	tmp := make([]byte, len(buf))
	copy(tmp, buf)
	ByteOrder.PutUint32(tmp[8:12], 0)
	return crc32.ChecksumIEEE(tmp)
}

// ApplyChecksum zeroes the checksum field, computes the CRC over the
// resulting bytes and writes it back in network order. Call this last,
// after the header and payload are otherwise final (egress path).
func ApplyChecksum(packet []byte) {
	if len(packet) < HeaderSize {
		return
	}
	ByteOrder.PutUint32(packet[8:12], 0)
	sum := crc32.ChecksumIEEE(packet)
	ByteOrder.PutUint32(packet[8:12], sum)
}

// Validate checks a raw ingress datagram before any field is interpreted:
// length, magic, version and checksum, in that order. Checksum is
// verified over the wire bytes exactly as received (before any
// interpretation), per the checksum policy in the protocol spec.
func Validate(packet []byte) (Header, error) {
	if len(packet) < HeaderSize {
		return Header{}, ErrTooShort
	}

	h, err := DecodeHeader(packet)
	if err != nil {
		return Header{}, err
	}

	if h.Magic != Magic {
		return Header{}, ErrBadMagic
	}
	if h.Version != Version {
		return Header{}, ErrBadVersion
	}

	want := h.Checksum
	got := checksum(packet)
	if want != got {
		return Header{}, ErrBadChecksum
	}

	if int(h.PayloadLength) > len(packet)-HeaderSize {
		return Header{}, ErrPayloadShort
	}

	return h, nil
}
