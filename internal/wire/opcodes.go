// Package wire implements the lichtenstein-client binary protocol: header
// framing, checksums and per-opcode payload encoding.
package wire

// Opcode identifies the kind of message carried by a datagram.
type Opcode uint16

const (
	OpNodeAnnouncement Opcode = 1
	OpNodeStatus       Opcode = 2
	OpNodeAdoption     Opcode = 3
	OpFramebufferData  Opcode = 4
	OpSyncOutput       Opcode = 5
	OpKeepalive        Opcode = 6
)

func (o Opcode) String() string {
	switch o {
	case OpNodeAnnouncement:
		return "NODE_ANNOUNCEMENT"
	case OpNodeStatus:
		return "NODE_STATUS"
	case OpNodeAdoption:
		return "NODE_ADOPTION"
	case OpFramebufferData:
		return "FRAMEBUFFER_DATA"
	case OpSyncOutput:
		return "SYNC_OUTPUT"
	case OpKeepalive:
		return "KEEPALIVE"
	default:
		return "UNKNOWN"
	}
}

// Flags is the header's bitfield of modifiers.
type Flags uint16

const (
	FlagACK Flags = 1 << iota
	FlagNACK
	FlagResponse
	FlagMulticast
)

func (f Flags) Has(bit Flags) bool {
	return f&bit != 0
}

// PixelFormat is the per-element encoding of a framebuffer-data payload.
type PixelFormat uint8

const (
	FormatRGB  PixelFormat = 3
	FormatRGBW PixelFormat = 4
)

// BytesPerElement returns the wire size of one pixel in this format, or 0
// if the format is not recognized.
func (f PixelFormat) BytesPerElement() int {
	switch f {
	case FormatRGB:
		return 3
	case FormatRGBW:
		return 4
	default:
		return 0
	}
}
