package wire

import "errors"

var ErrTruncatedPayload = errors.New("wire: truncated payload")

// AnnouncementPayload is the body of a NODE_ANNOUNCEMENT datagram.
type AnnouncementPayload struct {
	SoftwareVersion uint32
	HardwareVersion uint32
	ListenPort      uint16
	AdvertisedIPv4  [4]byte
	MAC             [6]byte
	FBCapacity      uint32
	Channels        uint16
	Hostname        string
}

// Encode appends the wire form of p to buf and returns the result.
func (p AnnouncementPayload) Encode(buf []byte) []byte {
	var tmp [4]byte
	ByteOrder.PutUint32(tmp[:], p.SoftwareVersion)
	buf = append(buf, tmp[:]...)
	ByteOrder.PutUint32(tmp[:], p.HardwareVersion)
	buf = append(buf, tmp[:]...)
	var tmp2 [2]byte
	ByteOrder.PutUint16(tmp2[:], p.ListenPort)
	buf = append(buf, tmp2[:]...)
	buf = append(buf, p.AdvertisedIPv4[:]...)
	buf = append(buf, p.MAC[:]...)
	ByteOrder.PutUint32(tmp[:], p.FBCapacity)
	buf = append(buf, tmp[:]...)
	ByteOrder.PutUint16(tmp2[:], p.Channels)
	buf = append(buf, tmp2[:]...)
	buf = append(buf, byte(len(p.Hostname)))
	buf = append(buf, p.Hostname...)
	return buf
}

func DecodeAnnouncementPayload(buf []byte) (AnnouncementPayload, error) {
	const fixedLen = 4 + 4 + 2 + 4 + 6 + 4 + 2 + 1
	if len(buf) < fixedLen {
		return AnnouncementPayload{}, ErrTruncatedPayload
	}
	var p AnnouncementPayload
	off := 0
	p.SoftwareVersion = ByteOrder.Uint32(buf[off:])
	off += 4
	p.HardwareVersion = ByteOrder.Uint32(buf[off:])
	off += 4
	p.ListenPort = ByteOrder.Uint16(buf[off:])
	off += 2
	copy(p.AdvertisedIPv4[:], buf[off:off+4])
	off += 4
	copy(p.MAC[:], buf[off:off+6])
	off += 6
	p.FBCapacity = ByteOrder.Uint32(buf[off:])
	off += 4
	p.Channels = ByteOrder.Uint16(buf[off:])
	off += 2
	hostnameLen := int(buf[off])
	off++
	if len(buf) < off+hostnameLen {
		return AnnouncementPayload{}, ErrTruncatedPayload
	}
	p.Hostname = string(buf[off : off+hostnameLen])
	return p, nil
}

// StatusPayload is the body of a NODE_STATUS reply.
type StatusPayload struct {
	UptimeSeconds uint32
	TotalMemBytes uint32
	FreeMemBytes  uint32
	InvalidCRC    uint32
	// CPULoadCenti is the 1-minute load average multiplied by 100, i.e.
	// the load as a percentage (e.g. 153 == a load of 1.53, or 153%), so
	// two decimal places of the load survive the wire without a float
	// field.
	CPULoadCenti uint16
}

func (p StatusPayload) Encode(buf []byte) []byte {
	var tmp [4]byte
	ByteOrder.PutUint32(tmp[:], p.UptimeSeconds)
	buf = append(buf, tmp[:]...)
	ByteOrder.PutUint32(tmp[:], p.TotalMemBytes)
	buf = append(buf, tmp[:]...)
	ByteOrder.PutUint32(tmp[:], p.FreeMemBytes)
	buf = append(buf, tmp[:]...)
	ByteOrder.PutUint32(tmp[:], p.InvalidCRC)
	buf = append(buf, tmp[:]...)
	var tmp2 [2]byte
	ByteOrder.PutUint16(tmp2[:], p.CPULoadCenti)
	buf = append(buf, tmp2[:]...)
	return buf
}

func DecodeStatusPayload(buf []byte) (StatusPayload, error) {
	const wantLen = 4 + 4 + 4 + 4 + 2
	if len(buf) < wantLen {
		return StatusPayload{}, ErrTruncatedPayload
	}
	var p StatusPayload
	off := 0
	p.UptimeSeconds = ByteOrder.Uint32(buf[off:])
	off += 4
	p.TotalMemBytes = ByteOrder.Uint32(buf[off:])
	off += 4
	p.FreeMemBytes = ByteOrder.Uint32(buf[off:])
	off += 4
	p.InvalidCRC = ByteOrder.Uint32(buf[off:])
	off += 4
	p.CPULoadCenti = ByteOrder.Uint16(buf[off:])
	return p, nil
}

// FramebufferDataPayload is the body of a FRAMEBUFFER_DATA datagram.
type FramebufferDataPayload struct {
	Channel      uint16
	Format       PixelFormat
	ElementCount uint32
	Pixels       []byte
}

func (p FramebufferDataPayload) Encode(buf []byte) []byte {
	var tmp2 [2]byte
	ByteOrder.PutUint16(tmp2[:], p.Channel)
	buf = append(buf, tmp2[:]...)
	buf = append(buf, byte(p.Format))
	var tmp4 [4]byte
	ByteOrder.PutUint32(tmp4[:], p.ElementCount)
	buf = append(buf, tmp4[:]...)
	buf = append(buf, p.Pixels...)
	return buf
}

func DecodeFramebufferDataPayload(buf []byte) (FramebufferDataPayload, error) {
	const fixedLen = 2 + 1 + 4
	if len(buf) < fixedLen {
		return FramebufferDataPayload{}, ErrTruncatedPayload
	}
	var p FramebufferDataPayload
	off := 0
	p.Channel = ByteOrder.Uint16(buf[off:])
	off += 2
	p.Format = PixelFormat(buf[off])
	off++
	p.ElementCount = ByteOrder.Uint32(buf[off:])
	off += 4
	bpe := p.Format.BytesPerElement()
	if bpe == 0 {
		return FramebufferDataPayload{}, errors.New("wire: unknown pixel format")
	}
	want := int(p.ElementCount) * bpe
	if len(buf)-off < want {
		return FramebufferDataPayload{}, ErrTruncatedPayload
	}
	p.Pixels = buf[off : off+want]
	return p, nil
}

// SyncOutputPayload is the body of a SYNC_OUTPUT datagram: one bit per
// logical channel to activate.
type SyncOutputPayload struct {
	ChannelMask uint32
}

func (p SyncOutputPayload) Encode(buf []byte) []byte {
	var tmp [4]byte
	ByteOrder.PutUint32(tmp[:], p.ChannelMask)
	return append(buf, tmp[:]...)
}

func DecodeSyncOutputPayload(buf []byte) (SyncOutputPayload, error) {
	if len(buf) < 4 {
		return SyncOutputPayload{}, ErrTruncatedPayload
	}
	return SyncOutputPayload{ChannelMask: ByteOrder.Uint32(buf)}, nil
}
