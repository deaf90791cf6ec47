package wire

// BuildPacket assembles a full, checksummed datagram: header followed by
// payload. txn is copied into the header as-is (callers copy it from a
// request when building a reply). The checksum is computed last, over
// the final network-order bytes, per the egress checksum policy.
func BuildPacket(opcode Opcode, flags Flags, txn uint32, payload []byte) []byte {
	h := BuildHeader(opcode)
	h.Flags = flags
	h.Txn = txn
	h.PayloadLength = uint32(len(payload))

	packet := make([]byte, HeaderSize, HeaderSize+len(payload))
	h.Encode(packet)
	packet = append(packet, payload...)

	ApplyChecksum(packet)
	return packet
}
