package protocol

import (
	"errors"
	"net"

	"github.com/tristanseifert/lichtenstein-client/internal/node"
	"github.com/tristanseifert/lichtenstein-client/internal/output"
	"github.com/tristanseifert/lichtenstein-client/internal/wire"
)

// cpuLoadCenti is a thin indirection over node.CPULoadCenti so tests in
// this package can stub it.
var cpuLoadCenti = node.CPULoadCenti

// handleDatagram is the dispatch table from spec.md §4.4, keyed on
// (opcode, multicast?, request?, ack?). Invalid datagrams never reach
// past the checksum/magic/version check: wire.Validate failures are
// dropped with no reply (bad checksum additionally bumps bad_crc, the
// only WireError case spec.md §7 counts).
func (h *Handler) handleDatagram(d rawDatagram) {
	h.checkKeepaliveExpiry()

	hdr, err := wire.Validate(d.data)
	if err != nil {
		if errors.Is(err, wire.ErrBadChecksum) {
			h.state.IncBadCRC()
		}
		h.log.WithError(err).WithField("src", d.src).Debug("dropping invalid datagram")
		return
	}

	payload := d.data[wire.HeaderSize : wire.HeaderSize+int(hdr.PayloadLength)]
	request := hdr.PayloadLength == 0 && !hdr.Flags.Has(wire.FlagACK)

	switch hdr.Opcode {
	case wire.OpNodeStatus:
		if request {
			h.replyStatus(hdr.Txn, d.src)
		}
	case wire.OpNodeAdoption:
		h.handleAdoption(d.src)
	case wire.OpFramebufferData:
		h.handleFramebufferData(hdr, payload, d.src)
	case wire.OpSyncOutput:
		h.handleSyncOutput(hdr, payload, d.src, d.multicast)
	case wire.OpKeepalive:
		h.handleKeepalive(hdr, d.src)
	default:
		h.log.WithField("opcode", hdr.Opcode).Debug("unimplemented opcode, dropping")
	}
}

func (h *Handler) handleAdoption(src *net.UDPAddr) {
	if h.state.Adopted() {
		h.log.WithField("src", src).Info("adoption request while already adopted, dropping")
		return
	}
	h.state.Adopt()
	h.log.WithField("controller", src).Info("adopted")
}

func (h *Handler) handleFramebufferData(hdr wire.Header, payload []byte, src *net.UDPAddr) {
	if !h.state.Adopted() {
		h.state.IncFramesDroppedNotAdopted()
		h.sendNack(wire.OpFramebufferData, hdr.Txn, src)
		return
	}

	fb, err := wire.DecodeFramebufferDataPayload(payload)
	if err != nil {
		h.log.WithError(err).Warn("bad framebuffer-data payload")
		h.sendNack(wire.OpFramebufferData, hdr.Txn, src)
		return
	}

	// The read loop reuses its buffer on the next datagram; the frame
	// must own stable bytes for however long the output worker holds it.
	pixels := make([]byte, len(fb.Pixels))
	copy(pixels, fb.Pixels)

	frame := output.NewOutputFrame(fb.Channel, pixels, src, hdr.Txn)
	if err := h.worker.TryEnqueue(frame); err != nil {
		h.state.IncFramesDroppedNoMem()
		h.sendNack(wire.OpFramebufferData, hdr.Txn, src)
	}
	// On success the worker's AckSink delivers the eventual ack/nack; C4
	// does not reply here (spec.md §4.4: "C3 owns ack delivery").
}

func (h *Handler) handleSyncOutput(hdr wire.Header, payload []byte, src *net.UDPAddr, multicast bool) {
	if !h.state.Adopted() {
		h.state.IncSyncDropped()
		h.log.Debug("sync-output while not adopted, dropping")
		if !multicast {
			h.sendNack(wire.OpSyncOutput, hdr.Txn, src)
		}
		return
	}

	mask, err := wire.DecodeSyncOutputPayload(payload)
	if err != nil {
		h.log.WithError(err).Warn("bad sync-output payload")
		if !multicast {
			h.sendNack(wire.OpSyncOutput, hdr.Txn, src)
		}
		return
	}

	if err := h.worker.TrySync(mask.ChannelMask); err != nil {
		h.state.IncSyncDropped()
		if !multicast {
			h.sendNack(wire.OpSyncOutput, hdr.Txn, src)
		}
		return
	}

	if !multicast {
		h.sendAck(wire.OpSyncOutput, hdr.Txn, src)
	}
}

func (h *Handler) handleKeepalive(hdr wire.Header, src *net.UDPAddr) {
	h.state.Touch()
	h.sendAck(wire.OpKeepalive, hdr.Txn, src)
}

func (h *Handler) replyStatus(txn uint32, dst *net.UDPAddr) {
	stats := h.worker.Stats()
	counters := h.state.Snapshot()

	payload := wire.StatusPayload{
		UptimeSeconds: uint32(h.state.Uptime().Seconds()),
		TotalMemBytes: uint32(stats.Capacity),
		FreeMemBytes:  uint32(stats.FreeBytes),
		InvalidCRC:    uint32(counters.BadCRC),
		CPULoadCenti:  cpuLoadCenti(),
	}.Encode(nil)

	packet := wire.BuildPacket(wire.OpNodeStatus, wire.FlagACK|wire.FlagResponse, txn, payload)
	h.send(packet, dst)
}

func (h *Handler) sendAnnouncement() {
	stats := h.worker.Stats()

	payload := wire.AnnouncementPayload{
		SoftwareVersion: h.softwareVersion,
		HardwareVersion: h.hardwareVersion,
		ListenPort:      h.listenPort,
		AdvertisedIPv4:  ipv4Array(h.identity.IPv4),
		MAC:             macArray(h.identity.MAC),
		FBCapacity:      uint32(stats.Capacity),
		Channels:        h.channels,
		Hostname:        h.identity.Hostname,
	}.Encode(nil)

	packet := wire.BuildPacket(wire.OpNodeAnnouncement, wire.FlagMulticast, 0, payload)
	h.send(packet, h.multicastAddr)
}

func (h *Handler) sendAck(op wire.Opcode, txn uint32, dst *net.UDPAddr) {
	h.send(wire.BuildPacket(op, wire.FlagACK|wire.FlagResponse, txn, nil), dst)
}

func (h *Handler) sendNack(op wire.Opcode, txn uint32, dst *net.UDPAddr) {
	h.send(wire.BuildPacket(op, wire.FlagNACK|wire.FlagResponse, txn, nil), dst)
}

func (h *Handler) checkKeepaliveExpiry() {
	if h.state.Stale(keepaliveTimeout) {
		h.state.Unadopt()
		h.log.Warn("controller keepalive expired, returning to unadopted")
	}
}
