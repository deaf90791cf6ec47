package protocol

import (
	"net"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/tristanseifert/lichtenstein-client/internal/backend"
	"github.com/tristanseifert/lichtenstein-client/internal/config"
	"github.com/tristanseifert/lichtenstein-client/internal/node"
	"github.com/tristanseifert/lichtenstein-client/internal/output"
	"github.com/tristanseifert/lichtenstein-client/internal/wire"
)

func testHandler(t *testing.T) (*Handler, *node.State) {
	t.Helper()

	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	entry := log.WithField("test", true)

	cfg := &config.Config{
		Client: config.Client{
			Port:           0,
			Listen:         "127.0.0.1",
			MulticastGroup: "239.42.0.69",
		},
		Output: config.Output{FbSize: 4096, Channels: 8},
	}

	state := node.New()
	sendConn, err := OpenSendSocket()
	if err != nil {
		t.Fatalf("OpenSendSocket() error = %v", err)
	}
	sink := NewAckSink(sendConn, state, entry)
	worker := output.New(cfg.Output.FbSize, backend.NewMock(), sink, 8, entry)
	go worker.Run()
	t.Cleanup(worker.Shutdown)

	ident := node.Identity{MAC: net.HardwareAddr{1, 2, 3, 4, 5, 6}, IPv4: net.ParseIP("127.0.0.1"), Hostname: "test"}

	h, err := New(cfg, Config{SoftwareVersion: 1, HardwareVersion: 1, AnnouncementInitial: time.Hour, AnnouncementSteady: time.Hour}, ident, state, worker, sendConn, entry)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	go h.Run()
	t.Cleanup(h.Shutdown)

	return h, state
}

func readReply(t *testing.T, conn *net.UDPConn) []byte {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 2048)
	n, err := conn.Read(buf)
	if err != nil {
		t.Fatalf("reading reply: %v", err)
	}
	return buf[:n]
}

func expectNoReply(t *testing.T, conn *net.UDPConn) {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(150 * time.Millisecond))
	buf := make([]byte, 2048)
	if _, err := conn.Read(buf); err == nil {
		t.Fatal("expected no reply, got one")
	}
}

func TestHandlerStatusRequest(t *testing.T) {
	h, _ := testHandler(t)

	client, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.ParseIP("127.0.0.1")})
	if err != nil {
		t.Fatalf("ListenUDP() error = %v", err)
	}
	defer client.Close()

	packet := wire.BuildPacket(wire.OpNodeStatus, 0, 77, nil)
	if _, err := client.WriteToUDP(packet, h.ListenAddr()); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	reply := readReply(t, client)
	hdr, err := wire.Validate(reply)
	if err != nil {
		t.Fatalf("Validate(reply) error = %v", err)
	}
	if hdr.Opcode != wire.OpNodeStatus {
		t.Errorf("Opcode = %v, want NODE_STATUS", hdr.Opcode)
	}
	if hdr.Txn != 77 {
		t.Errorf("Txn = %d, want 77", hdr.Txn)
	}
	if !hdr.Flags.Has(wire.FlagACK) || !hdr.Flags.Has(wire.FlagResponse) {
		t.Errorf("Flags = %v, want ACK|RESPONSE", hdr.Flags)
	}
}

func TestHandlerCRCRejectionIncrementsCounter(t *testing.T) {
	h, state := testHandler(t)

	client, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.ParseIP("127.0.0.1")})
	if err != nil {
		t.Fatalf("ListenUDP() error = %v", err)
	}
	defer client.Close()

	packet := wire.BuildPacket(wire.OpNodeStatus, 0, 1, nil)
	packet[8] ^= 0x01 // flip one bit of the checksum field

	if _, err := client.WriteToUDP(packet, h.ListenAddr()); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	expectNoReply(t, client)

	time.Sleep(50 * time.Millisecond)
	if got := state.Snapshot().BadCRC; got != 1 {
		t.Errorf("BadCRC = %d, want 1", got)
	}
}

func TestHandlerFrameWhileUnadoptedIsNacked(t *testing.T) {
	h, state := testHandler(t)

	client, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.ParseIP("127.0.0.1")})
	if err != nil {
		t.Fatalf("ListenUDP() error = %v", err)
	}
	defer client.Close()

	fb := wire.FramebufferDataPayload{Channel: 0, Format: wire.FormatRGB, ElementCount: 10, Pixels: make([]byte, 30)}
	packet := wire.BuildPacket(wire.OpFramebufferData, 0, 5, fb.Encode(nil))
	if _, err := client.WriteToUDP(packet, h.ListenAddr()); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	reply := readReply(t, client)
	hdr, err := wire.Validate(reply)
	if err != nil {
		t.Fatalf("Validate(reply) error = %v", err)
	}
	if !hdr.Flags.Has(wire.FlagNACK) {
		t.Errorf("Flags = %v, want NACK set", hdr.Flags)
	}
	if hdr.Txn != 5 {
		t.Errorf("Txn = %d, want 5", hdr.Txn)
	}

	if got := state.Snapshot().FramesDroppedNotAdopted; got != 1 {
		t.Errorf("FramesDroppedNotAdopted = %d, want 1", got)
	}
}

func TestHandlerAdoptThenEnqueueAcksPositively(t *testing.T) {
	h, state := testHandler(t)

	client, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.ParseIP("127.0.0.1")})
	if err != nil {
		t.Fatalf("ListenUDP() error = %v", err)
	}
	defer client.Close()

	adopt := wire.BuildPacket(wire.OpNodeAdoption, 0, 1, nil)
	if _, err := client.WriteToUDP(adopt, h.ListenAddr()); err != nil {
		t.Fatalf("Write(adopt) error = %v", err)
	}
	time.Sleep(50 * time.Millisecond)
	if !state.Adopted() {
		t.Fatal("expected node to be adopted")
	}

	fb := wire.FramebufferDataPayload{Channel: 1, Format: wire.FormatRGB, ElementCount: 10, Pixels: make([]byte, 30)}
	packet := wire.BuildPacket(wire.OpFramebufferData, 0, 9, fb.Encode(nil))
	if _, err := client.WriteToUDP(packet, h.ListenAddr()); err != nil {
		t.Fatalf("Write(frame) error = %v", err)
	}

	reply := readReply(t, client)
	hdr, err := wire.Validate(reply)
	if err != nil {
		t.Fatalf("Validate(reply) error = %v", err)
	}
	if !hdr.Flags.Has(wire.FlagACK) {
		t.Errorf("Flags = %v, want ACK set", hdr.Flags)
	}
	if hdr.Txn != 9 {
		t.Errorf("Txn = %d, want 9", hdr.Txn)
	}
}

func TestHandlerSyncOutputWhileNotAdoptedIsNacked(t *testing.T) {
	h, state := testHandler(t)

	client, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.ParseIP("127.0.0.1")})
	if err != nil {
		t.Fatalf("ListenUDP() error = %v", err)
	}
	defer client.Close()

	sync := wire.SyncOutputPayload{ChannelMask: 1 << 2}
	packet := wire.BuildPacket(wire.OpSyncOutput, 0, 3, sync.Encode(nil))
	if _, err := client.WriteToUDP(packet, h.ListenAddr()); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	reply := readReply(t, client)
	hdr, err := wire.Validate(reply)
	if err != nil {
		t.Fatalf("Validate(reply) error = %v", err)
	}
	if !hdr.Flags.Has(wire.FlagNACK) {
		t.Errorf("Flags = %v, want NACK set", hdr.Flags)
	}

	if got := state.Snapshot().SyncDropped; got != 1 {
		t.Errorf("SyncDropped = %d, want 1", got)
	}
}

func TestHandlerAdoptThenSyncOutputAcks(t *testing.T) {
	h, state := testHandler(t)

	client, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.ParseIP("127.0.0.1")})
	if err != nil {
		t.Fatalf("ListenUDP() error = %v", err)
	}
	defer client.Close()

	adopt := wire.BuildPacket(wire.OpNodeAdoption, 0, 1, nil)
	if _, err := client.WriteToUDP(adopt, h.ListenAddr()); err != nil {
		t.Fatalf("Write(adopt) error = %v", err)
	}
	time.Sleep(50 * time.Millisecond)
	if !state.Adopted() {
		t.Fatal("expected node to be adopted")
	}

	sync := wire.SyncOutputPayload{ChannelMask: 1 << 2}
	packet := wire.BuildPacket(wire.OpSyncOutput, 0, 4, sync.Encode(nil))
	if _, err := client.WriteToUDP(packet, h.ListenAddr()); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	reply := readReply(t, client)
	hdr, err := wire.Validate(reply)
	if err != nil {
		t.Fatalf("Validate(reply) error = %v", err)
	}
	if !hdr.Flags.Has(wire.FlagACK) {
		t.Errorf("Flags = %v, want ACK set", hdr.Flags)
	}
	if hdr.Txn != 4 {
		t.Errorf("Txn = %d, want 4", hdr.Txn)
	}
}
