// Package protocol implements C4 (the UDP protocol handler) and C6 (the
// announcement scheduler): the single-threaded event loop that parses
// datagrams, drives the node adoption state machine, dispatches frames
// and sync commands to the output worker, and emits periodic multicast
// announcements.
package protocol

import (
	"fmt"
	"net"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/tristanseifert/lichtenstein-client/internal/config"
	"github.com/tristanseifert/lichtenstein-client/internal/netio"
	"github.com/tristanseifert/lichtenstein-client/internal/node"
	"github.com/tristanseifert/lichtenstein-client/internal/output"
)

// keepaliveTimeout is how long an adopted node tolerates controller
// silence before reverting to Unadopted. Not part of the config schema
// in spec.md §6; the reference hardcodes an equivalent constant.
const keepaliveTimeout = 30 * time.Second

// datagramQueueDepth bounds the channel between the socket reader
// goroutine and the single-threaded dispatch loop.
const datagramQueueDepth = 64

// Handler is the C4 protocol handler. Build one with New and drive it
// with Run in its own goroutine.
type Handler struct {
	listenConn    *net.UDPConn
	sendConn      *net.UDPConn
	multicastIP   net.IP
	multicastAddr *net.UDPAddr

	state    *node.State
	identity node.Identity
	worker   *output.Worker
	log      *logrus.Entry

	softwareVersion uint32
	hardwareVersion uint32
	listenPort      uint16
	channels        uint16

	scheduler *AnnounceScheduler

	announceCh chan struct{}
	shutdownCh chan struct{}
	doneCh     chan struct{}
}

// Config bundles the fixed, process-lifetime parameters Handler needs
// beyond the live node/output state, so New's signature stays small.
type Config struct {
	SoftwareVersion     uint32
	HardwareVersion     uint32
	AnnouncementInitial time.Duration
	AnnouncementSteady  time.Duration
}

// New builds a Handler bound to cfg's listen address and multicast
// group, joins the multicast group, and wires ident/state/worker as the
// data it dispatches against. sendConn is the egress socket opened by
// OpenSendSocket and already wired into the output worker's AckSink via
// NewAckSink — Handler reuses it for announcements, status replies and
// direct acks/nacks so there is exactly one egress socket, distinct from
// the listen socket, per spec.md §5. Handler closes both on Shutdown.
func New(cfg *config.Config, extra Config, ident node.Identity, state *node.State, worker *output.Worker, sendConn *net.UDPConn, log *logrus.Entry) (*Handler, error) {
	listenIP := net.ParseIP(cfg.Client.Listen)
	if listenIP == nil {
		return nil, fmt.Errorf("protocol: bad listen address %q", cfg.Client.Listen)
	}
	listenAddr := &net.UDPAddr{IP: listenIP, Port: cfg.Client.Port}

	listenConn, err := net.ListenUDP("udp4", listenAddr)
	if err != nil {
		return nil, fmt.Errorf("protocol: binding listen socket: %w", err)
	}

	multicastIP := net.ParseIP(cfg.Client.MulticastGroup)
	if multicastIP == nil {
		listenConn.Close()
		return nil, fmt.Errorf("protocol: bad multicast group %q", cfg.Client.MulticastGroup)
	}

	if err := netio.EnablePacketInfo(listenConn); err != nil {
		log.WithError(err).Warn("could not enable packet info, multicast/unicast detection disabled")
	}
	if err := netio.JoinMulticast(listenConn, multicastIP, ""); err != nil {
		log.WithError(err).Warn("could not join multicast group")
	}

	announceCh := make(chan struct{}, 1)

	h := &Handler{
		listenConn:      listenConn,
		sendConn:        sendConn,
		multicastIP:     multicastIP,
		multicastAddr:   &net.UDPAddr{IP: multicastIP, Port: cfg.Client.Port},
		state:           state,
		identity:        ident,
		worker:          worker,
		log:             log,
		softwareVersion: extra.SoftwareVersion,
		hardwareVersion: extra.HardwareVersion,
		listenPort:      uint16(cfg.Client.Port),
		channels:        uint16(cfg.Output.Channels),
		announceCh:      announceCh,
		shutdownCh:      make(chan struct{}),
		doneCh:          make(chan struct{}),
	}
	h.scheduler = NewAnnounceScheduler(extra.AnnouncementInitial, extra.AnnouncementSteady, announceCh)

	return h, nil
}

// NewAckSink builds the AckSink the output worker reports through, bound
// to sendConn and state. Construction order is: OpenSendSocket, then
// NewAckSink, then output.New(... sink ...), then protocol.New(... worker,
// sendConn ...) — the ack sink only needs the socket and node state, not
// the Handler or the worker, which is what avoids a construction cycle
// between Handler and Worker.
func NewAckSink(sendConn *net.UDPConn, state *node.State, log *logrus.Entry) output.AckSink {
	return &ackSink{sendConn: sendConn, state: state, log: log}
}

// OpenSendSocket opens the dedicated egress socket shared by the ack
// sink and the protocol handler, distinct from the listen socket.
func OpenSendSocket() (*net.UDPConn, error) {
	return net.ListenUDP("udp4", &net.UDPAddr{})
}

// Run is the handler's single-threaded event loop. It must be started in
// its own goroutine and returns once Shutdown has been called.
func (h *Handler) Run() {
	datagrams := make(chan rawDatagram, datagramQueueDepth)
	go h.readLoop(datagrams)
	go h.scheduler.Run(h.shutdownCh)

	for {
		select {
		case d := <-datagrams:
			h.handleDatagram(d)
		case <-h.announceCh:
			h.checkKeepaliveExpiry()
			h.worker.TryReclaim()
			h.sendAnnouncement()
		case <-h.shutdownCh:
			close(h.doneCh)
			return
		}
	}
}

// ListenAddr returns the address the handler's listen socket is bound
// to, including the OS-assigned port when cfg.Client.Port was 0. Tests
// use this to address datagrams at a handler bound to an ephemeral port.
func (h *Handler) ListenAddr() *net.UDPAddr {
	return h.listenConn.LocalAddr().(*net.UDPAddr)
}

// Shutdown stops the event loop and closes both sockets, blocking until
// Run has returned.
func (h *Handler) Shutdown() {
	close(h.shutdownCh)
	h.listenConn.Close()
	<-h.doneCh
	h.sendConn.Close()
}

type rawDatagram struct {
	data      []byte
	src       *net.UDPAddr
	multicast bool
}

func (h *Handler) readLoop(out chan<- rawDatagram) {
	buf := make([]byte, 65535)
	oob := make([]byte, 512)
	for {
		n, oobn, _, src, err := h.listenConn.ReadMsgUDP(buf, oob)
		if err != nil {
			select {
			case <-h.shutdownCh:
				return
			default:
			}
			h.log.WithError(err).Warn("datagram read failed")
			continue
		}

		data := make([]byte, n)
		copy(data, buf[:n])

		multicast := false
		if dst, ok := netio.DestinationAddr(oob[:oobn]); ok {
			multicast = dst.Equal(h.multicastIP)
		}

		select {
		case out <- rawDatagram{data: data, src: src, multicast: multicast}:
		case <-h.shutdownCh:
			return
		}
	}
}

func (h *Handler) send(packet []byte, dst *net.UDPAddr) {
	if dst == nil {
		return
	}
	if _, err := h.sendConn.WriteToUDP(packet, dst); err != nil {
		h.log.WithError(err).WithField("dst", dst).Warn("send failed")
	}
}

func macArray(mac net.HardwareAddr) [6]byte {
	var out [6]byte
	copy(out[:], mac)
	return out
}

func ipv4Array(ip net.IP) [4]byte {
	var out [4]byte
	if v4 := ip.To4(); v4 != nil {
		copy(out[:], v4)
	}
	return out
}
