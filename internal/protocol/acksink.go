package protocol

import (
	"net"

	"github.com/sirupsen/logrus"

	"github.com/tristanseifert/lichtenstein-client/internal/node"
	"github.com/tristanseifert/lichtenstein-client/internal/output"
	"github.com/tristanseifert/lichtenstein-client/internal/wire"
)

// ackSink is the output worker's AckSink: it turns a frame's outcome
// into a wire ack/nack on the shared egress socket and bumps the one
// node-state counter that covers both ResourceError causes (NoMem and
// PeripheralIo share a single counter in spec.md §3's NodeState). The
// worker itself never touches node state or the socket directly.
type ackSink struct {
	sendConn *net.UDPConn
	state    *node.State
	log      *logrus.Entry
}

func (s *ackSink) Ack(frame *output.OutputFrame, nack bool, cause error) {
	flags := wire.FlagResponse
	if nack {
		flags |= wire.FlagNACK
		s.state.IncFramesDroppedNoMem()
		s.log.WithError(cause).WithField("frame", frame.ID.String()).
			WithField("channel", frame.Channel).Warn("frame nacked")
	} else {
		flags |= wire.FlagACK
	}

	if frame.ReplyAddr == nil {
		// A frame with no reply address gets no wire ack.
		return
	}

	packet := wire.BuildPacket(wire.OpFramebufferData, flags, frame.Txn, nil)
	if _, err := s.sendConn.WriteToUDP(packet, frame.ReplyAddr); err != nil {
		s.log.WithError(err).Warn("failed to send frame ack")
	}
}
