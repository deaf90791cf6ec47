package output

import (
	"net"
	"time"

	"github.com/rs/xid"
)

// OutputFrame is one pending or active pixel delivery: created on the
// protocol goroutine when a FRAMEBUFFER_DATA datagram arrives, handed to
// the output worker over its command channel, and destroyed on the
// worker goroutine once the AckSink has been called exactly once. No
// frame ever crosses back to the protocol goroutine by pointer — acks
// flow out through the AckSink interface instead.
type OutputFrame struct {
	// ID is an internal (never-on-the-wire) tracking identifier used to
	// correlate log lines for one placement across Enqueue, Sync and
	// Reclaim.
	ID xid.ID

	Channel uint16
	Pixels  []byte

	// ReplyAddr and Txn identify who to ack and with what correlation id.
	// A nil ReplyAddr means the outcome is counted and logged but no wire
	// ack is sent; the protocol package always sets it to the datagram's
	// source address.
	ReplyAddr *net.UDPAddr
	Txn       uint32

	EnqueuedAt time.Time
}

// NewOutputFrame builds a frame ready to hand to the output worker.
func NewOutputFrame(channel uint16, pixels []byte, replyAddr *net.UDPAddr, txn uint32) *OutputFrame {
	return &OutputFrame{
		ID:         xid.New(),
		Channel:    channel,
		Pixels:     pixels,
		ReplyAddr:  replyAddr,
		Txn:        txn,
		EnqueuedAt: time.Now(),
	}
}

// AckSink is how the output worker reports the outcome of a frame back
// to whoever owns the socket, without holding a pointer back into the
// protocol handler. nack is true for a negative acknowledgement; cause
// is nil on a positive ack and otherwise the error that produced the
// nack (ErrNoMemory, or a backend.Backend error), so the sink can bump
// the right counter without the worker mutating node state itself.
type AckSink interface {
	Ack(frame *OutputFrame, nack bool, cause error)
}
