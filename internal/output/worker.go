// Package output implements the output worker (C3): the single
// goroutine that owns the framebuffer allocator and the hardware
// backend, turning queued frames and sync commands into peripheral
// writes and DMA programming, and reporting outcomes through an
// AckSink.
package output

import (
	"errors"
	"sort"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/tristanseifert/lichtenstein-client/internal/backend"
	"github.com/tristanseifert/lichtenstein-client/internal/fballoc"
)

// ErrNoMemory is the cause reported on a nack when the allocator has no
// run of free blocks large enough for the frame.
var ErrNoMemory = errors.New("output: framebuffer has no free run large enough for frame")

type placement struct {
	channel uint16
	addr    int
	length  int
	frame   *OutputFrame // retained only so Reclaim/Sync can log which frame a placement came from
}

// command is the sealed set of messages the worker accepts on its
// command channel. Commands are processed strictly FIFO.
type command interface{ isCommand() }

type cmdEnqueue struct{ frame *OutputFrame }
type cmdSync struct{ mask uint32 }
type cmdReclaim struct{}
type cmdShutdown struct{ done chan struct{} }

func (cmdEnqueue) isCommand()  {}
func (cmdSync) isCommand()     {}
func (cmdReclaim) isCommand()  {}
func (cmdShutdown) isCommand() {}

// ErrQueueFull is returned by TryEnqueue/TrySync when the worker's
// command channel is saturated; callers (the protocol handler) treat
// this exactly like ErrNoMemory for ack purposes — nack and count it —
// without blocking the protocol goroutine.
var ErrQueueFull = errors.New("output: command queue full")

// Worker is the C3 output worker. Create one with New and run it with
// Run in its own goroutine.
type Worker struct {
	cmds chan command

	alloc *fballoc.Allocator
	hw    backend.Backend
	sink  AckSink
	log   *logrus.Entry

	pending []placement
	active  []placement

	// freeBytes mirrors alloc.BytesFree() so the protocol goroutine (C4)
	// can build a status reply without sending a command and waiting on
	// this goroutine, which spec.md's concurrency contract forbids.
	freeBytes atomic.Int64
}

// Stats is a snapshot of the allocator's capacity the status payload
// builder (C5) reads without touching the worker's command channel.
type Stats struct {
	Capacity  int
	FreeBytes int
}

// Stats returns the worker's current framebuffer occupancy. Safe to call
// from any goroutine.
func (w *Worker) Stats() Stats {
	return Stats{Capacity: w.alloc.Capacity(), FreeBytes: int(w.freeBytes.Load())}
}

// New builds a worker over capacity bytes of peripheral framebuffer
// memory, driving hw and reporting through sink. queueDepth bounds the
// command channel so a runaway producer nacks instead of blocking
// forever.
func New(capacity int, hw backend.Backend, sink AckSink, queueDepth int, log *logrus.Entry) *Worker {
	w := &Worker{
		cmds:  make(chan command, queueDepth),
		alloc: fballoc.New(capacity),
		hw:    hw,
		sink:  sink,
		log:   log,
	}
	w.freeBytes.Store(int64(w.alloc.BytesFree()))
	return w
}

// TryEnqueue hands a frame to the worker without blocking. If the
// worker's queue is full it returns ErrQueueFull and the caller is
// responsible for nacking and counting the drop — the worker itself
// never sees frames it doesn't have room to queue.
func (w *Worker) TryEnqueue(frame *OutputFrame) error {
	select {
	case w.cmds <- cmdEnqueue{frame}:
		return nil
	default:
		return ErrQueueFull
	}
}

// TrySync hands a sync-output mask to the worker without blocking.
func (w *Worker) TrySync(mask uint32) error {
	select {
	case w.cmds <- cmdSync{mask}:
		return nil
	default:
		return ErrQueueFull
	}
}

// TryReclaim asks the worker to run a reclaim pass outside of a sync,
// e.g. as periodic housekeeping driven off the announcement scheduler.
// It is dropped silently (not counted as a frame/sync nack) if the
// queue is momentarily full; the next sync will reclaim anyway.
func (w *Worker) TryReclaim() {
	select {
	case w.cmds <- cmdReclaim{}:
	default:
	}
}

// Shutdown asks the worker to finish its in-flight command and exit,
// blocking until it has.
func (w *Worker) Shutdown() {
	done := make(chan struct{})
	w.cmds <- cmdShutdown{done}
	<-done
}

// Run is the worker's event loop. It must be started in its own
// goroutine and returns once Shutdown's command has been processed.
func (w *Worker) Run() {
	if err := w.hw.Reset(); err != nil {
		w.log.WithError(err).Warn("backend reset failed at worker startup")
	}
	if err := w.hw.OutputTest(); err != nil {
		w.log.WithError(err).Warn("backend output self-test failed")
	}

	for cmd := range w.cmds {
		switch c := cmd.(type) {
		case cmdEnqueue:
			w.handleEnqueue(c.frame)
		case cmdSync:
			w.reclaim()
			w.handleSync(c.mask)
		case cmdReclaim:
			w.reclaim()
		case cmdShutdown:
			if err := w.hw.Reset(); err != nil {
				w.log.WithError(err).Warn("backend reset failed at worker shutdown")
			}
			close(c.done)
			return
		}
	}
}

func (w *Worker) handleEnqueue(frame *OutputFrame) {
	log := w.log.WithField("frame", frame.ID.String()).WithField("channel", frame.Channel)

	addr, ok, err := w.alloc.Allocate(len(frame.Pixels))
	if err != nil || !ok {
		if err != nil {
			log.WithError(err).Warn("allocation failed, nacking")
		} else {
			log.Warn("no room for frame, nacking")
		}
		w.sink.Ack(frame, true, ErrNoMemory)
		return
	}

	if _, err := w.hw.WriteMem(addr, frame.Pixels); err != nil {
		w.alloc.Free(addr, len(frame.Pixels))
		w.freeBytes.Store(int64(w.alloc.BytesFree()))
		log.WithError(err).Warn("peripheral write failed, nacking")
		w.sink.Ack(frame, true, err)
		return
	}
	w.freeBytes.Store(int64(w.alloc.BytesFree()))

	w.pending = append(w.pending, placement{
		channel: frame.Channel,
		addr:    addr,
		length:  len(frame.Pixels),
		frame:   frame,
	})

	log.Debug("frame staged")
	w.sink.Ack(frame, false, nil)
}

// reclaim frees memory for any active placement whose channel the
// backend no longer reports as emitting. A status-read failure just
// skips this pass — the memory will be reclaimed on the next sync.
func (w *Worker) reclaim() {
	status, err := w.hw.ReadStatus()
	if err != nil {
		w.log.WithError(err).Warn("status read failed, skipping reclaim this cycle")
		return
	}

	kept := w.active[:0]
	for _, p := range w.active {
		if status&(1<<uint(p.channel)) != 0 {
			kept = append(kept, p)
			continue
		}
		w.alloc.Free(p.addr, p.length)
		w.log.WithField("frame", p.frame.ID.String()).WithField("channel", p.channel).Debug("reclaimed idle channel placement")
	}
	w.active = kept
	w.freeBytes.Store(int64(w.alloc.BytesFree()))
}

// handleSync programs the DMA descriptor for every pending placement
// whose channel bit is set in mask, in ascending channel order, then
// moves it from pending to active. A mask bit with no matching pending
// placement is silently ignored.
func (w *Worker) handleSync(mask uint32) {
	channels := make([]uint16, 0, len(w.pending))
	byChannel := make(map[uint16][]int) // channel -> indices into w.pending
	for i, p := range w.pending {
		if _, seen := byChannel[p.channel]; !seen {
			channels = append(channels, p.channel)
		}
		byChannel[p.channel] = append(byChannel[p.channel], i)
	}
	sort.Slice(channels, func(i, j int) bool { return channels[i] < channels[j] })

	toRemove := make(map[int]bool)
	for _, ch := range channels {
		if mask&(1<<uint(ch)) == 0 {
			continue
		}
		for _, idx := range byChannel[ch] {
			p := w.pending[idx]
			if err := w.hw.ProgramChannel(int(p.channel), p.addr, p.length); err != nil {
				w.log.WithError(err).WithField("frame", p.frame.ID.String()).WithField("channel", p.channel).Warn("program channel failed, leaving staged")
				continue
			}
			w.active = append(w.active, p)
			toRemove[idx] = true
		}
	}

	if len(toRemove) == 0 {
		return
	}
	remaining := w.pending[:0]
	for i, p := range w.pending {
		if !toRemove[i] {
			remaining = append(remaining, p)
		}
	}
	w.pending = remaining
}
