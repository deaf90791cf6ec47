package node

import (
	"sync"
	"time"

	"github.com/rs/xid"
)

// State is the single process-wide record of adoption and health. The
// protocol goroutine (C4) drives adoption and most counters, the output
// worker's ack sink bumps the no-memory drop counter from the worker
// goroutine, and the metrics collector reads it from its own goroutine,
// so every access goes through the mutex.
type State struct {
	mu sync.Mutex

	InstanceID xid.ID

	adopted             bool
	lastControllerMsgAt time.Time
	startedAt           time.Time

	badCRC                  uint64
	framesDroppedNoMem      uint64
	framesDroppedNotAdopted uint64
	syncDropped             uint64
}

// New creates a fresh, unadopted State stamped with the process start
// time used for uptime reporting.
func New() *State {
	return &State{
		InstanceID: xid.New(),
		startedAt:  time.Now(),
	}
}

// Adopt marks the node adopted and resets the keepalive clock. Called
// while already adopted, it only resets the keepalive clock; the caller
// is responsible for distinguishing the two cases before calling, since
// only it knows whether to emit the "already adopted" log line.
func (s *State) Adopt() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.adopted = true
	s.lastControllerMsgAt = time.Now()
}

// Unadopt reverts to the unadopted state, e.g. after a keepalive timeout.
func (s *State) Unadopt() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.adopted = false
}

// Adopted reports whether the node currently belongs to a controller.
func (s *State) Adopted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.adopted
}

// Touch records that a datagram was just received from the controller,
// resetting the keepalive clock without changing adoption state.
func (s *State) Touch() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastControllerMsgAt = time.Now()
}

// Stale reports whether the node has been adopted but silent for longer
// than timeout, i.e. whether it should be returned to Unadopted.
func (s *State) Stale(timeout time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.adopted {
		return false
	}
	return time.Since(s.lastControllerMsgAt) > timeout
}

// Uptime returns elapsed monotonic time since State was created, which
// stands in for process start since node.New is called once at startup.
func (s *State) Uptime() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return time.Since(s.startedAt)
}

func (s *State) IncBadCRC() {
	s.mu.Lock()
	s.badCRC++
	s.mu.Unlock()
}

func (s *State) IncFramesDroppedNoMem() {
	s.mu.Lock()
	s.framesDroppedNoMem++
	s.mu.Unlock()
}

func (s *State) IncFramesDroppedNotAdopted() {
	s.mu.Lock()
	s.framesDroppedNotAdopted++
	s.mu.Unlock()
}

func (s *State) IncSyncDropped() {
	s.mu.Lock()
	s.syncDropped++
	s.mu.Unlock()
}

// Counters is a point-in-time, race-free snapshot of State's monotonic
// counters, for the status payload builder and the metrics collector.
type Counters struct {
	BadCRC                  uint64
	FramesDroppedNoMem      uint64
	FramesDroppedNotAdopted uint64
	SyncDropped             uint64
}

func (s *State) Snapshot() Counters {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Counters{
		BadCRC:                  s.badCRC,
		FramesDroppedNoMem:      s.framesDroppedNoMem,
		FramesDroppedNotAdopted: s.framesDroppedNotAdopted,
		SyncDropped:             s.syncDropped,
	}
}
