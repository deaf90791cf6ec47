package node

import (
	"testing"
	"time"
)

func TestAdoptionLifecycle(t *testing.T) {
	s := New()
	if s.Adopted() {
		t.Fatal("new state should not be adopted")
	}

	s.Adopt()
	if !s.Adopted() {
		t.Fatal("Adopt() should mark the node adopted")
	}

	s.Unadopt()
	if s.Adopted() {
		t.Fatal("Unadopt() should clear adoption")
	}
}

func TestStaleOnlyWhenAdopted(t *testing.T) {
	s := New()
	if s.Stale(time.Nanosecond) {
		t.Fatal("an unadopted node is never stale")
	}

	s.Adopt()
	time.Sleep(2 * time.Millisecond)
	if !s.Stale(time.Millisecond) {
		t.Fatal("expected adopted node with old last-seen to be stale")
	}

	s.Touch()
	if s.Stale(time.Second) {
		t.Fatal("Touch() should reset the keepalive clock")
	}
}

func TestCounters(t *testing.T) {
	s := New()
	s.IncBadCRC()
	s.IncBadCRC()
	s.IncFramesDroppedNoMem()
	s.IncFramesDroppedNotAdopted()
	s.IncSyncDropped()

	got := s.Snapshot()
	want := Counters{BadCRC: 2, FramesDroppedNoMem: 1, FramesDroppedNotAdopted: 1, SyncDropped: 1}
	if got != want {
		t.Fatalf("Snapshot() = %+v, want %+v", got, want)
	}
}

func TestUptimeMonotonic(t *testing.T) {
	s := New()
	first := s.Uptime()
	time.Sleep(time.Millisecond)
	second := s.Uptime()
	if second < first {
		t.Fatalf("Uptime() went backwards: %v then %v", first, second)
	}
}
