package frame

import (
	"sync"
	"testing"
)

func testFrame(seq uint64) Frame {
	return Frame{Seq: seq, Width: 2, Height: 1, Data: make([]byte, 2*1*Channels)}
}

func TestSlot_TakeEmpty(t *testing.T) {
	s := NewSlot()
	if _, ok := s.TryTakeLatest(); ok {
		t.Error("expected empty slot")
	}
	if _, ok := s.Peek(); ok {
		t.Error("expected nothing to peek")
	}
}

func TestSlot_OverwriteDropsUnread(t *testing.T) {
	s := NewSlot()

	if dropped := s.Publish(testFrame(1)); dropped {
		t.Error("first publish should not drop")
	}
	if dropped := s.Publish(testFrame(2)); !dropped {
		t.Error("second publish should drop the unread frame")
	}

	f, ok := s.TryTakeLatest()
	if !ok {
		t.Fatal("expected a frame")
	}
	if f.Seq != 2 {
		t.Errorf("got seq %d, want freshest 2", f.Seq)
	}

	if _, ok := s.TryTakeLatest(); ok {
		t.Error("frame should be consumed after take")
	}

	stats := s.Stats()
	if stats.Published != 2 || stats.Taken != 1 || stats.Dropped != 1 {
		t.Errorf("unexpected stats %+v", stats)
	}
}

func TestSlot_PeekDoesNotConsume(t *testing.T) {
	s := NewSlot()
	s.Publish(testFrame(7))

	if f, ok := s.Peek(); !ok || f.Seq != 7 {
		t.Fatalf("Peek = %d, %v", f.Seq, ok)
	}
	if _, ok := s.TryTakeLatest(); !ok {
		t.Error("peek must leave the frame unread")
	}
	if f, ok := s.Peek(); !ok || f.Seq != 7 {
		t.Error("peek should still see the last frame after take")
	}
}

func TestSlot_Close(t *testing.T) {
	s := NewSlot()
	s.Publish(testFrame(1))
	s.Close()

	if _, ok := s.TryTakeLatest(); ok {
		t.Error("closed slot should be empty")
	}
	s.Publish(testFrame(2))
	if _, ok := s.Peek(); ok {
		t.Error("closed slot should reject frames")
	}
}

func TestSlot_ConcurrentHoldsAtMostOne(t *testing.T) {
	s := NewSlot()
	var wg sync.WaitGroup

	const n = 1000
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 1; i <= n; i++ {
			s.Publish(testFrame(uint64(i)))
		}
	}()

	var last uint64
	var taken uint64
	go func() {
		defer wg.Done()
		for i := 0; i < n; i++ {
			if f, ok := s.TryTakeLatest(); ok {
				if f.Seq <= last {
					t.Errorf("frames went backwards: %d after %d", f.Seq, last)
				}
				last = f.Seq
				taken++
			}
		}
	}()
	wg.Wait()

	stats := s.Stats()
	// Every published frame was either taken, dropped or is still in the slot.
	var inSlot uint64
	if stats.Full {
		inSlot = 1
	}
	if stats.Taken+stats.Dropped+inSlot != stats.Published {
		t.Errorf("accounting mismatch: %+v", stats)
	}
	if stats.Taken != taken {
		t.Errorf("taken = %d, counted %d", stats.Taken, taken)
	}
}
