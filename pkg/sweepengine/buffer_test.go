package sweepengine

import (
	"testing"

	"github.com/sudorandom/sweep-scope/pkg/feed"
)

func TestBufferArmsOncePerCycle(t *testing.T) {
	var b Buffer
	if !b.Add(message(t, 10, 1)) {
		t.Fatal("first Add should arm the timer")
	}
	for i := 0; i < 4; i++ {
		if b.Add(message(t, 11, 2)) {
			t.Errorf("Add %d armed a second timer", i)
		}
	}
	if !b.Pending() || b.Len() != 5 {
		t.Errorf("pending=%v len=%d; want true, 5", b.Pending(), b.Len())
	}

	merged, n, err := b.Drain()
	if err != nil {
		t.Fatalf("Drain failed: %v", err)
	}
	if n != 5 {
		t.Errorf("coalesced %d messages, want 5", n)
	}
	if len(merged.Features) != 9 {
		t.Errorf("merged %d features, want 9", len(merged.Features))
	}
	if b.Pending() || b.Len() != 0 {
		t.Error("Drain should clear the queue and the pending flag")
	}
	if !b.Add(message(t, 12, 1)) {
		t.Error("Add after Drain should arm again")
	}
}

func TestBufferSkipsEmptyMessages(t *testing.T) {
	var b Buffer
	if b.Add(nil) {
		t.Error("nil message should not arm")
	}
	if b.Add(&feed.Message{}) {
		t.Error("message without features should not arm")
	}
	if b.Len() != 0 {
		t.Errorf("len = %d; want 0", b.Len())
	}
	if merged, n, err := b.Drain(); merged != nil || n != 0 || err != nil {
		t.Errorf("Drain on empty = %v, %d, %v", merged, n, err)
	}
}

func TestBufferReset(t *testing.T) {
	var b Buffer
	b.Add(message(t, 1, 1))
	b.Add(message(t, 2, 1))
	if n := b.Reset(); n != 2 {
		t.Errorf("Reset discarded %d, want 2", n)
	}
	if b.Pending() || b.Len() != 0 {
		t.Error("Reset should leave the buffer empty and idle")
	}
}
