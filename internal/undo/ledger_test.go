package undo

import (
	"fmt"
	"testing"
	"time"
)

func rec(i int) Record {
	return Record{
		Original:  fmt.Sprintf("orig-%d", i),
		Corrected: fmt.Sprintf("fixed-%d", i),
		Timestamp: time.Now(),
	}
}

func TestLedgerPushPop(t *testing.T) {
	l := NewLedger(4)

	l.Push(rec(1))
	l.Push(rec(2))

	if l.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", l.Len())
	}

	r, ok := l.PopLatest()
	if !ok {
		t.Fatal("PopLatest() returned ok=false on non-empty ledger")
	}
	if r.Original != "orig-2" {
		t.Errorf("PopLatest().Original = %q, want %q", r.Original, "orig-2")
	}
	if l.Len() != 1 {
		t.Errorf("Len() = %d after pop, want 1", l.Len())
	}
}

func TestLedgerPopEmpty(t *testing.T) {
	l := NewLedger(4)

	if _, ok := l.PopLatest(); ok {
		t.Error("PopLatest() on empty ledger returned ok=true")
	}
	if l.Len() != 0 {
		t.Errorf("Len() = %d after empty pop, want 0", l.Len())
	}
}

func TestLedgerEvictsOldest(t *testing.T) {
	const capacity = 10
	l := NewLedger(capacity)

	// Push capacity+1 records; the first one must be gone.
	for i := 1; i <= capacity+1; i++ {
		l.Push(rec(i))
	}

	if l.Len() != capacity {
		t.Fatalf("Len() = %d after %d pushes, want %d", l.Len(), capacity+1, capacity)
	}

	records := l.Records()
	for i, r := range records {
		want := fmt.Sprintf("orig-%d", i+2)
		if r.Original != want {
			t.Errorf("Records()[%d].Original = %q, want %q", i, r.Original, want)
		}
	}
}

func TestLedgerLIFOOrder(t *testing.T) {
	l := NewLedger(3)
	for i := 1; i <= 3; i++ {
		l.Push(rec(i))
	}

	for want := 3; want >= 1; want-- {
		r, ok := l.PopLatest()
		if !ok {
			t.Fatalf("PopLatest() empty at want=%d", want)
		}
		if r.Original != fmt.Sprintf("orig-%d", want) {
			t.Errorf("pop order: got %q, want orig-%d", r.Original, want)
		}
	}
}

func TestLedgerRepushAfterPop(t *testing.T) {
	l := NewLedger(2)
	l.Push(rec(1))
	l.Push(rec(2))

	r, _ := l.PopLatest()
	l.Push(r) // failed undo re-pushes the record

	got, _ := l.PopLatest()
	if got.Original != "orig-2" {
		t.Errorf("re-pushed record not at tail: got %q", got.Original)
	}
}

func TestLedgerSetCapacity(t *testing.T) {
	l := NewLedger(5)
	for i := 1; i <= 5; i++ {
		l.Push(rec(i))
	}

	// Shrink keeps the newest records.
	l.SetCapacity(3)
	if l.Cap() != 3 || l.Len() != 3 {
		t.Fatalf("Cap() = %d Len() = %d after shrink, want 3 and 3", l.Cap(), l.Len())
	}
	for want := 5; want >= 3; want-- {
		r, ok := l.PopLatest()
		if !ok || r.Original != fmt.Sprintf("orig-%d", want) {
			t.Errorf("after shrink: got %q ok=%v, want orig-%d", r.Original, ok, want)
		}
	}

	// Grow preserves whatever is held and raises the ceiling.
	l.Push(rec(1))
	l.SetCapacity(4)
	for i := 2; i <= 5; i++ {
		l.Push(rec(i))
	}
	if l.Len() != 4 {
		t.Errorf("Len() = %d after grow and refill, want 4", l.Len())
	}
	r, _ := l.PopLatest()
	if r.Original != "orig-5" {
		t.Errorf("newest after grow = %q, want orig-5", r.Original)
	}
}

func TestLedgerBadCapacity(t *testing.T) {
	l := NewLedger(0)
	if l.Cap() != DefaultCapacity {
		t.Errorf("Cap() = %d for zero capacity, want %d", l.Cap(), DefaultCapacity)
	}
}
