// Package undo holds the in-memory history of applied corrections.
//
// The ledger is a fixed-capacity ring: pushes append at the tail, the
// oldest record is dropped when the ring is full, and undo pops the most
// recent record. Nothing is persisted; restarting the daemon clears the
// history.
package undo

import (
	"sync"
	"time"
)

// DefaultCapacity is the number of corrections kept for undo.
const DefaultCapacity = 10

// Record is one applied correction. Immutable once pushed.
type Record struct {
	Original  string
	Corrected string
	Timestamp time.Time
}

// Ledger is a fixed-capacity ring of Records. When the ring is full,
// Push drops the oldest record (drop oldest, not LRU: records are never
// re-accessed in place).
type Ledger struct {
	mu   sync.Mutex
	buf  []Record
	cap  int
	head int // index of next write position
	len  int // number of valid records
}

// NewLedger creates a ledger holding at most capacity records.
// A capacity below 1 falls back to DefaultCapacity.
func NewLedger(capacity int) *Ledger {
	if capacity < 1 {
		capacity = DefaultCapacity
	}
	return &Ledger{
		buf: make([]Record, capacity),
		cap: capacity,
	}
}

// Push appends a record at the tail, evicting the oldest when full.
func (l *Ledger) Push(r Record) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.buf[l.head] = r
	l.head = (l.head + 1) % l.cap
	if l.len < l.cap {
		l.len++
	}
	// When full, head has advanced past the oldest record, which is now lost.
}

// PopLatest removes and returns the most recently pushed record.
// The second return value is false when the ledger is empty.
func (l *Ledger) PopLatest() (Record, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.len == 0 {
		return Record{}, false
	}
	l.head = (l.head - 1 + l.cap) % l.cap
	l.len--
	r := l.buf[l.head]
	l.buf[l.head] = Record{}
	return r, true
}

// SetCapacity resizes the ring in place, keeping the newest records
// that fit. A capacity below 1 falls back to DefaultCapacity.
func (l *Ledger) SetCapacity(capacity int) {
	if capacity < 1 {
		capacity = DefaultCapacity
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if capacity == l.cap {
		return
	}

	keep := l.len
	if keep > capacity {
		keep = capacity
	}
	buf := make([]Record, capacity)
	start := (l.head - keep + l.cap) % l.cap
	for i := 0; i < keep; i++ {
		buf[i] = l.buf[(start+i)%l.cap]
	}

	l.buf = buf
	l.cap = capacity
	l.head = keep % capacity
	l.len = keep
}

// Len returns the number of records currently held.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.len
}

// Cap returns the current capacity of the ledger.
func (l *Ledger) Cap() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.cap
}

// Records returns the held records in insertion order (oldest first).
// The returned slice is a copy.
func (l *Ledger) Records() []Record {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.len == 0 {
		return nil
	}
	out := make([]Record, l.len)
	start := (l.head - l.len + l.cap) % l.cap
	for i := 0; i < l.len; i++ {
		out[i] = l.buf[(start+i)%l.cap]
	}
	return out
}
