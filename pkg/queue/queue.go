// Package queue holds the pending-issue FIFO: admitted issues that could
// not be immediately fully staffed, waiting for a future drain trigger
// (new device connects, a task completes, or another admission frees up
// agents) (§4.4).
package queue

import (
	"sync"
	"sync/atomic"

	"github.com/mash-protocol/base-station/pkg/issue"
)

// Entry is a queued issue together with however many agents it still needs.
// Required starts at the issue's full crew size and is only ever lowered by
// a successful partial dispatch during drain.
type Entry struct {
	Issue    *issue.Issue
	Required int
}

// Queue is the FIFO of pending entries, one per distinct fingerprint.
type Queue struct {
	mu      sync.Mutex
	entries []*Entry
	seen    map[string]bool
	draining atomic.Bool
}

// New returns an empty queue.
func New() *Queue {
	return &Queue{seen: make(map[string]bool)}
}

// Enqueue appends an entry unless its issue's fingerprint is already
// queued. Returns false if it was a duplicate.
func (q *Queue) Enqueue(iss *issue.Issue, required int) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.seen[iss.Fingerprint] {
		return false
	}
	q.seen[iss.Fingerprint] = true
	q.entries = append(q.entries, &Entry{Issue: iss, Required: required})
	return true
}

// Peek returns the head entry without removing it, or nil if empty.
func (q *Queue) Peek() *Entry {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.entries) == 0 {
		return nil
	}
	return q.entries[0]
}

// PopFront removes the head entry, freeing its fingerprint to be re-queued
// later if the issue reopens.
func (q *Queue) PopFront() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.entries) == 0 {
		return
	}
	delete(q.seen, q.entries[0].Issue.Fingerprint)
	q.entries = q.entries[1:]
}

// Len reports the number of queued entries.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

// Snapshot returns a copy of every queued entry, for the status surface.
func (q *Queue) Snapshot() []Entry {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]Entry, len(q.entries))
	for i, e := range q.entries {
		out[i] = *e
	}
	return out
}

// TryBeginDrain claims the single-flight drain slot. It returns false if a
// drain is already in progress, in which case the caller should simply
// return: the in-progress drain will itself keep draining until the queue
// is empty or its head can't be fully staffed (§4.4).
func (q *Queue) TryBeginDrain() bool {
	return q.draining.CompareAndSwap(false, true)
}

// EndDrain releases the single-flight drain slot.
func (q *Queue) EndDrain() {
	q.draining.Store(false)
}

// Drain repeatedly hands the head entry to attempt until the queue empties
// or attempt reports the head couldn't be fully staffed. attempt receives a
// copy of the head entry and must not block on the queue itself (it dials
// out to devices); Drain does its own locking around entry bookkeeping so
// attempt never runs while the queue lock is held. A second call while one
// is already running is a silent no-op: the in-progress call will reach any
// entry the caller cared about (§4.4 single-flight).
func (q *Queue) Drain(attempt func(e Entry) (dispatched int, fullyStaffed bool)) {
	if !q.TryBeginDrain() {
		return
	}
	defer q.EndDrain()

	for {
		head, ok := q.snapshotHead()
		if !ok {
			return
		}

		dispatched, fullyStaffed := attempt(head)

		if !q.applyDrainResult(head.Issue.Fingerprint, dispatched, fullyStaffed) {
			return
		}
	}
}

func (q *Queue) snapshotHead() (Entry, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.entries) == 0 {
		return Entry{}, false
	}
	return *q.entries[0], true
}

// applyDrainResult folds an attempt's outcome back into the queue. It
// returns true if the caller should keep draining.
func (q *Queue) applyDrainResult(fingerprint string, dispatched int, fullyStaffed bool) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.entries) == 0 || q.entries[0].Issue.Fingerprint != fingerprint {
		// Head changed out from under us; single-flight should prevent
		// this, but don't act on stale state if it somehow happens.
		return false
	}

	if fullyStaffed {
		delete(q.seen, fingerprint)
		q.entries = q.entries[1:]
		return true
	}

	q.entries[0].Required -= dispatched
	return false
}
