package search

import (
	"sync"
	"time"
)

// DefaultDebounce is the quiet period after the last keystroke before a
// query is committed.
const DefaultDebounce = 500 * time.Millisecond

// Debouncer turns a stream of keystrokes into committed queries. A query is
// committed once the input has been quiet for the configured delay; every
// keystroke restarts the wait. Empty input is committed immediately.
//
// Debouncer is safe for concurrent use. commit runs on a timer goroutine
// (or on the caller's goroutine for empty input and Flush). Commits never
// overlap, and a commit superseded by later input before it starts is
// dropped, so the last commit always reflects the latest input.
type Debouncer struct {
	delay  time.Duration
	commit func(string)

	commitMu sync.Mutex // held across commit

	mu      sync.Mutex
	timer   *time.Timer
	pending string
	armed   bool
	seq     uint64 // bumped whenever the pending timer is superseded
}

// NewDebouncer returns a Debouncer calling commit after delay of quiet.
// A non-positive delay selects DefaultDebounce.
func NewDebouncer(delay time.Duration, commit func(string)) *Debouncer {
	if delay <= 0 {
		delay = DefaultDebounce
	}
	return &Debouncer{delay: delay, commit: commit}
}

// Input records the current text of the search box.
func (d *Debouncer) Input(text string) {
	d.mu.Lock()
	d.cancelLocked()
	if text == "" {
		seq := d.seq
		d.mu.Unlock()
		d.run(seq, "")
		return
	}
	d.pending = text
	d.armed = true
	seq := d.seq
	d.timer = time.AfterFunc(d.delay, func() { d.fire(seq) })
	d.mu.Unlock()
}

// Flush commits the pending text now, if any.
func (d *Debouncer) Flush() {
	d.mu.Lock()
	if !d.armed {
		d.mu.Unlock()
		return
	}
	text := d.pending
	d.cancelLocked()
	seq := d.seq
	d.mu.Unlock()
	d.run(seq, text)
}

// Stop discards the pending text without committing it.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	d.cancelLocked()
	d.mu.Unlock()
}

// Pending returns the text waiting to be committed.
func (d *Debouncer) Pending() (string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pending, d.armed
}

func (d *Debouncer) fire(seq uint64) {
	d.mu.Lock()
	// A timer that fired while Input held the lock is stale.
	if seq != d.seq || !d.armed {
		d.mu.Unlock()
		return
	}
	text := d.pending
	d.armed = false
	d.pending = ""
	d.seq++
	seq = d.seq
	d.mu.Unlock()
	d.run(seq, text)
}

// run commits text unless input arrived after seq was taken.
func (d *Debouncer) run(seq uint64, text string) {
	d.commitMu.Lock()
	defer d.commitMu.Unlock()

	d.mu.Lock()
	stale := seq != d.seq
	d.mu.Unlock()
	if !stale {
		d.commit(text)
	}
}

func (d *Debouncer) cancelLocked() {
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.armed = false
	d.pending = ""
	d.seq++
}
