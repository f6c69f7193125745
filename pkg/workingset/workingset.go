// Package workingset holds the curation table: an ordered, name-unique set
// of package records and their approval status.
//
// The first record inserted under a name wins; later records with the same
// name are dropped, whatever their version. Status moves from pending to
// accepted or rejected exactly once.
package workingset

import (
	"context"
	"sync"

	"github.com/matzehuels/curator/pkg/catalog"
	"github.com/matzehuels/curator/pkg/errors"
	"github.com/matzehuels/curator/pkg/observability"
)

// WorkingSet is safe for concurrent use. InsertBatch and SetStatus are
// atomic with respect to each other.
type WorkingSet struct {
	mu      sync.RWMutex
	records []catalog.Record
	index   map[string]int
}

// New returns an empty working set.
func New() *WorkingSet {
	return &WorkingSet{index: make(map[string]int)}
}

// InsertBatch appends every record whose name is not already present, in
// batch order, and returns how many were added. Duplicates within the batch
// collapse to their first occurrence.
func (w *WorkingSet) InsertBatch(records []catalog.Record) int {
	w.mu.Lock()
	added := 0
	for _, r := range records {
		if _, ok := w.index[r.Name]; ok {
			continue
		}
		w.index[r.Name] = len(w.records)
		w.records = append(w.records, r)
		added++
	}
	w.mu.Unlock()

	observability.Curation().OnInsert(context.Background(), added, len(records)-added)
	return added
}

// Insert adds a single record. It reports whether the record was added.
func (w *WorkingSet) Insert(r catalog.Record) bool {
	return w.InsertBatch([]catalog.Record{r}) == 1
}

// SetStatus moves the record called name to status.
//
// It fails without changing anything when no record has that name
// (PACKAGE_NOT_FOUND), when status is not accepted or rejected
// (INVALID_STATUS), or when the record already has a terminal status
// (INVALID_TRANSITION).
func (w *WorkingSet) SetStatus(name string, status catalog.Status) error {
	if !status.Terminal() {
		return errors.New(errors.ErrCodeInvalidStatus, "cannot set status %q", status)
	}

	w.mu.Lock()
	i, ok := w.index[name]
	if !ok {
		w.mu.Unlock()
		return errors.New(errors.ErrCodePackageNotFound, "%s is not in the table", name)
	}
	if cur := w.records[i].Status; cur.Terminal() {
		w.mu.Unlock()
		return errors.New(errors.ErrCodeInvalidTransition, "%s is already %s", name, cur)
	}
	w.records[i].Status = status
	w.mu.Unlock()

	observability.Curation().OnStatusChange(context.Background(), name, string(status))
	return nil
}

// Accept marks name as accepted.
func (w *WorkingSet) Accept(name string) error {
	return w.SetStatus(name, catalog.StatusAccepted)
}

// Reject marks name as rejected.
func (w *WorkingSet) Reject(name string) error {
	return w.SetStatus(name, catalog.StatusRejected)
}

// Records returns a copy of the table in insertion order.
func (w *WorkingSet) Records() []catalog.Record {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make([]catalog.Record, len(w.records))
	copy(out, w.records)
	return out
}

// Get returns the record called name.
func (w *WorkingSet) Get(name string) (catalog.Record, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	i, ok := w.index[name]
	if !ok {
		return catalog.Record{}, false
	}
	return w.records[i], true
}

// Len returns the number of records.
func (w *WorkingSet) Len() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.records)
}

// Counts returns the number of records per status.
func (w *WorkingSet) Counts() map[catalog.Status]int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	counts := map[catalog.Status]int{
		catalog.StatusPending:  0,
		catalog.StatusAccepted: 0,
		catalog.StatusRejected: 0,
	}
	for _, r := range w.records {
		counts[r.Status]++
	}
	return counts
}
