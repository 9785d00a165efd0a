package packfile

import (
	"sync"

	"github.com/web3infra-foundation/git-internal/plumbing/hash"
)

// Waitlist holds delta records whose base object has not surfaced yet,
// keyed by the base reference: pack offset for offset deltas, object id
// for ref deltas. A parked delta lives in exactly one bucket.
//
// Waitlist is safe for concurrent park/wake from the parser workers.
// Wake calls atomically remove and return every parked dependent, so a
// delta is handed out exactly once.
type Waitlist struct {
	mu       sync.Mutex
	byOffset map[int64][]*ObjectHeader
	byID     map[hash.ObjectID][]*ObjectHeader
}

// NewWaitlist returns an empty waitlist.
func NewWaitlist() *Waitlist {
	return &Waitlist{
		byOffset: make(map[int64][]*ObjectHeader),
		byID:     make(map[hash.ObjectID][]*ObjectHeader),
	}
}

// ParkOffset parks a delta under the pack offset of its base.
func (w *Waitlist) ParkOffset(offset int64, oh *ObjectHeader) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.byOffset[offset] = append(w.byOffset[offset], oh)
}

// ParkID parks a delta under the object id of its base.
func (w *Waitlist) ParkID(id hash.ObjectID, oh *ObjectHeader) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.byID[id] = append(w.byID[id], oh)
}

// WakeOffset removes and returns all deltas parked under the offset.
func (w *Waitlist) WakeOffset(offset int64) []*ObjectHeader {
	w.mu.Lock()
	defer w.mu.Unlock()

	deltas := w.byOffset[offset]
	delete(w.byOffset, offset)
	return deltas
}

// WakeID removes and returns all deltas parked under the id.
func (w *Waitlist) WakeID(id hash.ObjectID) []*ObjectHeader {
	w.mu.Lock()
	defer w.mu.Unlock()

	deltas := w.byID[id]
	delete(w.byID, id)
	return deltas
}

// Wake removes and returns all deltas parked under either key of a base
// announced with both its offset and its id.
func (w *Waitlist) Wake(offset int64, id hash.ObjectID) []*ObjectHeader {
	w.mu.Lock()
	defer w.mu.Unlock()

	deltas := w.byOffset[offset]
	delete(w.byOffset, offset)

	if more, ok := w.byID[id]; ok {
		deltas = append(deltas, more...)
		delete(w.byID, id)
	}

	return deltas
}

// Empty reports whether nothing is parked.
func (w *Waitlist) Empty() bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	return len(w.byOffset) == 0 && len(w.byID) == 0
}

// Pending returns the base references still being waited on: the ids of
// unseen ref-delta bases and the offsets of unseen offset-delta bases.
func (w *Waitlist) Pending() (offsets []int64, ids []hash.ObjectID) {
	w.mu.Lock()
	defer w.mu.Unlock()

	for offset := range w.byOffset {
		offsets = append(offsets, offset)
	}
	for id := range w.byID {
		ids = append(ids, id)
	}
	return offsets, ids
}
