package packfile

import (
	"bytes"

	"github.com/emirpasic/gods/lists/doublylinkedlist"

	"github.com/web3infra-foundation/git-internal/plumbing"
)

// windowCandidate is an already-emitted object that may serve as a delta
// base for upcoming objects.
type windowCandidate struct {
	entry  plumbing.Entry
	offset int64
}

// deltaCandidate is a delta proposal against an earlier in-pack base.
type deltaCandidate struct {
	base         *windowCandidate
	instructions []byte
	typ          plumbing.ObjectType
}

// deltaSelector keeps a sliding window of the last N emitted objects and
// proposes a base for each incoming object. The heuristic: same type,
// payload size within a factor of two, candidates tried newest first, and
// a delta is only worth it when its instruction stream is meaningfully
// smaller than the plain payload. Correctness does not depend on the
// choice; every proposal is verified to reconstruct the target.
type deltaSelector struct {
	window *doublylinkedlist.List
	size   int
	zstd   bool
}

func newDeltaSelector(size int, zstd bool) *deltaSelector {
	return &deltaSelector{
		window: doublylinkedlist.New(),
		size:   size,
		zstd:   zstd,
	}
}

// Enabled reports whether delta search is active at all.
func (s *deltaSelector) Enabled() bool {
	return s != nil && s.size > 0
}

// Select returns a delta proposal for the entry, or nil when writing it
// as a plain base is the better option.
func (s *deltaSelector) Select(e plumbing.Entry) *deltaCandidate {
	if !s.Enabled() {
		return nil
	}

	var best *deltaCandidate

	it := s.window.Iterator()
	for ok := it.Last(); ok; ok = it.Prev() {
		cand := it.Value().(*windowCandidate)
		if !s.comparable(cand.entry, e) {
			continue
		}

		dc := s.try(cand, e)
		if dc == nil {
			continue
		}

		if best == nil || len(dc.instructions) < len(best.instructions) {
			best = dc
		}
	}

	return best
}

// Add pushes an emitted object into the window, dropping the oldest
// candidate once the window is full.
func (s *deltaSelector) Add(e plumbing.Entry, offset int64) {
	if !s.Enabled() {
		return
	}

	s.window.Append(&windowCandidate{entry: e, offset: offset})
	if s.window.Size() > s.size {
		s.window.Remove(0)
	}
}

func (s *deltaSelector) comparable(base, target plumbing.Entry) bool {
	if base.Type != target.Type {
		return false
	}

	bl, tl := len(base.Data), len(target.Data)
	if bl == 0 || tl == 0 {
		return false
	}

	return bl <= tl*2 && tl <= bl*2
}

// try builds and verifies a delta proposal; nil when it does not pay off.
func (s *deltaSelector) try(cand *windowCandidate, e plumbing.Entry) *deltaCandidate {
	// Only deltas meaningfully smaller than the payload pay for the
	// extra base dependency.
	budget := len(e.Data) * 9 / 10

	if s.zstd {
		frame, err := DiffZstdDelta(cand.entry.Data, e.Data)
		if err != nil || len(frame) >= budget {
			return nil
		}

		target, err := PatchZstdDelta(cand.entry.Data, frame, int64(len(e.Data)))
		if err != nil || !bytes.Equal(target, e.Data) {
			return nil
		}

		return &deltaCandidate{
			base:         cand,
			instructions: frame,
			typ:          plumbing.ZstdOFSDeltaObject,
		}
	}

	delta := DiffDelta(cand.entry.Data, e.Data)
	if len(delta) >= budget {
		return nil
	}

	target, err := PatchDelta(cand.entry.Data, delta)
	if err != nil || !bytes.Equal(target, e.Data) {
		return nil
	}

	return &deltaCandidate{
		base:         cand,
		instructions: delta,
		typ:          plumbing.OFSDeltaObject,
	}
}
