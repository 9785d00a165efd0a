// Package idxfile implements encoding and decoding of pack index (.idx)
// files, version 2, for both SHA-1 and SHA-256 object formats.
package idxfile

import (
	"errors"
	"sort"

	"github.com/web3infra-foundation/git-internal/plumbing/hash"
)

var (
	// ErrUnsupportedVersion is returned by Decode when the idx file
	// version is not supported.
	ErrUnsupportedVersion = errors.New("unsupported version")
	// ErrMalformedIdxFile is returned by Decode when the idx file is
	// corrupted.
	ErrMalformedIdxFile = errors.New("malformed IDX file")
)

// VersionSupported is the only idx version supported.
const VersionSupported = 2

// idxHeader is the magic of idx files: \377tOc.
var idxHeader = []byte{0xff, 0x74, 0x4f, 0x63}

// isO64Mask flags a 32-bit offset slot that routes into the 64-bit
// offset table.
const isO64Mask = uint32(1) << 31

// Entry is a single record of an index: an object id, the CRC-32 of its
// pack record, and its offset within the pack.
type Entry struct {
	Hash   hash.ObjectID
	CRC32  uint32
	Offset uint64
}

// MemoryIndex is the in-memory representation of an idx file. Entries are
// kept in id-sorted order, the order they appear in on disk.
type MemoryIndex struct {
	Version uint32
	// Fanout holds, at position i, the count of ids whose first byte
	// is <= i.
	Fanout [256]uint32
	// ObjectFormat is the hash kind of the ids and trailer hashes.
	ObjectFormat hash.Kind

	Entries []Entry

	// PackfileChecksum is the trailer hash of the matching pack.
	PackfileChecksum hash.ObjectID
	// IdxChecksum covers every preceding byte of the idx file.
	IdxChecksum hash.ObjectID
}

// Count returns the number of objects in the index.
func (idx *MemoryIndex) Count() int {
	return len(idx.Entries)
}

// Contains reports whether the index holds the given id.
func (idx *MemoryIndex) Contains(h hash.ObjectID) bool {
	_, ok := idx.lookup(h)
	return ok
}

// FindOffset returns the pack offset recorded for the given id.
func (idx *MemoryIndex) FindOffset(h hash.ObjectID) (uint64, bool) {
	e, ok := idx.lookup(h)
	if !ok {
		return 0, false
	}
	return e.Offset, true
}

// FindCRC32 returns the CRC-32 recorded for the given id.
func (idx *MemoryIndex) FindCRC32(h hash.ObjectID) (uint32, bool) {
	e, ok := idx.lookup(h)
	if !ok {
		return 0, false
	}
	return e.CRC32, true
}

// lookup binary-searches the fanout bucket of the id's first byte.
func (idx *MemoryIndex) lookup(h hash.ObjectID) (Entry, bool) {
	raw := h.Bytes()
	first := raw[0]

	lo := 0
	if first > 0 {
		lo = int(idx.Fanout[first-1])
	}
	hi := int(idx.Fanout[first])
	if hi > len(idx.Entries) {
		return Entry{}, false
	}

	bucket := idx.Entries[lo:hi]
	i := sort.Search(len(bucket), func(i int) bool {
		return bucket[i].Hash.Compare(raw) >= 0
	})

	if i < len(bucket) && bucket[i].Hash.Equal(h) {
		return bucket[i], true
	}
	return Entry{}, false
}

// largeOffsetCount returns how many entries need the 64-bit offset table.
func (idx *MemoryIndex) largeOffsetCount() int {
	n := 0
	for _, e := range idx.Entries {
		if e.Offset >= uint64(isO64Mask) {
			n++
		}
	}
	return n
}
