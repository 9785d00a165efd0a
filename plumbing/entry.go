package plumbing

import (
	"fmt"

	"github.com/web3infra-foundation/git-internal/plumbing/hash"
)

// Entry is a fully reconstructed object coming out of a pack stream.
// Its id always satisfies Hash == ComputeHash(Hash.Kind(), Type, Data).
type Entry struct {
	// Type is one of the four base object types. Deltas never surface as
	// entries; they are resolved before emission.
	Type ObjectType
	// Hash is the content-addressed id of the object.
	Hash hash.ObjectID
	// Data is the raw object payload, without the "<type> <size>\x00"
	// header.
	Data []byte
}

// NewEntry builds an Entry for the given payload, computing its id under
// the given hash kind.
func NewEntry(k hash.Kind, t ObjectType, data []byte) Entry {
	return Entry{
		Type: t,
		Hash: ComputeHash(k, t, data),
		Data: data,
	}
}

func (e Entry) String() string {
	return fmt.Sprintf("%s %s %d", e.Hash, e.Type, len(e.Data))
}

// EntryMeta carries the per-entry bookkeeping recorded while decoding a
// pack, needed to build a matching index.
type EntryMeta struct {
	// Offset is the position of the first byte of the object record
	// within the pack.
	Offset int64
	// CRC32 covers the record's on-disk bytes: the type-size varint, the
	// base reference if any, and the compressed body.
	CRC32 uint32
	// Path optionally tags the source file the entry originates from.
	Path string
}
