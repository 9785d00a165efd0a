package plumbing

import (
	"strconv"

	"github.com/web3infra-foundation/git-internal/plumbing/hash"
)

// Hasher computes object ids from the canonical object header and payload:
// H("<type> <size>\x00" + payload) under a given hash kind.
//
// A Hasher is not safe for concurrent use; each worker keeps its own.
type Hasher struct {
	hash.Hash
	kind hash.Kind
}

// Hash is an alias kept to avoid importing plumbing/hash alongside this
// package at every call site.
type Hash = hash.ObjectID

// NewHasher returns a Hasher for the given kind, primed with the header
// for an object of type t and the given payload size.
func NewHasher(k hash.Kind, t ObjectType, size int64) Hasher {
	if !k.Valid() {
		k = hash.Default()
	}
	h := Hasher{Hash: k.New(), kind: k}
	h.Reset(t, size)
	return h
}

// Reset re-primes the hasher with a new object header.
func (h Hasher) Reset(t ObjectType, size int64) {
	h.Hash.Reset()
	h.Write(t.Bytes())
	h.Write([]byte(" "))
	h.Write([]byte(strconv.FormatInt(size, 10)))
	h.Write([]byte{0})
}

// Sum returns the object id accumulated so far.
func (h Hasher) Sum() hash.ObjectID {
	id := hash.ZeroID(h.kind)
	id.Write(h.Hash.Sum(nil))
	return id
}

// ComputeHash computes the id for an object of type t with the given
// content, under the given hash kind.
func ComputeHash(k hash.Kind, t ObjectType, content []byte) hash.ObjectID {
	h := NewHasher(k, t, int64(len(content)))
	h.Write(content)
	return h.Sum()
}
