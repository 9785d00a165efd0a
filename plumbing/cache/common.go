// Package cache implements the decoded-object caches used by the pack
// engine: a byte-accounted LRU memory tier and a disk-backed two-tier
// cache that spills evicted payloads without losing them.
package cache

import (
	"github.com/web3infra-foundation/git-internal/plumbing"
	"github.com/web3infra-foundation/git-internal/plumbing/hash"
)

const (
	Byte FileSize = 1 << (iota * 10)
	KiByte
	MiByte
	GiByte
)

// FileSize is a size expressed in bytes.
type FileSize int64

// DefaultMaxSize is the cache budget used when none is configured.
const DefaultMaxSize FileSize = 96 * MiByte

// Object is a cache for decoded pack entries keyed by object id.
type Object interface {
	// Put inserts the entry at the most-recently-used position.
	Put(e plumbing.Entry) error
	// Get returns the entry for the given id, marking it as recently
	// used. Reading a spilled payload back from disk may block.
	Get(id hash.ObjectID) (plumbing.Entry, bool, error)
	// Contains reports presence without touching recency order.
	Contains(id hash.ObjectID) bool
	// Close releases the cache resources.
	Close() error
}
