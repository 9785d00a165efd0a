// Package hash provides the content-hash primitives used across
// git-internal, with selectable SHA-1 and SHA-256 algorithms.
//
// The active algorithm is session-scoped: set it once with SetDefault
// before any object id is computed. Components accept an explicit Kind
// where tests need to override it locally.
package hash

import (
	"crypto/sha256"
	"fmt"
	"hash"
	"sync/atomic"

	"github.com/pjbgf/sha1cd"
)

// Hash is the same as hash.Hash. This allows consumers
// to not have to import this package alongside "hash".
type Hash interface {
	hash.Hash
}

// Kind identifies a supported content-hash algorithm.
type Kind string

const (
	// SHA1 is the collision-detecting SHA-1 algorithm.
	SHA1 Kind = "sha1"
	// SHA256 is the SHA-256 algorithm.
	SHA256 Kind = "sha256"
)

const (
	// SHA1Size is the size in bytes of a SHA-1 digest.
	SHA1Size = 20
	// SHA1HexSize is the size of a SHA-1 digest in hexadecimal form.
	SHA1HexSize = SHA1Size * 2
	// SHA256Size is the size in bytes of a SHA-256 digest.
	SHA256Size = 32
	// SHA256HexSize is the size of a SHA-256 digest in hexadecimal form.
	SHA256HexSize = SHA256Size * 2
)

// Valid returns true if k is a supported hash kind.
func (k Kind) Valid() bool {
	switch k {
	case SHA1, SHA256:
		return true
	default:
		return false
	}
}

// Size returns the digest width in bytes.
func (k Kind) Size() int {
	if k == SHA256 {
		return SHA256Size
	}
	return SHA1Size
}

// HexSize returns the digest width in hexadecimal characters.
func (k Kind) HexSize() int {
	return k.Size() * 2
}

func (k Kind) String() string {
	return string(k)
}

// New returns a new hash.Hash for the kind. SHA-1 hashes are backed by
// sha1cd, which detects the known SHA-1 collision attacks.
func (k Kind) New() hash.Hash {
	if k == SHA256 {
		return sha256.New()
	}
	return sha1cd.New()
}

// ParseKind parses the lowercase name of a hash kind.
func ParseKind(s string) (Kind, error) {
	k := Kind(s)
	if !k.Valid() {
		return "", fmt.Errorf("unsupported hash kind %q", s)
	}
	return k, nil
}

var defaultKind atomic.Value

// Default returns the session-scoped hash kind. It defaults to SHA1.
func Default() Kind {
	if k, ok := defaultKind.Load().(Kind); ok {
		return k
	}
	return SHA1
}

// SetDefault sets the session-scoped hash kind. It must be called before
// any object id is computed and not changed afterwards.
func SetDefault(k Kind) {
	if !k.Valid() {
		panic(fmt.Sprintf("hash: unsupported kind %q", k))
	}
	defaultKind.Store(k)
}
