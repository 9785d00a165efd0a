package hash

import (
	"bytes"
	"encoding/hex"
	"io"
)

// ObjectID is the content hash of a Git object. A single value covers
// both supported widths: 20 significant bytes for SHA-1, 32 for SHA-256.
// The zero value is the zero id of the session kind.
//
// ObjectID is comparable and can be used as a map key.
type ObjectID struct {
	sum  [SHA256Size]byte
	kind Kind
}

// FromHex parses a hexadecimal string into an ObjectID. The kind is
// inferred from the input length.
func FromHex(in string) (ObjectID, bool) {
	var id ObjectID

	switch len(in) {
	case SHA1HexSize:
		id.kind = SHA1
	case SHA256HexSize:
		id.kind = SHA256
	default:
		return id, false
	}

	b, err := hex.DecodeString(in)
	if err != nil {
		return id, false
	}

	copy(id.sum[:], b)
	return id, true
}

// FromBytes creates an ObjectID from a raw digest. The kind is inferred
// from the input length.
func FromBytes(in []byte) (ObjectID, bool) {
	var id ObjectID

	switch len(in) {
	case SHA1Size:
		id.kind = SHA1
	case SHA256Size:
		id.kind = SHA256
	default:
		return id, false
	}

	copy(id.sum[:], in)
	return id, true
}

// MustFromHex is like FromHex but panics on malformed input. Intended for
// literals in tests.
func MustFromHex(in string) ObjectID {
	id, ok := FromHex(in)
	if !ok {
		panic("cannot create object id from " + in)
	}
	return id
}

// ZeroID returns the all-zero id of the given kind.
func ZeroID(k Kind) ObjectID {
	return ObjectID{kind: k}
}

// Kind returns the hash kind of the id. Unset ids report the session
// default.
func (id ObjectID) Kind() Kind {
	if id.kind == "" {
		return Default()
	}
	return id.kind
}

// Size returns the digest width in bytes.
func (id ObjectID) Size() int {
	return id.Kind().Size()
}

// HexSize returns the digest width in hexadecimal characters.
func (id ObjectID) HexSize() int {
	return id.Size() * 2
}

// IsZero returns true if the id only contains zeros.
func (id ObjectID) IsZero() bool {
	return id.sum == [SHA256Size]byte{}
}

// Bytes returns the significant bytes of the digest.
func (id ObjectID) Bytes() []byte {
	return id.sum[:id.Size()]
}

// Compare compares the digest with a slice of bytes.
func (id ObjectID) Compare(b []byte) int {
	return bytes.Compare(id.Bytes(), b)
}

// Equal reports whether two ids carry the same digest.
func (id ObjectID) Equal(other ObjectID) bool {
	return id.Kind() == other.Kind() && id.sum == other.sum
}

// HasPrefix reports whether the digest starts with prefix.
func (id ObjectID) HasPrefix(prefix []byte) bool {
	return bytes.HasPrefix(id.Bytes(), prefix)
}

// String returns the lowercase hexadecimal form of the id.
func (id ObjectID) String() string {
	return hex.EncodeToString(id.Bytes())
}

// Write fills the digest from a raw sum, keeping the id's kind.
func (id *ObjectID) Write(in []byte) (int, error) {
	if id.kind == "" {
		id.kind = Default()
	}
	return copy(id.sum[:id.Size()], in), nil
}

// ReadFrom loads a binary digest of the id's kind from r.
func (id *ObjectID) ReadFrom(r io.Reader) (int64, error) {
	if id.kind == "" {
		id.kind = Default()
	}
	n, err := io.ReadFull(r, id.sum[:id.Size()])
	return int64(n), err
}

// WriteTo writes the binary digest to w.
func (id *ObjectID) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(id.Bytes())
	return int64(n), err
}
