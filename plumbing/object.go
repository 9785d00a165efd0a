// Package plumbing implements the core types shared by the pack engine:
// object kinds, content-addressed entries and their hashing.
package plumbing

import (
	"errors"
)

var (
	// ErrObjectNotFound is returned when an object is not found.
	ErrObjectNotFound = errors.New("object not found")
	// ErrInvalidType is returned when an invalid object type is provided.
	ErrInvalidType = errors.New("invalid object type")
)

// ObjectType is the type tag of a pack object.
// Integer values from 1 to 7 map to the codes used on the wire.
type ObjectType int8

const (
	// InvalidObject represents an invalid object type.
	InvalidObject ObjectType = 0
	// CommitObject is a git commit object.
	CommitObject ObjectType = 1
	// TreeObject is a git tree object.
	TreeObject ObjectType = 2
	// BlobObject is a git blob object.
	BlobObject ObjectType = 3
	// TagObject is a git tag object.
	TagObject ObjectType = 4
	// ZstdOFSDeltaObject is an offset delta whose instruction stream is a
	// zstd frame dictionary-compressed against the base payload. It uses
	// type code 5, which standard Git reserves.
	ZstdOFSDeltaObject ObjectType = 5
	// OFSDeltaObject is an offset delta object.
	OFSDeltaObject ObjectType = 6
	// REFDeltaObject is a reference delta object.
	REFDeltaObject ObjectType = 7

	// AnyObject is used to represent any object type.
	AnyObject ObjectType = -127
)

func (t ObjectType) String() string {
	switch t {
	case CommitObject:
		return "commit"
	case TreeObject:
		return "tree"
	case BlobObject:
		return "blob"
	case TagObject:
		return "tag"
	case ZstdOFSDeltaObject:
		return "zstd-ofs-delta"
	case OFSDeltaObject:
		return "ofs-delta"
	case REFDeltaObject:
		return "ref-delta"
	case AnyObject:
		return "any"
	default:
		return "unknown"
	}
}

// Bytes returns the byte representation of the ObjectType.
func (t ObjectType) Bytes() []byte {
	return []byte(t.String())
}

// Valid returns true if t is a valid ObjectType.
func (t ObjectType) Valid() bool {
	return t >= CommitObject && t <= REFDeltaObject
}

// IsDelta returns true for any ObjectType that represents a delta.
func (t ObjectType) IsDelta() bool {
	return t == REFDeltaObject || t == OFSDeltaObject || t == ZstdOFSDeltaObject
}

// IsBase returns true for the four base object types.
func (t ObjectType) IsBase() bool {
	return t >= CommitObject && t <= TagObject
}

// ParseObjectType parses a string representation of ObjectType. It returns
// an error on parse failure.
func ParseObjectType(value string) (typ ObjectType, err error) {
	switch value {
	case "commit":
		typ = CommitObject
	case "tree":
		typ = TreeObject
	case "blob":
		typ = BlobObject
	case "tag":
		typ = TagObject
	case "zstd-ofs-delta":
		typ = ZstdOFSDeltaObject
	case "ofs-delta":
		typ = OFSDeltaObject
	case "ref-delta":
		typ = REFDeltaObject
	default:
		err = ErrInvalidType
	}
	return typ, err
}
