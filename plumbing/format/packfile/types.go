package packfile

import (
	"github.com/web3infra-foundation/git-internal/plumbing"
	"github.com/web3infra-foundation/git-internal/plumbing/hash"
)

// Version represents the packfile version.
type Version uint32

// Packfile versions.
const (
	V2 Version = 2
	V3 Version = 3
)

// Supported returns true if the version is supported.
func (v Version) Supported() bool {
	switch v {
	case V2, V3:
		return true
	default:
		return false
	}
}

// ObjectHeader contains the information related to one object record:
// the fields parsed from the record header plus the inflated record body.
type ObjectHeader struct {
	// Type is the on-disk type code of the record.
	Type plumbing.ObjectType
	// Offset is the position of the record's first byte within the pack.
	Offset int64
	// Size is the length declared by the type-size varint: the payload
	// length for base objects and zstd deltas (target length), or the
	// instruction stream length for classic deltas.
	Size int64
	// Reference is the base id of a ref-delta record.
	Reference hash.ObjectID
	// OffsetReference is the absolute base offset of an offset-delta
	// record.
	OffsetReference int64
	// Crc32 covers the on-disk record bytes: header, base reference and
	// compressed body.
	Crc32 uint32
	// Payload is the inflated record body: the object payload for base
	// records, the instruction stream for delta records.
	Payload []byte
}

// SectionType represents the type of section in a packfile.
type SectionType int

// Section types.
const (
	HeaderSection SectionType = iota
	ObjectSection
	FooterSection
)

// Header represents the packfile header.
type Header struct {
	Version    Version
	ObjectsQty uint32
}

// PackData represents the data returned by the scanner.
type PackData struct {
	Section      SectionType
	header       Header
	objectHeader ObjectHeader
	checksum     hash.ObjectID
}

// Value returns the value of the PackData based on its section type.
func (p PackData) Value() any {
	switch p.Section {
	case HeaderSection:
		return p.header
	case ObjectSection:
		return p.objectHeader
	case FooterSection:
		return p.checksum
	default:
		return nil
	}
}
