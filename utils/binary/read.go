// Package binary implements helpers for reading and writing the
// big-endian integers and Git varints used by the pack formats.
package binary

import (
	"encoding/binary"
	"io"

	"github.com/web3infra-foundation/git-internal/plumbing/hash"
)

const (
	maskContinue = uint8(128) // 1000 0000
	maskLength   = uint8(127) // 0111 1111
	lengthBits   = uint8(7)   // subsequent bytes have 7 bits to store the length
)

// Read reads structured binary data from r into data, in big-endian order.
func Read(r io.Reader, data ...interface{}) error {
	for _, v := range data {
		if err := binary.Read(r, binary.BigEndian, v); err != nil {
			return err
		}
	}

	return nil
}

// ReadVariableWidthInt reads and returns an int in Git's variable-width
// format: big-endian 7-bit groups, each continuation adding an implicit
// carry of one. Used for the negative base offsets of offset deltas.
func ReadVariableWidthInt(r io.Reader) (int64, error) {
	var c byte
	if err := Read(r, &c); err != nil {
		return 0, err
	}

	v := int64(c & maskLength)
	for c&maskContinue > 0 {
		v++
		if err := Read(r, &c); err != nil {
			return 0, err
		}

		v = (v << lengthBits) + int64(c&maskLength)
	}

	return v, nil
}

// ReadUint64 reads 8 bytes and returns them as a big-endian uint64.
func ReadUint64(r io.Reader) (uint64, error) {
	var v uint64
	if err := binary.Read(r, binary.BigEndian, &v); err != nil {
		return 0, err
	}

	return v, nil
}

// ReadUint32 reads 4 bytes and returns them as a big-endian uint32.
func ReadUint32(r io.Reader) (uint32, error) {
	var v uint32
	if err := binary.Read(r, binary.BigEndian, &v); err != nil {
		return 0, err
	}

	return v, nil
}

// ReadObjectID reads a binary digest of the given hash kind from r.
func ReadObjectID(r io.Reader, k hash.Kind) (hash.ObjectID, error) {
	id := hash.ZeroID(k)
	if _, err := id.ReadFrom(r); err != nil {
		return id, err
	}

	return id, nil
}
