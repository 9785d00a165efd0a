package binary

import (
	"encoding/binary"
	"io"
)

// Write writes the binary representation of data into w, in big-endian
// order.
func Write(w io.Writer, data ...interface{}) error {
	for _, v := range data {
		if err := binary.Write(w, binary.BigEndian, v); err != nil {
			return err
		}
	}

	return nil
}

// WriteVariableWidthInt writes n in Git's variable-width format; the
// inverse of ReadVariableWidthInt.
func WriteVariableWidthInt(w io.Writer, n int64) error {
	buf := []byte{byte(n & int64(maskLength))}
	n >>= lengthBits
	for n != 0 {
		n--
		buf = append([]byte{maskContinue | byte(n&int64(maskLength))}, buf...)
		n >>= lengthBits
	}

	_, err := w.Write(buf)

	return err
}

// WriteUint64 writes the binary representation of a uint64 into w, in
// big-endian order.
func WriteUint64(w io.Writer, value uint64) error {
	return binary.Write(w, binary.BigEndian, value)
}

// WriteUint32 writes the binary representation of a uint32 into w, in
// big-endian order.
func WriteUint32(w io.Writer, value uint32) error {
	return binary.Write(w, binary.BigEndian, value)
}
