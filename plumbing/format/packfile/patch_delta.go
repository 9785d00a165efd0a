package packfile

import (
	"bytes"
	"errors"
	"fmt"

	gisync "github.com/web3infra-foundation/git-internal/utils/sync"
)

// See https://github.com/git/git/blob/master/delta.h and
// https://github.com/git/git/blob/master/patch-delta.c for details about
// the delta format.

// Delta errors.
var (
	// ErrInvalidDelta is returned when a delta stream is truncated or
	// its declared sizes disagree with the data.
	ErrInvalidDelta = errors.New("invalid delta")
	// ErrDeltaCmd is returned for the reserved 0x00 opcode.
	ErrDeltaCmd = errors.New("wrong delta command")
	// ErrDeltaCopyOutOfRange is returned when a copy instruction points
	// outside the base payload.
	ErrDeltaCopyOutOfRange = errors.New("delta copy out of range")
)

const (
	// minDeltaSize defines the smallest size for a delta: two size
	// varints and at least one instruction.
	minDeltaSize = 3

	// copyZeroSize is the copy size used when the instruction encodes
	// size zero.
	copyZeroSize = 0x10000
)

type offset struct {
	mask  byte
	shift uint
}

var offsets = []offset{
	{mask: 0x01, shift: 0},
	{mask: 0x02, shift: 8},
	{mask: 0x04, shift: 16},
	{mask: 0x08, shift: 24},
}

var sizes = []offset{
	{mask: 0x10, shift: 0},
	{mask: 0x20, shift: 8},
	{mask: 0x40, shift: 16},
}

// PatchDelta returns the result of applying the modification deltas in
// delta to src. An error is returned when the delta is corrupted
// (ErrInvalidDelta), an instruction carries the reserved opcode
// (ErrDeltaCmd), or a copy points outside the base (ErrDeltaCopyOutOfRange).
func PatchDelta(src, delta []byte) ([]byte, error) {
	if len(delta) < minDeltaSize {
		return nil, ErrInvalidDelta
	}

	srcSz, delta := decodeLEB128(delta)
	if srcSz != uint(len(src)) {
		return nil, fmt.Errorf("%w: declared base size %d, base is %d", ErrInvalidDelta, srcSz, len(src))
	}

	targetSz, delta := decodeLEB128(delta)

	dst := bytes.NewBuffer(make([]byte, 0, targetSz))

	for len(delta) > 0 {
		cmd := delta[0]
		delta = delta[1:]

		switch {
		case isCopyFromSrc(cmd):
			var off, sz uint
			var err error
			off, delta, err = decodeOffset(cmd, delta)
			if err != nil {
				return nil, err
			}

			sz, delta, err = decodeSize(cmd, delta)
			if err != nil {
				return nil, err
			}

			if sumOverflows(off, sz) || off+sz > srcSz {
				return nil, fmt.Errorf("%w: [%d, %d) of %d", ErrDeltaCopyOutOfRange, off, off+sz, srcSz)
			}

			dst.Write(src[off : off+sz])

		case isCopyFromDelta(cmd):
			sz := uint(cmd) // cmd is the size itself
			if uint(len(delta)) < sz {
				return nil, ErrInvalidDelta
			}

			dst.Write(delta[:sz])
			delta = delta[sz:]

		default:
			// Opcode 0x00 is reserved.
			return nil, ErrDeltaCmd
		}
	}

	if uint(dst.Len()) != targetSz {
		return nil, fmt.Errorf("%w: declared target size %d, produced %d", ErrInvalidDelta, targetSz, dst.Len())
	}

	return dst.Bytes(), nil
}

// PatchZstdDelta reconstructs a target payload from a zstd-framed delta:
// the frame is decompressed with the base payload acting as a raw-content
// dictionary. The produced length must match targetSize, which the record
// header declares.
func PatchZstdDelta(src, frame []byte, targetSize int64) ([]byte, error) {
	dst, err := gisync.ZstdDecompressWithDict(frame, src, int(targetSize))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidDelta, err)
	}

	if int64(len(dst)) != targetSize {
		return nil, fmt.Errorf("%w: declared target size %d, produced %d", ErrInvalidDelta, targetSize, len(dst))
	}

	return dst, nil
}

// DeltaSizes returns the base and target sizes declared by the leading
// varints of a classic delta stream.
func DeltaSizes(delta []byte) (srcSz, targetSz uint, err error) {
	if len(delta) < minDeltaSize {
		return 0, 0, ErrInvalidDelta
	}

	srcSz, delta = decodeLEB128(delta)
	targetSz, _ = decodeLEB128(delta)
	return srcSz, targetSz, nil
}

func isCopyFromSrc(cmd byte) bool {
	return (cmd & maskContinue) != 0
}

func isCopyFromDelta(cmd byte) bool {
	return (cmd&maskContinue) == 0 && cmd != 0
}

// decodeLEB128 decodes a number encoded as an unsigned LEB128 at the
// start of some binary data and returns the decoded number and the rest
// of the bytes.
func decodeLEB128(input []byte) (uint, []byte) {
	var num, sz uint
	var b byte
	for {
		b = input[sz]
		num |= (uint(b) & uint(maskLength)) << (sz * 7) // concats 7 bits chunks
		sz++

		if uint(b)&uint(maskContinue) == 0 || sz == uint(len(input)) {
			break
		}
	}

	return num, input[sz:]
}

func decodeOffset(cmd byte, delta []byte) (uint, []byte, error) {
	var off uint
	for _, o := range offsets {
		if (cmd & o.mask) != 0 {
			if len(delta) == 0 {
				return 0, nil, ErrInvalidDelta
			}
			off |= uint(delta[0]) << o.shift
			delta = delta[1:]
		}
	}

	return off, delta, nil
}

func decodeSize(cmd byte, delta []byte) (uint, []byte, error) {
	var sz uint
	for _, s := range sizes {
		if (cmd & s.mask) != 0 {
			if len(delta) == 0 {
				return 0, nil, ErrInvalidDelta
			}
			sz |= uint(delta[0]) << s.shift
			delta = delta[1:]
		}
	}
	if sz == 0 {
		sz = copyZeroSize
	}

	return sz, delta, nil
}

func sumOverflows(a, b uint) bool {
	return a+b < a
}
