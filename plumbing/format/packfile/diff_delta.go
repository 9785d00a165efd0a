package packfile

import (
	"time"

	"github.com/sergi/go-diff/diffmatchpatch"

	gisync "github.com/web3infra-foundation/git-internal/utils/sync"
)

// See https://github.com/jelmer/dulwich/blob/master/dulwich/pack.py and
// the delta format comments in patch_delta.go for more info.

const (
	// maxCopyLen caps a single copy instruction; longer copies are split.
	maxCopyLen = 0xffff

	// maxInsertLen caps a single insert instruction at its 7-bit length.
	maxInsertLen = 0x7f

	// minCopyLen is the shortest equal span worth a copy instruction;
	// shorter spans are cheaper as literal inserts.
	minCopyLen = 4

	// diffTimeout bounds the diff search; on expiry the diff degrades
	// gracefully and the resulting delta just gets bigger.
	diffTimeout = 100 * time.Millisecond
)

// DiffDelta returns a delta stream that transforms base into target,
// in the Git delta instruction format understood by PatchDelta.
func DiffDelta(base, target []byte) []byte {
	out := make([]byte, 0, len(target)/2+8)
	out = append(out, deltaEncodeSize(len(base))...)
	out = append(out, deltaEncodeSize(len(target))...)

	dmp := diffmatchpatch.New()
	dmp.DiffTimeout = diffTimeout

	// Diffing runes mapped one-to-one from bytes keeps arbitrary binary
	// payloads intact; DiffMain's string round trip would not.
	diffs := dmp.DiffMainRunes(bytesToRunes(base), bytesToRunes(target), false)

	var basePos, targetPos int
	for _, d := range diffs {
		n := len([]rune(d.Text))

		switch d.Type {
		case diffmatchpatch.DiffEqual:
			if n < minCopyLen {
				out = appendInsert(out, target[targetPos:targetPos+n])
			} else {
				out = appendCopy(out, basePos, n)
			}
			basePos += n
			targetPos += n

		case diffmatchpatch.DiffDelete:
			basePos += n

		case diffmatchpatch.DiffInsert:
			out = appendInsert(out, target[targetPos:targetPos+n])
			targetPos += n
		}
	}

	return out
}

// DiffZstdDelta returns a zstd-framed delta for the target, compressed
// against the base payload as a raw-content dictionary. Applied with
// PatchZstdDelta.
func DiffZstdDelta(base, target []byte) ([]byte, error) {
	return gisync.ZstdCompressWithDict(target, base)
}

func bytesToRunes(b []byte) []rune {
	rs := make([]rune, len(b))
	for i, c := range b {
		rs[i] = rune(c)
	}
	return rs
}

func appendCopy(out []byte, copyStart, copyLen int) []byte {
	for copyLen > 0 {
		toCopy := copyLen
		if toCopy > maxCopyLen {
			toCopy = maxCopyLen
		}

		out = append(out, encodeCopyOperation(copyStart, toCopy)...)
		copyStart += toCopy
		copyLen -= toCopy
	}
	return out
}

func appendInsert(out []byte, data []byte) []byte {
	for len(data) > maxInsertLen {
		out = append(out, byte(maxInsertLen))
		out = append(out, data[:maxInsertLen]...)
		data = data[maxInsertLen:]
	}

	if len(data) > 0 {
		out = append(out, byte(len(data)))
		out = append(out, data...)
	}
	return out
}

func deltaEncodeSize(size int) []byte {
	var ret []byte
	c := size & maxInsertLen
	size >>= 7
	for size != 0 {
		ret = append(ret, byte(c|maskContinue))
		c = size & maxInsertLen
		size >>= 7
	}
	ret = append(ret, byte(c))

	return ret
}

func encodeCopyOperation(offset, length int) []byte {
	code := 0x80
	var opcodes []byte

	if offset&0xff != 0 {
		opcodes = append(opcodes, byte(offset&0xff))
		code |= 0x01
	}

	if offset&0xff00 != 0 {
		opcodes = append(opcodes, byte((offset&0xff00)>>8))
		code |= 0x02
	}

	if offset&0xff0000 != 0 {
		opcodes = append(opcodes, byte((offset&0xff0000)>>16))
		code |= 0x04
	}

	if offset&0xff000000 != 0 {
		opcodes = append(opcodes, byte((offset&0xff000000)>>24))
		code |= 0x08
	}

	if length&0xff != 0 {
		opcodes = append(opcodes, byte(length&0xff))
		code |= 0x10
	}

	if length&0xff00 != 0 {
		opcodes = append(opcodes, byte((length&0xff00)>>8))
		code |= 0x20
	}

	if length&0xff0000 != 0 {
		opcodes = append(opcodes, byte((length&0xff0000)>>16))
		code |= 0x40
	}

	return append([]byte{byte(code)}, opcodes...)
}
