package packfile

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/web3infra-foundation/git-internal/plumbing"
	gihash "github.com/web3infra-foundation/git-internal/plumbing/hash"
	gibinary "github.com/web3infra-foundation/git-internal/utils/binary"
)

// testRecord describes one object record for hand-built test packs.
type testRecord struct {
	typ plumbing.ObjectType
	// body is the uncompressed record body: payload for bases,
	// instruction stream for deltas.
	body []byte
	// declared overrides the size varint when non-zero; needed for zstd
	// deltas, which declare the target size.
	declared int64
	// baseOffset is the absolute offset of the base record, for offset
	// deltas.
	baseOffset int64
	// ref is the base id, for ref deltas.
	ref gihash.ObjectID
}

// buildPack assembles a pack byte stream out of records, returning the
// raw bytes and the offset of each record.
func buildPack(t *testing.T, kind gihash.Kind, records []testRecord) ([]byte, []int64) {
	t.Helper()

	var buf bytes.Buffer
	buf.Write(signature)

	var u32 [4]byte
	binary.BigEndian.PutUint32(u32[:], uint32(V2))
	buf.Write(u32[:])
	binary.BigEndian.PutUint32(u32[:], uint32(len(records)))
	buf.Write(u32[:])

	offsets := make([]int64, len(records))
	for i, rec := range records {
		offset := int64(buf.Len())
		offsets[i] = offset

		declared := rec.declared
		if declared == 0 {
			declared = int64(len(rec.body))
		}
		writeRecordHeader(t, &buf, rec.typ, declared)

		switch rec.typ {
		case plumbing.OFSDeltaObject, plumbing.ZstdOFSDeltaObject:
			require.Positive(t, offset-rec.baseOffset)
			require.NoError(t, gibinary.WriteVariableWidthInt(&buf, offset-rec.baseOffset))
		case plumbing.REFDeltaObject:
			buf.Write(rec.ref.Bytes())
		}

		zw := zlib.NewWriter(&buf)
		_, err := zw.Write(rec.body)
		require.NoError(t, err)
		require.NoError(t, zw.Close())
	}

	h := kind.New()
	h.Write(buf.Bytes())
	buf.Write(h.Sum(nil))

	return buf.Bytes(), offsets
}

func writeRecordHeader(t *testing.T, buf *bytes.Buffer, typ plumbing.ObjectType, size int64) {
	t.Helper()

	c := (int64(typ) << firstLengthBits) | (size & maskFirstLength)
	size >>= firstLengthBits
	for size != 0 {
		buf.WriteByte(byte(c | maskContinue))
		c = size & int64(maskLength)
		size >>= lengthBits
	}
	buf.WriteByte(byte(c))
}

// collectingObserver records every observer callback for assertions.
type collectingObserver struct {
	count    uint32
	entries  map[string][]byte
	metas    map[string]plumbing.EntryMeta
	footer   gihash.ObjectID
	footerOK bool
}

func newCollectingObserver() *collectingObserver {
	return &collectingObserver{
		entries: make(map[string][]byte),
		metas:   make(map[string]plumbing.EntryMeta),
	}
}

func (c *collectingObserver) OnHeader(count uint32) error {
	c.count = count
	return nil
}

func (c *collectingObserver) OnInflatedObjectHeader(t plumbing.ObjectType, objSize, pos int64) error {
	return nil
}

func (c *collectingObserver) OnInflatedObjectContent(h gihash.ObjectID, pos int64, crc uint32, content []byte) error {
	c.entries[h.String()] = content
	c.metas[h.String()] = plumbing.EntryMeta{Offset: pos, CRC32: crc}
	return nil
}

func (c *collectingObserver) OnFooter(h gihash.ObjectID) error {
	c.footer = h
	c.footerOK = true
	return nil
}
