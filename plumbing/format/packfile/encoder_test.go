package packfile

import (
	"bytes"
	"context"
	"encoding/hex"
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/web3infra-foundation/git-internal/plumbing"
	gihash "github.com/web3infra-foundation/git-internal/plumbing/hash"
)

func TestEncodeEmptyPackCanonicalBytes(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	e := NewEncoder(&buf)
	checksum, err := e.Encode(nil)
	require.NoError(t, err)

	// Header + trailer only; the trailer of the canonical empty pack is
	// stable across every Git implementation.
	want := "5041434b" + "00000002" + "00000000" +
		"029d08823bd8a8eab510ad6ac75c823cfd3ed31e"
	assert.Equal(t, want, hex.EncodeToString(buf.Bytes()))
	assert.Equal(t, "029d08823bd8a8eab510ad6ac75c823cfd3ed31e", checksum.String())
}

func testEntries(t *testing.T, n int) []plumbing.Entry {
	t.Helper()

	r := rand.New(rand.NewSource(42))
	pattern := make([]byte, 2048)
	r.Read(pattern)

	entries := make([]plumbing.Entry, 0, n)
	for i := 0; i < n; i++ {
		size := 1024 + r.Intn(3*1024)
		data := make([]byte, size)
		// Payloads share long runs so the delta search has something to
		// find, with a distinct head to keep ids unique.
		copy(data, []byte(fmt.Sprintf("object %d header ", i)))
		for off := 32; off < size; off += len(pattern) {
			copy(data[off:], pattern)
		}
		entries = append(entries, plumbing.NewEntry(gihash.SHA1, plumbing.BlobObject, data))
	}
	return entries
}

func encodeDecodeRoundTrip(t *testing.T, entries []plumbing.Entry, opts ...EncoderOption) {
	t.Helper()

	var buf bytes.Buffer
	e := NewEncoder(&buf, opts...)
	checksum, err := e.Encode(entries)
	require.NoError(t, err)

	decoded, _, parsedChecksum, err := parsePack(t, buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, checksum, parsedChecksum)

	require.Len(t, decoded, len(entries))
	for _, want := range entries {
		got, ok := decoded[want.Hash.String()]
		require.True(t, ok, "missing %s", want.Hash)
		assert.Equal(t, want.Type, got.Type)
		assert.Equal(t, want.Data, got.Data)
	}
}

func TestEncodeDecodeNoDeltas(t *testing.T) {
	t.Parallel()
	encodeDecodeRoundTrip(t, testEntries(t, 50))
}

func TestEncodeDecodeDeltaWindow(t *testing.T) {
	t.Parallel()
	encodeDecodeRoundTrip(t, testEntries(t, 1000), WithDeltaWindow(10))
}

func TestEncodeDecodeZstdDeltaWindow(t *testing.T) {
	t.Parallel()
	encodeDecodeRoundTrip(t, testEntries(t, 200), WithDeltaWindow(10), WithZstdDeltas())
}

func TestEncodeDeltaWindowShrinksPack(t *testing.T) {
	t.Parallel()

	entries := testEntries(t, 100)

	var plain, deltified bytes.Buffer
	_, err := NewEncoder(&plain).Encode(entries)
	require.NoError(t, err)
	_, err = NewEncoder(&deltified, WithDeltaWindow(10)).Encode(entries)
	require.NoError(t, err)

	assert.Less(t, deltified.Len(), plain.Len())
}

func TestEncoderIndexMatchesPack(t *testing.T) {
	t.Parallel()

	entries := testEntries(t, 64)

	var buf bytes.Buffer
	e := NewEncoder(&buf, WithDeltaWindow(4))
	checksum, err := e.Encode(entries)
	require.NoError(t, err)

	idx, err := e.Index()
	require.NoError(t, err)
	require.Equal(t, len(entries), idx.Count())
	assert.Equal(t, checksum, idx.PackfileChecksum)

	// Ids in the index must be exactly the encoded ids, sorted.
	for _, entry := range entries {
		assert.True(t, idx.Contains(entry.Hash))
	}
	for i := 1; i < len(idx.Entries); i++ {
		assert.Negative(t, bytes.Compare(idx.Entries[i-1].Hash.Bytes(), idx.Entries[i].Hash.Bytes()))
	}

	// Offsets and CRCs must agree with what a decode observes.
	_, metas, _, err := parsePack(t, buf.Bytes())
	require.NoError(t, err)
	for hexID, meta := range metas {
		id, ok := gihash.FromHex(hexID)
		require.True(t, ok)

		off, ok := idx.FindOffset(id)
		require.True(t, ok)
		assert.EqualValues(t, meta.Offset, off)

		crc, ok := idx.FindCRC32(id)
		require.True(t, ok)
		assert.Equal(t, meta.CRC32, crc)
	}
}

func TestEncodeSHA256(t *testing.T) {
	t.Parallel()

	entries := []plumbing.Entry{
		plumbing.NewEntry(gihash.SHA256, plumbing.BlobObject, []byte("first")),
		plumbing.NewEntry(gihash.SHA256, plumbing.BlobObject, []byte("second")),
	}

	var buf bytes.Buffer
	e := NewEncoder(&buf, WithEncoderObjectFormat(gihash.SHA256))
	checksum, err := e.Encode(entries)
	require.NoError(t, err)
	assert.Len(t, checksum.String(), 64)

	decoded, _, _, err := parsePack(t, buf.Bytes(), WithObjectFormat(gihash.SHA256))
	require.NoError(t, err)
	assert.Len(t, decoded, 2)
}

func TestDecodeEncodeDecodeRoundTrip(t *testing.T) {
	t.Parallel()

	entries := testEntries(t, 120)

	var first bytes.Buffer
	_, err := NewEncoder(&first, WithDeltaWindow(10)).Encode(entries)
	require.NoError(t, err)

	decoded, metas, _, err := parsePack(t, first.Bytes())
	require.NoError(t, err)

	// Re-encode in pack order and decode again: the object set must be
	// unchanged.
	ordered := make([]plumbing.Entry, 0, len(decoded))
	type pair struct {
		e      plumbing.Entry
		offset int64
	}
	pairs := make([]pair, 0, len(decoded))
	for hexID, e := range decoded {
		pairs = append(pairs, pair{e: e, offset: metas[hexID].Offset})
	}
	for i := 0; i < len(pairs); i++ {
		for j := i + 1; j < len(pairs); j++ {
			if pairs[j].offset < pairs[i].offset {
				pairs[i], pairs[j] = pairs[j], pairs[i]
			}
		}
	}
	for _, p := range pairs {
		ordered = append(ordered, p.e)
	}

	var second bytes.Buffer
	_, err = NewEncoder(&second, WithDeltaWindow(10)).Encode(ordered)
	require.NoError(t, err)

	redecoded, _, _, err := parsePack(t, second.Bytes())
	require.NoError(t, err)

	require.Len(t, redecoded, len(decoded))
	for hexID, want := range decoded {
		got, ok := redecoded[hexID]
		require.True(t, ok)
		assert.Equal(t, want.Type, got.Type)
		assert.Equal(t, want.Data, got.Data)
	}
}

func TestEncodeCancelledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := WritePackAndIndex(ctx, newTestFS(t), "objects/pack", testEntries(t, 4))
	assert.Error(t, err)
}
