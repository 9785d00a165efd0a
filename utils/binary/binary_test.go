package binary

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/web3infra-foundation/git-internal/plumbing/hash"
)

func TestReadUint32(t *testing.T) {
	t.Parallel()

	buf := bytes.NewBuffer([]byte{0x00, 0x00, 0x00, 0x2a})
	v, err := ReadUint32(buf)
	require.NoError(t, err)
	assert.EqualValues(t, 42, v)
}

func TestReadUint64(t *testing.T) {
	t.Parallel()

	buf := bytes.NewBuffer([]byte{0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x00})
	v, err := ReadUint64(buf)
	require.NoError(t, err)
	assert.EqualValues(t, uint64(1)<<32, v)
}

func TestVariableWidthIntRoundTrip(t *testing.T) {
	t.Parallel()

	for _, n := range []int64{0, 1, 127, 128, 1234, 0xffff, 1 << 20, 1<<31 + 17} {
		var buf bytes.Buffer
		require.NoError(t, WriteVariableWidthInt(&buf, n))

		v, err := ReadVariableWidthInt(&buf)
		require.NoError(t, err)
		assert.Equal(t, n, v)
	}
}

func TestReadVariableWidthIntKnownBytes(t *testing.T) {
	t.Parallel()

	// 0x8c 0x2b decodes to ((0x0c + 1) << 7) + 0x2b.
	buf := bytes.NewBuffer([]byte{0x8c, 0x2b})
	v, err := ReadVariableWidthInt(buf)
	require.NoError(t, err)
	assert.EqualValues(t, 1707, v)
}

func TestReadVariableWidthIntShort(t *testing.T) {
	t.Parallel()

	_, err := ReadVariableWidthInt(bytes.NewBuffer([]byte{0x80}))
	assert.Error(t, err)
}

func TestReadObjectID(t *testing.T) {
	t.Parallel()

	raw := bytes.Repeat([]byte{0xaa}, 20)
	id, err := ReadObjectID(bytes.NewReader(raw), hash.SHA1)
	require.NoError(t, err)
	assert.Equal(t, raw, id.Bytes())

	raw = bytes.Repeat([]byte{0xbb}, 32)
	id, err = ReadObjectID(bytes.NewReader(raw), hash.SHA256)
	require.NoError(t, err)
	assert.Equal(t, raw, id.Bytes())

	_, err = ReadObjectID(bytes.NewReader(raw[:10]), hash.SHA256)
	assert.Error(t, err)
}
