package sync

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetAndPutBytesBuffer(t *testing.T) {
	t.Parallel()

	buf := GetBytesBuffer()
	require.NotNil(t, buf)
	buf.WriteString("data")

	PutBytesBuffer(buf)

	buf = GetBytesBuffer()
	assert.Zero(t, buf.Len())
	PutBytesBuffer(buf)
}

func TestGetAndPutByteSlice(t *testing.T) {
	t.Parallel()

	slice := GetByteSlice()
	require.NotNil(t, slice)
	assert.Equal(t, 16*1024, len(*slice))
	PutByteSlice(slice)
}

func TestZlibReaderWriterRoundTrip(t *testing.T) {
	t.Parallel()

	payload := bytes.Repeat([]byte("pack engine "), 512)

	var compressed bytes.Buffer
	w := GetZlibWriter(&compressed)
	_, err := w.Write(payload)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	PutZlibWriter(w)

	r, err := GetZlibReader(bytes.NewReader(compressed.Bytes()))
	require.NoError(t, err)
	defer PutZlibReader(r)

	out, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, payload, out)
}

func TestZstdDictRoundTrip(t *testing.T) {
	t.Parallel()

	dict := bytes.Repeat([]byte("shared prefix of both payloads. "), 64)
	target := append(append([]byte{}, dict...), []byte("plus a suffix")...)

	frame, err := ZstdCompressWithDict(target, dict)
	require.NoError(t, err)
	require.NotEmpty(t, frame)

	out, err := ZstdDecompressWithDict(frame, dict, len(target))
	require.NoError(t, err)
	assert.Equal(t, target, out)

	// A frame produced against one dictionary must not silently decode
	// against another.
	_, err = ZstdDecompressWithDict(frame, []byte("unrelated"), 0)
	if err == nil {
		out, err = ZstdDecompressWithDict(frame, []byte("unrelated"), 0)
		require.NoError(t, err)
		assert.NotEqual(t, target, out)
	}
}
