package hash

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	sha1Hex   = "8ab686eafeb1f44702738c8b0f24f2567c36da6d"
	sha256Hex = "2c07a4773e3a957c77810e8cc5deb52cd70493803c048e48dcc0e01f94cbe677"
)

func TestFromHex(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		in   string
		kind Kind
		ok   bool
	}{
		{"sha1", sha1Hex, SHA1, true},
		{"sha256", sha256Hex, SHA256, true},
		{"empty", "", "", false},
		{"short", "8ab686", "", false},
		{"not hex", strings.Repeat("zz", 20), "", false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			id, ok := FromHex(tc.in)
			assert.Equal(t, tc.ok, ok)
			if tc.ok {
				assert.Equal(t, tc.kind, id.Kind())
				assert.Equal(t, tc.in, id.String())
			}
		})
	}
}

func TestFromBytes(t *testing.T) {
	t.Parallel()

	raw := bytes.Repeat([]byte{0xab}, 20)
	id, ok := FromBytes(raw)
	require.True(t, ok)
	assert.Equal(t, SHA1, id.Kind())
	assert.Equal(t, raw, id.Bytes())

	raw = bytes.Repeat([]byte{0xcd}, 32)
	id, ok = FromBytes(raw)
	require.True(t, ok)
	assert.Equal(t, SHA256, id.Kind())
	assert.Equal(t, raw, id.Bytes())

	_, ok = FromBytes(make([]byte, 21))
	assert.False(t, ok)
}

func TestObjectIDZero(t *testing.T) {
	t.Parallel()

	assert.True(t, ZeroID(SHA1).IsZero())
	assert.True(t, ZeroID(SHA256).IsZero())
	assert.Equal(t, strings.Repeat("0", 40), ZeroID(SHA1).String())
	assert.Equal(t, strings.Repeat("0", 64), ZeroID(SHA256).String())

	id := MustFromHex(sha1Hex)
	assert.False(t, id.IsZero())
}

func TestObjectIDRoundTrip(t *testing.T) {
	t.Parallel()

	id := MustFromHex(sha256Hex)
	var buf bytes.Buffer
	n, err := id.WriteTo(&buf)
	require.NoError(t, err)
	assert.EqualValues(t, 32, n)

	back := ZeroID(SHA256)
	_, err = back.ReadFrom(&buf)
	require.NoError(t, err)
	assert.True(t, id.Equal(back))
	assert.Equal(t, id, back)
}

func TestObjectIDCompare(t *testing.T) {
	t.Parallel()

	a := MustFromHex("0000000000000000000000000000000000000001")
	b := MustFromHex("0000000000000000000000000000000000000002")

	assert.Negative(t, a.Compare(b.Bytes()))
	assert.Positive(t, b.Compare(a.Bytes()))
	assert.Zero(t, a.Compare(a.Bytes()))
	assert.True(t, a.HasPrefix([]byte{0x00}))
}

func TestSort(t *testing.T) {
	t.Parallel()

	ids := []ObjectID{
		MustFromHex("ff00000000000000000000000000000000000000"),
		MustFromHex("0000000000000000000000000000000000000001"),
		MustFromHex("8ab686eafeb1f44702738c8b0f24f2567c36da6d"),
	}
	Sort(ids)

	assert.Equal(t, "0000000000000000000000000000000000000001", ids[0].String())
	assert.Equal(t, "8ab686eafeb1f44702738c8b0f24f2567c36da6d", ids[1].String())
	assert.Equal(t, "ff00000000000000000000000000000000000000", ids[2].String())
}
