package plumbing

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/web3infra-foundation/git-internal/plumbing/hash"
)

func TestComputeHash(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		kind    hash.Kind
		typ     ObjectType
		content string
		want    string
	}{
		{
			name: "empty blob sha1",
			kind: hash.SHA1, typ: BlobObject, content: "",
			want: "e69de29bb2d1d6434b8b29ae775ad8c2e48c5391",
		},
		{
			name: "blob sha1",
			kind: hash.SHA1, typ: BlobObject, content: "hello world\n",
			want: "3b18e512dbec9366ba84554fbd192c9963dfa1c8",
		},
		{
			name: "empty blob sha256",
			kind: hash.SHA256, typ: BlobObject, content: "",
			want: "473a0f4c3be8a93681a267e3b1e9a7dcda1185436fe141f7749120a303721813",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := ComputeHash(tc.kind, tc.typ, []byte(tc.content))
			assert.Equal(t, tc.want, got.String())
			assert.Equal(t, tc.kind, got.Kind())
		})
	}
}

func TestHasherReset(t *testing.T) {
	t.Parallel()

	h := NewHasher(hash.SHA1, BlobObject, 0)
	first := h.Sum()

	h.Reset(BlobObject, 12)
	h.Write([]byte("hello world\n"))
	second := h.Sum()

	assert.Equal(t, "e69de29bb2d1d6434b8b29ae775ad8c2e48c5391", first.String())
	assert.Equal(t, "3b18e512dbec9366ba84554fbd192c9963dfa1c8", second.String())
}

func TestNewEntry(t *testing.T) {
	t.Parallel()

	e := NewEntry(hash.SHA1, BlobObject, []byte("hello world\n"))
	assert.Equal(t, BlobObject, e.Type)
	assert.Equal(t, "3b18e512dbec9366ba84554fbd192c9963dfa1c8", e.Hash.String())
	assert.Equal(t, ComputeHash(e.Hash.Kind(), e.Type, e.Data), e.Hash)
}
