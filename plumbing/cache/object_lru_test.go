package cache

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/web3infra-foundation/git-internal/plumbing"
	"github.com/web3infra-foundation/git-internal/plumbing/hash"
)

func blobEntry(t *testing.T, seed byte, size int) plumbing.Entry {
	t.Helper()
	data := make([]byte, size)
	for i := range data {
		data[i] = seed
	}
	return plumbing.NewEntry(hash.SHA1, plumbing.BlobObject, data)
}

func TestObjectLRUPutGet(t *testing.T) {
	t.Parallel()

	c := NewObjectLRU(1*KiByte, nil)
	e := blobEntry(t, 'a', 100)
	c.Put(e)

	got, ok := c.Get(e.Hash)
	require.True(t, ok)
	assert.Equal(t, e, got)
	assert.Equal(t, FileSize(100), c.Size())

	_, ok = c.Get(hash.MustFromHex("0000000000000000000000000000000000000001"))
	assert.False(t, ok)
}

func TestObjectLRUEvictionOrder(t *testing.T) {
	t.Parallel()

	var evicted []plumbing.Entry
	c := NewObjectLRU(300*Byte, func(e plumbing.Entry) {
		evicted = append(evicted, e)
	})

	a := blobEntry(t, 'a', 100)
	b := blobEntry(t, 'b', 100)
	d := blobEntry(t, 'd', 100)
	c.Put(a)
	c.Put(b)
	c.Put(d)
	assert.Empty(t, evicted)

	// Touch a, making b the coldest.
	_, ok := c.Get(a.Hash)
	require.True(t, ok)

	e := blobEntry(t, 'e', 100)
	c.Put(e)

	require.Len(t, evicted, 1)
	assert.Equal(t, b.Hash, evicted[0].Hash)
	assert.False(t, c.Contains(b.Hash))
	assert.True(t, c.Contains(a.Hash))
	assert.LessOrEqual(t, c.Size(), FileSize(300))
}

func TestObjectLRUOversizedGoesToHook(t *testing.T) {
	t.Parallel()

	var evicted []plumbing.Entry
	c := NewObjectLRU(64*Byte, func(e plumbing.Entry) {
		evicted = append(evicted, e)
	})

	big := blobEntry(t, 'x', 1024)
	c.Put(big)

	require.Len(t, evicted, 1)
	assert.Equal(t, big.Hash, evicted[0].Hash)
	assert.False(t, c.Contains(big.Hash))
	assert.Zero(t, c.Size())
}

func TestObjectLRUBudgetInvariant(t *testing.T) {
	t.Parallel()

	c := NewObjectLRU(1*KiByte, nil)
	for i := 0; i < 100; i++ {
		data := []byte(fmt.Sprintf("payload-%d-%s", i, string(make([]byte, i*7%200))))
		c.Put(plumbing.NewEntry(hash.SHA1, plumbing.BlobObject, data))
		assert.LessOrEqual(t, c.Size(), FileSize(1*KiByte))
	}
}

func TestObjectLRUClear(t *testing.T) {
	t.Parallel()

	c := NewObjectLRU(1*KiByte, nil)
	e := blobEntry(t, 'a', 10)
	c.Put(e)
	c.Clear()

	assert.False(t, c.Contains(e.Hash))
	assert.Zero(t, c.Size())
}
