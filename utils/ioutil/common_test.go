package ioutil

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type closer struct {
	err    error
	closed bool
}

func (c *closer) Close() error {
	c.closed = true
	return c.err
}

func TestCheckClose(t *testing.T) {
	t.Parallel()

	var err error
	c := &closer{}
	func() {
		defer CheckClose(c, &err)
	}()
	assert.True(t, c.closed)
	assert.NoError(t, err)
}

func TestCheckCloseKeepsFirstError(t *testing.T) {
	t.Parallel()

	closeErr := errors.New("close failed")
	firstErr := errors.New("first")

	var err error
	func() {
		defer CheckClose(&closer{err: closeErr}, &err)
	}()
	assert.Equal(t, closeErr, err)

	err = firstErr
	func() {
		defer CheckClose(&closer{err: closeErr}, &err)
	}()
	assert.Equal(t, firstErr, err)
}

func TestCopyBufferPool(t *testing.T) {
	t.Parallel()

	src := bytes.Repeat([]byte("copy me "), 10000)
	var dst bytes.Buffer

	n, err := CopyBufferPool(&dst, bytes.NewReader(src))
	require.NoError(t, err)
	assert.EqualValues(t, len(src), n)
	assert.Equal(t, src, dst.Bytes())
}
