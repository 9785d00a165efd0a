// Package ioutil implements small I/O helpers shared across the module.
package ioutil

import (
	"io"

	"github.com/web3infra-foundation/git-internal/utils/sync"
)

// CheckClose calls Close on the given io.Closer. If the given *error points
// to nil, it will be assigned the error returned by Close. Otherwise, any
// error returned by Close will be ignored. CheckClose is usually called
// with defer.
func CheckClose(c io.Closer, err *error) {
	if cerr := c.Close(); cerr != nil && *err == nil {
		*err = cerr
	}
}

// CopyBufferPool is like io.Copy but uses a pooled intermediate buffer.
func CopyBufferPool(dst io.Writer, src io.Reader) (int64, error) {
	buf := sync.GetByteSlice()
	defer sync.PutByteSlice(buf)

	return io.CopyBuffer(dst, src, *buf)
}
