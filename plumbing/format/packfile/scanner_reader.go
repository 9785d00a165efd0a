package packfile

import (
	"bufio"
	"io"
)

// scannerReader has the following characteristics:
//   - Keeps track of the current read position within the pack.
//   - Writes to the hash writer what it reads, with the aid of a smaller
//     buffer. The buffer helps avoid a performance penalty for performing
//     small writes to the crc32 and pack hash writers.
//
// Note that this is passed on to zlib, and it must support io.ByteReader,
// else zlib would buffer ahead and read past the end of the current
// object's compressed stream.
//
// scannerReader is not thread-safe.
type scannerReader struct {
	reader io.Reader
	tee    io.Writer
	rbuf   *bufio.Reader
	wbuf   *bufio.Writer
	offset int64
}

func newScannerReader(r io.Reader, tee io.Writer) *scannerReader {
	sr := &scannerReader{
		rbuf: bufio.NewReader(nil),
		wbuf: bufio.NewWriterSize(nil, 64),
		tee:  tee,
	}
	sr.Reset(r)

	return sr
}

func (r *scannerReader) Reset(reader io.Reader) {
	r.reader = reader
	r.rbuf.Reset(r.reader)
	r.wbuf.Reset(r.tee)
	r.offset = 0
}

func (r *scannerReader) Read(p []byte) (n int, err error) {
	n, err = r.rbuf.Read(p)

	r.offset += int64(n)
	if _, werr := r.wbuf.Write(p[:n]); werr != nil {
		return n, werr
	}
	return
}

func (r *scannerReader) ReadByte() (b byte, err error) {
	b, err = r.rbuf.ReadByte()
	if err == nil {
		r.offset++
		return b, r.wbuf.WriteByte(b)
	}
	return
}

func (r *scannerReader) Flush() error {
	return r.wbuf.Flush()
}
