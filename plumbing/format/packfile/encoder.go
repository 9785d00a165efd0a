package packfile

import (
	"fmt"
	"hash"
	"hash/crc32"
	"io"

	"github.com/web3infra-foundation/git-internal/plumbing"
	gihash "github.com/web3infra-foundation/git-internal/plumbing/hash"
	"github.com/web3infra-foundation/git-internal/plumbing/format/idxfile"
	"github.com/web3infra-foundation/git-internal/utils/binary"
	gisync "github.com/web3infra-foundation/git-internal/utils/sync"
	"github.com/web3infra-foundation/git-internal/utils/trace"
)

// Encoder writes entries into a writer in PACK format, optionally
// searching a sliding window of earlier objects for delta bases. The
// caller-supplied order defines pack offsets. The matching index is
// collected on the fly and available through Index once Encode returns.
type Encoder struct {
	w        *offsetWriter
	sink     io.Writer
	hasher   hash.Hash
	crc      hash.Hash32
	kind     gihash.Kind
	version  Version
	selector *deltaSelector
	window   int
	zstd     bool
	idxw     *idxfile.Writer
	checksum gihash.ObjectID
}

// EncoderOption configures an Encoder.
type EncoderOption func(*Encoder)

// WithEncoderObjectFormat sets the hash kind used for object ids and the
// pack trailer. Defaults to the session kind.
func WithEncoderObjectFormat(k gihash.Kind) EncoderOption {
	return func(e *Encoder) {
		e.kind = k
	}
}

// WithDeltaWindow sets the delta search window size. Zero, the default,
// disables delta search and writes every object as a base.
func WithDeltaWindow(n int) EncoderOption {
	return func(e *Encoder) {
		e.window = n
	}
}

// WithZstdDeltas makes the delta search emit zstd-framed deltas instead
// of classic delta instructions. Packs written with this option are not
// readable by standard Git.
func WithZstdDeltas() EncoderOption {
	return func(e *Encoder) {
		e.zstd = true
	}
}

// NewEncoder creates a new packfile encoder writing to w.
func NewEncoder(w io.Writer, opts ...EncoderOption) *Encoder {
	e := &Encoder{
		sink:    w,
		kind:    gihash.Default(),
		version: V2,
		idxw:    new(idxfile.Writer),
	}

	for _, opt := range opts {
		opt(e)
	}

	e.hasher = e.kind.New()
	e.crc = crc32.NewIEEE()
	e.w = newOffsetWriter(io.MultiWriter(w, e.hasher, e.crc))
	e.selector = newDeltaSelector(e.window, e.zstd)

	return e
}

// Encode writes a pack containing the given entries, in the given order,
// and returns the pack trailer hash. Each entry's id must match its
// payload; ids are written untouched into the index.
func (e *Encoder) Encode(entries []plumbing.Entry) (gihash.ObjectID, error) {
	if err := e.head(len(entries)); err != nil {
		return gihash.ZeroID(e.kind), err
	}

	if err := e.idxw.OnHeader(uint32(len(entries))); err != nil {
		return gihash.ZeroID(e.kind), err
	}

	for i := range entries {
		if err := e.entry(entries[i]); err != nil {
			return gihash.ZeroID(e.kind), err
		}
	}

	return e.footer()
}

// Index returns the index matching the encoded pack. It is only valid
// after Encode has returned successfully.
func (e *Encoder) Index() (*idxfile.MemoryIndex, error) {
	return e.idxw.Index()
}

// Checksum returns the pack trailer hash written by Encode.
func (e *Encoder) Checksum() gihash.ObjectID {
	return e.checksum
}

func (e *Encoder) head(numEntries int) error {
	return binary.Write(
		e.w,
		signature,
		uint32(e.version),
		uint32(numEntries),
	)
}

func (e *Encoder) entry(o plumbing.Entry) error {
	offset := e.w.Offset()
	e.crc.Reset()

	body := o.Data
	sel := e.selector.Select(o)

	if sel == nil {
		if err := e.entryHead(o.Type, int64(len(o.Data))); err != nil {
			return err
		}
	} else {
		// Zstd delta records declare the target size; classic delta
		// records declare their instruction stream length.
		declared := int64(len(sel.instructions))
		if sel.typ == plumbing.ZstdOFSDeltaObject {
			declared = int64(len(o.Data))
		}

		if err := e.entryHead(sel.typ, declared); err != nil {
			return err
		}

		if err := binary.WriteVariableWidthInt(e.w, offset-sel.base.offset); err != nil {
			return err
		}

		body = sel.instructions
		trace.Pack.Printf("encode: %s as %s against base at %d (%d -> %d bytes)",
			o.Hash, sel.typ, sel.base.offset, len(o.Data), len(body))
	}

	zw := gisync.GetZlibWriter(e.w)
	if _, err := zw.Write(body); err != nil {
		gisync.PutZlibWriter(zw)
		return err
	}
	if err := zw.Close(); err != nil {
		gisync.PutZlibWriter(zw)
		return err
	}
	gisync.PutZlibWriter(zw)

	e.idxw.Add(o.Hash, uint64(offset), e.crc.Sum32())
	e.selector.Add(o, offset)

	return nil
}

// entryHead writes the type-size varint: 3 bits of type, 4 bits of low
// size, then 7-bit little-endian continuation groups.
func (e *Encoder) entryHead(typeNum plumbing.ObjectType, size int64) error {
	t := int64(typeNum)
	header := []byte{}
	c := (t << firstLengthBits) | (size & maskFirstLength)
	size >>= firstLengthBits
	for size != 0 {
		header = append(header, byte(c|maskContinue))
		c = size & int64(maskLength)
		size >>= lengthBits
	}

	header = append(header, byte(c))
	_, err := e.w.Write(header)

	return err
}

func (e *Encoder) footer() (gihash.ObjectID, error) {
	sum := e.hasher.Sum(nil)

	id := gihash.ZeroID(e.kind)
	if _, err := id.Write(sum); err != nil {
		return id, err
	}

	e.checksum = id
	if err := e.idxw.OnFooter(id); err != nil {
		return id, err
	}

	if _, err := e.sink.Write(sum); err != nil {
		return id, fmt.Errorf("write pack trailer: %w", err)
	}

	return id, nil
}

type offsetWriter struct {
	w      io.Writer
	offset int64
}

func newOffsetWriter(w io.Writer) *offsetWriter {
	return &offsetWriter{w: w}
}

func (ow *offsetWriter) Write(p []byte) (n int, err error) {
	n, err = ow.w.Write(p)
	ow.offset += int64(n)
	return n, err
}

func (ow *offsetWriter) Offset() int64 {
	return ow.offset
}
